// Package registry ties collection to export. A Registry holds (tag,
// generator) pairs and a list of sinks; on every tick of its scheduler timer
// it calls each generator in registration order and hands the non-empty
// results, as one batch, to every sink.
//
// Each tick is traced with an OpenTelemetry span named "registry.tick".
// Panics raised by a generator or a sink are recovered, logged and recorded
// on the span; the rest of the tick proceeds.
package registry
