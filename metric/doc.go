// Package metric holds the data model shared by every other package: series
// identities (Tag), multi-field measurements (Value) and the batches a
// registry tick hands to sinks.
//
// # Rendering
//
// Tags and values render to the two line formats the sinks speak. Graphite
// paths put the tag values first and the dotted name last; Influx lines put
// the escaped name first and the pairs after it. Rendered tags are cached
// once per Tag; since builders such as With and Child return new Tags the
// cache never goes stale.
//
// # Sentinels
//
// NoMetricFloat, NoMetricUint and NoMetricString mean "nothing to report this
// tick" and are dropped silently by the Push methods.
package metric
