// Package monitor is a metrics collection SDK: periodic collection on a
// small worker pool, decaying reservoirs for percentiles, and pluggable
// exporters (console, Graphite, InfluxDB, Prometheus remote write and pull,
// Kafka).
//
// The building blocks live in subpackages and can be used on their own:
// metric (tags, values, line rendering), reservoir, aggregate, instrument,
// scheduler, registry and sink. This package wires them from a Config and
// offers named get-or-create instruments plus process-wide helpers.
//
// Basic usage:
//
//	config := monitor.DefaultConfig()
//	config.Namespace = "myapp"
//	config.ServiceName = "service"
//	config.RemoteWriteURL = "http://prometheus:9090/api/v1/write"
//
//	if err := monitor.Init(config); err != nil {
//	  log.Fatal(err)
//	}
//	defer monitor.Shutdown()
//
//	monitor.IncrementCounter("requests_total", "route", "/login")
//	monitor.ObserveHistogram("response_time", 123)
//
//	t := monitor.StartTimer("db_query")
//	defer t.Stop()
package monitor
