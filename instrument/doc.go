// Package instrument contains the value producers a registry polls: gauges,
// rate counters, the sharded SharedCounter and TimeScope timers.
package instrument
