// Package reservoir provides bounded samples of unbounded value streams.
//
// ExpDecay keeps a time-biased random sample using forward decay, the
// technique behind most "exponentially decaying" percentiles in metrics
// libraries. Histogram keeps every value at a fixed precision using an HDR
// histogram. Both report their content through Visit as (weight, value)
// pairs; Kind tells the reader whether weights are sampling weights or plain
// counts.
package reservoir
