// Package aggregate turns a reservoir into descriptive statistics.
package aggregate

import (
	"math"
	"sort"

	"github.com/nikiz24/monitor/v2/metric"
	"github.com/nikiz24/monitor/v2/reservoir"
)

// Field names pushed by Summarize.
const (
	Mean     = "mean"
	Min      = "min"
	Max      = "max"
	Variance = "variance"
	Median   = "median"
	P75      = "p75"
	P95      = "p95"
	P99      = "p99"
)

var quantiles = []struct {
	name string
	q    float64
}{
	{Median, 0.5},
	{P75, 0.75},
	{P95, 0.95},
	{P99, 0.99},
}

type point struct {
	weight float64
	value  float64
}

// Summarize snapshots r and computes mean, min, max, variance, median, p75,
// p95 and p99. Weighted reservoirs use weighted moments and cumulative-weight
// percentiles; simple reservoirs treat weights as counts. An empty reservoir
// (or one whose weights sum to zero) yields an empty Value.
func Summarize(r reservoir.Reservoir) metric.Value {
	out := metric.NewValue()
	if r == nil {
		return out
	}

	points := make([]point, 0, r.Size())
	r.Visit(func(weight, value float64) {
		if math.IsNaN(value) || math.IsNaN(weight) || weight <= 0 {
			return
		}
		points = append(points, point{weight: weight, value: value})
	})
	if len(points) == 0 {
		return out
	}
	sort.Slice(points, func(i, j int) bool { return points[i].value < points[j].value })

	var s stats
	switch r.Kind() {
	case reservoir.KindWeighted:
		s = weighted(points)
	default:
		s = counted(points)
	}
	if !s.ok {
		return out
	}

	// field names are distinct so these pushes cannot fail
	_ = out.PushFloat(s.mean, Mean)
	_ = out.PushFloat(points[0].value, Min)
	_ = out.PushFloat(points[len(points)-1].value, Max)
	_ = out.PushFloat(s.variance, Variance)
	for _, q := range quantiles {
		_ = out.PushFloat(s.quantile(q.q), q.name)
	}
	return out
}

type stats struct {
	ok       bool
	mean     float64
	variance float64
	quantile func(q float64) float64
}

func weighted(points []point) stats {
	var total, sum float64
	for _, p := range points {
		total += p.weight
		sum += p.weight * p.value
	}
	if total == 0 || math.IsInf(total, 0) {
		return stats{}
	}
	mean := sum / total

	var acc float64
	for _, p := range points {
		d := p.value - mean
		acc += p.weight * d * d
	}

	cumulative := make([]float64, len(points))
	var running float64
	for i, p := range points {
		running += p.weight / total
		cumulative[i] = running
	}

	return stats{
		ok:       true,
		mean:     mean,
		variance: acc / total,
		quantile: func(q float64) float64 {
			i := sort.SearchFloat64s(cumulative, q)
			if i >= len(points) {
				i = len(points) - 1
			}
			return points[i].value
		},
	}
}

// counted handles simple reservoirs where each weight is a multiplicity.
func counted(points []point) stats {
	var n, sum float64
	for _, p := range points {
		n += p.weight
		sum += p.weight * p.value
	}
	if n == 0 {
		return stats{}
	}
	mean := sum / n

	var acc float64
	for _, p := range points {
		d := p.value - mean
		acc += p.weight * d * d
	}

	return stats{
		ok:       true,
		mean:     mean,
		variance: acc / n,
		quantile: func(q float64) float64 {
			// nearest rank: the smallest value whose cumulative count
			// reaches ceil(q*n)
			rank := math.Ceil(q * n)
			if rank < 1 {
				rank = 1
			}
			var seen float64
			for _, p := range points {
				seen += p.weight
				if seen >= rank {
					return p.value
				}
			}
			return points[len(points)-1].value
		},
	}
}
