package aggregate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikiz24/monitor/v2/reservoir"
)

type staticReservoir struct {
	kind   reservoir.Kind
	points [][2]float64
}

func (s staticReservoir) Kind() reservoir.Kind { return s.kind }
func (s staticReservoir) Size() int            { return len(s.points) }
func (s staticReservoir) Visit(fn func(weight, value float64)) {
	for _, p := range s.points {
		fn(p[0], p[1])
	}
}

func field(t *testing.T, r reservoir.Reservoir, name string) float64 {
	t.Helper()
	v := Summarize(r)
	f, err := v.FloatField(name)
	require.NoError(t, err)
	return f
}

func TestSummarizeEmpty(t *testing.T) {
	v := Summarize(reservoir.NewExpDecay())
	assert.True(t, v.IsEmpty())

	v = Summarize(staticReservoir{kind: reservoir.KindWeighted, points: [][2]float64{{0, 1}, {0, 2}}})
	assert.True(t, v.IsEmpty(), "zero total weight")

	v = Summarize(nil)
	assert.True(t, v.IsEmpty())
}

func TestSummarizeSimple(t *testing.T) {
	var points [][2]float64
	for i := 1; i <= 100; i++ {
		points = append(points, [2]float64{1, float64(i)})
	}
	r := staticReservoir{kind: reservoir.KindSimple, points: points}

	v := Summarize(r)
	assert.Equal(t, 8, v.Len())
	assert.InDelta(t, 50.5, field(t, r, Mean), 1e-9)
	assert.Equal(t, 1.0, field(t, r, Min))
	assert.Equal(t, 100.0, field(t, r, Max))
	assert.InDelta(t, 833.25, field(t, r, Variance), 1e-9)
	assert.Equal(t, 50.0, field(t, r, Median))
	assert.Equal(t, 75.0, field(t, r, P75))
	assert.Equal(t, 95.0, field(t, r, P95))
	assert.Equal(t, 99.0, field(t, r, P99))
}

func TestSummarizeSimpleMultiplicity(t *testing.T) {
	r := staticReservoir{kind: reservoir.KindSimple, points: [][2]float64{{3, 10}, {1, 20}}}
	assert.InDelta(t, 12.5, field(t, r, Mean), 1e-9)
	assert.Equal(t, 10.0, field(t, r, Median))
	assert.Equal(t, 10.0, field(t, r, P75))
	assert.Equal(t, 20.0, field(t, r, P95))
}

func TestSummarizeWeighted(t *testing.T) {
	r := staticReservoir{kind: reservoir.KindWeighted, points: [][2]float64{
		{1, 100},
		{3, 10},
	}}
	assert.InDelta(t, 32.5, field(t, r, Mean), 1e-9)
	assert.Equal(t, 10.0, field(t, r, Min))
	assert.Equal(t, 100.0, field(t, r, Max))
	// weighted variance: (3*22.5^2 + 67.5^2) / 4
	assert.InDelta(t, 1518.75, field(t, r, Variance), 1e-9)
	assert.Equal(t, 10.0, field(t, r, Median))
	assert.Equal(t, 10.0, field(t, r, P75))
	assert.Equal(t, 100.0, field(t, r, P95))
}

func TestSummarizeSkipsNaN(t *testing.T) {
	r := staticReservoir{kind: reservoir.KindSimple, points: [][2]float64{{1, math.NaN()}, {1, 4}}}
	assert.Equal(t, 4.0, field(t, r, Mean))
}

func TestSummarizeExpDecay(t *testing.T) {
	r := reservoir.NewExpDecay(reservoir.WithSeed(11))
	for i := 0; i < 500; i++ {
		r.Push(42)
	}
	assert.InDelta(t, 42.0, field(t, r, Mean), 1e-9)
	assert.InDelta(t, 0.0, field(t, r, Variance), 1e-9)
	assert.Equal(t, 42.0, field(t, r, P99))
}

func TestSummarizeHistogram(t *testing.T) {
	h := reservoir.NewLatencyHistogram()
	for i := int64(1); i <= 1000; i++ {
		h.Record(i)
	}
	assert.Equal(t, 1.0, field(t, h, Min))
	assert.Equal(t, 1000.0, field(t, h, Max))
	assert.Equal(t, 500.0, field(t, h, Median))
}
