package instrument

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikiz24/monitor/v2/metric"
)

type steppingClock struct {
	t time.Time
}

func (c *steppingClock) now() time.Time { return c.t }

func TestGauge(t *testing.T) {
	v := NewGauge(func() int { return 7 }, "").Collect()
	f, err := v.FloatField("")
	require.NoError(t, err)
	assert.Equal(t, 7.0, f)

	v = NewGauge(func() uint32 { return 9 }, "free").Collect()
	u, err := v.UintField("free")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), u)
	assert.Empty(t, v.Floats())
}

func TestCounterRate(t *testing.T) {
	clock := &steppingClock{t: time.Unix(100, 0)}
	readings := []uint64{0, 10, 20}
	i := 0
	c := NewCounter(func() uint64 { return readings[i] }, "", WithClock(clock.now))

	v := c.Collect()
	assert.True(t, v.IsEmpty(), "first tick has no baseline")

	for i = 1; i < len(readings); i++ {
		clock.t = clock.t.Add(time.Second)
		v = c.Collect()
		rate, err := v.FloatField("")
		require.NoError(t, err)
		assert.Equal(t, 10.0, rate)
	}
}

func TestCounterDecrease(t *testing.T) {
	clock := &steppingClock{t: time.Unix(100, 0)}
	readings := []int{50, 10, 30}
	i := 0
	c := NewCounter(func() int { return readings[i] }, "rps", WithClock(clock.now))

	c.Collect()
	i, clock.t = 1, clock.t.Add(time.Second)
	v := c.Collect()
	assert.True(t, v.IsEmpty())

	// the lower reading became the new baseline
	i, clock.t = 2, clock.t.Add(2*time.Second)
	v = c.Collect()
	rate, err := v.FloatField("rps")
	require.NoError(t, err)
	assert.Equal(t, 10.0, rate)
}

func TestCounterZeroElapsed(t *testing.T) {
	clock := &steppingClock{t: time.Unix(100, 0)}
	n := 0
	c := NewCounter(func() int { n += 5; return n }, "", WithClock(clock.now))
	c.Collect()
	v := c.Collect()
	assert.True(t, v.IsEmpty())
}

func TestSharedCounter(t *testing.T) {
	c := NewSharedCounterWithShards(4)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				c.Inc()
			}
			c.Add(10)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8*1010), c.Sum())

	c.Reset()
	assert.Zero(t, c.Sum())

	assert.Len(t, NewSharedCounterWithShards(0).shards, 1)
}

func TestSharedCounterWriterKeepsItsShard(t *testing.T) {
	c := NewSharedCounterWithShards(8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			c.Inc()
		}
	}()
	<-done

	var used int
	for i := range c.shards {
		if n := c.shards[i].n.Load(); n > 0 {
			used++
			assert.Equal(t, uint64(100), n)
		}
	}
	assert.Equal(t, 1, used)
}

func BenchmarkSharedCounterParallel(b *testing.B) {
	c := NewSharedCounter()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Inc()
		}
	})
}

type recorded struct {
	mu     sync.Mutex
	values []float64
}

func (r *recorded) Push(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func TestTimeScope(t *testing.T) {
	rec := &recorded{}
	s := StartTimer(rec, time.Microsecond)
	time.Sleep(2 * time.Millisecond)
	elapsed := s.Stop()
	s.Stop()

	require.Len(t, rec.values, 1)
	assert.GreaterOrEqual(t, rec.values[0], 2000.0)
	assert.InDelta(t, float64(elapsed.Microseconds()), rec.values[0], 1)

	d := StartTimer(rec, time.Microsecond)
	d.Discard()
	d.Stop()
	assert.Len(t, rec.values, 1)
}

func TestCollectorFunc(t *testing.T) {
	c := CollectorFunc(func() metric.Value {
		v := metric.NewValue()
		_ = v.PushBool(true, "up")
		return v
	})
	v := c.Collect()
	up, err := v.BoolField("up")
	require.NoError(t, err)
	assert.True(t, up)
}
