package instrument

import (
	"runtime"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// cache line sized shard so concurrent writers do not false-share
type counterShard struct {
	n atomic.Uint64
	_ [56]byte
}

// SharedCounter is a monotonically increasing counter written from many
// goroutines. Each goroutine writes to the shard picked by its id, so up to
// len(shards) writers never touch the same cache line. Sum adds the shards up
// and is eventually consistent with concurrent writers.
type SharedCounter struct {
	shards []counterShard
}

// NewSharedCounter returns a counter with one shard per CPU.
func NewSharedCounter() *SharedCounter {
	return NewSharedCounterWithShards(runtime.GOMAXPROCS(0))
}

// NewSharedCounterWithShards returns a counter with n shards (at least one).
func NewSharedCounterWithShards(n int) *SharedCounter {
	if n < 1 {
		n = 1
	}
	return &SharedCounter{shards: make([]counterShard, n)}
}

func (c *SharedCounter) shard() *counterShard {
	if len(c.shards) == 1 {
		return &c.shards[0]
	}
	return &c.shards[uint64(goid.Get())%uint64(len(c.shards))]
}

// Inc adds one.
func (c *SharedCounter) Inc() { c.shard().n.Add(1) }

// Add adds delta.
func (c *SharedCounter) Add(delta uint64) { c.shard().n.Add(delta) }

// Sum returns the total over all shards.
func (c *SharedCounter) Sum() uint64 {
	var total uint64
	for i := range c.shards {
		total += c.shards[i].n.Load()
	}
	return total
}

// Reset zeroes every shard. Increments racing with Reset may survive it.
func (c *SharedCounter) Reset() {
	for i := range c.shards {
		c.shards[i].n.Store(0)
	}
}
