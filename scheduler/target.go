package scheduler

import "fmt"

type targetKind int

const (
	targetContext targetKind = iota
	targetRoundRobin
	targetRandom
	targetCurrent
)

// Target selects the context a work item is queued on.
type Target struct {
	kind  targetKind
	index int
}

var (
	// RoundRobin cycles through the contexts using a shared counter.
	RoundRobin = Target{kind: targetRoundRobin}
	// Random picks a context uniformly at random.
	Random = Target{kind: targetRandom}
	// Current picks the context of the calling worker. It fails with
	// ErrNotInPool outside the pool.
	Current = Target{kind: targetCurrent}
)

// OnContext targets the context with the given index.
func OnContext(i int) Target {
	return Target{kind: targetContext, index: i}
}

func (t Target) String() string {
	switch t.kind {
	case targetRoundRobin:
		return "round-robin"
	case targetRandom:
		return "random"
	case targetCurrent:
		return "current"
	default:
		return fmt.Sprintf("context(%d)", t.index)
	}
}
