package reservoir

// Kind tells the aggregator how to read the weights a reservoir reports.
type Kind int

const (
	// KindSimple reservoirs report multiplicities: a weight of 3 means the
	// value was observed three times.
	KindSimple Kind = iota
	// KindWeighted reservoirs report real-valued sampling weights.
	KindWeighted
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindWeighted:
		return "weighted"
	default:
		return "unknown"
	}
}

// Reservoir is a bounded sample of a value stream.
//
// Visit walks the current samples under the reservoir's own lock. The
// callback must not push into the same reservoir.
type Reservoir interface {
	Kind() Kind
	Size() int
	Visit(fn func(weight, value float64))
}
