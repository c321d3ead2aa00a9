package metric

import (
	"errors"
	"slices"
	"strings"
	"sync"
)

// ErrUnnamedTag is returned when an Influx rendering is requested for a tag
// without a series name.
var ErrUnnamedTag = errors.New("metric: a name must be given to the tag")

// Pair is a single key/value dimension of a Tag.
type Pair struct {
	Key   string
	Value string
}

// Tag identifies a time series: an optional dotted name plus an ordered list
// of key/value pairs. Tags are immutable; every builder returns a new Tag, so
// the rendered forms cached on first use never go stale.
type Tag struct {
	name   string
	pairs  []Pair
	render *tagRender
}

type tagRender struct {
	influxOnce sync.Once
	influx     string
	influxErr  error

	graphiteOnce sync.Once
	graphite     string
}

var (
	influxEscaper   = strings.NewReplacer(",", `\,`, " ", `\ `)
	graphiteEscaper = strings.NewReplacer(".", "_")
)

// NewTag creates a tag with the given series name and no pairs.
func NewTag(name string) Tag {
	return Tag{name: name, render: &tagRender{}}
}

func newTag(name string, pairs []Pair) Tag {
	return Tag{name: name, pairs: pairs, render: &tagRender{}}
}

// Name returns the series name.
func (t Tag) Name() string { return t.name }

// Pairs returns a copy of the ordered pair list.
func (t Tag) Pairs() []Pair { return slices.Clone(t.pairs) }

// HasPairs reports whether the tag carries at least one key/value pair.
func (t Tag) HasPairs() bool { return len(t.pairs) > 0 }

// With returns a copy of t with (key, value) appended.
func (t Tag) With(key, value string) Tag {
	pairs := make([]Pair, len(t.pairs), len(t.pairs)+1)
	copy(pairs, t.pairs)
	return newTag(t.name, append(pairs, Pair{Key: key, Value: value}))
}

// Child returns a copy of t whose name has name appended with a dot.
func (t Tag) Child(name string) Tag {
	return newTag(joinName(t.name, name), slices.Clone(t.pairs))
}

// Plus concatenates two tags: names are joined with a dot and the pair lists
// are appended in order.
func (t Tag) Plus(other Tag) Tag {
	pairs := make([]Pair, 0, len(t.pairs)+len(other.pairs))
	pairs = append(pairs, t.pairs...)
	pairs = append(pairs, other.pairs...)
	return newTag(joinName(t.name, other.name), pairs)
}

func joinName(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "." + b
	}
}

// IsPrefixOf reports whether t's pairs are an ordered prefix of other's pairs
// and t's name (when set) is a string prefix of other's name.
func (t Tag) IsPrefixOf(other Tag) bool {
	if len(t.pairs) > len(other.pairs) {
		return false
	}
	if !slices.Equal(t.pairs, other.pairs[:len(t.pairs)]) {
		return false
	}
	return t.name == "" || strings.HasPrefix(other.name, t.name)
}

// Equal reports whether both tags have the same name and the same set of
// pairs. Pair order is ignored.
func (t Tag) Equal(other Tag) bool {
	if t.name != other.name || len(t.pairs) != len(other.pairs) {
		return false
	}
	a, b := slices.Clone(t.pairs), slices.Clone(other.pairs)
	slices.SortFunc(a, comparePairs)
	slices.SortFunc(b, comparePairs)
	return slices.Equal(a, b)
}

func comparePairs(a, b Pair) int {
	if c := strings.Compare(a.Key, b.Key); c != 0 {
		return c
	}
	return strings.Compare(a.Value, b.Value)
}

// Influx renders the tag in InfluxDB line-protocol form:
// name[,key=value...]. Commas and spaces are escaped.
func (t Tag) Influx() (string, error) {
	if t.render == nil {
		return t.renderInflux()
	}
	t.render.influxOnce.Do(func() {
		t.render.influx, t.render.influxErr = t.renderInflux()
	})
	return t.render.influx, t.render.influxErr
}

func (t Tag) renderInflux() (string, error) {
	if t.name == "" {
		return "", ErrUnnamedTag
	}
	var b strings.Builder
	b.WriteString(influxEscaper.Replace(t.name))
	for _, p := range t.pairs {
		b.WriteByte(',')
		b.WriteString(influxEscaper.Replace(p.Key))
		b.WriteByte('=')
		b.WriteString(influxEscaper.Replace(p.Value))
	}
	return b.String(), nil
}

// Graphite renders the tag as a dotted Graphite path: the pair values (dots
// replaced by underscores) followed by the name, which keeps its dots.
func (t Tag) Graphite() string {
	if t.render == nil {
		return t.renderGraphite()
	}
	t.render.graphiteOnce.Do(func() {
		t.render.graphite = t.renderGraphite()
	})
	return t.render.graphite
}

func (t Tag) renderGraphite() string {
	parts := make([]string, 0, len(t.pairs)+1)
	for _, p := range t.pairs {
		parts = append(parts, graphiteEscaper.Replace(p.Value))
	}
	if t.name != "" {
		parts = append(parts, t.name)
	}
	return strings.Join(parts, ".")
}

func (t Tag) String() string {
	var b strings.Builder
	b.WriteString("measure: ")
	b.WriteString(t.name)
	b.WriteString(", tags: {")
	for i, p := range t.pairs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Key)
		b.WriteString(": ")
		b.WriteString(p.Value)
	}
	b.WriteByte('}')
	return b.String()
}
