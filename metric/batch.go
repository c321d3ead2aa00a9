package metric

import "strings"

// Entry pairs a series identity with one captured value.
type Entry struct {
	Tag   Tag
	Value Value
}

// Batch is the ordered set of entries produced by one collection tick.
type Batch []Entry

func withPrefix(prefix, tag Tag) Tag {
	if prefix.HasPairs() {
		return prefix.Plus(tag)
	}
	return tag
}

// Graphite renders every entry in Graphite plaintext form. When prefix has
// pairs it is prepended to each entry's tag.
func (b Batch) Graphite(prefix Tag) string {
	var out strings.Builder
	for _, e := range b {
		out.WriteString(e.Value.Graphite(withPrefix(prefix, e.Tag)))
	}
	return out.String()
}

// Influx renders every entry in line-protocol form. When prefix has pairs it
// is prepended to each entry's tag. The first rendering error aborts.
func (b Batch) Influx(prefix Tag) (string, error) {
	var out strings.Builder
	for _, e := range b {
		line, err := e.Value.Influx(withPrefix(prefix, e.Tag))
		if err != nil {
			return "", err
		}
		out.WriteString(line)
	}
	return out.String(), nil
}
