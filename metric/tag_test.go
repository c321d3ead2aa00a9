package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagIsPrefixOf(t *testing.T) {
	a := NewTag("test").With("a", "b").With("c", "d")
	b := NewTag("").With("a", "b")
	c := NewTag("").With("a", "b").With("c", "d")
	d := NewTag("").With("c", "d")

	tests := []struct {
		name   string
		prefix Tag
		target Tag
		want   bool
	}{
		{"unnamed prefix pairs", b, a, true},
		{"same pairs without name", c, a, true},
		{"pair out of order", d, a, false},
		{"longer than target", a, b, false},
		{"named prefix", NewTag("te"), a, true},
		{"named mismatch", NewTag("x"), a, false},
		{"empty matches all", NewTag(""), a, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.prefix.IsPrefixOf(tt.target))
		})
	}
}

func TestTagIsPrefixOfPairsOnly(t *testing.T) {
	a := NewTag("")
	b := NewTag("").With("a", "1")
	c := NewTag("").With("a", "1").With("b", "2")
	d := NewTag("").With("c", "3")

	assert.True(t, b.IsPrefixOf(c))
	assert.False(t, b.IsPrefixOf(d))
	for _, other := range []Tag{a, b, c, d, NewTag("named").With("z", "z")} {
		assert.True(t, a.IsPrefixOf(other))
	}
}

func TestTagChildAndPlus(t *testing.T) {
	base := NewTag("http").With("host", "a")

	child := base.Child("requests")
	assert.Equal(t, "http.requests", child.Name())
	assert.Equal(t, []Pair{{"host", "a"}}, child.Pairs())
	assert.Equal(t, "http", base.Name(), "builder must not mutate the receiver")

	assert.Equal(t, "requests", NewTag("").Child("requests").Name())

	sum := NewTag("svc").With("dc", "eu").Plus(child)
	assert.Equal(t, "svc.http.requests", sum.Name())
	assert.Equal(t, []Pair{{"dc", "eu"}, {"host", "a"}}, sum.Pairs())
}

func TestTagInflux(t *testing.T) {
	tag := NewTag("cpu,load").With("host", "a b").With("dc", "eu,1")
	got, err := tag.Influx()
	require.NoError(t, err)
	assert.Equal(t, `cpu\,load,host=a\ b,dc=eu\,1`, got)

	_, err = NewTag("").With("k", "v").Influx()
	assert.ErrorIs(t, err, ErrUnnamedTag)
}

func TestTagGraphite(t *testing.T) {
	tag := NewTag("db.queries").With("host", "web.01").With("dc", "eu")
	assert.Equal(t, "web_01.eu.db.queries", tag.Graphite())
	assert.Equal(t, "a.b", NewTag("a.b").Graphite())
	assert.Equal(t, "x", NewTag("").With("k", "x").Graphite())
}

func TestTagRenderingIsCachedPerTag(t *testing.T) {
	tag := NewTag("name").With("k", "v")
	first := tag.Graphite()
	derived := tag.With("k2", "v2")

	assert.Equal(t, first, tag.Graphite())
	assert.Equal(t, "v.v2.name", derived.Graphite())
}

func TestTagZeroValue(t *testing.T) {
	var tag Tag
	assert.Equal(t, "", tag.Graphite())
	_, err := tag.Influx()
	assert.ErrorIs(t, err, ErrUnnamedTag)
}

func TestTagEqualIgnoresPairOrder(t *testing.T) {
	a := NewTag("n").With("a", "1").With("b", "2")
	b := NewTag("n").With("b", "2").With("a", "1")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewTag("n").With("a", "1")))
	assert.False(t, a.Equal(NewTag("m").With("a", "1").With("b", "2")))
}
