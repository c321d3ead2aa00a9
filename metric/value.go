package metric

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnnamedValue is returned when a value needs a field name: a second
	// unnamed push into the same type, or an unnamed field rendered to
	// Influx next to other fields.
	ErrUnnamedValue = errors.New("metric: a name is required when there are several values")

	// ErrValueNotFound is returned by the Value getters for unknown names.
	ErrValueNotFound = errors.New("metric: value not found")
)

// Sentinels meaning "no value this tick". Pushing one of them into a Value is
// a silent no-op. They may be changed during program initialization.
var (
	NoMetricFloat  = math.MaxFloat64
	NoMetricUint   = uint64(math.MaxUint64)
	NoMetricString = ""
)

// Field is one named measurement. Name may be empty for single-field values.
type Field[T any] struct {
	Name  string
	Value T
}

// Value is a multi-field measurement captured at a point in time.
type Value struct {
	captured time.Time

	floats  []Field[float64]
	uints   []Field[uint64]
	bools   []Field[bool]
	strings []Field[string]
}

// NewValue returns an empty Value captured now.
func NewValue() Value {
	return Value{captured: time.Now()}
}

// NewValueAt returns an empty Value captured at t.
func NewValueAt(t time.Time) Value {
	return Value{captured: t}
}

// Captured returns the capture time.
func (v *Value) Captured() time.Time { return v.captured }

// SetCaptured overrides the capture time.
func (v *Value) SetCaptured(t time.Time) { v.captured = t }

func push[T comparable](list *[]Field[T], val, sentinel T, skip bool, name string) error {
	if skip && val == sentinel {
		return nil
	}
	if name == "" && len(*list) > 0 {
		return ErrUnnamedValue
	}
	*list = append(*list, Field[T]{Name: name, Value: val})
	return nil
}

// PushFloat appends a float field. NoMetricFloat is dropped.
func (v *Value) PushFloat(val float64, name string) error {
	return push(&v.floats, val, NoMetricFloat, true, name)
}

// PushUint appends an unsigned field. NoMetricUint is dropped.
func (v *Value) PushUint(val uint64, name string) error {
	return push(&v.uints, val, NoMetricUint, true, name)
}

// PushBool appends a boolean field. Booleans have no sentinel.
func (v *Value) PushBool(val bool, name string) error {
	return push(&v.bools, val, false, false, name)
}

// PushString appends a string field. NoMetricString is dropped.
func (v *Value) PushString(val, name string) error {
	return push(&v.strings, val, NoMetricString, true, name)
}

func find[T any](list []Field[T], name string) (T, error) {
	for _, f := range list {
		if f.Name == name {
			return f.Value, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %q", ErrValueNotFound, name)
}

// FloatField returns the float field with the given name.
func (v *Value) FloatField(name string) (float64, error) { return find(v.floats, name) }

// UintField returns the unsigned field with the given name.
func (v *Value) UintField(name string) (uint64, error) { return find(v.uints, name) }

// BoolField returns the boolean field with the given name.
func (v *Value) BoolField(name string) (bool, error) { return find(v.bools, name) }

// StringField returns the string field with the given name.
func (v *Value) StringField(name string) (string, error) { return find(v.strings, name) }

// Floats returns the float fields in push order.
func (v *Value) Floats() []Field[float64] { return v.floats }

// Uints returns the unsigned fields in push order.
func (v *Value) Uints() []Field[uint64] { return v.uints }

// Bools returns the boolean fields in push order.
func (v *Value) Bools() []Field[bool] { return v.bools }

// Strings returns the string fields in push order.
func (v *Value) Strings() []Field[string] { return v.strings }

// Len returns the total number of fields.
func (v *Value) Len() int {
	return len(v.floats) + len(v.uints) + len(v.bools) + len(v.strings)
}

// IsEmpty reports whether no field was pushed.
func (v *Value) IsEmpty() bool { return v.Len() == 0 }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// NaN and ±Inf are rejected by line protocol and meaningless to Graphite.
func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

// Graphite renders one plaintext line per numeric or boolean field:
// "<tag>[.<field>] <value> <unix-seconds>". String fields have no Graphite
// representation and are skipped, as are non-finite floats.
func (v *Value) Graphite(tag Tag) string {
	if v.IsEmpty() {
		return ""
	}
	path := tag.Graphite()
	ts := " " + strconv.FormatInt(v.captured.Unix(), 10) + "\n"

	var b strings.Builder
	line := func(name, val string) {
		b.WriteString(path)
		if name != "" {
			b.WriteByte('.')
			b.WriteString(name)
		}
		b.WriteByte(' ')
		b.WriteString(val)
		b.WriteString(ts)
	}
	for _, f := range v.floats {
		if finite(f.Value) {
			line(f.Name, formatFloat(f.Value))
		}
	}
	for _, f := range v.uints {
		line(f.Name, strconv.FormatUint(f.Value, 10))
	}
	for _, f := range v.bools {
		if f.Value {
			line(f.Name, "1")
		} else {
			line(f.Name, "0")
		}
	}
	return b.String()
}

// Influx renders the value as a single line-protocol point:
// "<tag> field=value[,field=value...] <unix-nanos>". An unnamed field is
// written as "value" and is only legal when it is the sole field. Non-finite
// floats are left out; a value with nothing else to write renders empty.
func (v *Value) Influx(tag Tag) (string, error) {
	if v.IsEmpty() {
		return "", nil
	}
	series, err := tag.Influx()
	if err != nil {
		return "", err
	}

	fields := make([]string, 0, v.Len())
	key := func(name string) (string, error) {
		if name != "" {
			return influxEscaper.Replace(name), nil
		}
		if v.Len() > 1 {
			return "", ErrUnnamedValue
		}
		return "value", nil
	}
	add := func(name, val string) error {
		k, err := key(name)
		if err != nil {
			return err
		}
		fields = append(fields, k+"="+val)
		return nil
	}

	for _, f := range v.floats {
		if !finite(f.Value) {
			continue
		}
		if err := add(f.Name, formatFloat(f.Value)); err != nil {
			return "", err
		}
	}
	for _, f := range v.uints {
		if err := add(f.Name, strconv.FormatUint(f.Value, 10)+"i"); err != nil {
			return "", err
		}
	}
	for _, f := range v.bools {
		val := "f"
		if f.Value {
			val = "t"
		}
		if err := add(f.Name, val); err != nil {
			return "", err
		}
	}
	for _, f := range v.strings {
		if err := add(f.Name, strconv.Quote(f.Value)); err != nil {
			return "", err
		}
	}

	if len(fields) == 0 {
		return "", nil
	}
	return series + " " + strings.Join(fields, ",") + " " +
		strconv.FormatInt(v.captured.UnixNano(), 10) + "\n", nil
}

// Describe returns a short human readable description of the value.
func (v *Value) Describe() string {
	var b strings.Builder
	section := func(kind string, n int, each func(i int) string) {
		if n == 0 {
			return
		}
		b.WriteString(kind)
		b.WriteString(": {")
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(each(i))
		}
		b.WriteString("} ")
	}
	section("floats", len(v.floats), func(i int) string {
		return v.floats[i].Name + ": " + formatFloat(v.floats[i].Value)
	})
	section("uints", len(v.uints), func(i int) string {
		return v.uints[i].Name + ": " + strconv.FormatUint(v.uints[i].Value, 10)
	})
	section("bools", len(v.bools), func(i int) string {
		return v.bools[i].Name + ": " + strconv.FormatBool(v.bools[i].Value)
	})
	section("strings", len(v.strings), func(i int) string {
		return v.strings[i].Name + ": " + v.strings[i].Value
	})
	return strings.TrimSpace(b.String())
}
