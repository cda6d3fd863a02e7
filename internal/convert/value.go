package convert

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Kind identifies which member of a Value is populated.
type Kind int

const (
	KindMissing Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindFloatArray
	KindDateArray
	KindInvalid
)

var kindNames = map[Kind]string{
	KindMissing:    "missing",
	KindBool:       "bool",
	KindInt:        "int",
	KindFloat:      "float",
	KindString:     "string",
	KindDate:       "date",
	KindFloatArray: "float_array",
	KindDateArray:  "date_array",
	KindInvalid:    "invalid",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a converted tape cell. The zero Value is Missing.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	t      time.Time
	floats []float64
	dates  []time.Time
	err    error
}

// Missing returns the missing sentinel.
func Missing() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int wraps an integer.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float wraps a float.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Date wraps a calendar date. The clock part is dropped.
func Date(t time.Time) Value { return Value{kind: KindDate, t: truncateDate(t)} }

// DateTime wraps a timestamp without truncating it.
func DateTime(t time.Time) Value { return Value{kind: KindDate, t: t} }

// FloatArray wraps a numeric schedule. The slice is copied.
func FloatArray(xs []float64) Value {
	return Value{kind: KindFloatArray, floats: append([]float64(nil), xs...)}
}

// DateArray wraps a date schedule. The slice is copied.
func DateArray(ds []time.Time) Value {
	return Value{kind: KindDateArray, dates: append([]time.Time(nil), ds...)}
}

// Invalid marks a present but malformed cell.
func Invalid(err error) Value { return Value{kind: KindInvalid, err: err} }

// Kind reports the populated member.
func (v Value) Kind() Kind { return v.kind }

// IsMissing reports whether v is the missing sentinel.
func (v Value) IsMissing() bool { return v.kind == KindMissing }

// IsInvalid reports whether v carries a parse error.
func (v Value) IsInvalid() bool { return v.kind == KindInvalid }

// IsArray reports whether v holds a schedule.
func (v Value) IsArray() bool { return v.kind == KindFloatArray || v.kind == KindDateArray }

// IsNumeric reports whether v holds an int or a float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Err returns the parse error of an Invalid value.
func (v Value) Err() error { return v.err }

// AsBool returns the boolean member.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsInt returns the integer member.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsString returns the string member.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsDate returns the date member.
func (v Value) AsDate() (time.Time, bool) { return v.t, v.kind == KindDate }

// AsFloatArray returns the numeric schedule.
func (v Value) AsFloatArray() ([]float64, bool) { return v.floats, v.kind == KindFloatArray }

// AsDateArray returns the date schedule.
func (v Value) AsDateArray() ([]time.Time, bool) { return v.dates, v.kind == KindDateArray }

// AsFloat returns a numeric view of ints and floats.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// Text renders v the way reports print it. Missing renders as "".
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindDate:
		return formatTime(v.t)
	case KindFloatArray:
		parts := make([]string, len(v.floats))
		for i, f := range v.floats {
			parts[i] = strconv.FormatFloat(f, 'f', -1, 64)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDateArray:
		parts := make([]string, len(v.dates))
		for i, d := range v.dates {
			parts[i] = formatTime(d)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindInvalid:
		return "#INVALID"
	default:
		return ""
	}
}

// Interface returns v as a plain Go value, nil when missing.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindDate:
		return formatTime(v.t)
	case KindFloatArray:
		return v.floats
	case KindDateArray:
		out := make([]string, len(v.dates))
		for i, d := range v.dates {
			out[i] = formatTime(d)
		}
		return out
	case KindInvalid:
		return v.err.Error()
	default:
		return nil
	}
}

// MarshalJSON encodes the plain Go value of v.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Equal compares kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindMissing:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindDate:
		return v.t.Equal(o.t)
	case KindFloatArray:
		if len(v.floats) != len(o.floats) {
			return false
		}
		for i := range v.floats {
			if v.floats[i] != o.floats[i] {
				return false
			}
		}
		return true
	case KindDateArray:
		if len(v.dates) != len(o.dates) {
			return false
		}
		for i := range v.dates {
			if !v.dates[i].Equal(o.dates[i]) {
				return false
			}
		}
		return true
	default:
		return v.err == o.err
	}
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02T15:04:05")
}
