package convert

import (
	"strings"
	"time"

	apperrors "tapestrat/internal/errors"
)

// MaxScheduleLength caps how many elements one schedule expression may expand to.
const MaxScheduleLength = 100000

// ReadRampToArray parses a schedule expression under the default policy.
func ReadRampToArray(raw interface{}) Value { return defaultPolicy.ReadRampToArray(raw) }

// ReadDatesToArray parses a date schedule under the default policy.
func ReadDatesToArray(raw interface{}, opts DateArrayOptions) Value {
	return defaultPolicy.ReadDatesToArray(raw, opts)
}

// ReadRampToArray parses a comma or semicolon separated schedule. Brackets
// are ignored. Each token is one of:
//
//	A              the single value A
//	A for N        A repeated N times
//	A ramp B for N N evenly spaced values from A to B inclusive
//	A ramp B       A, A+1, ... up to B (or down to B when B < A)
//
// Blank input returns Missing. Malformed input returns Invalid wrapping a
// *errors.MalformedRampError.
func (p Policy) ReadRampToArray(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Missing()
	case Value:
		if v.Kind() == KindFloatArray || v.IsMissing() || v.IsInvalid() {
			return v
		}
		if s, ok := v.AsString(); ok {
			return p.ReadRampToArray(s)
		}
		if f, ok := v.AsFloat(); ok {
			return FloatArray([]float64{f})
		}
		return Missing()
	case []float64:
		return FloatArray(v)
	case string:
		if p.IsMissingToken(stripBrackets(v)) {
			return Missing()
		}
		xs, err := p.ParseRamp(v)
		if err != nil {
			return Invalid(err)
		}
		return FloatArray(xs)
	default:
		f := p.ConvertFloats(raw, Width64)
		if x, ok := f.AsFloat(); ok {
			return FloatArray([]float64{x})
		}
		return Missing()
	}
}

// ParseRamp expands a schedule expression into its values.
func (p Policy) ParseRamp(spec string) ([]float64, error) {
	body := strings.ReplaceAll(stripBrackets(spec), ";", ",")
	var out []float64
	for _, token := range strings.Split(body, ",") {
		values, err := p.expandToken(spec, strings.ToLower(strings.TrimSpace(token)))
		if err != nil {
			return nil, err
		}
		if len(out)+len(values) > MaxScheduleLength {
			return nil, &apperrors.MalformedRampError{Input: spec, Token: token, Reason: "schedule too long"}
		}
		out = append(out, values...)
	}
	return out, nil
}

func (p Policy) expandToken(spec, token string) ([]float64, error) {
	malformed := func(reason string) error {
		return &apperrors.MalformedRampError{Input: spec, Token: token, Reason: reason}
	}
	if token == "" {
		return nil, malformed("empty token")
	}

	head, count, hasFor := strings.Cut(token, "for")
	from, to, hasRamp := strings.Cut(head, "ramp")

	a, ok := p.rampNumber(from)
	if !ok {
		return nil, malformed("start is not a number")
	}

	n := 0
	if hasFor {
		c, ok := p.rampNumber(count)
		if !ok || c != float64(int(c)) {
			return nil, malformed("count is not an integer")
		}
		if c <= 0 {
			return nil, malformed("count must be positive")
		}
		if c > MaxScheduleLength {
			return nil, malformed("schedule too long")
		}
		n = int(c)
	}

	if !hasRamp {
		if !hasFor {
			return []float64{a}, nil
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = a
		}
		return out, nil
	}

	b, ok := p.rampNumber(to)
	if !ok {
		return nil, malformed("end is not a number")
	}

	if hasFor {
		out := make([]float64, n)
		if n == 1 {
			out[0] = a
			return out, nil
		}
		for i := range out {
			out[i] = a + (b-a)*float64(i)/float64(n-1)
		}
		out[n-1] = b
		return out, nil
	}

	step := 1.0
	if b < a {
		step = -1
	}
	span := (b - a) * step
	if span+1 > MaxScheduleLength {
		return nil, malformed("schedule too long")
	}
	out := make([]float64, 0, int(span)+1)
	for i := 0; float64(i) <= span; i++ {
		out = append(out, a+step*float64(i))
	}
	return out, nil
}

func (p Policy) rampNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, ok := p.parseNumeric(s)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, finite(f)
}

// DateArrayOptions configures ReadDatesToArray.
type DateArrayOptions struct {
	// Format is a strftime or Go layout. Empty uses the policy's date format.
	Format string
	// Delimiter splits elements. Empty uses the policy's delimiter.
	Delimiter string
	// KeepTime keeps the clock part of each element instead of truncating to a date.
	KeepTime bool
}

// ReadDatesToArray splits a date schedule and converts every element with
// ConvertDates. Blank input returns Missing; an unreadable element returns
// Invalid.
func (p Policy) ReadDatesToArray(raw interface{}, opts DateArrayOptions) Value {
	var s string
	switch v := raw.(type) {
	case nil:
		return Missing()
	case Value:
		if v.Kind() == KindDateArray || v.IsMissing() || v.IsInvalid() {
			return v
		}
		if d, ok := v.AsDate(); ok {
			return DateArray([]time.Time{d})
		}
		str, ok := v.AsString()
		if !ok {
			return Missing()
		}
		s = str
	case []time.Time:
		return DateArray(v)
	case string:
		s = v
	default:
		d := p.ConvertDates(raw, opts.Format)
		if t, ok := d.AsDate(); ok {
			return DateArray([]time.Time{t})
		}
		return Missing()
	}

	body := stripBrackets(s)
	if p.IsMissingToken(body) {
		return Missing()
	}

	format := opts.Format
	if format == "" {
		format = p.dateFormat()
	}
	var tokens []string
	switch delim := firstNonEmpty(opts.Delimiter, p.DateDelimiter); delim {
	case "":
		tokens = strings.FieldsFunc(body, func(r rune) bool { return r == ',' || r == ';' })
	default:
		tokens = strings.Split(body, delim)
	}

	out := make([]time.Time, 0, len(tokens))
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		var t time.Time
		if opts.KeepTime {
			parsed, err := time.Parse(Layout(format), token)
			if err != nil {
				return Invalid(&apperrors.MalformedRampError{Input: s, Token: token, Reason: "unreadable date"})
			}
			t = parsed
		} else {
			d, ok := p.ConvertDates(token, format).AsDate()
			if !ok {
				return Invalid(&apperrors.MalformedRampError{Input: s, Token: token, Reason: "unreadable date"})
			}
			t = d
		}
		out = append(out, t)
	}
	return DateArray(out)
}

// arrayConverters binds schedule fields to their parser by field name.
var arrayConverters = map[string]func(Policy) Converter{
	"pmt_sched_amort":      rampConverter,
	"pmt_sched":            rampConverter,
	"pmt_draw_sched":       rampConverter,
	"pmt_sched_dates":      dateArrayConverter,
	"pmt_draw_sched_dates": dateArrayConverter,
}

func rampConverter(p Policy) Converter {
	return p.ReadRampToArray
}

func dateArrayConverter(p Policy) Converter {
	return func(raw interface{}) Value { return p.ReadDatesToArray(raw, DateArrayOptions{}) }
}

// ArrayConverterFor returns the schedule parser bound to a field name.
func (p Policy) ArrayConverterFor(field string) (Converter, bool) {
	build, ok := arrayConverters[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return nil, false
	}
	return build(p), true
}

// ArrayFieldNames lists the field names with a dedicated schedule parser.
func ArrayFieldNames() []string {
	return []string{"pmt_draw_sched", "pmt_draw_sched_dates", "pmt_sched", "pmt_sched_amort", "pmt_sched_dates"}
}

func stripBrackets(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '(', ')', '{', '}':
			return -1
		}
		return r
	}, s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
