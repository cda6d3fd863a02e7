package convert

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Width selects the numeric representation of int and float fields.
type Width int

const (
	Width64 Width = iota
	Width32
)

// Converter turns one raw cell into a Value.
type Converter func(raw interface{}) Value

// DefaultDateFormat is the strftime layout used when none is configured.
const DefaultDateFormat = "%Y-%m-%d"

// Policy holds the knobs that real tapes disagree on. The zero Policy is
// not usable; start from DefaultPolicy.
type Policy struct {
	// PercentScale multiplies values written with a % suffix.
	PercentScale float64
	// BpsScale multiplies values written with a bps suffix.
	BpsScale float64
	// DateFormat is a strftime or Go layout for date strings.
	DateFormat string
	// DateDelimiter splits date schedules. Empty splits on comma and semicolon.
	DateDelimiter string
	// MissingTokens extends the built-in missing-token set.
	MissingTokens []string
}

// DefaultPolicy reads units literally and dates as ISO.
func DefaultPolicy() Policy {
	return Policy{
		PercentScale: 1,
		BpsScale:     1,
		DateFormat:   DefaultDateFormat,
	}
}

var defaultPolicy = DefaultPolicy()

var missingTokens = map[string]struct{}{
	"":     {},
	"none": {},
	"na":   {},
	"nan":  {},
	"n/a":  {},
	"null": {},
}

var trueTokens = map[string]struct{}{"true": {}, "yes": {}, "y": {}, "t": {}, "1": {}}

var falseTokens = map[string]struct{}{"false": {}, "no": {}, "n": {}, "f": {}, "0": {}}

// IsMissingToken reports whether s spells "no value" under p.
func (p Policy) IsMissingToken(s string) bool {
	token := strings.ToLower(strings.TrimSpace(s))
	if _, ok := missingTokens[token]; ok {
		return true
	}
	for _, extra := range p.MissingTokens {
		if token == strings.ToLower(strings.TrimSpace(extra)) {
			return true
		}
	}
	return false
}

// IsMissingToken reports whether s is one of the built-in missing tokens.
func IsMissingToken(s string) bool {
	return defaultPolicy.IsMissingToken(s)
}

func (p Policy) percentScale() decimal.Decimal {
	if p.PercentScale == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(p.PercentScale)
}

func (p Policy) bpsScale() decimal.Decimal {
	if p.BpsScale == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromFloat(p.BpsScale)
}

func (p Policy) dateFormat() string {
	if p.DateFormat == "" {
		return DefaultDateFormat
	}
	return p.DateFormat
}
