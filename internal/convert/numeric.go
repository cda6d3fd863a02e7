package convert

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt32 = decimal.NewFromInt(math.MaxInt32)
	minInt32 = decimal.NewFromInt(math.MinInt32)
)

var currencySymbols = []string{"$", "£", "€"}

// parseNumeric reads a dirty numeric string. It handles sign, accounting
// parentheses, currency symbols, thousands separators and the % and bps
// suffixes, and applies the policy's unit scale.
func (p Policy) parseNumeric(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	scale := decimal.NewFromInt(1)
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "bps"):
		s = strings.TrimSpace(s[:len(s)-3])
		scale = p.bpsScale()
	case strings.HasSuffix(s, "%"):
		s = strings.TrimSpace(s[:len(s)-1])
		scale = p.percentScale()
	}

	signed := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		signed = true
		negative = negative != (s[0] == '-')
		s = strings.TrimSpace(s[1:])
	}
	for _, sym := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			s = strings.TrimSpace(strings.TrimPrefix(s, sym))
			break
		}
		if strings.HasSuffix(s, sym) {
			s = strings.TrimSpace(strings.TrimSuffix(s, sym))
			break
		}
	}
	if !signed && strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}

	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s[0] == '-' || s[0] == '+' || strings.ContainsAny(s, " \t") {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d.Mul(scale), true
}

// boolToken maps yes/no style tokens to 1 or 0.
func boolToken(s string) (int64, bool) {
	token := strings.ToLower(strings.TrimSpace(s))
	if _, ok := trueTokens[token]; ok {
		return 1, true
	}
	if _, ok := falseTokens[token]; ok {
		return 0, true
	}
	return 0, false
}

// roundToInt rounds half away from zero and checks the width's range.
func roundToInt(d decimal.Decimal, width Width) (int64, bool) {
	r := d.Round(0)
	lo, hi := minInt64, maxInt64
	if width == Width32 {
		lo, hi = minInt32, maxInt32
	}
	if r.LessThan(lo) || r.GreaterThan(hi) {
		return 0, false
	}
	return r.IntPart(), true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func narrowFloat(f float64, width Width) float64 {
	if width == Width32 {
		return float64(float32(f))
	}
	return f
}
