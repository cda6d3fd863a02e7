package convert

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// ConvertBools converts raw to a Bool under the default policy.
func ConvertBools(raw interface{}) Value { return defaultPolicy.ConvertBools(raw) }

// ConvertInts converts raw to an Int under the default policy.
func ConvertInts(raw interface{}, width Width) Value { return defaultPolicy.ConvertInts(raw, width) }

// ConvertFloats converts raw to a Float under the default policy.
func ConvertFloats(raw interface{}, width Width) Value { return defaultPolicy.ConvertFloats(raw, width) }

// ConvertStrs converts raw to a String under the default policy.
func ConvertStrs(raw interface{}) Value { return defaultPolicy.ConvertStrs(raw) }

// ConvertDates converts raw to a Date under the default policy. An empty
// format means the policy's date format.
func ConvertDates(raw interface{}, format string) Value {
	return defaultPolicy.ConvertDates(raw, format)
}

// ConvertBools reads yes/no style tokens. Numbers map 1 to true and
// anything else to false.
func (p Policy) ConvertBools(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Missing()
	case Value:
		return p.ConvertBools(v.Interface())
	case string:
		if p.IsMissingToken(v) {
			return Missing()
		}
		if n, ok := boolToken(v); ok {
			return Bool(n == 1)
		}
		return Missing()
	case bool:
		return Bool(v)
	case float32, float64:
		f := toFloat(v)
		if !finite(f) {
			return Missing()
		}
		return Bool(f == 1)
	case decimal.Decimal:
		return Bool(v.Equal(decimal.NewFromInt(1)))
	default:
		if i, ok := toInt(raw); ok {
			return Bool(i == 1)
		}
		return Missing()
	}
}

// ConvertInts reads integers, rounding fractional input half away from
// zero. Out-of-range values for the width become missing.
func (p Policy) ConvertInts(raw interface{}, width Width) Value {
	switch v := raw.(type) {
	case nil:
		return Missing()
	case Value:
		return p.ConvertInts(v.Interface(), width)
	case string:
		if p.IsMissingToken(v) {
			return Missing()
		}
		d, ok := p.parseNumeric(v)
		if !ok {
			if n, isBool := boolToken(v); isBool {
				return Int(n)
			}
			return Missing()
		}
		if i, ok := roundToInt(d, width); ok {
			return Int(i)
		}
		return Missing()
	case bool:
		if v {
			return Int(1)
		}
		return Int(0)
	case float32, float64:
		f := toFloat(v)
		if !finite(f) {
			return Missing()
		}
		if i, ok := roundToInt(decimal.NewFromFloat(f), width); ok {
			return Int(i)
		}
		return Missing()
	case decimal.Decimal:
		if i, ok := roundToInt(v, width); ok {
			return Int(i)
		}
		return Missing()
	default:
		if i, ok := toInt(raw); ok {
			if i64, ok := roundToInt(decimal.NewFromInt(i), width); ok {
				return Int(i64)
			}
		}
		return Missing()
	}
}

// ConvertFloats reads floats. Width32 narrows the result to float32 precision.
func (p Policy) ConvertFloats(raw interface{}, width Width) Value {
	switch v := raw.(type) {
	case nil:
		return Missing()
	case Value:
		return p.ConvertFloats(v.Interface(), width)
	case string:
		if p.IsMissingToken(v) {
			return Missing()
		}
		d, ok := p.parseNumeric(v)
		if !ok {
			if n, isBool := boolToken(v); isBool {
				return Float(float64(n))
			}
			return Missing()
		}
		f, _ := d.Float64()
		if !finite(f) {
			return Missing()
		}
		return Float(narrowFloat(f, width))
	case bool:
		if v {
			return Float(1)
		}
		return Float(0)
	case float32, float64:
		f := toFloat(v)
		if !finite(f) {
			return Missing()
		}
		return Float(narrowFloat(f, width))
	case decimal.Decimal:
		f, _ := v.Float64()
		return Float(narrowFloat(f, width))
	default:
		if i, ok := toInt(raw); ok {
			return Float(narrowFloat(float64(i), width))
		}
		return Missing()
	}
}

// ConvertStrs renders raw as text. Booleans print as True/False, dates as
// ISO and collections as JSON.
func (p Policy) ConvertStrs(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return Missing()
	case Value:
		if v.IsMissing() {
			return Missing()
		}
		return String(v.Text())
	case string:
		if p.IsMissingToken(v) {
			return Missing()
		}
		return String(v)
	case bool:
		if v {
			return String("True")
		}
		return String("False")
	case float32, float64:
		f := toFloat(v)
		if math.IsNaN(f) {
			return Missing()
		}
		return String(strconv.FormatFloat(f, 'f', -1, 64))
	case decimal.Decimal:
		return String(v.String())
	case time.Time:
		return String(formatTime(v))
	case fmt.Stringer:
		return String(v.String())
	default:
		if i, ok := toInt(raw); ok {
			return String(strconv.FormatInt(i, 10))
		}
		b, err := json.Marshal(raw)
		if err != nil {
			return String(fmt.Sprint(raw))
		}
		return String(string(b))
	}
}

func toFloat(raw interface{}) float64 {
	switch v := raw.(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return math.NaN()
}

func toInt(raw interface{}) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}
