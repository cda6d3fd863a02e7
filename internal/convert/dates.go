package convert

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExcelSerialLimit separates Excel serial day counts from YYYYMMDD integers.
// Serial 409926 falls in the year 3022 and every YYYYMMDD integer is larger.
const ExcelSerialLimit = 409926

// lotusLeapSerial is the first serial affected by the fictitious 1900-02-29.
const lotusLeapSerial = 60

var excelEpoch = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)

// ConvertDates reads calendar dates. Booleans are rejected before the
// numeric branch. Numbers up to ExcelSerialLimit are Excel serials, larger
// numbers are YYYYMMDD. Strings are parsed with format, or the policy's
// format when format is empty.
func (p Policy) ConvertDates(raw interface{}, format string) Value {
	if format == "" {
		format = p.dateFormat()
	}
	switch v := raw.(type) {
	case nil:
		return Missing()
	case Value:
		if d, ok := v.AsDate(); ok {
			return Date(d)
		}
		if v.IsNumeric() {
			f, _ := v.AsFloat()
			return dateFromNumber(f)
		}
		if s, ok := v.AsString(); ok {
			return p.ConvertDates(s, format)
		}
		return Missing()
	case time.Time:
		if v.IsZero() {
			return Missing()
		}
		return Date(v)
	case bool:
		return Missing()
	case string:
		if p.IsMissingToken(v) {
			return Missing()
		}
		t, err := time.Parse(Layout(format), strings.TrimSpace(v))
		if err != nil {
			return Missing()
		}
		return Date(t)
	case float32, float64:
		return dateFromNumber(toFloat(v))
	case decimal.Decimal:
		f, _ := v.Float64()
		return dateFromNumber(f)
	default:
		if i, ok := toInt(raw); ok {
			return dateFromNumber(float64(i))
		}
		return Missing()
	}
}

func dateFromNumber(f float64) Value {
	if !finite(f) || f < 0 {
		return Missing()
	}
	if f <= ExcelSerialLimit {
		return Date(ExcelSerialToDate(f))
	}
	if f != math.Trunc(f) {
		return Missing()
	}
	t, ok := yyyymmdd(int64(f))
	if !ok {
		return Missing()
	}
	return Date(t)
}

// ExcelSerialToDate converts an Excel serial day count. The fractional part
// is ignored and serials from 60 on are shifted back one day for the 1900
// leap-year bug.
func ExcelSerialToDate(serial float64) time.Time {
	days := int(math.Floor(serial))
	t := excelEpoch.AddDate(0, 0, days)
	if days >= lotusLeapSerial {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// DateToExcelSerial is the inverse of ExcelSerialToDate for dates after 1900-02-28.
func DateToExcelSerial(t time.Time) int {
	days := int((truncateDate(t).Unix() - excelEpoch.Unix()) / 86400)
	if days >= lotusLeapSerial {
		days++
	}
	return days
}

func yyyymmdd(n int64) (time.Time, bool) {
	if n < 10000101 || n > 99991231 {
		return time.Time{}, false
	}
	y := int(n / 10000)
	m := time.Month((n / 100) % 100)
	d := int(n % 100)
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'j': "002",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

// Layout translates a strftime format such as %Y-%m-%d into a Go time
// layout. Formats without a % directive are returned unchanged.
func Layout(format string) string {
	if !strings.Contains(format, "%") {
		return format
	}
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] == '%' && i+1 < len(format) {
			if layout, ok := strftimeDirectives[format[i+1]]; ok {
				b.WriteString(layout)
				i++
				continue
			}
		}
		b.WriteByte(format[i])
	}
	return b.String()
}
