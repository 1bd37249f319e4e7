// Package money normalizes free-form amounts read off receipts and compares them against
// order totals.
package money

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference at which two normalized amounts still match.
// Extraction sometimes drops a trailing zero or misreads a decimal separator.
var Tolerance = decimal.New(10, -2)

// Normalize parses a currency string ("₱1,200.00", "1 200,5", "1200") into a value rounded
// half away from zero to two decimals. ok is false when nothing numeric can be parsed.
func Normalize(raw string) (d decimal.Decimal, ok bool) {
	s := keepNumeric(raw)
	s = dropThousandsCommas(s)
	s = decimalComma(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return v.Round(2), true
}

// NormalizeValue accepts the shapes a decoded JSON field may take.
func NormalizeValue(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case string:
		return Normalize(t)
	case *string:
		if t == nil {
			return decimal.Zero, false
		}
		return Normalize(*t)
	case json.Number:
		return Normalize(t.String())
	case decimal.Decimal:
		return t.Round(2), true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t).Round(2), true
	case float32:
		return NormalizeValue(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	}
	return decimal.Zero, false
}

// Equal reports whether two normalized amounts match within Tolerance or print identically.
func Equal(a, b decimal.Decimal) bool {
	if a.Sub(b).Abs().LessThanOrEqual(Tolerance) {
		return true
	}
	return Format(a) == Format(b)
}

// Matches normalizes raw and compares it with an expected total. An unparseable amount never matches.
func Matches(raw *string, expected decimal.Decimal) bool {
	if raw == nil {
		return false
	}
	got, ok := Normalize(*raw)
	if !ok {
		return false
	}
	return Equal(got, expected.Round(2))
}

// Format renders a two-decimal string.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func keepNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isDigit(c) || c == ',' || c == '.' || c == '-' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// dropThousandsCommas removes a comma followed by exactly three digits and then a non-digit or the end.
func dropThousandsCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == ',' && i+3 < len(s) &&
			isDigit(s[i+1]) && isDigit(s[i+2]) && isDigit(s[i+3]) &&
			(i+4 == len(s) || !isDigit(s[i+4])) {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// decimalComma turns a trailing ",d" or ",dd" into a decimal point.
func decimalComma(s string) string {
	i := strings.LastIndexByte(s, ',')
	if i < 0 {
		return s
	}
	tail := s[i+1:]
	if len(tail) < 1 || len(tail) > 2 {
		return s
	}
	for j := 0; j < len(tail); j++ {
		if !isDigit(tail[j]) {
			return s
		}
	}
	return s[:i] + "." + tail
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
