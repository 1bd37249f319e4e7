package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{name: "thousands comma", in: "1,200.00", want: "1200.00", ok: true},
		{name: "plain integer", in: "1200", want: "1200.00", ok: true},
		{name: "currency symbol", in: "₱1200.00", want: "1200.00", ok: true},
		{name: "currency code and spaces", in: "PHP 1 234 567,8", want: "1234567.80", ok: true},
		{name: "decimal comma", in: "1200,50", want: "1200.50", ok: true},
		{name: "several thousands groups", in: "1,234,567", want: "1234567.00", ok: true},
		{name: "rounds half away from zero", in: "2.345", want: "2.35", ok: true},
		{name: "negative rounds away from zero", in: "-5.455", want: "-5.46", ok: true},
		{name: "empty", in: "", ok: false},
		{name: "letters only", in: "N/A", ok: false},
		{name: "two decimal points", in: "1.200.00", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, Format(got))
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, in := range []string{"1,200.00", "₱1200.00", "1199.95", "1200,5", "2.345", "0"} {
		first, ok := Normalize(in)
		require.True(t, ok, in)
		second, ok := Normalize(Format(first))
		require.True(t, ok, in)
		assert.True(t, first.Equal(second), "normalize(normalize(%q)) = %s, want %s", in, second, first)
	}
}

func TestMatchesOrderTotal(t *testing.T) {
	total := decimal.RequireFromString("1200.00")
	tests := []struct {
		raw  string
		want bool
	}{
		{"1,200.00", true},
		{"1200", true},
		{"₱1200.00", true},
		{"1199.95", true},
		{"1199.89", false},
		{"1200.10", true},
		{"1200.11", false},
		{"not a number", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Matches(ptr(tt.raw), total), tt.raw)
	}
	assert.False(t, Matches(nil, total))
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
		ok   bool
	}{
		{name: "int", in: 500, want: "500.00", ok: true},
		{name: "float", in: 499.999, want: "500.00", ok: true},
		{name: "json number", in: json.Number("1,500.5"), want: "1500.50", ok: true},
		{name: "string", in: "₱ 75", want: "75.00", ok: true},
		{name: "nil", in: nil, ok: false},
		{name: "nil string pointer", in: (*string)(nil), ok: false},
		{name: "nan", in: math.NaN(), ok: false},
		{name: "bool", in: true, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeValue(tt.in)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, Format(got))
			}
		})
	}
}
