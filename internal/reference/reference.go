// Package reference normalizes wallet transaction reference numbers.
package reference

import "github.com/joseph-ayodele/payment-receipts/internal/utils"

// Digit-count bounds of a plausible wallet reference (inclusive). They span the provider's
// older 10-digit and current 13-digit formats.
const (
	MinDigits = 10
	MaxDigits = 13
)

// Normalize strips everything but digits and reports whether the digit count is plausible.
// Once valid, the digit string is what gets persisted and deduplicated.
func Normalize(raw string) (digits string, valid bool) {
	digits = utils.DigitsOnly(raw)
	return digits, len(digits) >= MinDigits && len(digits) <= MaxDigits
}
