// Package verification cross-checks extracted receipt fields against order and seller facts.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/payment-receipts/internal/entity"
	"github.com/joseph-ayodele/payment-receipts/internal/money"
	"github.com/joseph-ayodele/payment-receipts/internal/reference"
	"github.com/joseph-ayodele/payment-receipts/internal/utils"
)

// DuplicateChecker reports whether another persisted receipt already carries ref.
type DuplicateChecker interface {
	ReferenceExists(ctx context.Context, ref string, excludeID *uuid.UUID) (bool, error)
}

// Engine is shared by the upload and verify-only paths so both reach the same verdict.
type Engine struct {
	dupes  DuplicateChecker
	logger *slog.Logger
}

func NewEngine(dupes DuplicateChecker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{dupes: dupes, logger: logger}
}

// Validate runs all four checks without short-circuiting. When the reference is valid,
// data.ReferenceNumber is replaced by its normalized digits. The only error is a failed
// duplicate lookup.
func (e *Engine) Validate(ctx context.Context, data *entity.ExtractedReceiptData, orderTotal decimal.Decimal, sellerWallet string, excludeID *uuid.UUID) (entity.ValidationVerdict, error) {
	var v entity.ValidationVerdict

	v.AmountMatch = money.Matches(data.Amount, orderTotal)
	v.ReceiverMatch = ReceiverMatches(data, sellerWallet)

	raw := strings.TrimSpace(utils.StrOrEmpty(data.ReferenceNumber))
	digits, valid := reference.Normalize(raw)
	v.ReferenceValid = valid
	lookup := raw
	if valid {
		data.ReferenceNumber = &digits
		lookup = digits
	}

	if lookup != "" {
		dup, err := e.dupes.ReferenceExists(ctx, lookup, excludeID)
		if err != nil {
			return v, fmt.Errorf("duplicate check: %w", err)
		}
		v.IsDuplicate = dup
	}

	e.logger.Debug("verification.validate",
		"amount_match", v.AmountMatch,
		"receiver_match", v.ReceiverMatch,
		"reference_valid", v.ReferenceValid,
		"is_duplicate", v.IsDuplicate,
		"overall", v.OverallStatus(),
	)
	return v, nil
}

// ReceiverMatches compares the receiver's number, or the sender's when no receiver number
// was read, with the seller's wallet on digits only.
//
// The sender fallback covers receipts that print only the payer's number. It also means a
// mis-assigned field can pass; it is kept deliberately until product decides otherwise.
func ReceiverMatches(data *entity.ExtractedReceiptData, sellerWallet string) bool {
	want := utils.DigitsOnly(sellerWallet)
	if want == "" {
		return false
	}
	got := utils.DigitsOnly(utils.StrOrEmpty(data.Receiver.Number))
	if got == "" {
		got = utils.DigitsOnly(utils.StrOrEmpty(data.Sender.Number))
	}
	return got == want
}
