package verification

import (
	"strings"

	"github.com/joseph-ayodele/payment-receipts/internal/entity"
)

// Human-readable labels for failed checks.
const (
	LabelAmountMismatch   = "Amount does not match the order total"
	LabelReceiverMismatch = "Receiver does not match the seller's registered wallet"
	LabelInvalidReference = "Reference number is invalid"
	LabelDuplicate        = "Reference number was already used on another receipt"
	LabelTamper           = "Image metadata suggests the receipt was edited"
)

// RejectionReason joins the labels of every failed check, adding the tamper label when the
// image was flagged. It returns "" for a verdict with no failed checks.
func RejectionReason(v entity.ValidationVerdict, tamperSuspected bool) string {
	var parts []string
	if !v.AmountMatch {
		parts = append(parts, LabelAmountMismatch)
	}
	if !v.ReceiverMatch {
		parts = append(parts, LabelReceiverMismatch)
	}
	if !v.ReferenceValid {
		parts = append(parts, LabelInvalidReference)
	}
	if v.IsDuplicate {
		parts = append(parts, LabelDuplicate)
	}
	if len(parts) == 0 {
		return ""
	}
	if tamperSuspected {
		parts = append(parts, LabelTamper)
	}
	return strings.Join(parts, ", ")
}
