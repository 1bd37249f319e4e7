package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/payment-receipts/constants"
)

// Party is one side of a wallet transfer as printed on the receipt.
type Party struct {
	Name   *string `json:"name"`
	Number *string `json:"number"`
}

// ExtractedReceiptData is the typed, untrusted result of reading a receipt image.
// Every field is optional; nothing here has been cross-checked.
type ExtractedReceiptData struct {
	ReferenceNumber *string `json:"reference_number"`
	Amount          *string `json:"amount"` // numeric text as returned by the extractor
	Sender          Party   `json:"sender"`
	Receiver        Party   `json:"receiver"`
	Date            *string `json:"date"`
	RawText         string  `json:"raw_text,omitempty"`
}

// ValidationVerdict holds the four independent checks. The overall status is derived, never stored.
type ValidationVerdict struct {
	AmountMatch    bool `json:"amount_match"`
	ReceiverMatch  bool `json:"receiver_match"`
	ReferenceValid bool `json:"reference_valid"`
	IsDuplicate    bool `json:"is_duplicate"`
}

// OverallStatus is verified iff every check passes and the reference is not a duplicate.
func (v ValidationVerdict) OverallStatus() constants.VerificationStatus {
	if v.AmountMatch && v.ReceiverMatch && v.ReferenceValid && !v.IsDuplicate {
		return constants.VerificationVerified
	}
	return constants.VerificationRejected
}

func (v ValidationVerdict) MarshalJSON() ([]byte, error) {
	type checks ValidationVerdict
	return json.Marshal(struct {
		checks
		OverallStatus constants.VerificationStatus `json:"overall_status"`
	}{checks(v), v.OverallStatus()})
}

// AdminReview records a manual override.
type AdminReview struct {
	ReviewerID uuid.UUID              `json:"reviewer_id"`
	Decision   constants.ReviewAction `json:"decision"`
	Notes      string                 `json:"notes,omitempty"`
	ReviewedAt time.Time              `json:"reviewed_at"`
}

// PaymentReceipt is the persisted audit record of one receipt upload for one order.
type PaymentReceipt struct {
	ID              uuid.UUID                    `json:"id"`
	OrderID         uuid.UUID                    `json:"order_id"`
	CustomerID      uuid.UUID                    `json:"customer_id"`
	SellerID        uuid.UUID                    `json:"seller_id"`
	ImageURL        string                       `json:"image_url"`
	Extracted       ExtractedReceiptData         `json:"extracted_data"`
	Verdict         ValidationVerdict            `json:"validation"`
	TamperSuspected bool                         `json:"tamper_suspected"`
	Status          constants.VerificationStatus `json:"verification_status"`
	RejectionReason *string                      `json:"rejection_reason,omitempty"`
	Review          *AdminReview                 `json:"admin_review,omitempty"`
	UploadedAt      time.Time                    `json:"uploaded_at"`
	ProcessedAt     *time.Time                   `json:"processed_at,omitempty"`
	VerifiedAt      *time.Time                   `json:"verified_at,omitempty"`
}
