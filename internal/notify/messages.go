package notify

import (
	"fmt"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
	"github.com/joseph-ayodele/payment-receipts/internal/utils"
)

// ForVerdict returns the notifications owed after an upload reaches a terminal status:
// the customer always hears the outcome, the seller only hears about verified payments.
func ForVerdict(rec *entity.PaymentReceipt) []Notification {
	switch rec.Status {
	case constants.VerificationVerified:
		return []Notification{ReceiptVerified(rec), PaymentReceived(rec)}
	case constants.VerificationRejected:
		return []Notification{ReceiptRejected(rec)}
	}
	return nil
}

func ReceiptVerified(rec *entity.PaymentReceipt) Notification {
	return newNotification(KindReceiptVerified, AudienceCustomer, rec.CustomerID, rec.ID, rec.OrderID,
		"Payment verified",
		fmt.Sprintf("Your payment for order %s was verified.", shortID(rec.OrderID.String())))
}

func ReceiptRejected(rec *entity.PaymentReceipt) Notification {
	n := newNotification(KindReceiptRejected, AudienceCustomer, rec.CustomerID, rec.ID, rec.OrderID,
		"Payment receipt rejected",
		fmt.Sprintf("We could not verify your receipt for order %s: %s.",
			shortID(rec.OrderID.String()), utils.StrOrEmpty(rec.RejectionReason)))
	if rec.RejectionReason != nil {
		n.Data["reason"] = *rec.RejectionReason
	}
	return n
}

func PaymentReceived(rec *entity.PaymentReceipt) Notification {
	body := fmt.Sprintf("Payment for order %s was received", shortID(rec.OrderID.String()))
	if amt := utils.StrOrEmpty(rec.Extracted.Amount); amt != "" {
		body += " (" + amt + ")"
	}
	n := newNotification(KindPaymentReceived, AudienceSeller, rec.SellerID, rec.ID, rec.OrderID,
		"New payment received", body+".")
	if ref := utils.StrOrEmpty(rec.Extracted.ReferenceNumber); ref != "" {
		n.Data["reference_number"] = ref
	}
	return n
}

// ReceiptReviewed tells the customer about an admin decision.
func ReceiptReviewed(rec *entity.PaymentReceipt) Notification {
	title, body := "Payment receipt rejected after review",
		fmt.Sprintf("Your receipt for order %s was rejected after manual review.", shortID(rec.OrderID.String()))
	if rec.Status == constants.VerificationVerified {
		title, body = "Payment approved after review",
			fmt.Sprintf("Your payment for order %s was approved after manual review.", shortID(rec.OrderID.String()))
	}
	n := newNotification(KindReceiptReviewed, AudienceCustomer, rec.CustomerID, rec.ID, rec.OrderID, title, body)
	n.Data["status"] = string(rec.Status)
	return n
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
