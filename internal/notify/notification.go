// Package notify builds receipt notifications and delivers them to the configured sinks.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type Kind string

const (
	KindReceiptVerified Kind = "receipt.verified"
	KindReceiptRejected Kind = "receipt.rejected"
	KindPaymentReceived Kind = "receipt.payment_received"
	KindReceiptReviewed Kind = "receipt.reviewed"
)

type Audience string

const (
	AudienceCustomer Audience = "customer"
	AudienceSeller   Audience = "seller"
)

// Notification is one message for one recipient.
type Notification struct {
	ID            string            `json:"id"`
	Kind          Kind              `json:"kind"`
	Audience      Audience          `json:"audience"`
	RecipientID   uuid.UUID         `json:"recipient_id"`
	ReceiptID     uuid.UUID         `json:"receipt_id"`
	OrderID       uuid.UUID         `json:"order_id"`
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Data          map[string]string `json:"data,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func newNotification(kind Kind, audience Audience, recipient, receiptID, orderID uuid.UUID, title, body string) Notification {
	return Notification{
		ID:          ulid.Make().String(),
		Kind:        kind,
		Audience:    audience,
		RecipientID: recipient,
		ReceiptID:   receiptID,
		OrderID:     orderID,
		Title:       title,
		Body:        body,
		Data: map[string]string{
			"kind":       string(kind),
			"receipt_id": receiptID.String(),
			"order_id":   orderID.String(),
		},
		CreatedAt: time.Now().UTC(),
	}
}

// Notifier delivers a notification. Implementations must be safe for concurrent use.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }
