package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/payment-receipts/constants"
)

// Order is owned by the marketplace; this service reads it and only writes PaymentStatus.
type Order struct {
	ID            uuid.UUID               `json:"id"`
	CustomerID    uuid.UUID               `json:"customer_id"`
	TotalAmount   decimal.Decimal         `json:"total_amount"`
	Currency      string                  `json:"currency"`
	PaymentMethod constants.PaymentMethod `json:"payment_method"`
	PaymentStatus constants.PaymentStatus `json:"payment_status"`
	Items         []OrderItem             `json:"items"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// OrderItem is a purchased line item.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	SellerID  uuid.UUID       `json:"seller_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SellerID returns the seller of the first line item and whether every item shares it.
func (o *Order) SellerID() (id uuid.UUID, single bool) {
	if len(o.Items) == 0 {
		return uuid.Nil, false
	}
	id = o.Items[0].SellerID
	for _, it := range o.Items[1:] {
		if it.SellerID != id {
			return id, false
		}
	}
	return id, true
}

// SellerPaymentAccount is the expected receiver of a wallet payment.
type SellerPaymentAccount struct {
	SellerID     uuid.UUID `json:"seller_id"`
	AccountName  string    `json:"account_name"`
	WalletNumber string    `json:"wallet_number"`
	QRAssetURL   string    `json:"qr_asset_url"`
}
