package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
)

const (
	ordersTable     = "orders"
	orderItemsTable = "order_items"
	sellersTable    = "seller_payment_accounts"
)

// OrderRepository reads marketplace orders. Create exists for seeding and tests; the
// marketplace owns order writes apart from the payment status flip.
type OrderRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	Create(ctx context.Context, o *entity.Order) error
}

type orderRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewOrderRepository(db *DB, logger *slog.Logger) OrderRepository {
	return &orderRepository{db: db, logger: logger}
}

// Get loads the order with its line items in position order.
func (r *orderRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	b := r.db.builder()
	sel := b.Select("id", "customer_id", "total_amount", "currency", "payment_method", "payment_status", "created_at", "updated_at").
		From(b.Table(ordersTable)).
		Where(entsql.EQ("id", id)).
		Limit(1)
	q, args := sel.Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to get order", "order_id", id, "error", err)
		return nil, fmt.Errorf("%w: get order: %w", common.ErrDatabase, err)
	}
	var (
		o                  entity.Order
		method, status     string
		createdAt, updated nullTime
		found              bool
	)
	for rows.Next() {
		if err := rows.Scan(&o.ID, &o.CustomerID, &o.TotalAmount, &o.Currency, &method, &status, &createdAt, &updated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scan order: %w", common.ErrDatabase, err)
		}
		found = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate order: %w", common.ErrDatabase, err)
	}
	if !found {
		return nil, common.NotFoundf("order %s not found", id)
	}
	o.PaymentMethod = constants.PaymentMethod(method)
	o.PaymentStatus = constants.PaymentStatus(status)
	o.CreatedAt, o.UpdatedAt = createdAt.Time, updated.Time

	items, err := r.items(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *orderRepository) items(ctx context.Context, orderID uuid.UUID) ([]entity.OrderItem, error) {
	b := r.db.builder()
	sel := b.Select("product_id", "seller_id", "quantity", "unit_price").
		From(b.Table(orderItemsTable)).
		Where(entsql.EQ("order_id", orderID)).
		OrderBy("position")
	q, args := sel.Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, fmt.Errorf("%w: get order items: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var items []entity.OrderItem
	for rows.Next() {
		var it entity.OrderItem
		if err := rows.Scan(&it.ProductID, &it.SellerID, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("%w: scan order item: %w", common.ErrDatabase, err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *orderRepository) Create(ctx context.Context, o *entity.Order) error {
	now := time.Now().UTC()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = constants.PaymentStatusPending
	}
	if o.Currency == "" {
		o.Currency = "PHP"
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	return r.db.withTx(ctx, func(tx dialect.Tx) error {
		b := r.db.builder()
		q, args := b.Insert(ordersTable).
			Columns("id", "customer_id", "total_amount", "currency", "payment_method", "payment_status", "created_at", "updated_at").
			Values(o.ID, o.CustomerID, o.TotalAmount.StringFixed(2), o.Currency, string(o.PaymentMethod), string(o.PaymentStatus), o.CreatedAt, o.UpdatedAt).
			Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for i, it := range o.Items {
			q, args := b.Insert(orderItemsTable).
				Columns("id", "order_id", "position", "product_id", "seller_id", "quantity", "unit_price").
				Values(uuid.New(), o.ID, i, it.ProductID, it.SellerID, it.Quantity, it.UnitPrice.StringFixed(2)).
				Query()
			if err := tx.Exec(ctx, q, args, nil); err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
		}
		return nil
	})
}

// SellerRepository reads seller payment accounts.
type SellerRepository interface {
	GetPaymentAccount(ctx context.Context, sellerID uuid.UUID) (*entity.SellerPaymentAccount, error)
	UpsertPaymentAccount(ctx context.Context, acct *entity.SellerPaymentAccount) error
}

type sellerRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewSellerRepository(db *DB, logger *slog.Logger) SellerRepository {
	return &sellerRepository{db: db, logger: logger}
}

func (r *sellerRepository) GetPaymentAccount(ctx context.Context, sellerID uuid.UUID) (*entity.SellerPaymentAccount, error) {
	b := r.db.builder()
	q, args := b.Select("seller_id", "account_name", "wallet_number", "qr_asset_url").
		From(b.Table(sellersTable)).
		Where(entsql.EQ("seller_id", sellerID)).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to get seller payment account", "seller_id", sellerID, "error", err)
		return nil, fmt.Errorf("%w: get seller account: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: get seller account: %w", common.ErrDatabase, err)
		}
		return nil, common.NotFoundf("seller %s has no payment account", sellerID)
	}
	var (
		acct entity.SellerPaymentAccount
		qr   *string
	)
	if err := rows.Scan(&acct.SellerID, &acct.AccountName, &acct.WalletNumber, &qr); err != nil {
		return nil, fmt.Errorf("%w: scan seller account: %w", common.ErrDatabase, err)
	}
	if qr != nil {
		acct.QRAssetURL = *qr
	}
	return &acct, nil
}

func (r *sellerRepository) UpsertPaymentAccount(ctx context.Context, acct *entity.SellerPaymentAccount) error {
	b := r.db.builder()
	q, args := b.Insert(sellersTable).
		Columns("seller_id", "account_name", "wallet_number", "qr_asset_url", "updated_at").
		Values(acct.SellerID, acct.AccountName, acct.WalletNumber, acct.QRAssetURL, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns("seller_id"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if err := r.db.Driver.Exec(ctx, q, args, nil); err != nil {
		r.logger.Error("failed to upsert seller payment account", "seller_id", acct.SellerID, "error", err)
		return fmt.Errorf("%w: upsert seller account: %w", common.ErrDatabase, err)
	}
	return nil
}
