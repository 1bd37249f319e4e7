package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	db, err := OpenSQLite(context.Background(), dsn, logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.MigrateUp(context.Background()))
	return db
}

type fixture struct {
	db       *DB
	orders   OrderRepository
	sellers  SellerRepository
	receipts ReceiptRepository
	sellerID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	db := newTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		db:       db,
		orders:   NewOrderRepository(db, logger),
		sellers:  NewSellerRepository(db, logger),
		receipts: NewReceiptRepository(db, logger),
		sellerID: uuid.New(),
	}
	require.NoError(t, f.sellers.UpsertPaymentAccount(context.Background(), &entity.SellerPaymentAccount{
		SellerID:     f.sellerID,
		AccountName:  "Juan's Shop",
		WalletNumber: "09171234567",
	}))
	return f
}

func (f *fixture) order(t *testing.T, total string) *entity.Order {
	t.Helper()
	o := &entity.Order{
		CustomerID:    uuid.New(),
		TotalAmount:   decimal.RequireFromString(total),
		PaymentMethod: constants.PaymentMethodWallet,
		Items: []entity.OrderItem{
			{ProductID: uuid.New(), SellerID: f.sellerID, Quantity: 2, UnitPrice: decimal.RequireFromString("250.00")},
		},
	}
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func receiptFor(o *entity.Order, sellerID uuid.UUID, ref string, status constants.VerificationStatus) *entity.PaymentReceipt {
	now := time.Now().UTC()
	return &entity.PaymentReceipt{
		ID:         uuid.New(),
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		SellerID:   sellerID,
		ImageURL:   "https://bucket.s3.us-east-1.amazonaws.com/payment-receipts/abc.jpg",
		Extracted: entity.ExtractedReceiptData{
			ReferenceNumber: &ref,
			Amount:          strPtr("500.00"),
			Receiver:        entity.Party{Name: strPtr("JU** DE* C."), Number: strPtr("09171234567")},
			RawText:         `{"reference_number":"` + ref + `"}`,
		},
		Verdict:     entity.ValidationVerdict{AmountMatch: true, ReceiverMatch: true, ReferenceValid: true},
		Status:      status,
		UploadedAt:  now,
		ProcessedAt: &now,
	}
}

func strPtr(s string) *string { return &s }

func TestOrderRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "500.00")

	got, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.CustomerID, got.CustomerID)
	assert.True(t, decimal.RequireFromString("500").Equal(got.TotalAmount))
	assert.Equal(t, constants.PaymentStatusPending, got.PaymentStatus)
	require.Len(t, got.Items, 1)
	sellerID, single := got.SellerID()
	assert.True(t, single)
	assert.Equal(t, f.sellerID, sellerID)

	_, err = f.orders.Get(ctx, uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))

	acct, err := f.sellers.GetPaymentAccount(ctx, f.sellerID)
	require.NoError(t, err)
	assert.Equal(t, "09171234567", acct.WalletNumber)
	_, err = f.sellers.GetPaymentAccount(ctx, uuid.New())
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestCreateVerifiedMarksOrderPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "500.00")

	rec := receiptFor(o, f.sellerID, "1234567890123", constants.VerificationVerified)
	rec.VerifiedAt = rec.ProcessedAt
	require.NoError(t, f.receipts.Create(ctx, rec, strPtr("1234567890123"), true))

	order, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPaid, order.PaymentStatus)

	got, err := f.receipts.GetByOrderID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, constants.VerificationVerified, got.Status)
	assert.Equal(t, "1234567890123", *got.Extracted.ReferenceNumber)
	assert.Equal(t, "09171234567", *got.Extracted.Receiver.Number)
	assert.Nil(t, got.Extracted.Sender.Number)
	assert.True(t, got.Verdict.AmountMatch)
	assert.NotNil(t, got.VerifiedAt)
	assert.WithinDuration(t, rec.UploadedAt, got.UploadedAt, time.Millisecond)

	exists, err := f.receipts.ExistsForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateRejectedLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "500.00")

	rec := receiptFor(o, f.sellerID, "123", constants.VerificationRejected)
	rec.Verdict.ReferenceValid = false
	rec.RejectionReason = strPtr("Reference number is invalid")
	require.NoError(t, f.receipts.Create(ctx, rec, nil, false))

	order, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPending, order.PaymentStatus)

	got, err := f.receipts.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Reference number is invalid", *got.RejectionReason)
}

func TestOneReceiptPerOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "500.00")

	require.NoError(t, f.receipts.Create(ctx, receiptFor(o, f.sellerID, "1111111111", constants.VerificationRejected), nil, false))
	err := f.receipts.Create(ctx, receiptFor(o, f.sellerID, "2222222222", constants.VerificationRejected), nil, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrConflict))
}

func TestReferenceClaimIsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, second := f.order(t, "500.00"), f.order(t, "500.00")

	winner := receiptFor(first, f.sellerID, "9876543210", constants.VerificationVerified)
	require.NoError(t, f.receipts.Create(ctx, winner, strPtr("9876543210"), true))

	loser := receiptFor(second, f.sellerID, "9876543210", constants.VerificationVerified)
	err := f.receipts.Create(ctx, loser, strPtr("9876543210"), true)
	require.ErrorIs(t, err, ErrReferenceClaimed)

	// the losing transaction left no receipt and did not pay the order
	exists, err := f.receipts.ExistsForOrder(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	order, err := f.orders.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPending, order.PaymentStatus)

	// re-persisting as a duplicate rejection without a claim succeeds
	loser.Verdict.IsDuplicate = true
	loser.Status = constants.VerificationRejected
	require.NoError(t, f.receipts.Create(ctx, loser, nil, false))
}

func TestReferenceExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "500.00")
	rec := receiptFor(o, f.sellerID, "1234567890", constants.VerificationRejected)
	require.NoError(t, f.receipts.Create(ctx, rec, nil, false))

	ok, err := f.receipts.ReferenceExists(ctx, "1234567890", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.receipts.ReferenceExists(ctx, "1234567890", &rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.receipts.ReferenceExists(ctx, "0000000000", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.receipts.ReferenceExists(ctx, "", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApplyReviewMarksPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.order(t, "500.00")
	rec := receiptFor(o, f.sellerID, "1234567890", constants.VerificationRejected)
	rec.RejectionReason = strPtr("Amount does not match the order total")
	require.NoError(t, f.receipts.Create(ctx, rec, strPtr("1234567890"), false))

	now := time.Now().UTC()
	rec.Status = constants.VerificationVerified
	rec.RejectionReason = nil
	rec.VerifiedAt = &now
	rec.Review = &entity.AdminReview{
		ReviewerID: uuid.New(),
		Decision:   constants.ReviewApprove,
		Notes:      "bank statement attached",
		ReviewedAt: now,
	}
	require.NoError(t, f.receipts.ApplyReview(ctx, rec, true))

	got, err := f.receipts.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.VerificationVerified, got.Status)
	assert.Nil(t, got.RejectionReason)
	require.NotNil(t, got.Review)
	assert.Equal(t, rec.Review.ReviewerID, got.Review.ReviewerID)
	assert.Equal(t, constants.ReviewApprove, got.Review.Decision)
	assert.Equal(t, "bank statement attached", got.Review.Notes)

	order, err := f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.PaymentStatusPaid, order.PaymentStatus)

	missing := *rec
	missing.ID = uuid.New()
	err = f.receipts.ApplyReview(ctx, &missing, false)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestListReceipts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		o := f.order(t, "500.00")
		status := constants.VerificationRejected
		if i%2 == 0 {
			status = constants.VerificationVerified
		}
		rec := receiptFor(o, f.sellerID, fmt.Sprintf("100000000%d", i), status)
		rec.UploadedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, f.receipts.Create(ctx, rec, nil, false))
	}

	all, total, err := f.receipts.List(ctx, ReceiptFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, all, 5)
	assert.True(t, all[0].UploadedAt.After(all[4].UploadedAt), "newest first")

	verified := constants.VerificationVerified
	page, total, err := f.receipts.List(ctx, ReceiptFilter{Status: &verified, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, page, 2)
	for _, r := range page {
		assert.Equal(t, verified, r.Status)
	}

	from, to := base.Add(time.Hour), base.Add(3*time.Hour)
	window, total, err := f.receipts.List(ctx, ReceiptFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, window, 2)
}

func TestUniqueViolationIgnoresOtherErrors(t *testing.T) {
	_, ok := uniqueViolation(errors.New("boom"))
	assert.False(t, ok)
	assert.Equal(t, "pgx5://u:p@localhost/db", pgx5URL("postgres://u:p@localhost/db"))
}
