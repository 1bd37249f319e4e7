package repository

import (
	"context"
	"database/sql"
	"errors"
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

const receiptsTable = "payment_receipts"

var receiptColumns = []string{
	"id", "order_id", "customer_id", "seller_id", "image_url",
	"reference_number", "amount", "sender_name", "sender_number",
	"receiver_name", "receiver_number", "receipt_date", "raw_text",
	"amount_match", "receiver_match", "reference_valid", "is_duplicate", "tamper_suspected",
	"verification_status", "rejection_reason",
	"reviewer_id", "review_decision", "review_notes", "reviewed_at",
	"uploaded_at", "processed_at", "verified_at",
}

// ReceiptFilter narrows ListReceipts. Zero values mean no constraint.
type ReceiptFilter struct {
	Status *constants.VerificationStatus
	From   *time.Time // uploaded_at >= From
	To     *time.Time // uploaded_at < To
	Limit  int
	Offset int
}

type ReceiptRepository interface {
	ReferenceExists(ctx context.Context, ref string, excludeID *uuid.UUID) (bool, error)
	ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
	Create(ctx context.Context, rec *entity.PaymentReceipt, claim *string, markPaid bool) error
	ApplyReview(ctx context.Context, rec *entity.PaymentReceipt, markPaid bool) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentReceipt, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.PaymentReceipt, error)
	List(ctx context.Context, filter ReceiptFilter) ([]*entity.PaymentReceipt, int, error)
}

type receiptRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewReceiptRepository(db *DB, logger *slog.Logger) ReceiptRepository {
	return &receiptRepository{
		db:     db,
		logger: logger,
	}
}

// ReferenceExists reports whether a persisted receipt other than excludeID carries ref.
// An empty reference never counts as a duplicate.
func (r *receiptRepository) ReferenceExists(ctx context.Context, ref string, excludeID *uuid.UUID) (bool, error) {
	if ref == "" {
		return false, nil
	}
	pred := entsql.EQ("reference_number", ref)
	if excludeID != nil {
		pred = entsql.And(pred, entsql.NEQ("id", *excludeID))
	}
	n, err := r.count(ctx, pred)
	if err != nil {
		r.logger.Error("failed to check reference", "error", err)
		return false, fmt.Errorf("%w: reference lookup: %w", common.ErrDatabase, err)
	}
	return n > 0, nil
}

func (r *receiptRepository) ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	n, err := r.count(ctx, entsql.EQ("order_id", orderID))
	if err != nil {
		r.logger.Error("failed to check order receipt", "order_id", orderID, "error", err)
		return false, fmt.Errorf("%w: order receipt lookup: %w", common.ErrDatabase, err)
	}
	return n > 0, nil
}

// Create inserts rec with the given reference claim. When markPaid is set the order's
// payment status flips to paid in the same transaction. Unique violations come back as
// ErrReferenceClaimed or ErrReceiptExists and leave nothing behind.
func (r *receiptRepository) Create(ctx context.Context, rec *entity.PaymentReceipt, claim *string, markPaid bool) error {
	start := time.Now()
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		ins := r.db.builder().Insert(receiptsTable).
			Columns(append(receiptColumns, "reference_claim")...).
			Values(append(receiptValues(rec), nullable(claim))...)
		q, args := ins.Query()
		if err := tx.Exec(ctx, q, args, nil); err != nil {
			return mapWriteError(err)
		}
		if markPaid {
			return r.markPaid(ctx, tx, rec.OrderID, start)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrReferenceClaimed) && !errors.Is(err, common.ErrConflict) {
			r.logger.Error("failed to create receipt", "receipt_id", rec.ID, "order_id", rec.OrderID, "error", err)
			return fmt.Errorf("%w: create receipt: %w", common.ErrDatabase, err)
		}
		return err
	}
	r.logger.Info("receipt.persisted",
		"receipt_id", rec.ID,
		"order_id", rec.OrderID,
		"status", rec.Status,
		"order_paid", markPaid,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// ApplyReview writes the review fields and status of rec; markPaid flips the order in the
// same transaction.
func (r *receiptRepository) ApplyReview(ctx context.Context, rec *entity.PaymentReceipt, markPaid bool) error {
	if rec.Review == nil {
		return fmt.Errorf("apply review: receipt %s has no review", rec.ID)
	}
	now := time.Now()
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		upd := r.db.builder().Update(receiptsTable).
			Set("verification_status", string(rec.Status)).
			Set("rejection_reason", nullable(rec.RejectionReason)).
			Set("reviewer_id", rec.Review.ReviewerID).
			Set("review_decision", string(rec.Review.Decision)).
			Set("review_notes", rec.Review.Notes).
			Set("reviewed_at", rec.Review.ReviewedAt.UTC()).
			Set("verified_at", nullableTime(rec.VerifiedAt)).
			Where(entsql.EQ("id", rec.ID))
		q, args := upd.Query()
		var res sql.Result
		if err := tx.Exec(ctx, q, args, &res); err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return common.NotFoundf("receipt %s not found", rec.ID)
		}
		if markPaid {
			return r.markPaid(ctx, tx, rec.OrderID, now)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		r.logger.Error("failed to apply review", "receipt_id", rec.ID, "error", err)
		return fmt.Errorf("%w: apply review: %w", common.ErrDatabase, err)
	}
	return nil
}

// markPaid is a single conditional update keyed by order id, so concurrent writers cannot
// flip the status twice.
func (r *receiptRepository) markPaid(ctx context.Context, tx dialect.Tx, orderID uuid.UUID, at time.Time) error {
	upd := r.db.builder().Update(ordersTable).
		Set("payment_status", string(constants.PaymentStatusPaid)).
		Set("updated_at", at.UTC()).
		Where(entsql.And(
			entsql.EQ("id", orderID),
			entsql.NEQ("payment_status", string(constants.PaymentStatusPaid)),
		))
	q, args := upd.Query()
	var res sql.Result
	if err := tx.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.logger.Warn("order already paid", "order_id", orderID)
	}
	return nil
}

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentReceipt, error) {
	return r.getOne(ctx, entsql.EQ("id", id), "receipt "+id.String())
}

func (r *receiptRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*entity.PaymentReceipt, error) {
	return r.getOne(ctx, entsql.EQ("order_id", orderID), "receipt for order "+orderID.String())
}

func (r *receiptRepository) getOne(ctx context.Context, pred *entsql.Predicate, what string) (*entity.PaymentReceipt, error) {
	sel := r.db.builder().Select(receiptColumns...).
		From(r.db.builder().Table(receiptsTable)).
		Where(pred).
		Limit(1)
	recs, err := r.query(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.NotFoundf("%s not found", what)
	}
	return recs[0], nil
}

// List returns one page of receipts, newest first, and the total matching count.
func (r *receiptRepository) List(ctx context.Context, filter ReceiptFilter) ([]*entity.PaymentReceipt, int, error) {
	total, err := r.count(ctx, filterPredicate(filter))
	if err != nil {
		r.logger.Error("failed to count receipts", "error", err)
		return nil, 0, fmt.Errorf("%w: count receipts: %w", common.ErrDatabase, err)
	}

	sel := r.db.builder().Select(receiptColumns...).
		From(r.db.builder().Table(receiptsTable)).
		OrderBy(entsql.Desc("uploaded_at"), "id")
	if p := filterPredicate(filter); p != nil {
		sel.Where(p)
	}
	if filter.Limit > 0 {
		sel.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sel.Offset(filter.Offset)
	}
	recs, err := r.query(ctx, sel)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

func filterPredicate(f ReceiptFilter) *entsql.Predicate {
	var preds []*entsql.Predicate
	if f.Status != nil {
		preds = append(preds, entsql.EQ("verification_status", string(*f.Status)))
	}
	if f.From != nil {
		preds = append(preds, entsql.GTE("uploaded_at", f.From.UTC()))
	}
	if f.To != nil {
		preds = append(preds, entsql.LT("uploaded_at", f.To.UTC()))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	}
	return entsql.And(preds...)
}

func (r *receiptRepository) count(ctx context.Context, pred *entsql.Predicate) (int, error) {
	sel := r.db.builder().Select().Count().From(r.db.builder().Table(receiptsTable))
	if pred != nil {
		sel.Where(pred)
	}
	q, args := sel.Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

func (r *receiptRepository) query(ctx context.Context, sel *entsql.Selector) ([]*entity.PaymentReceipt, error) {
	q, args := sel.Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		r.logger.Error("failed to query receipts", "error", err)
		return nil, fmt.Errorf("%w: query receipts: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.PaymentReceipt
	for rows.Next() {
		rec, err := scanReceipt(&rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan receipt: %w", common.ErrDatabase, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate receipts: %w", common.ErrDatabase, err)
	}
	return out, nil
}

func receiptValues(rec *entity.PaymentReceipt) []any {
	x := rec.Extracted
	var reviewerID, decision, notes, reviewedAt any
	if rv := rec.Review; rv != nil {
		reviewerID, decision, notes, reviewedAt = rv.ReviewerID, string(rv.Decision), rv.Notes, rv.ReviewedAt.UTC()
	}
	return []any{
		rec.ID, rec.OrderID, rec.CustomerID, rec.SellerID, rec.ImageURL,
		nullable(x.ReferenceNumber), nullable(x.Amount), nullable(x.Sender.Name), nullable(x.Sender.Number),
		nullable(x.Receiver.Name), nullable(x.Receiver.Number), nullable(x.Date), x.RawText,
		rec.Verdict.AmountMatch, rec.Verdict.ReceiverMatch, rec.Verdict.ReferenceValid, rec.Verdict.IsDuplicate, rec.TamperSuspected,
		string(rec.Status), nullable(rec.RejectionReason),
		reviewerID, decision, notes, reviewedAt,
		rec.UploadedAt.UTC(), nullableTime(rec.ProcessedAt), nullableTime(rec.VerifiedAt),
	}
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(s scanner) (*entity.PaymentReceipt, error) {
	var (
		rec                                        entity.PaymentReceipt
		ref, amount, sName, sNum, rName, rNum      sql.NullString
		date, reason, decision, notes              sql.NullString
		status                                     string
		reviewerID                                 uuid.NullUUID
		uploadedAt, processedAt, verifiedAt, revAt nullTime
	)
	err := s.Scan(
		&rec.ID, &rec.OrderID, &rec.CustomerID, &rec.SellerID, &rec.ImageURL,
		&ref, &amount, &sName, &sNum,
		&rName, &rNum, &date, &rec.Extracted.RawText,
		&rec.Verdict.AmountMatch, &rec.Verdict.ReceiverMatch, &rec.Verdict.ReferenceValid, &rec.Verdict.IsDuplicate, &rec.TamperSuspected,
		&status, &reason,
		&reviewerID, &decision, &notes, &revAt,
		&uploadedAt, &processedAt, &verifiedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Extracted.ReferenceNumber = nullStringPtr(ref)
	rec.Extracted.Amount = nullStringPtr(amount)
	rec.Extracted.Sender = entity.Party{Name: nullStringPtr(sName), Number: nullStringPtr(sNum)}
	rec.Extracted.Receiver = entity.Party{Name: nullStringPtr(rName), Number: nullStringPtr(rNum)}
	rec.Extracted.Date = nullStringPtr(date)
	rec.Status = constants.VerificationStatus(status)
	rec.RejectionReason = nullStringPtr(reason)
	if reviewerID.Valid {
		rec.Review = &entity.AdminReview{
			ReviewerID: reviewerID.UUID,
			Decision:   constants.ReviewAction(decision.String),
			Notes:      notes.String,
			ReviewedAt: revAt.Time,
		}
	}
	rec.UploadedAt = uploadedAt.Time
	rec.ProcessedAt = processedAt.ptr()
	rec.VerifiedAt = verifiedAt.ptr()
	return &rec, nil
}
