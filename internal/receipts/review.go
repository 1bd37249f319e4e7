package receipts

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
	"github.com/joseph-ayodele/payment-receipts/internal/notify"
	"github.com/joseph-ayodele/payment-receipts/internal/repository"
)

// DefaultReviewRejection is stored when an admin rejects without notes.
const DefaultReviewRejection = "Rejected by admin review"

// Listing page sizes.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type ReviewRequest struct {
	Principal common.Principal       `json:"-"`
	ReceiptID string                 `json:"-" validate:"required,uuid"`
	Action    constants.ReviewAction `json:"action" validate:"required,oneof=approve reject"`
	Notes     string                 `json:"notes" validate:"max=2000"`
}

// Review applies an admin override. Only a move into verified from another state marks the
// order paid; rejecting a verified receipt leaves the order's payment status alone.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (*entity.PaymentReceipt, error) {
	if err := requireAdmin(req.Principal); err != nil {
		return nil, err
	}
	req.Action = constants.ReviewAction(constants.NormalizeToken(string(req.Action)))
	req.Notes = strings.TrimSpace(req.Notes)
	if err := common.ValidateStruct(req); err != nil {
		return nil, err
	}

	rec, err := s.receipts.GetByID(ctx, uuid.MustParse(req.ReceiptID))
	if err != nil {
		return nil, err
	}

	from := rec.Status
	to := req.Action.Target()
	now := s.now()

	rec.Status = to
	rec.Review = &entity.AdminReview{
		ReviewerID: req.Principal.UserID,
		Decision:   req.Action,
		Notes:      req.Notes,
		ReviewedAt: now,
	}
	switch to {
	case constants.VerificationVerified:
		rec.RejectionReason = nil
		if rec.VerifiedAt == nil {
			rec.VerifiedAt = &now
		}
	default:
		reason := DefaultReviewRejection
		if req.Notes != "" {
			reason = req.Notes
		}
		rec.RejectionReason = &reason
		rec.VerifiedAt = nil
	}

	markPaid := to == constants.VerificationVerified && from != constants.VerificationVerified
	if err := s.receipts.ApplyReview(ctx, rec, markPaid); err != nil {
		return nil, err
	}

	s.logger.Info("receipt.review.override",
		"receipt_id", rec.ID,
		"order_id", rec.OrderID,
		"reviewer_id", req.Principal.UserID,
		"from", from,
		"to", to,
		"order_marked_paid", markPaid,
	)
	s.notify(ctx, notify.ReceiptReviewed(rec))
	return rec, nil
}

// GetReceipt is visible to the order's customer, its seller and admins.
func (s *Service) GetReceipt(ctx context.Context, p common.Principal, receiptID string) (*entity.PaymentReceipt, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(receiptID)
	if err != nil {
		return nil, common.InvalidInputf("receipt id must be a UUID")
	}
	rec, err := s.receipts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canRead(p, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) GetReceiptForOrder(ctx context.Context, p common.Principal, orderID string) (*entity.PaymentReceipt, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(orderID)
	if err != nil {
		return nil, common.InvalidInputf("order id must be a UUID")
	}
	rec, err := s.receipts.GetByOrderID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canRead(p, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

type ListRequest struct {
	Principal common.Principal
	Status    string
	Limit     int
	Offset    int
}

type ListResult struct {
	Receipts []*entity.PaymentReceipt `json:"receipts"`
	Total    int                      `json:"total"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

// ListReceipts pages through receipts for admins, newest first.
func (s *Service) ListReceipts(ctx context.Context, req ListRequest) (*ListResult, error) {
	if err := requireAdmin(req.Principal); err != nil {
		return nil, err
	}
	filter, err := StatusFilter(req.Status)
	if err != nil {
		return nil, err
	}
	if req.Offset < 0 {
		return nil, common.InvalidInputf("offset must not be negative")
	}
	switch {
	case req.Limit <= 0:
		req.Limit = DefaultListLimit
	case req.Limit > MaxListLimit:
		req.Limit = MaxListLimit
	}
	filter.Limit, filter.Offset = req.Limit, req.Offset

	recs, total, err := s.receipts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*entity.PaymentReceipt{}
	}
	return &ListResult{Receipts: recs, Total: total, Limit: req.Limit, Offset: req.Offset}, nil
}

// StatusFilter parses an optional status query value.
func StatusFilter(status string) (repository.ReceiptFilter, error) {
	var f repository.ReceiptFilter
	if strings.TrimSpace(status) == "" {
		return f, nil
	}
	st, ok := constants.ParseVerificationStatus(status)
	if !ok {
		return f, common.InvalidInputf("unknown status %q", status)
	}
	f.Status = &st
	return f, nil
}

func canRead(p common.Principal, rec *entity.PaymentReceipt) error {
	if p.IsAdmin() || p.UserID == rec.CustomerID || p.UserID == rec.SellerID {
		return nil
	}
	return common.Forbiddenf("receipt %s is not visible to the caller", rec.ID)
}

func requireAdmin(p common.Principal) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	if !p.IsAdmin() {
		return common.Forbiddenf("admin role required")
	}
	return nil
}
