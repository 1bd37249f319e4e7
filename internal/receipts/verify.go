package receipts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
	"github.com/joseph-ayodele/payment-receipts/internal/tamper"
	"github.com/joseph-ayodele/payment-receipts/internal/verification"
)

// ProvisionalItem is a cart line that has not become an order yet.
type ProvisionalItem struct {
	Quantity  int             `json:"quantity" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ProvisionalOrder describes a checkout in progress. Total wins over Items when both are set.
type ProvisionalOrder struct {
	SellerID    string            `json:"seller_id" validate:"required,uuid"`
	Total       *decimal.Decimal  `json:"total,omitempty"`
	Items       []ProvisionalItem `json:"items,omitempty" validate:"omitempty,max=200,dive"`
	ShippingFee decimal.Decimal   `json:"shipping_fee"`
}

// ExpectedTotal returns the amount the receipt must show.
func (p ProvisionalOrder) ExpectedTotal() (decimal.Decimal, error) {
	if p.Total != nil {
		if p.Total.IsNegative() {
			return decimal.Zero, common.InvalidInputf("total must not be negative")
		}
		return *p.Total, nil
	}
	if len(p.Items) == 0 {
		return decimal.Zero, common.InvalidInputf("either total or items is required")
	}
	if p.ShippingFee.IsNegative() {
		return decimal.Zero, common.InvalidInputf("shipping fee must not be negative")
	}
	sum := p.ShippingFee
	for i, it := range p.Items {
		if it.UnitPrice.IsNegative() {
			return decimal.Zero, common.InvalidInputf("items[%d].unit_price must not be negative", i)
		}
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum, nil
}

type VerifyRequest struct {
	Principal   common.Principal
	Order       ProvisionalOrder
	Image       []byte
	ContentType string
}

// VerifyResult is a preview of what Upload would decide for the same image.
type VerifyResult struct {
	Verdict         entity.ValidationVerdict     `json:"validation"`
	OverallStatus   constants.VerificationStatus `json:"overall_status"`
	Extracted       entity.ExtractedReceiptData  `json:"extracted_data"`
	Tamper          tamper.Assessment            `json:"tamper"`
	RejectionReason string                       `json:"rejection_reason,omitempty"`
	ExpectedTotal   decimal.Decimal              `json:"expected_total"`
}

// VerifyOnly runs the verification pipeline against a provisional order. It stores nothing
// and never changes order state.
func (s *Service) VerifyOnly(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	start := time.Now()
	if err := requirePrincipal(req.Principal); err != nil {
		return nil, err
	}
	if err := common.ValidateStruct(req.Order); err != nil {
		return nil, err
	}
	expected, err := req.Order.ExpectedTotal()
	if err != nil {
		return nil, err
	}
	if err := s.checkImage(req.Image, req.ContentType); err != nil {
		return nil, err
	}

	acct, err := s.lookupAccount(ctx, uuid.MustParse(req.Order.SellerID))
	if err != nil {
		return nil, err
	}

	assessment := s.tamper.Assess(req.Image)
	extracted, err := s.extract(ctx, req.Image, req.ContentType, "")
	if err != nil {
		s.logger.Warn("receipt.verify.extraction_failed", "seller_id", acct.SellerID, "error", err)
		return nil, err
	}

	verdict, err := s.engine.Validate(ctx, &extracted, expected, acct.WalletNumber, nil)
	if err != nil {
		return nil, err
	}

	res := &VerifyResult{
		Verdict:       verdict,
		OverallStatus: verdict.OverallStatus(),
		Extracted:     extracted,
		Tamper:        assessment,
		ExpectedTotal: expected,
	}
	if res.OverallStatus == constants.VerificationRejected {
		res.RejectionReason = verification.RejectionReason(verdict, assessment.Suspicious)
	}

	s.logger.Info("receipt.verify.done",
		"user_id", req.Principal.UserID,
		"seller_id", acct.SellerID,
		"status", res.OverallStatus,
		"tamper_suspected", assessment.Suspicious,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
