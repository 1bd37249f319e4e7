package receipts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/blob"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
	"github.com/joseph-ayodele/payment-receipts/internal/llm"
	"github.com/joseph-ayodele/payment-receipts/internal/notify"
	"github.com/joseph-ayodele/payment-receipts/internal/repository"
	"github.com/joseph-ayodele/payment-receipts/internal/tamper"
	"github.com/joseph-ayodele/payment-receipts/internal/verification"
)

// UploadRequest is a customer's receipt for one of their orders.
type UploadRequest struct {
	Principal   common.Principal
	OrderID     string
	Image       []byte
	ContentType string
}

// Upload verifies a receipt image against its order and persists the outcome.
// A rejected receipt is a successful result; errors mean nothing was persisted.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*entity.PaymentReceipt, error) {
	start := time.Now()
	if err := requirePrincipal(req.Principal); err != nil {
		return nil, err
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return nil, common.InvalidInputf("order id must be a UUID")
	}
	if err := s.checkImage(req.Image, req.ContentType); err != nil {
		return nil, err
	}

	order, acct, err := s.loadUploadContext(ctx, req.Principal, orderID)
	if err != nil {
		return nil, err
	}
	log := s.logger.With("order_id", orderID, "customer_id", order.CustomerID, "seller_id", acct.SellerID)
	log.Info("receipt.upload.processing", "bytes", len(req.Image), "content_type", req.ContentType)

	// blob upload and metadata inspection are independent; extraction needs the URL
	var (
		imageURL   string
		assessment tamper.Assessment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		url, err := s.blobs.Put(gctx, blob.PutInput{
			Data:        req.Image,
			Folder:      constants.ReceiptFolder,
			ContentType: req.ContentType,
		})
		if err != nil {
			return err
		}
		imageURL = url
		return nil
	})
	g.Go(func() error {
		assessment = s.tamper.Assess(req.Image)
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("receipt.upload.blob_failed", "error", err)
		if errors.Is(err, common.ErrInvalidInput) {
			return nil, err
		}
		return nil, common.NewAppError(common.CodeDependency, "could not store the receipt image", dependencyErr(err))
	}

	extracted, err := s.extract(ctx, req.Image, req.ContentType, imageURL)
	if err != nil {
		log.Warn("receipt.upload.extraction_failed", "error", err)
		return nil, err
	}

	verdict, err := s.engine.Validate(ctx, &extracted, order.TotalAmount, acct.WalletNumber, nil)
	if err != nil {
		log.Error("receipt.upload.validate_failed", "error", err)
		return nil, fmt.Errorf("validate receipt: %w", err)
	}

	now := s.now()
	rec := &entity.PaymentReceipt{
		ID:              uuid.New(),
		OrderID:         order.ID,
		CustomerID:      order.CustomerID,
		SellerID:        acct.SellerID,
		ImageURL:        imageURL,
		Extracted:       extracted,
		TamperSuspected: assessment.Suspicious,
		UploadedAt:      start.UTC(),
		ProcessedAt:     &now,
	}
	applyVerdict(rec, verdict, now)

	if err := s.persist(ctx, rec); err != nil {
		log.Error("receipt.upload.persist_failed", "receipt_id", rec.ID, "error", err)
		return nil, err
	}

	log.Info("receipt.upload.done",
		"receipt_id", rec.ID,
		"status", rec.Status,
		"amount_match", rec.Verdict.AmountMatch,
		"receiver_match", rec.Verdict.ReceiverMatch,
		"reference_valid", rec.Verdict.ReferenceValid,
		"is_duplicate", rec.Verdict.IsDuplicate,
		"tamper_suspected", rec.TamperSuspected,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	s.notify(ctx, notify.ForVerdict(rec)...)
	return rec, nil
}

func (s *Service) checkImage(img []byte, contentType string) error {
	if len(img) == 0 {
		return common.InvalidInputf("receipt image is required")
	}
	if int64(len(img)) > s.maxImageBytes {
		return common.InvalidInputf("receipt image exceeds %d bytes", s.maxImageBytes)
	}
	if _, ok := constants.ExtForContentType(contentType); !ok {
		return common.InvalidInputf("unsupported image type %q", contentType)
	}
	return nil
}

// loadUploadContext enforces everything that must hold before any external call is made.
func (s *Service) loadUploadContext(ctx context.Context, p common.Principal, orderID uuid.UUID) (*entity.Order, *entity.SellerPaymentAccount, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.CustomerID != p.UserID {
		return nil, nil, common.Forbiddenf("order %s does not belong to the caller", orderID)
	}
	if order.PaymentMethod != constants.PaymentMethodWallet {
		return nil, nil, common.NewAppError(common.CodeWrongPaymentMethod,
			fmt.Sprintf("order %s is not paid by wallet (%s)", orderID, order.PaymentMethod), common.ErrValidation)
	}

	// checked before extraction so a resubmission costs nothing
	exists, err := s.receipts.ExistsForOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if exists {
		return nil, nil, repository.ErrReceiptExists
	}
	if order.PaymentStatus == constants.PaymentStatusPaid {
		return nil, nil, common.Conflictf("order %s is already paid", orderID)
	}

	acct, err := s.sellerAccount(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	return order, acct, nil
}

func (s *Service) sellerAccount(ctx context.Context, order *entity.Order) (*entity.SellerPaymentAccount, error) {
	sellerID, single := order.SellerID()
	if sellerID == uuid.Nil {
		return nil, common.NewAppError(common.CodeValidation, "order has no line items", common.ErrValidation)
	}
	if !single {
		s.logger.Warn("receipt.order.multi_seller", "order_id", order.ID, "seller_id", sellerID)
	}
	return s.lookupAccount(ctx, sellerID)
}

func (s *Service) lookupAccount(ctx context.Context, sellerID uuid.UUID) (*entity.SellerPaymentAccount, error) {
	acct, err := s.sellers.GetPaymentAccount(ctx, sellerID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NewAppError(common.CodeValidation, "seller has no registered wallet", common.ErrValidation)
	}
	return acct, err
}

// extract calls the extraction service under the configured timeout. Every failure,
// including the timeout, surfaces as ErrExtractionFailed.
func (s *Service) extract(ctx context.Context, img []byte, contentType, imageURL string) (entity.ExtractedReceiptData, error) {
	ctx, cancel := context.WithTimeout(ctx, s.extractTimeout)
	defer cancel()

	if imageURL == "" || s.inlineImages {
		imageURL = llm.ImageDataURL(img, constants.NormalizeContentType(contentType))
	}
	res, err := s.extractor.ExtractFields(ctx, llm.ExtractRequest{
		ImageURL:    imageURL,
		ContentHash: llm.ContentHash(img),
	})
	if err != nil {
		if !errors.Is(err, llm.ErrExtractionFailed) {
			err = llm.Failf("%w", err)
		}
		return entity.ExtractedReceiptData{}, common.NewAppError(common.CodeExtractionFailed,
			"could not read the receipt image, please upload a clearer photo", err)
	}
	return res.Data, nil
}

// applyVerdict derives status, reason and verified_at from the verdict.
func applyVerdict(rec *entity.PaymentReceipt, v entity.ValidationVerdict, now time.Time) {
	rec.Verdict = v
	rec.Status = v.OverallStatus()
	rec.RejectionReason = nil
	rec.VerifiedAt = nil
	if rec.Status == constants.VerificationVerified {
		rec.VerifiedAt = &now
		return
	}
	reason := verification.RejectionReason(v, rec.TamperSuspected)
	rec.RejectionReason = &reason
}

// persist stores rec, claiming its reference when valid and unclaimed. Losing the claim
// race turns the receipt into a duplicate rejection that is stored without a claim.
func (s *Service) persist(ctx context.Context, rec *entity.PaymentReceipt) error {
	var claim *string
	if rec.Verdict.ReferenceValid && !rec.Verdict.IsDuplicate {
		claim = rec.Extracted.ReferenceNumber
	}
	verified := rec.Status == constants.VerificationVerified

	err := s.receipts.Create(ctx, rec, claim, verified)
	if !errors.Is(err, repository.ErrReferenceClaimed) {
		return err
	}

	s.logger.Warn("receipt.upload.duplicate_race", "receipt_id", rec.ID, "order_id", rec.OrderID)
	v := rec.Verdict
	v.IsDuplicate = true
	applyVerdict(rec, v, *rec.ProcessedAt)
	return s.receipts.Create(ctx, rec, nil, false)
}

func dependencyErr(err error) error {
	if errors.Is(err, common.ErrDependency) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrDependency, err)
}
