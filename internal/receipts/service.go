// Package receipts runs the payment receipt lifecycle: upload, verification, persistence,
// admin review and the notifications that follow.
package receipts

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/blob"
	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/llm"
	"github.com/joseph-ayodele/payment-receipts/internal/notify"
	"github.com/joseph-ayodele/payment-receipts/internal/repository"
	"github.com/joseph-ayodele/payment-receipts/internal/tamper"
	"github.com/joseph-ayodele/payment-receipts/internal/verification"
)

// TamperAssessor inspects image metadata.
type TamperAssessor interface {
	Assess(img []byte) tamper.Assessment
}

// NotificationQueue accepts notifications for asynchronous delivery.
type NotificationQueue interface {
	Enqueue(ctx context.Context, n notify.Notification) error
}

// Service handles receipt business logic.
type Service struct {
	orders    repository.OrderRepository
	sellers   repository.SellerRepository
	receipts  repository.ReceiptRepository
	blobs     blob.Store
	extractor llm.FieldExtractor
	tamper    TamperAssessor
	engine    *verification.Engine
	notifier  NotificationQueue
	logger    *slog.Logger

	maxImageBytes  int64
	extractTimeout time.Duration
	inlineImages   bool
	now            func() time.Time
}

type Option func(*Service)

func WithMaxImageBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxImageBytes = n
		}
	}
}

func WithExtractTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.extractTimeout = d
		}
	}
}

// WithInlineImages sends image bytes to the extractor as a data URL instead of the stored
// object URL, for buckets the extraction service cannot read.
func WithInlineImages(inline bool) Option {
	return func(s *Service) { s.inlineImages = inline }
}

func WithNotificationQueue(q NotificationQueue) Option {
	return func(s *Service) {
		if q != nil {
			s.notifier = q
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new receipt service.
func NewService(
	orders repository.OrderRepository,
	sellers repository.SellerRepository,
	receipts repository.ReceiptRepository,
	blobs blob.Store,
	extractor llm.FieldExtractor,
	tamperAssessor TamperAssessor,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		orders:         orders,
		sellers:        sellers,
		receipts:       receipts,
		blobs:          blobs,
		extractor:      extractor,
		tamper:         tamperAssessor,
		engine:         verification.NewEngine(receipts, logger),
		logger:         logger,
		maxImageBytes:  constants.DefaultMaxImageBytes,
		extractTimeout: 60 * time.Second,
		now:            func() time.Time { return time.Now().UTC() },
	}
	s.notifier = logOnlyQueue{logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// notify enqueues each notification. Failures are logged and never returned.
func (s *Service) notify(ctx context.Context, ns ...notify.Notification) {
	corr := common.CorrelationIDFromContext(ctx)
	for _, n := range ns {
		n.CorrelationID = corr
		if err := s.notifier.Enqueue(ctx, n); err != nil {
			s.logger.Error("notify.enqueue.failed",
				"id", n.ID,
				"kind", n.Kind,
				"receipt_id", n.ReceiptID,
				"error", err,
			)
		}
	}
}

type logOnlyQueue struct{ logger *slog.Logger }

func (q logOnlyQueue) Enqueue(ctx context.Context, n notify.Notification) error {
	return notify.NewLogSink(q.logger).Send(ctx, n)
}

func requirePrincipal(p common.Principal) error {
	if p.UserID == uuid.Nil || p.Role == "" {
		return common.NewAppError(common.CodeUnauthorized, "authentication required", common.ErrUnauthorized)
	}
	return nil
}
