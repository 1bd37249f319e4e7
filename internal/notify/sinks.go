package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// LogSink writes notifications to the log. It is the development default.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		"id", n.ID,
		"kind", n.Kind,
		"audience", n.Audience,
		"recipient_id", n.RecipientID,
		"receipt_id", n.ReceiptID,
		"title", n.Title,
	)
	return nil
}

// Fanout sends to every sink and reports all failures together.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, n Notification) error {
	var errs []error
	for i, sink := range f {
		if err := sink.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
