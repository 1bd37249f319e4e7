package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/joseph-ayodele/payment-receipts/internal/common"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
)

// ErrExtractionFailed marks every failure of the extraction step. Callers treat it as terminal
// for the upload attempt and distinct from a rejected verdict.
var ErrExtractionFailed = common.ErrExtractionFailed

// Failf wraps ErrExtractionFailed with detail. A %w in format keeps the underlying cause visible.
func Failf(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrExtractionFailed, fmt.Errorf(format, args...))
}

// ExtractRequest points the extractor at one receipt image.
type ExtractRequest struct {
	ImageURL    string // https:// or data: URL
	ContentHash string // hex sha256 of the image bytes, optional; enables caching
}

// Result is a successful extraction.
type Result struct {
	Data       entity.ExtractedReceiptData `json:"data"`
	Normalized json.RawMessage             `json:"normalized"` // sanitized JSON object that passed the schema
	Model      string                      `json:"model,omitempty"`
}

// FieldExtractor is the interface the verification pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (Result, error)
}
