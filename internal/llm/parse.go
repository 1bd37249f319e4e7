package llm

import (
	"encoding/json"
	"log/slog"

	"github.com/joseph-ayodele/payment-receipts/internal/entity"
)

// ParseExtraction converts a free-form service response into the typed record.
// It is the only place that deals with the stringly-typed payload.
func ParseExtraction(text string, logger *slog.Logger) (entity.ExtractedReceiptData, json.RawMessage, error) {
	obj, ok := FirstJSONObject(text)
	if !ok {
		return entity.ExtractedReceiptData{}, nil, Failf("no JSON object in response (%d chars)", len(text))
	}

	clean, _, err := NormalizeAndSanitizeJSON([]byte(obj), logger)
	if err != nil {
		return entity.ExtractedReceiptData{}, nil, Failf("%w", err)
	}
	if err := ValidateJSONAgainstSchema(BuildExtractionJSONSchema(), clean); err != nil {
		return entity.ExtractedReceiptData{}, clean, Failf("schema validation failed: %w", err)
	}

	var flat map[string]*string
	if err := json.Unmarshal(clean, &flat); err != nil {
		return entity.ExtractedReceiptData{}, clean, Failf("unmarshal fields: %w", err)
	}
	return entity.ExtractedReceiptData{
		ReferenceNumber: flat[KeyReferenceNumber],
		Amount:          flat[KeyAmount],
		Sender:          entity.Party{Name: flat[KeySenderName], Number: flat[KeySenderNumber]},
		Receiver:        entity.Party{Name: flat[KeyReceiverName], Number: flat[KeyReceiverNumber]},
		Date:            flat[KeyDate],
		RawText:         text,
	}, clean, nil
}
