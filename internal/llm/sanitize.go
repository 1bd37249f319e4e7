package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
)

// synonyms maps keys models tend to invent onto the seven requested ones.
var synonyms = map[string][]string{
	KeyReferenceNumber: {"referenceNumber", "reference", "reference_no", "ref_no", "ref", "transaction_reference", "transaction_id"},
	KeyAmount:          {"total", "amount_paid", "total_amount", "amount_sent"},
	KeySenderName:      {"senderName", "from_name", "payer_name"},
	KeySenderNumber:    {"senderNumber", "from_number", "payer_number"},
	KeyReceiverName:    {"receiverName", "recipient_name", "to_name", "payee_name"},
	KeyReceiverNumber:  {"receiverNumber", "recipient_number", "to_number", "payee_number"},
	KeyDate:            {"transaction_date", "datetime", "date_time", "timestamp"},
}

// nested maps object-valued keys ({"sender": {"name": .., "number": ..}}) onto flat keys.
// Earlier entries win when a response carries both spellings of the same party.
var nested = []struct {
	key          string
	name, number string
}{
	{"sender", KeySenderName, KeySenderNumber},
	{"payer", KeySenderName, KeySenderNumber},
	{"receiver", KeyReceiverName, KeyReceiverNumber},
	{"recipient", KeyReceiverName, KeyReceiverNumber},
}

// placeholders are strings models emit instead of null.
var placeholders = map[string]struct{}{
	"null": {}, "none": {}, "n/a": {}, "na": {}, "unknown": {}, "-": {}, "not visible": {},
}

// NormalizeAndSanitizeJSON turns a decoded model object into the flat seven-key shape:
//   - renames known synonyms and flattens nested sender/receiver objects
//   - coerces numbers to their textual form and trims strings
//   - maps placeholders, empty strings and non-scalar values to null
//   - removes unknown keys
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}
	if m == nil {
		return nil, nil, fmt.Errorf("sanitize: not a JSON object")
	}

	dropped := make([]string, 0, 4)

	// 1) flatten nested party objects without overwriting flat keys
	for _, n := range nested {
		obj, ok := m[n.key].(map[string]any)
		if !ok {
			continue
		}
		for _, f := range [][2]string{{"name", n.name}, {"number", n.number}} {
			if _, exists := m[f[1]]; !exists {
				if v, ok := obj[f[0]]; ok {
					m[f[1]] = v
				}
			}
		}
		delete(m, n.key)
		dropped = append(dropped, n.key+"->flattened")
	}

	// 2) rename synonyms
	for canonical, alts := range synonyms {
		for _, alt := range alts {
			v, ok := m[alt]
			if !ok {
				continue
			}
			if cur, exists := m[canonical]; !exists || cur == nil {
				m[canonical] = v
			}
			delete(m, alt)
			dropped = append(dropped, alt+"->"+canonical)
		}
	}

	// 3) keep only the seven keys, coerced to string-or-null
	out := make(map[string]any, len(FieldKeys))
	for _, k := range FieldKeys {
		v, present := m[k]
		s, ok := scalarString(v)
		if present && v != nil && !ok {
			dropped = append(dropped, k+"(type)")
		}
		if ok {
			out[k] = s
		} else {
			out[k] = nil
		}
		delete(m, k)
	}
	for k := range m {
		dropped = append(dropped, k+"(unknown)")
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		slices.Sort(dropped)
		logger.Debug("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return b, dropped, nil
}

func scalarString(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return "", false
	}
	return s, true
}
