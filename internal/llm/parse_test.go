package llm

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraction(t *testing.T) {
	text := "Sure, here you go:\n" + `{
		"reference_number": "1234 567 890 123",
		"amount": 500,
		"sender_name": "  Juan D.  ",
		"sender_number": "0918 765 4321",
		"receiver_name": null,
		"receiver_number": "09171234567",
		"date": "Mar 9, 2025 10:42 AM"
	}` + "\nLet me know if you need anything else."

	data, normalized, err := ParseExtraction(text, nil)
	require.NoError(t, err)

	require.NotNil(t, data.ReferenceNumber)
	assert.Equal(t, "1234 567 890 123", *data.ReferenceNumber)
	require.NotNil(t, data.Amount)
	assert.Equal(t, "500", *data.Amount)
	require.NotNil(t, data.Sender.Name)
	assert.Equal(t, "Juan D.", *data.Sender.Name)
	assert.Nil(t, data.Receiver.Name)
	require.NotNil(t, data.Receiver.Number)
	assert.Equal(t, "09171234567", *data.Receiver.Number)
	assert.Equal(t, text, data.RawText)

	var flat map[string]any
	require.NoError(t, json.Unmarshal(normalized, &flat))
	assert.Len(t, flat, len(FieldKeys))
}

func TestParseExtractionSanitizes(t *testing.T) {
	text := `{
		"ref_no": "9876-543-210",
		"total": "₱1,200.00",
		"sender": {"name": "Ana", "number": "09181112222"},
		"recipient": {"name": "Shop", "number": "N/A"},
		"date": "",
		"confidence": 0.9,
		"notes": ["x"]
	}`
	data, _, err := ParseExtraction(text, nil)
	require.NoError(t, err)

	require.NotNil(t, data.ReferenceNumber)
	assert.Equal(t, "9876-543-210", *data.ReferenceNumber)
	require.NotNil(t, data.Amount)
	assert.Equal(t, "₱1,200.00", *data.Amount)
	require.NotNil(t, data.Sender.Number)
	assert.Equal(t, "09181112222", *data.Sender.Number)
	require.NotNil(t, data.Receiver.Name)
	assert.Equal(t, "Shop", *data.Receiver.Name)
	assert.Nil(t, data.Receiver.Number, "placeholder becomes null")
	assert.Nil(t, data.Date, "empty string becomes null")
}

func TestParseExtractionNonScalarBecomesNull(t *testing.T) {
	data, _, err := ParseExtraction(`{"reference_number": {"value": "123"}, "amount": true}`, nil)
	require.NoError(t, err)
	assert.Nil(t, data.ReferenceNumber)
	assert.Nil(t, data.Amount)
}

func TestParseExtractionFailures(t *testing.T) {
	for _, text := range []string{
		"",
		"The image is too blurry to read.",
		`{"reference_number": "` + strings.Repeat("9", maxFieldLen+1) + `"}`,
	} {
		_, _, err := ParseExtraction(text, nil)
		require.Error(t, err, text)
		assert.True(t, errors.Is(err, ErrExtractionFailed))
	}
}

func TestBuildExtractionPromptNamesSevenFields(t *testing.T) {
	p := BuildExtractionPrompt()
	for _, k := range FieldKeys {
		assert.Contains(t, p, k)
	}
	assert.Len(t, FieldKeys, 7)
	assert.Contains(t, p, "null")
	assert.Contains(t, p, "ONLY a JSON object")
}

func TestParseExtractionPartySpellingsAreStable(t *testing.T) {
	text := `{
		"reference_number": "1012345678901",
		"sender": {"name": "Ana", "number": "09181112222"},
		"payer": {"name": "Other", "number": "09990000000"},
		"receiver": {"name": "Shop", "number": "09171234567"},
		"recipient": {"name": "Elsewhere", "number": "09175550000"}
	}`
	for i := 0; i < 50; i++ {
		data, _, err := ParseExtraction(text, nil)
		require.NoError(t, err)
		require.NotNil(t, data.Sender.Name)
		require.NotNil(t, data.Receiver.Number)
		assert.Equal(t, "Ana", *data.Sender.Name)
		assert.Equal(t, "09181112222", *data.Sender.Number)
		assert.Equal(t, "Shop", *data.Receiver.Name)
		assert.Equal(t, "09171234567", *data.Receiver.Number)
	}
}
