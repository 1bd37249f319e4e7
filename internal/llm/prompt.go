package llm

import "strings"

// Keys of the seven fields requested from the extraction service.
const (
	KeyReferenceNumber = "reference_number"
	KeyAmount          = "amount"
	KeySenderName      = "sender_name"
	KeySenderNumber    = "sender_number"
	KeyReceiverName    = "receiver_name"
	KeyReceiverNumber  = "receiver_number"
	KeyDate            = "date"
)

// FieldKeys lists the requested fields in prompt order.
var FieldKeys = []string{
	KeyReferenceNumber,
	KeyAmount,
	KeySenderName,
	KeySenderNumber,
	KeyReceiverName,
	KeyReceiverNumber,
	KeyDate,
}

// SystemPrompt frames the model as a reader, not a judge.
const SystemPrompt = "You read mobile-wallet payment receipts from screenshots. " +
	"You transcribe what is printed. You never guess, compute or correct values."

var fieldDescriptions = map[string]string{
	KeyReferenceNumber: "the transaction reference number exactly as printed",
	KeyAmount:          "the amount transferred, as printed (keep separators, omit the currency symbol if unsure)",
	KeySenderName:      "the name of the account that sent the money",
	KeySenderNumber:    "the mobile/wallet number of the sender",
	KeyReceiverName:    "the name of the account that received the money",
	KeyReceiverNumber:  "the mobile/wallet number of the receiver",
	KeyDate:            "the transaction date and time as printed",
}

// BuildExtractionPrompt returns the fixed instruction sent with every image.
func BuildExtractionPrompt() string {
	var b strings.Builder
	b.WriteString("Extract exactly these seven fields from the attached payment receipt:\n")
	for _, k := range FieldKeys {
		b.WriteString("- ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(fieldDescriptions[k])
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer with ONLY a JSON object with exactly these keys. ")
	b.WriteString("Use null for any field that is not confidently visible. ")
	b.WriteString("Do not add other keys, comments or explanations.")
	return b.String()
}
