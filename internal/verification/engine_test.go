package verification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
)

type fakeDupes struct {
	refs    map[string]uuid.UUID
	err     error
	lookups []string
}

func (f *fakeDupes) ReferenceExists(_ context.Context, ref string, excludeID *uuid.UUID) (bool, error) {
	f.lookups = append(f.lookups, ref)
	if f.err != nil {
		return false, f.err
	}
	id, ok := f.refs[ref]
	if !ok {
		return false, nil
	}
	return excludeID == nil || *excludeID != id, nil
}

func s(v string) *string { return &v }

const wallet = "09171234567"

var total = decimal.RequireFromString("500.00")

func TestValidateVerified(t *testing.T) {
	e := NewEngine(&fakeDupes{}, nil)
	data := &entity.ExtractedReceiptData{
		ReferenceNumber: s("1234567890123"),
		Amount:          s("500"),
		Receiver:        entity.Party{Number: s(wallet)},
	}
	v, err := e.Validate(context.Background(), data, total, wallet, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.ValidationVerdict{AmountMatch: true, ReceiverMatch: true, ReferenceValid: true}, v)
	assert.Equal(t, constants.VerificationVerified, v.OverallStatus())
	assert.Empty(t, RejectionReason(v, false))
}

func TestValidateInvalidReference(t *testing.T) {
	e := NewEngine(&fakeDupes{}, nil)
	data := &entity.ExtractedReceiptData{
		ReferenceNumber: s("123"),
		Amount:          s("500"),
		Receiver:        entity.Party{Number: s(wallet)},
	}
	v, err := e.Validate(context.Background(), data, total, wallet, nil)
	require.NoError(t, err)
	assert.True(t, v.AmountMatch)
	assert.True(t, v.ReceiverMatch)
	assert.False(t, v.ReferenceValid)
	assert.False(t, v.IsDuplicate)
	assert.Equal(t, constants.VerificationRejected, v.OverallStatus())
	assert.Equal(t, LabelInvalidReference, RejectionReason(v, false))
	assert.Equal(t, "123", *data.ReferenceNumber, "invalid references are kept raw")
}

func TestValidateNormalizesReference(t *testing.T) {
	dupes := &fakeDupes{}
	e := NewEngine(dupes, nil)
	data := &entity.ExtractedReceiptData{ReferenceNumber: s("9876-543-210")}
	v, err := e.Validate(context.Background(), data, total, wallet, nil)
	require.NoError(t, err)
	assert.True(t, v.ReferenceValid)
	assert.Equal(t, "9876543210", *data.ReferenceNumber)
	assert.Equal(t, []string{"9876543210"}, dupes.lookups, "duplicate check runs on the normalized form")
}

func TestValidateDuplicateRejectsOtherwiseGoodReceipt(t *testing.T) {
	first := uuid.New()
	e := NewEngine(&fakeDupes{refs: map[string]uuid.UUID{"9876543210": first}}, nil)
	data := &entity.ExtractedReceiptData{
		ReferenceNumber: s("9876 543 210"),
		Amount:          s("500.00"),
		Receiver:        entity.Party{Number: s(wallet)},
	}
	v, err := e.Validate(context.Background(), data, total, wallet, nil)
	require.NoError(t, err)
	assert.True(t, v.IsDuplicate)
	assert.True(t, v.AmountMatch && v.ReceiverMatch && v.ReferenceValid)
	assert.Equal(t, constants.VerificationRejected, v.OverallStatus())
	assert.Equal(t, LabelDuplicate, RejectionReason(v, false))

	// the receipt that owns the reference is not its own duplicate
	data.ReferenceNumber = s("9876543210")
	v, err = e.Validate(context.Background(), data, total, wallet, &first)
	require.NoError(t, err)
	assert.False(t, v.IsDuplicate)
}

func TestValidateRunsEveryCheck(t *testing.T) {
	dupes := &fakeDupes{refs: map[string]uuid.UUID{"12": uuid.New()}}
	e := NewEngine(dupes, nil)
	data := &entity.ExtractedReceiptData{
		ReferenceNumber: s("12"),
		Amount:          s("1.00"),
		Receiver:        entity.Party{Number: s("09999999999")},
	}
	v, err := e.Validate(context.Background(), data, total, wallet, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.ValidationVerdict{IsDuplicate: true}, v)
	assert.Equal(t, []string{"12"}, dupes.lookups, "raw reference is checked when invalid")
	assert.Equal(t,
		LabelAmountMismatch+", "+LabelReceiverMismatch+", "+LabelInvalidReference+", "+LabelDuplicate+", "+LabelTamper,
		RejectionReason(v, true))
}

func TestValidateEmptyReferenceSkipsLookup(t *testing.T) {
	dupes := &fakeDupes{}
	e := NewEngine(dupes, nil)
	v, err := e.Validate(context.Background(), &entity.ExtractedReceiptData{}, total, wallet, nil)
	require.NoError(t, err)
	assert.Empty(t, dupes.lookups)
	assert.False(t, v.IsDuplicate)
	assert.Equal(t, constants.VerificationRejected, v.OverallStatus())
}

func TestValidateDuplicateLookupError(t *testing.T) {
	e := NewEngine(&fakeDupes{err: errors.New("db down")}, nil)
	_, err := e.Validate(context.Background(), &entity.ExtractedReceiptData{ReferenceNumber: s("1234567890")}, total, wallet, nil)
	require.Error(t, err)
}

func TestReceiverMatches(t *testing.T) {
	tests := []struct {
		name     string
		receiver *string
		sender   *string
		want     bool
	}{
		{name: "receiver matches with formatting", receiver: s("0917-123-4567"), want: true},
		{name: "receiver differs", receiver: s("09181234567"), sender: s(wallet), want: false},
		{name: "fallback to sender", receiver: nil, sender: s(wallet), want: true},
		{name: "receiver without digits falls back", receiver: s("hidden"), sender: s(wallet), want: true},
		{name: "nothing extracted", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &entity.ExtractedReceiptData{
				Receiver: entity.Party{Number: tt.receiver},
				Sender:   entity.Party{Number: tt.sender},
			}
			assert.Equal(t, tt.want, ReceiverMatches(data, wallet))
		})
	}
	assert.False(t, ReceiverMatches(&entity.ExtractedReceiptData{Receiver: entity.Party{Number: s("")}}, ""))
}

func TestRejectionReasonIgnoresTamperOnVerified(t *testing.T) {
	v := entity.ValidationVerdict{AmountMatch: true, ReceiverMatch: true, ReferenceValid: true}
	assert.Empty(t, RejectionReason(v, true))
}
