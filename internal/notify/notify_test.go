package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"firebase.google.com/go/messaging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/payment-receipts/constants"
	"github.com/joseph-ayodele/payment-receipts/internal/entity"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func receipt(status constants.VerificationStatus) *entity.PaymentReceipt {
	ref, amount, reason := "1234567890123", "500.00", "Reference number is invalid"
	rec := &entity.PaymentReceipt{
		ID:         uuid.New(),
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		SellerID:   uuid.New(),
		Status:     status,
		Extracted:  entity.ExtractedReceiptData{ReferenceNumber: &ref, Amount: &amount},
	}
	if status == constants.VerificationRejected {
		rec.RejectionReason = &reason
	}
	return rec
}

func TestForVerdict(t *testing.T) {
	verified := receipt(constants.VerificationVerified)
	ns := ForVerdict(verified)
	require.Len(t, ns, 2)
	assert.Equal(t, KindReceiptVerified, ns[0].Kind)
	assert.Equal(t, verified.CustomerID, ns[0].RecipientID)
	assert.Equal(t, KindPaymentReceived, ns[1].Kind)
	assert.Equal(t, AudienceSeller, ns[1].Audience)
	assert.Equal(t, verified.SellerID, ns[1].RecipientID)
	assert.Equal(t, "1234567890123", ns[1].Data["reference_number"])
	assert.Contains(t, ns[1].Body, "500.00")
	assert.NotEqual(t, ns[0].ID, ns[1].ID)

	rejected := receipt(constants.VerificationRejected)
	ns = ForVerdict(rejected)
	require.Len(t, ns, 1, "sellers are not told about rejections")
	assert.Equal(t, KindReceiptRejected, ns[0].Kind)
	assert.Equal(t, rejected.CustomerID, ns[0].RecipientID)
	assert.Contains(t, ns[0].Body, "Reference number is invalid")
	assert.Equal(t, "Reference number is invalid", ns[0].Data["reason"])

	assert.Empty(t, ForVerdict(receipt(constants.VerificationProcessing)))
}

func TestReceiptReviewed(t *testing.T) {
	n := ReceiptReviewed(receipt(constants.VerificationVerified))
	assert.Equal(t, KindReceiptReviewed, n.Kind)
	assert.Equal(t, AudienceCustomer, n.Audience)
	assert.Equal(t, "verified", n.Data["status"])
	assert.Contains(t, n.Title, "approved")
}

func TestBuildMessage(t *testing.T) {
	n := ReceiptVerified(receipt(constants.VerificationVerified))
	msg := buildMessage(n)
	assert.Equal(t, "user-"+n.RecipientID.String(), msg.Topic)
	assert.Equal(t, n.Title, msg.Notification.Title)
	assert.Equal(t, n.ID, msg.Data["notification_id"])
	assert.Equal(t, n.ReceiptID.String(), msg.Data["receipt_id"])
	_, leaked := n.Data["notification_id"]
	assert.False(t, leaked, "notification data is not mutated")
}

type fakeFCM struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.sent = append(f.sent, m)
	return "projects/p/messages/1", f.err
}

func TestFCMSender(t *testing.T) {
	fake := &fakeFCM{}
	s := &FCMSender{client: fake, logger: discard}
	require.NoError(t, s.Send(context.Background(), ReceiptVerified(receipt(constants.VerificationVerified))))
	require.Len(t, fake.sent, 1)

	fake.err = errors.New("quota")
	assert.Error(t, s.Send(context.Background(), ReceiptVerified(receipt(constants.VerificationVerified))))
}

type fakeJS struct {
	subjects []string
	payloads [][]byte
}

func (f *fakeJS) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return &jetstream.PubAck{Stream: "NOTIFICATIONS", Sequence: uint64(len(f.subjects))}, nil
}

func TestNATSPublisher(t *testing.T) {
	js := &fakeJS{}
	p := &NATSPublisher{js: js, logger: discard}
	n := ReceiptRejected(receipt(constants.VerificationRejected))
	require.NoError(t, p.Send(context.Background(), n))

	require.Equal(t, []string{"notifications.receipt.rejected"}, js.subjects)
	var got Notification
	require.NoError(t, json.Unmarshal(js.payloads[0], &got))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, n.RecipientID, got.RecipientID)
}

func TestFanoutCollectsErrors(t *testing.T) {
	var calls int
	ok := NotifierFunc(func(context.Context, Notification) error { calls++; return nil })
	bad := NotifierFunc(func(context.Context, Notification) error { calls++; return errors.New("down") })

	err := Fanout{ok, bad, NewLogSink(discard), ok}.Send(context.Background(), Notification{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink 1: down")
	assert.Equal(t, 3, calls, "a failing sink does not stop the others")
}
