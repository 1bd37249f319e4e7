package notify

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender pushes to the recipient's per-user topic, so device tokens stay with the
// mobile apps that subscribe to it.
type FCMSender struct {
	client messageSender
	logger *slog.Logger
}

// NewFCMSender initializes a Firebase app from a service-account file.
func NewFCMSender(ctx context.Context, credentialsFile string, logger *slog.Logger) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating messaging client: %w", err)
	}
	return &FCMSender{client: client, logger: logger}, nil
}

func (s *FCMSender) Send(ctx context.Context, n Notification) error {
	msg := buildMessage(n)
	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending push to %s: %w", msg.Topic, err)
	}
	s.logger.Debug("push sent", "id", n.ID, "kind", n.Kind, "topic", msg.Topic, "message_id", id)
	return nil
}

// Topic is the FCM topic a user's devices subscribe to.
func Topic(n Notification) string {
	return "user-" + n.RecipientID.String()
}

func buildMessage(n Notification) *messaging.Message {
	data := make(map[string]string, len(n.Data)+1)
	for k, v := range n.Data {
		data[k] = v
	}
	data["notification_id"] = n.ID

	return &messaging.Message{
		Topic: Topic(n),
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "payments",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: n.Title,
						Body:  n.Body,
					},
					Sound: "default",
				},
			},
		},
	}
}
