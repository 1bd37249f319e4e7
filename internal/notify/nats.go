package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Stream        string
}

// SubjectPrefix namespaces notification subjects: notifications.<kind>.
const SubjectPrefix = "notifications"

// NATSClient wraps a NATS connection with JetStream support
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *slog.Logger
}

// NewNATSClient connects and creates the JetStream context.
func NewNATSClient(cfg NATSConfig, logger *slog.Logger) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	logger.Info("NATS connection established", "url", conn.ConnectedUrl())
	return &NATSClient{conn: conn, js: js, logger: logger}, nil
}

// EnsureStream creates or updates the stream capturing every notification subject.
func (c *NATSClient) EnsureStream(ctx context.Context, name string) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        name,
		Description: "payment receipt notifications",
		Subjects:    []string{SubjectPrefix + ".>"},
		MaxAge:      7 * 24 * time.Hour,
		Retention:   jetstream.LimitsPolicy,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		return fmt.Errorf("creating/updating stream %s: %w", name, err)
	}
	c.logger.Info("stream ensured", "name", name, "subjects", SubjectPrefix+".>")
	return nil
}

// Close drains pending publishes and closes the connection.
func (c *NATSClient) Close() {
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}

// HealthCheck checks NATS connection health
func (c *NATSClient) HealthCheck() error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("NATS not connected")
	}
	return nil
}

type jsPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes notifications to JetStream for downstream consumers
// (in-app inbox, email, analytics).
type NATSPublisher struct {
	js     jsPublisher
	logger *slog.Logger
}

func NewNATSPublisher(client *NATSClient, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{js: client.js, logger: logger}
}

func (p *NATSPublisher) Send(ctx context.Context, n Notification) error {
	subject := Subject(n.Kind)
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}
	// the notification id doubles as the JetStream dedupe key
	if _, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(n.ID)); err != nil {
		return fmt.Errorf("publishing notification: %w", err)
	}
	p.logger.Debug("notification published", "id", n.ID, "kind", n.Kind, "subject", subject)
	return nil
}

// Subject is the JetStream subject for a notification kind.
func Subject(kind Kind) string {
	return SubjectPrefix + "." + string(kind)
}
