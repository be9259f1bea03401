// Package stream publishes event records to a NATS JetStream subject.
package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/logger"
	"github.com/okian/adrec/pkg/metrics"
)

// Default publisher configuration constants.
const (
	backendName          = "nats"
	defaultMaxReconnects = -1
	defaultReconnectWait = time.Second
	defaultStreamMaxAge  = 7 * 24 * time.Hour
)

// streamPublisher is the subset of jetstream.JetStream the publisher uses.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	IsConnected() bool
	Close()
}

// Publisher publishes records and waits for the stream's ack.
type Publisher struct {
	nc      conn
	js      streamPublisher
	subject string
	logger  logger.Logger
}

// Connect dials url and prepares a stream capturing subject. The NATS
// client keeps reconnecting in the background, so a publisher is returned
// even when the server is down at startup.
func Connect(ctx context.Context, url, subject string) (*Publisher, error) {
	log := logger.Get().Named("jetstream")

	nc, err := nats.Connect(url,
		nats.Name("adrec"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(defaultMaxReconnects),
		nats.ReconnectWait(defaultReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.UpdateDependencyStatus(backendName, false)
			log.Warn(context.Background(), "nats disconnected", logger.Error(err))
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			metrics.UpdateDependencyStatus(backendName, true)
			log.Info(context.Background(), "nats reconnected", logger.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	if nc.IsConnected() {
		_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:      streamName(subject),
			Subjects:  []string{subject},
			Retention: jetstream.LimitsPolicy,
			MaxAge:    defaultStreamMaxAge,
			Storage:   jetstream.FileStorage,
		})
		if err != nil {
			log.Warn(ctx, "could not ensure stream", logger.String("subject", subject), logger.Error(err))
		}
	}

	metrics.UpdateDependencyStatus(backendName, nc.IsConnected())
	return newPublisher(nc, js, subject, log), nil
}

func newPublisher(nc conn, js streamPublisher, subject string, log logger.Logger) *Publisher {
	return &Publisher{nc: nc, js: js, subject: subject, logger: log}
}

// Connected reports whether the client currently holds a server connection.
func (p *Publisher) Connected(context.Context) bool {
	return p.nc.IsConnected()
}

// Publish sends rec and waits for the JetStream ack. The message id lets the
// server discard duplicates from client retries.
func (p *Publisher) Publish(ctx context.Context, rec model.Record) error {
	start := time.Now()
	payload, err := rec.Marshal()
	if err != nil {
		return err
	}
	_, err = p.js.Publish(ctx, p.subject, payload, jetstream.WithMsgID(uuid.NewString()))
	metrics.RecordPublishLatency(backendName, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordPublishError(backendName)
		return fmt.Errorf("jetstream publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close drops the connection.
func (p *Publisher) Close() error {
	p.nc.Close()
	return nil
}

// streamName derives a stream name from a subject, e.g. ad_events -> AD_EVENTS.
func streamName(subject string) string {
	r := strings.NewReplacer(".", "_", "*", "ALL", ">", "REST")
	return strings.ToUpper(r.Replace(subject))
}
