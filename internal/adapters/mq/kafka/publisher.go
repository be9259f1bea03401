// Package kafka publishes event records to a Kafka topic. It is the primary
// delivery tier of the event sink.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/adrec/internal/domain/model"
	"github.com/okian/adrec/pkg/logger"
	"github.com/okian/adrec/pkg/metrics"
)

// Default publisher configuration constants.
const (
	backendName             = "kafka"
	defaultCheckInterval    = 10 * time.Second
	defaultCheckTimeout     = 2 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultFailureThreshold = 3
	defaultBreakerTimeout   = 30 * time.Second
	defaultBatchTimeout     = 5 * time.Millisecond
)

// ErrBreakerOpen is returned while the circuit breaker rejects publishes.
var ErrBreakerOpen = errors.New("kafka circuit breaker open")

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes records synchronously and waits for the leader's ack.
type Publisher struct {
	brokers []string
	topic   string

	writer messageWriter
	check  func(ctx context.Context) error
	cb     *gobreaker.CircuitBreaker[interface{}]

	checkInterval    time.Duration
	writeTimeout     time.Duration
	failureThreshold uint32
	breakerTimeout   time.Duration

	mu          sync.Mutex
	lastCheck   time.Time
	reachable   bool
	checkedOnce bool

	logger logger.Logger
}

// New creates a publisher for topic on brokers. Brokers are not contacted
// until the first Connected or Publish call.
func New(brokers []string, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		brokers:          brokers,
		topic:            topic,
		checkInterval:    defaultCheckInterval,
		writeTimeout:     defaultWriteTimeout,
		failureThreshold: defaultFailureThreshold,
		breakerTimeout:   defaultBreakerTimeout,
		logger:           logger.Get().Named("kafka"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.writer == nil {
		p.writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			Async:                  false,
			BatchTimeout:           defaultBatchTimeout,
			WriteTimeout:           p.writeTimeout,
			AllowAutoTopicCreation: true,
		}
	}
	if p.check == nil {
		p.check = p.dialAny
	}

	p.cb = gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     p.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= p.failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
			metrics.UpdateDependencyStatus(backendName, to != gobreaker.StateOpen)
		},
	})
	return p
}

// Connected reports whether a publish is worth attempting: the breaker must
// not be open and a broker must have answered recently.
func (p *Publisher) Connected(ctx context.Context) bool {
	if p.cb.State() == gobreaker.StateOpen {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checkedOnce && time.Since(p.lastCheck) < p.checkInterval {
		return p.reachable
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultCheckTimeout)
	defer cancel()
	err := p.check(checkCtx)
	p.reachable = err == nil
	p.lastCheck = time.Now()
	p.checkedOnce = true
	metrics.UpdateDependencyStatus(backendName, p.reachable)
	if err != nil {
		p.logger.Warn(ctx, "kafka brokers unreachable", logger.Any("brokers", p.brokers), logger.Error(err))
	}
	return p.reachable
}

// Publish writes rec and blocks until the broker acknowledges it or ctx ends.
func (p *Publisher) Publish(ctx context.Context, rec model.Record) error {
	start := time.Now()
	value, err := rec.Marshal()
	if err != nil {
		return err
	}
	msg := kafkago.Message{
		Key:   []byte(strconv.FormatInt(rec.AdID, 10)),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "event-id", Value: []byte(uuid.NewString())},
			{Key: "event-type", Value: []byte(rec.EventType)},
		},
	}

	_, err = p.cb.Execute(func() (interface{}, error) {
		return nil, p.writer.WriteMessages(ctx, msg)
	})
	metrics.RecordPublishLatency(backendName, float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordPublishError(backendName)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %w", ErrBreakerOpen, err)
		}
		return fmt.Errorf("kafka publish to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// dialAny succeeds if any broker accepts a connection.
func (p *Publisher) dialAny(ctx context.Context) error {
	var errs []error
	for _, b := range p.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", b)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_ = conn.Close()
		return nil
	}
	if len(errs) == 0 {
		return errors.New("no kafka brokers configured")
	}
	return errors.Join(errs...)
}
