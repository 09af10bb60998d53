// Package outbox delivers activity events recorded in the outbox table to Kafka.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// Config tunes the polling loop.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Dispatcher drains the outbox table and publishes events to Kafka.
type Dispatcher struct {
	store            Store
	producer         messageWriter
	cfg              Config
	now              func() time.Time
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, producer messageWriter, cfg Config) *Dispatcher {
	return &Dispatcher{
		store:            store,
		producer:         producer,
		cfg:              cfg,
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	logger := log.Ctx(ctx)
	logger.Info().
		Dur("poll_interval", d.cfg.PollInterval).
		Int("batch_size", d.cfg.BatchSize).
		Int("max_attempts", d.cfg.MaxAttempts).
		Msg("outbox dispatcher started")

	for {
		if _, err := d.processBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("outbox batch failed")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("outbox dispatcher stopped")
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// processBatch claims one batch and publishes it. It returns the number of
// events delivered. A publish failure is recorded against every claimed row
// and is not returned as an error.
func (d *Dispatcher) processBatch(ctx context.Context) (int, error) {
	start := time.Now()

	messages, err := d.store.Claim(ctx, d.cfg.BatchSize, d.cfg.MaxAttempts)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	ids := make([]int64, len(messages))
	for i, msg := range messages {
		ids[i] = msg.EventID
	}

	if err := d.deliver(ctx, messages); err != nil {
		failedCounter.Add(float64(len(messages)))
		d.logExhausted(ctx, messages, err)
		if markErr := d.store.MarkFailed(ctx, ids, err.Error()); markErr != nil {
			return 0, errors.Join(err, markErr)
		}
		log.Ctx(ctx).Warn().Err(err).Int("events", len(messages)).Msg("outbox delivery failed")
		return 0, nil
	}

	if err := d.store.MarkPublished(ctx, ids); err != nil {
		return 0, err
	}
	deliveredCounter.Add(float64(len(messages)))
	return len(messages), nil
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	byTopic := make(map[string][]kafka.Message)
	order := make([]string, 0, 1)
	for _, msg := range messages {
		if _, ok := byTopic[msg.Topic]; !ok {
			order = append(order, msg.Topic)
		}
		byTopic[msg.Topic] = append(byTopic[msg.Topic], toKafkaMessage(msg, d.now()))
	}

	for _, topic := range order {
		if err := d.producer.WriteMessages(ctx, topic, byTopic[topic]...); err != nil {
			return err
		}
	}
	return nil
}

// logExhausted reports rows whose failed attempt is their last one.
func (d *Dispatcher) logExhausted(ctx context.Context, messages []Message, cause error) {
	for _, msg := range messages {
		if msg.Attempts+1 < d.cfg.MaxAttempts {
			continue
		}
		exhaustedCounter.Inc()
		log.Ctx(ctx).Error().
			Err(cause).
			Int64("event_id", msg.EventID).
			Str("event_type", msg.EventType).
			Str("aggregate_id", msg.AggregateID).
			Msg("outbox event exhausted its delivery attempts")
	}
}
