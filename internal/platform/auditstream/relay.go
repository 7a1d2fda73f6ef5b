// Package auditstream relays committed audit records to Kafka. Records are
// written to Postgres with the change they describe and published afterwards,
// so a broker outage never blocks a clinical write.
package auditstream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Event is one unpublished record.
type Event struct {
	ID      uuid.UUID
	Payload interface{}
}

// Source hands out unpublished events in commit order and marks them done.
type Source interface {
	Pending(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Writer is satisfied by *kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Counter receives the number of events relayed per batch.
type Counter interface {
	ObservePublished(n int)
}

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
}

type Relay struct {
	source    Source
	writer    Writer
	counter   Counter
	logger    zerolog.Logger
	interval  time.Duration
	batchSize int

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRelay(source Source, writer Writer, counter Counter, logger zerolog.Logger, interval time.Duration, batchSize int) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		source:    source,
		writer:    writer,
		counter:   counter,
		logger:    logger.With().Str("component", "audit_relay").Logger(),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled. Full batches are drained without waiting
// for the next tick.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Int("batch_size", r.batchSize).Msg("audit relay started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				r.logger.Error().Err(err).Msg("relay audit batch")
				break
			}
			if n < r.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			r.logger.Info().Msg("audit relay stopping")
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many events were relayed.
// Events are marked only after the broker acknowledged them; a crash in
// between republishes them, keyed by record id.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.source.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending audit records: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev.Payload)
		if err != nil {
			return 0, fmt.Errorf("encode audit record %s: %w", ev.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.ID.String()), Value: value})
		ids = append(ids, ev.ID)
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, fmt.Errorf("publish %d audit records: %w", len(msgs), err)
	}
	if err := r.source.MarkPublished(ctx, ids, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("mark audit records published: %w", err)
	}

	if r.counter != nil {
		r.counter.ObservePublished(len(ids))
	}
	r.logger.Debug().Int("count", len(ids)).Msg("audit records relayed")
	return len(ids), nil
}

// Start runs the relay in the background until ctx is cancelled or Close
// is called.
func (r *Relay) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.mu.Lock()
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
}

// Close stops a started relay, waits for its loop to return and then closes
// the writer, so no batch is written to a closed writer.
func (r *Relay) Close() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return r.writer.Close()
}
