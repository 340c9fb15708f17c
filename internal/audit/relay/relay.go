// Package relay drains the audit outbox into a sink. With Kafka configured
// the sink is the audit topic; without it, entries are materialized
// locally so audit reads still converge.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"provisor/internal/audit"
	id "provisor/pkg/domain"
)

// Source is the outbox side of the relay.
type Source interface {
	FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxRecord, error)
	MarkPublished(ctx context.Context, entryIDs []id.EntryID) error
}

// Sink receives a batch of outbox records. A batch is marked published
// only after the sink accepted all of it.
type Sink interface {
	Publish(ctx context.Context, records []audit.OutboxRecord) error
}

const defaultBatchSize = 100

// Relay polls the outbox and pushes batches to the sink.
type Relay struct {
	source    Source
	sink      Sink
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// New constructs a relay polling at the given interval.
func New(source Source, sink Sink, logger *slog.Logger, interval time.Duration) *Relay {
	return &Relay{
		source:    source,
		sink:      sink,
		logger:    logger,
		interval:  interval,
		batchSize: defaultBatchSize,
	}
}

// Run polls until ctx is cancelled. Publish failures are logged and
// retried on the next tick; the outbox preserves ordering either way.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.Error("audit relay drain failed", "error", err)
			}
		}
	}
}

// Drain publishes every currently staged batch. Exported so tests and
// shutdown paths can flush without the ticker.
func (r *Relay) Drain(ctx context.Context) error {
	for {
		records, err := r.source.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := r.sink.Publish(ctx, records); err != nil {
			return fmt.Errorf("publish outbox batch: %w", err)
		}
		ids := make([]id.EntryID, len(records))
		for i, record := range records {
			ids[i] = record.ID
		}
		if err := r.source.MarkPublished(ctx, ids); err != nil {
			return fmt.Errorf("mark outbox batch published: %w", err)
		}
		if len(records) < r.batchSize {
			return nil
		}
	}
}

// KafkaSink publishes outbox records to the audit topic.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink wraps a producing client for the given topic.
func NewKafkaSink(client *kgo.Client, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic}
}

func (s *KafkaSink) Publish(ctx context.Context, records []audit.OutboxRecord) error {
	out := make([]*kgo.Record, len(records))
	for i, record := range records {
		out[i] = &kgo.Record{
			Topic: s.topic,
			Key:   []byte(record.Key),
			Value: record.Payload,
		}
	}
	if err := s.client.ProduceSync(ctx, out...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit batch: %w", err)
	}
	return nil
}

// Materializer is the subset of the audit store the local sink needs.
type Materializer interface {
	AppendWithID(ctx context.Context, entryID id.EntryID, entry audit.Entry) error
}

// LocalSink materializes outbox records in-process. Used when Kafka is
// not configured so audit queries still see every entry.
type LocalSink struct {
	store  Materializer
	logger *slog.Logger
}

// NewLocalSink wraps the materializing store.
func NewLocalSink(store Materializer, logger *slog.Logger) *LocalSink {
	return &LocalSink{store: store, logger: logger}
}

func (s *LocalSink) Publish(ctx context.Context, records []audit.OutboxRecord) error {
	for _, record := range records {
		entry, err := audit.DecodeEntry(record.Payload)
		if err != nil {
			// Malformed rows must not wedge the outbox.
			s.logger.Error("skipping malformed outbox record", "key", record.Key, "error", err)
			continue
		}
		if err := s.store.AppendWithID(ctx, record.ID, entry); err != nil {
			return err
		}
	}
	return nil
}
