// Package consumer materializes audit entries from the Kafka topic into
// the queryable audit_entries table.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"provisor/internal/audit"
	id "provisor/pkg/domain"
)

// Materializer is the storage surface the consumer writes through.
type Materializer interface {
	AppendWithID(ctx context.Context, entryID id.EntryID, entry audit.Entry) error
}

// Consumer reads the audit topic in a consumer group and materializes
// entries. Offsets are committed only after a poll batch is fully stored,
// so delivery is at-least-once; AppendWithID makes replays harmless.
type Consumer struct {
	client *kgo.Client
	store  Materializer
	logger *slog.Logger
}

// New constructs a consumer over a group client.
func New(client *kgo.Client, store Materializer, logger *slog.Logger) *Consumer {
	return &Consumer{client: client, store: store, logger: logger}
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("audit fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		failed := false
		fetches.EachRecord(func(record *kgo.Record) {
			if failed {
				return
			}
			if err := c.handle(ctx, record); err != nil {
				failed = true
			}
		})
		if failed {
			// Skip the commit; the batch is redelivered after the backoff.
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error("audit offset commit failed", "error", err)
		}
	}
}

// handle stores one record. Malformed records are logged and skipped so
// they cannot block the partition; only storage failures bubble up.
func (c *Consumer) handle(ctx context.Context, record *kgo.Record) error {
	entryID, err := uuid.Parse(string(record.Key))
	if err != nil {
		c.logger.Error("failed to parse audit entry key",
			"key", string(record.Key),
			"error", err,
		)
		return nil
	}

	entry, err := audit.DecodeEntry(record.Value)
	if err != nil {
		c.logger.Error("failed to decode audit entry",
			"entry_id", entryID,
			"error", err,
		)
		return nil
	}

	if err := c.store.AppendWithID(ctx, id.EntryID(entryID), entry); err != nil {
		c.logger.Error("failed to materialize audit entry",
			"entry_id", entryID,
			"action", entry.Action,
			"error", err,
		)
		return err
	}

	c.logger.Debug("materialized audit entry",
		"entry_id", entryID,
		"action", entry.Action,
	)
	return nil
}
