package audit

import (
	"context"
	"log/slog"
	"sync"

	id "provisor/pkg/domain"
	"provisor/pkg/requestcontext"
)

// Store is the persistence surface the publisher appends to. In memory
// mode Append materializes directly; in postgres mode it writes the outbox
// and the pipeline materializes later.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]Entry, error)
	ListRecent(ctx context.Context, limit int) ([]Entry, error)
}

// Publisher captures audit entries. It is append-only and uses the storage
// layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  Store
	logger *slog.Logger

	inbox  chan Entry
	wg     sync.WaitGroup
	closed chan struct{}
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer makes Record non-blocking behind a buffered channel of
// the given size. Entries are dropped (and logged) when the buffer is
// full; Close drains whatever was accepted.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Entry, size)
		}
	}
}

// NewPublisher constructs a publisher over the given store.
func NewPublisher(store Store, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		logger: logger,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Record captures an entry, filling ID and Timestamp when unset. Audit is
// best-effort for callers: sagas log a returned error and keep going.
func (p *Publisher) Record(ctx context.Context, entry Entry) error {
	if entry.ID.IsNil() {
		entry.ID = id.NewEntryID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.Actor == "" {
		entry.Actor = requestcontext.Actor(ctx)
	}

	if p.inbox == nil {
		return p.store.Append(ctx, entry)
	}

	select {
	case p.inbox <- entry:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.Warn("audit buffer full, dropping entry",
			"action", entry.Action,
			"request_id", entry.RequestID,
		)
		return nil
	}
}

// ListByRequest returns the entries recorded for one provisioning request.
func (p *Publisher) ListByRequest(ctx context.Context, requestID id.RequestID) ([]Entry, error) {
	return p.store.ListByRequest(ctx, requestID)
}

// ListRecent returns the most recent entries across all requests.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close drains the async buffer and stops the background writer.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	close(p.closed)
	p.wg.Wait()
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	ctx := context.Background()
	for {
		select {
		case entry := <-p.inbox:
			p.append(ctx, entry)
		case <-p.closed:
			for {
				select {
				case entry := <-p.inbox:
					p.append(ctx, entry)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) append(ctx context.Context, entry Entry) {
	if err := p.store.Append(ctx, entry); err != nil {
		p.logger.Error("failed to append audit entry",
			"action", entry.Action,
			"request_id", entry.RequestID,
			"error", err,
		)
	}
}
