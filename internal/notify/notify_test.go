package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provisor/internal/notify"
	"provisor/pkg/platform/circuit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSender records deliveries. The first failures attempts error; when
// gate is set, Send blocks until it is closed (started signals entry).
type fakeSender struct {
	mu       sync.Mutex
	sent     []notify.Notification
	failures int
	attempts int

	gate    chan struct{}
	started chan struct{}
}

func (f *fakeSender) Send(_ context.Context, n notify.Notification) error {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts <= f.failures {
		return errors.New("relay unavailable")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) delivered() []notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Notification(nil), f.sent...)
}

func (f *fakeSender) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func notification(subject string) notify.Notification {
	return notify.Notification{
		Recipients:    []string{"ops@example.com"},
		Subject:       subject,
		Body:          "body",
		CorrelationID: "req-1",
	}
}

func TestEmitter_DeliversQueuedNotifications(t *testing.T) {
	sender := &fakeSender{}
	e := notify.NewEmitter(sender, testLogger())

	require.NoError(t, e.Queue(context.Background(), notification("a")))
	require.NoError(t, e.Queue(context.Background(), notification("b")))
	e.Close()

	got := sender.delivered()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Subject)
	assert.Equal(t, "b", got[1].Subject)
}

func TestEmitter_DefaultsPriority(t *testing.T) {
	sender := &fakeSender{}
	e := notify.NewEmitter(sender, testLogger())

	require.NoError(t, e.Queue(context.Background(), notification("a")))
	e.Close()

	got := sender.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, notify.PriorityNormal, got[0].Priority)
}

func TestEmitter_RejectsEmptyRecipients(t *testing.T) {
	sender := &fakeSender{}
	e := notify.NewEmitter(sender, testLogger())
	defer e.Close()

	err := e.Queue(context.Background(), notify.Notification{Subject: "no one"})
	require.Error(t, err)
}

func TestEmitter_RetriesOnceThenSucceeds(t *testing.T) {
	sender := &fakeSender{failures: 1}
	e := notify.NewEmitter(sender, testLogger())

	require.NoError(t, e.Queue(context.Background(), notification("flaky")))
	e.Close()

	require.Len(t, sender.delivered(), 1)
	assert.Equal(t, 2, sender.attemptCount())
}

func TestEmitter_DropsAfterRetryFails(t *testing.T) {
	sender := &fakeSender{failures: 2}
	e := notify.NewEmitter(sender, testLogger())

	require.NoError(t, e.Queue(context.Background(), notification("doomed")))
	e.Close()

	assert.Empty(t, sender.delivered(), "a twice-failed delivery is dropped, not retried forever")
	assert.Equal(t, 2, sender.attemptCount())
}

func TestEmitter_FullQueueEvictsOldest(t *testing.T) {
	sender := &fakeSender{
		gate:    make(chan struct{}),
		started: make(chan struct{}, 8),
	}
	e := notify.NewEmitter(sender, testLogger(), notify.WithQueueSize(2))

	ctx := context.Background()
	require.NoError(t, e.Queue(ctx, notification("in-flight")))
	<-sender.started // worker now holds "in-flight"

	require.NoError(t, e.Queue(ctx, notification("oldest")))
	require.NoError(t, e.Queue(ctx, notification("kept")))
	require.NoError(t, e.Queue(ctx, notification("newest"))) // evicts "oldest"

	close(sender.gate)
	e.Close()

	subjects := make([]string, 0, 3)
	for _, n := range sender.delivered() {
		subjects = append(subjects, n.Subject)
	}
	assert.Equal(t, []string{"in-flight", "kept", "newest"}, subjects)
}

func TestEmitter_CloseDrainsBacklog(t *testing.T) {
	sender := &fakeSender{}
	e := notify.NewEmitter(sender, testLogger(), notify.WithQueueSize(16))

	for i := range 10 {
		require.NoError(t, e.Queue(context.Background(), notification(string(rune('a'+i)))))
	}
	e.Close()

	assert.Len(t, sender.delivered(), 10)
}

func TestEmitter_FallbackTakesOverWhenBreakerOpens(t *testing.T) {
	primary := &fakeSender{failures: 4}
	fallback := &fakeSender{}
	breaker := circuit.New("test-sender", circuit.WithFailureThreshold(2))
	e := notify.NewEmitter(primary, testLogger(), notify.WithFallback(fallback, breaker))

	ctx := context.Background()
	require.NoError(t, e.Queue(ctx, notification("first")))
	require.NoError(t, e.Queue(ctx, notification("second")))
	require.NoError(t, e.Queue(ctx, notification("third")))
	e.Close()

	subjects := make([]string, 0, 3)
	for _, n := range fallback.delivered() {
		subjects = append(subjects, n.Subject)
	}
	assert.Equal(t, []string{"first", "second", "third"}, subjects)
	assert.Empty(t, primary.delivered())
	// The first notification burns its retry opening the circuit; the
	// rest probe the primary once each and reroute without retrying.
	assert.Equal(t, 4, primary.attemptCount())
	assert.True(t, breaker.IsOpen())
}

func TestEmitter_PrimaryRecoveryClosesBreaker(t *testing.T) {
	primary := &fakeSender{failures: 2}
	fallback := &fakeSender{}
	breaker := circuit.New("test-sender",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
	)
	e := notify.NewEmitter(primary, testLogger(), notify.WithFallback(fallback, breaker))

	ctx := context.Background()
	require.NoError(t, e.Queue(ctx, notification("down")))
	require.NoError(t, e.Queue(ctx, notification("back")))
	e.Close()

	got := fallback.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, "down", got[0].Subject)

	got = primary.delivered()
	require.Len(t, got, 1)
	assert.Equal(t, "back", got[0].Subject)
	assert.False(t, breaker.IsOpen(), "a successful primary attempt while open closes the circuit")
}

func TestEmitter_DropsWhenFallbackAlsoFails(t *testing.T) {
	primary := &fakeSender{failures: 1}
	fallback := &fakeSender{failures: 1}
	breaker := circuit.New("test-sender", circuit.WithFailureThreshold(1))
	e := notify.NewEmitter(primary, testLogger(), notify.WithFallback(fallback, breaker))

	require.NoError(t, e.Queue(context.Background(), notification("doomed")))
	e.Close()

	assert.Empty(t, primary.delivered())
	assert.Empty(t, fallback.delivered())
	assert.Equal(t, 1, primary.attemptCount(), "an open circuit skips the retry")
	assert.Equal(t, 1, fallback.attemptCount())
}
