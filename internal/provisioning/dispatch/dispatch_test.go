package dispatch_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provisor/internal/provisioning/dispatch"
	"provisor/internal/provisioning/models"
	id "provisor/pkg/domain"
	dErrors "provisor/pkg/domain-errors"
)

type executorFunc func(ctx context.Context, event models.LifecycleEvent) (models.Result, error)

func (f executorFunc) Execute(ctx context.Context, event models.LifecycleEvent) (models.Result, error) {
	return f(ctx, event)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func eventFor(employeeID string) models.LifecycleEvent {
	return models.LifecycleEvent{
		EmployeeID:  id.EmployeeID(employeeID),
		Type:        id.EventLeave,
		DisplayName: "Test Employee",
	}
}

func TestExecute_SerializesSameEmployee(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	exec := executorFunc(func(_ context.Context, _ models.LifecycleEvent) (models.Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return models.Result{Success: true}, nil
	})
	d := dispatch.New(exec, 8, dispatch.WithLogger(testLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Execute(context.Background(), eventFor("emp-1001"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, peak, "same-employee sagas must never overlap")
}

func TestExecute_DistinctEmployeesRunConcurrently(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	exec := executorFunc(func(_ context.Context, event models.LifecycleEvent) (models.Result, error) {
		started <- string(event.EmployeeID)
		<-release
		return models.Result{Success: true}, nil
	})
	d := dispatch.New(exec, 4, dispatch.WithLogger(testLogger()))

	go func() { _, _ = d.Execute(context.Background(), eventFor("emp-1001")) }()
	go func() { _, _ = d.Execute(context.Background(), eventFor("emp-2002")) }()

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case emp := <-started:
			seen[emp] = true
		case <-time.After(2 * time.Second):
			t.Fatal("second saga did not start while the first was running")
		}
	}
	close(release)

	assert.True(t, seen["emp-1001"])
	assert.True(t, seen["emp-2002"])
}

func TestExecute_CapsGlobalConcurrency(t *testing.T) {
	employees := []string{"emp-1001", "emp-2002", "emp-3003", "emp-4004", "emp-5005"}

	var mu sync.Mutex
	inFlight, peak := 0, 0
	gate := make(chan struct{})
	exec := executorFunc(func(_ context.Context, _ models.LifecycleEvent) (models.Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		<-gate
		mu.Lock()
		inFlight--
		mu.Unlock()
		return models.Result{Success: true}, nil
	})
	d := dispatch.New(exec, 2, dispatch.WithLogger(testLogger()))

	var wg sync.WaitGroup
	for _, emp := range employees {
		wg.Add(1)
		go func(emp string) {
			defer wg.Done()
			_, err := d.Execute(context.Background(), eventFor(emp))
			assert.NoError(t, err)
		}(emp)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return inFlight == 2
	}, 2*time.Second, time.Millisecond, "two distinct employees should fill both slots")
	close(gate)
	wg.Wait()

	assert.Equal(t, 2, peak, "the semaphore bounds concurrent sagas")
}

func TestExecute_CancelledWhileWaitingForSlot(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	gate := make(chan struct{})
	started := make(chan struct{})
	exec := executorFunc(func(_ context.Context, _ models.LifecycleEvent) (models.Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-gate
		return models.Result{Success: true}, nil
	})
	d := dispatch.New(exec, 1, dispatch.WithLogger(testLogger()))

	go func() { _, _ = d.Execute(context.Background(), eventFor("emp-1001")) }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Execute(ctx, eventFor("emp-2002"))

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	close(gate)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls, "the abandoned waiter never reached the executor")
}

func TestNew_ClampsNonPositiveCap(t *testing.T) {
	exec := executorFunc(func(_ context.Context, _ models.LifecycleEvent) (models.Result, error) {
		return models.Result{Success: true}, nil
	})
	d := dispatch.New(exec, 0, dispatch.WithLogger(testLogger()))

	result, err := d.Execute(context.Background(), eventFor("emp-1001"))
	require.NoError(t, err)
	assert.True(t, result.Success)
}
