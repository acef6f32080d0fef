package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/provider"
)

type fakeRunner struct {
	mu           sync.Mutex
	catalogCalls []string
	orderCalls   []string
	refetchCalls []string
	failFirst    bool
	failed       bool
	done         chan struct{}
}

func newFakeRunner(expected int) *fakeRunner {
	return &fakeRunner{done: make(chan struct{}, expected)}
}

func (f *fakeRunner) SyncCatalog(ctx context.Context, restaurantID string) (*provider.CatalogSyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFirst && !f.failed {
		f.failed = true
		return nil, errors.New("transient")
	}
	f.catalogCalls = append(f.catalogCalls, restaurantID)
	f.done <- struct{}{}
	return &provider.CatalogSyncResult{}, nil
}

func (f *fakeRunner) SyncOrders(ctx context.Context, restaurantID string, since, until time.Time) (*provider.OrderSyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderCalls = append(f.orderCalls, restaurantID)
	f.done <- struct{}{}
	return &provider.OrderSyncResult{}, nil
}

func (f *fakeRunner) RefetchObject(ctx context.Context, restaurantID, objectType, objectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refetchCalls = append(f.refetchCalls, objectType+":"+objectID)
	f.done <- struct{}{}
	return nil
}

func waitDone(t *testing.T, runner *fakeRunner, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-runner.done:
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
}

func TestPoolDispatchesJobTypes(t *testing.T) {
	q := NewMemoryQueue(16)
	runner := newFakeRunner(3)
	pool := NewPool(q, runner, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	jobsIn := []Job{
		{Type: TypeCatalogSync, RestaurantID: "r1"},
		{Type: TypeOrdersSync, RestaurantID: "r1"},
		{Type: TypeObjectRefetch, RestaurantID: "r1", ObjectType: "order", ObjectID: "o1"},
	}
	for _, j := range jobsIn {
		if err := q.Enqueue(ctx, j); err != nil {
			t.Fatal(err)
		}
	}
	waitDone(t, runner, 3)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.catalogCalls) != 1 || len(runner.orderCalls) != 1 || len(runner.refetchCalls) != 1 {
		t.Errorf("calls = %v %v %v", runner.catalogCalls, runner.orderCalls, runner.refetchCalls)
	}
	if runner.refetchCalls[0] != "order:o1" {
		t.Errorf("refetch = %q", runner.refetchCalls[0])
	}
}

func TestPoolRequeuesFailedJob(t *testing.T) {
	q := NewMemoryQueue(16)
	runner := newFakeRunner(1)
	runner.failFirst = true
	pool := NewPool(q, runner, 1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	if err := q.Enqueue(ctx, Job{Type: TypeCatalogSync, RestaurantID: "r1"}); err != nil {
		t.Fatal(err)
	}
	waitDone(t, runner, 1)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if len(runner.catalogCalls) != 1 {
		t.Errorf("catalog calls = %d, want 1 after requeue", len(runner.catalogCalls))
	}
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(1)
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(context.Background(), Job{Type: TypeCatalogSync}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("enqueue after close = %v", err)
	}
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("dequeue after close = %v", err)
	}
}
