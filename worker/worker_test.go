package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolweave-ai/sdk/exec"
	"github.com/toolweave-ai/sdk/tool"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoExecutor(t *testing.T) *exec.Executor {
	t.Helper()
	spec, err := tool.NewSpec().
		SetID("echo-v1").
		SetName("echo").
		Build()
	require.NoError(t, err)

	invoker := tool.InvokerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"echo": args["query"]}, nil
	})

	ex, err := exec.New(spec, invoker, exec.Options{Logger: discardLogger()})
	require.NoError(t, err)
	return ex
}

func TestPoolEndToEnd(t *testing.T) {
	q, _ := setupQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(q, Options{
		Queue:       "test:work",
		Concurrency: 2,
		Logger:      discardLogger(),
	})
	pool.Register("echo", echoExecutor(t))

	outcomes, err := q.Subscribe(ctx, "results:job-1")
	require.NoError(t, err)

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	first := validItem()
	first.Tool = "echo"
	first.Total = 2
	first.UserID = "user-7"
	second := first
	second.Index = 1
	second.Tool = "missing"

	require.NoError(t, q.Push(context.Background(), "test:work", first))
	require.NoError(t, q.Push(context.Background(), "test:work", second))

	byIndex := make(map[int]Outcome, 2)
	for len(byIndex) < 2 {
		select {
		case outcome := <-outcomes:
			byIndex[outcome.Index] = outcome
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for outcomes, got %d", len(byIndex))
		}
	}

	ok := byIndex[0]
	assert.False(t, ok.HasError())
	require.NotNil(t, ok.Result)
	assert.False(t, ok.Result.IsError())
	assert.Equal(t, map[string]any{"echo": "widgets"}, ok.Result.Content)
	assert.NotEmpty(t, ok.WorkerID)

	unknown := byIndex[1]
	assert.True(t, unknown.HasError())
	assert.Contains(t, unknown.Error, "unknown tool: missing")
	assert.Nil(t, unknown.Result)

	cancel()
	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not shut down after context cancel")
	}
}

func TestPoolRecordsWorkerCount(t *testing.T) {
	q, _ := setupQueue(t)
	ctx, cancel := context.WithCancel(context.Background())

	pool := NewPool(q, Options{
		Queue:       "test:work",
		Pool:        "payments",
		Concurrency: 3,
		Logger:      discardLogger(),
	})

	runDone := make(chan error, 1)
	go func() { runDone <- pool.Run(ctx) }()

	require.Eventually(t, func() bool {
		count, err := q.WorkerCount(context.Background(), "payments")
		return err == nil && count == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not shut down")
	}

	count, err := q.WorkerCount(context.Background(), "payments")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPoolItemContext(t *testing.T) {
	base := &tool.Context{TenantID: "base-tenant", Locale: "en-US"}
	pool := NewPool(nopQueue{}, Options{Logger: discardLogger(), Base: base})

	item := validItem()
	item.TenantID = "acme"
	item.UserID = "user-7"
	item.SessionID = "sess-1"
	item.TraceID = "0af7651916cd43dd8448eb211c80319c"
	item.ParentSpanID = "b7ad6b7169203331"

	tc := pool.itemContext(&item)
	assert.Equal(t, "acme", tc.TenantID)
	assert.Equal(t, "user-7", tc.UserID)
	assert.Equal(t, "sess-1", tc.SessionID)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", tc.TraceID)
	assert.Equal(t, "b7ad6b7169203331", tc.ParentSpanID)
	assert.Equal(t, "job-1-0", tc.RunID)

	// Collaborator and locale fields come from the base context, which is
	// not mutated.
	assert.Equal(t, "en-US", tc.Locale)
	assert.Equal(t, "base-tenant", base.TenantID)
}

type nopQueue struct{}

func (nopQueue) Push(context.Context, string, Item) error       { return nil }
func (nopQueue) Pop(context.Context, string) (*Item, error)     { return nil, nil }
func (nopQueue) Publish(context.Context, string, Outcome) error { return nil }
func (nopQueue) Subscribe(context.Context, string) (<-chan Outcome, error) {
	return nil, nil
}
func (nopQueue) Heartbeat(context.Context, string) error          { return nil }
func (nopQueue) WorkerCount(context.Context, string) (int, error) { return 0, nil }
func (nopQueue) AddWorkers(context.Context, string, int) error    { return nil }
func (nopQueue) Close() error                                     { return nil }
