// Package worker runs tool executions from a Redis work queue.
//
// Submitters push Items to a queue; a Pool of worker goroutines pops them,
// runs the named tool through its executor, and publishes the Outcome to a
// job-specific channel. Worker liveness is tracked with heartbeat keys and a
// shared worker count, so operators can see how many workers serve a pool.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/toolweave-ai/sdk/tool"
)

const (
	// DefaultQueue is the work queue name used when Options.Queue is empty.
	DefaultQueue = "tools:work"

	defaultConcurrency     = 4
	defaultShutdownTimeout = 30 * time.Second
	heartbeatInterval      = 10 * time.Second
)

// Runner executes one tool call. exec.Executor satisfies this interface.
type Runner interface {
	Execute(ctx context.Context, tc *tool.Context, args map[string]any) *tool.Result
}

// Options configures a Pool.
type Options struct {
	// Queue is the work queue to consume. Defaults to DefaultQueue.
	Queue string

	// Pool names this worker pool for heartbeat and count tracking.
	// Defaults to "default".
	Pool string

	// Concurrency is the number of worker goroutines. Defaults to 4.
	Concurrency int

	// ShutdownTimeout bounds the wait for in-flight items during shutdown.
	// Defaults to 30s.
	ShutdownTimeout time.Duration

	// Logger receives worker lifecycle and item logs. Defaults to a JSON
	// logger on stdout.
	Logger *slog.Logger

	// Base is the execution context template. Its collaborators (memory,
	// metrics, tracer, limiter, validator, security) are shared by every
	// execution; caller identity and trace fields are filled in per item.
	Base *tool.Context
}

// Pool consumes a work queue and runs items through registered runners.
type Pool struct {
	queue    Queue
	opts     Options
	workerID string
	logger   *slog.Logger

	mu      sync.RWMutex
	runners map[string]Runner
}

// NewPool creates a pool consuming from the given queue transport.
func NewPool(q Queue, opts Options) *Pool {
	if opts.Queue == "" {
		opts.Queue = DefaultQueue
	}
	if opts.Pool == "" {
		opts.Pool = "default"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	if opts.Base == nil {
		opts.Base = &tool.Context{}
	}

	workerID := generateWorkerID()
	return &Pool{
		queue:    q,
		opts:     opts,
		workerID: workerID,
		logger:   opts.Logger.With("pool", opts.Pool, "worker_id", workerID),
		runners:  make(map[string]Runner),
	}
}

// Register associates a tool name with the runner that executes it.
// Registering a name twice replaces the previous runner.
func (p *Pool) Register(name string, r Runner) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runners[name] = r
}

// Run starts the worker goroutines and blocks until ctx is canceled. On
// cancellation it waits up to ShutdownTimeout for in-flight items to finish.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker pool starting",
		"concurrency", p.opts.Concurrency,
		"queue", p.opts.Queue,
	)

	if err := p.queue.AddWorkers(ctx, p.opts.Pool, p.opts.Concurrency); err != nil {
		return fmt.Errorf("worker: failed to record worker count: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.queue.AddWorkers(cleanupCtx, p.opts.Pool, -p.opts.Concurrency); err != nil {
			p.logger.Error("failed to remove worker count", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go p.heartbeat(runCtx)

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Concurrency; i++ {
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			p.loop(runCtx, num)
		}(i)
	}

	<-ctx.Done()
	p.logger.Info("worker pool shutting down")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shutdown complete")
	case <-time.After(p.opts.ShutdownTimeout):
		p.logger.Warn("worker pool shutdown timeout exceeded", "timeout", p.opts.ShutdownTimeout)
	}
	return nil
}

// RunUntilSignal runs the pool until SIGTERM or SIGINT.
func (p *Pool) RunUntilSignal() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	return p.Run(ctx)
}

// heartbeat refreshes the pool liveness key until the context is canceled.
func (p *Pool) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.Heartbeat(ctx, p.opts.Pool); err != nil {
				// Transient; the key has a TTL and the next tick retries.
				p.logger.Debug("heartbeat failed", "error", err)
			}
		}
	}
}

// loop pops and processes items until the context is canceled.
func (p *Pool) loop(ctx context.Context, num int) {
	logger := p.logger.With("worker_num", num)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := p.queue.Pop(ctx, p.opts.Queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to pop work item", "error", err)
			continue
		}
		if item == nil {
			continue
		}

		logger.Info("received work item",
			"job_id", item.JobID,
			"index", item.Index,
			"tool", item.Tool,
		)

		outcome := p.process(ctx, item, logger)

		channel := fmt.Sprintf("results:%s", item.JobID)
		if err := p.queue.Publish(ctx, channel, outcome); err != nil {
			logger.Error("failed to publish outcome", "error", err)
		}
	}
}

// process runs one item and always returns an outcome, even when the item
// never reaches the executor.
func (p *Pool) process(ctx context.Context, item *Item, logger *slog.Logger) Outcome {
	outcome := Outcome{
		JobID:     item.JobID,
		Index:     item.Index,
		WorkerID:  p.workerID,
		StartedAt: time.Now().UnixMilli(),
	}

	if err := item.IsValid(); err != nil {
		outcome.Error = fmt.Sprintf("invalid work item: %v", err)
		outcome.CompletedAt = time.Now().UnixMilli()
		logger.Error("invalid work item", "error", err)
		return outcome
	}

	p.mu.RLock()
	runner, ok := p.runners[item.Tool]
	p.mu.RUnlock()
	if !ok {
		outcome.Error = fmt.Sprintf("unknown tool: %s", item.Tool)
		outcome.CompletedAt = time.Now().UnixMilli()
		logger.Error("unknown tool", "tool", item.Tool)
		return outcome
	}

	tc := p.itemContext(item)
	outcome.Result = runner.Execute(ctx, tc, item.Args)
	outcome.CompletedAt = time.Now().UnixMilli()

	logger.Info("work item completed",
		"job_id", item.JobID,
		"index", item.Index,
		"duration_ms", outcome.CompletedAt-outcome.StartedAt,
		"is_error", outcome.Result.IsError(),
	)
	return outcome
}

// itemContext combines the base context's collaborators with the item's
// caller identity.
func (p *Pool) itemContext(item *Item) *tool.Context {
	tc := *p.opts.Base
	tc.TenantID = item.TenantID
	tc.UserID = item.UserID
	tc.SessionID = item.SessionID
	tc.TraceID = item.TraceID
	tc.ParentSpanID = item.ParentSpanID
	tc.RunID = fmt.Sprintf("%s-%d", item.JobID, item.Index)
	return &tc
}

// generateWorkerID builds a unique worker identity from hostname, PID, and
// a short random suffix.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.NewString()[:8])
}
