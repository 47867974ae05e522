package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Policy decides what happens to a task's error.
type Policy int

const (
	// LogAndSwallow logs the failure and reports success to the caller.
	LogAndSwallow Policy = iota
	// Surface returns the failure to the caller.
	Surface
)

func (p Policy) String() string {
	switch p {
	case LogAndSwallow:
		return "log_and_swallow"
	case Surface:
		return "surface"
	default:
		return ""
	}
}

// TaskFunc is one unit of persistence work.
type TaskFunc func(ctx context.Context) error

// Task is a named unit of persistence work.
//
// Tasks sharing a non-empty Key run one at a time in submission order.
type Task struct {
	Name   string
	Key    string
	Policy Policy
	Run    TaskFunc

	barrier bool
}

// Dispatcher runs persistence tasks under an explicit error policy.
//
// Asynchronous tasks run with a context detached from the submitter, bounded by the
// dispatcher timeout, so a fire-and-forget write outlives the command that started it.
type Dispatcher struct {
	base    context.Context
	logger  *log.Logger
	timeout time.Duration
	onError func(Task, error)

	mu     sync.Mutex
	queues map[string]*keyQueue
	failed map[string]bool
	closed bool
	wg     sync.WaitGroup

	failures atomic.Int64
}

type keyQueue struct {
	pending []Task
	running bool
}

// DispatcherOption configures a [Dispatcher].
type DispatcherOption func(*Dispatcher)

// WithTimeout bounds every asynchronous task. Zero disables the bound.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) { disp.timeout = d }
}

// WithErrorHook is called for every failed task after it is logged, regardless of policy.
func WithErrorHook(fn func(Task, error)) DispatcherOption {
	return func(disp *Dispatcher) { disp.onError = fn }
}

// NewDispatcher creates a Dispatcher whose asynchronous tasks derive from base.
func NewDispatcher(base context.Context, logger *log.Logger, opts ...DispatcherOption) *Dispatcher {
	if base == nil {
		base = context.Background()
	}
	d := &Dispatcher{
		base:    context.WithoutCancel(base),
		logger:  logger,
		timeout: 30 * time.Second,
		queues:  make(map[string]*keyQueue),
		failed:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Go submits fn as an asynchronous, logged-and-swallowed task serialized on key.
func (d *Dispatcher) Go(key, name string, fn TaskFunc) {
	d.Submit(Task{Name: name, Key: key, Policy: LogAndSwallow, Run: fn})
}

// Do runs fn synchronously and surfaces its error.
func (d *Dispatcher) Do(ctx context.Context, name string, fn TaskFunc) error {
	return d.Run(ctx, Task{Name: name, Policy: Surface, Run: fn})
}

// Run executes t on the calling goroutine and applies its policy to the result.
func (d *Dispatcher) Run(ctx context.Context, t Task) error {
	if err := t.Run(ctx); err != nil {
		return d.fail(t, err)
	}
	return nil
}

func (d *Dispatcher) fail(t Task, err error) error {
	d.failures.Add(1)
	d.logFailure(t, err)
	if d.onError != nil {
		d.onError(t, err)
	}

	if t.Policy == Surface {
		return fmt.Errorf("%s: %w", t.Name, err)
	}
	return nil
}

// Submit queues t for asynchronous execution and reports whether it was accepted.
// Submissions after Close are dropped with a warning.
func (d *Dispatcher) Submit(t Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		if d.logger != nil {
			d.logger.Warn("dropping task after close", "task", t.Name, "key", t.Key)
		}
		return false
	}

	d.wg.Add(1)
	if t.Key == "" {
		go d.execute(t)
		return true
	}

	q := d.queues[t.Key]
	if q == nil {
		q = &keyQueue{}
		d.queues[t.Key] = q
	}
	q.pending = append(q.pending, t)
	if !q.running {
		q.running = true
		go d.drain(t.Key, q)
	}
	return true
}

// Flush blocks until every task queued on key before the call has finished.
func (d *Dispatcher) Flush(ctx context.Context, key string) error {
	done := make(chan struct{})
	ok := d.Submit(Task{Name: "flush", Key: key, barrier: true, Run: func(context.Context) error {
		close(done)
		return nil
	}})
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) drain(key string, q *keyQueue) {
	for {
		d.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		t := q.pending[0]
		q.pending = q.pending[1:]
		d.mu.Unlock()

		d.execute(t)
	}
}

func (d *Dispatcher) execute(t Task) {
	defer d.wg.Done()

	ctx := d.base
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	err := t.Run(ctx)
	if t.Key != "" && !t.barrier {
		d.mu.Lock()
		d.failed[t.Key] = err != nil
		d.mu.Unlock()
	}
	if err != nil {
		_ = d.fail(t, err)
	}
}

func (d *Dispatcher) logFailure(t Task, err error) {
	if d.logger == nil {
		return
	}
	kv := []any{"task", t.Name, "policy", t.Policy.String(), "error", err}
	if t.Key != "" {
		kv = append(kv, "key", t.Key)
	}
	if t.Policy == Surface {
		d.logger.Error("persistence task failed", kv...)
	} else {
		d.logger.Warn("persistence task failed", kv...)
	}
}

// Wait blocks until every submitted task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting tasks and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

// Failed reports whether the most recent task that finished on key failed.
func (d *Dispatcher) Failed(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.failed[key]
}

// Failures reports how many tasks have failed so far, under either policy.
func (d *Dispatcher) Failures() int64 {
	return d.failures.Load()
}
