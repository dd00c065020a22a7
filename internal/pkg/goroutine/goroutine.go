// Package goroutine runs bounded fire-and-forget background tasks.
package goroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/shandysiswandi/authhelper/internal/pkg/stacktrace"
)

// DefaultMaxGoroutine is multiplied by NumCPU when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 100

// ErrPanic wraps a value recovered from a panicking task.
var ErrPanic = errors.New("goroutine panicked")

// Runner schedules background tasks.
type Runner interface {
	Go(ctx context.Context, name string, f func(ctx context.Context) error) bool
}

// Manager runs tasks with a concurrency limit and keeps their errors until
// Wait. Tasks are dropped, never queued, once the limit is hit.
type Manager struct {
	slots chan struct{}
	wg    sync.WaitGroup

	// gate guards closed; Go holds it shared while reserving a slot so Wait
	// cannot start between the closed check and wg.Add.
	gate   sync.RWMutex
	closed bool

	errMu sync.Mutex
	errs  []error
}

func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = runtime.NumCPU() * DefaultMaxGoroutine
	}
	return &Manager{slots: make(chan struct{}, maxGoroutine)}
}

// Go schedules f under name and reports whether it was started.
func (g *Manager) Go(ctx context.Context, name string, f func(ctx context.Context) error) bool {
	if g == nil {
		return false
	}

	if reason := g.reserve(); reason != "" {
		slog.WarnContext(ctx, "background task dropped", "task", name, "reason", reason)
		return false
	}

	go g.run(ctx, name, f)
	return true
}

// reserve takes a slot and registers the task. It returns why it could not.
func (g *Manager) reserve() string {
	g.gate.RLock()
	defer g.gate.RUnlock()

	if g.closed {
		return "manager closed"
	}
	select {
	case g.slots <- struct{}{}:
		g.wg.Add(1)
		return ""
	default:
		return "concurrency limit reached"
	}
}

func (g *Manager) run(ctx context.Context, name string, f func(ctx context.Context) error) {
	defer g.wg.Done()
	defer func() { <-g.slots }()
	defer func() {
		if rvr := recover(); rvr != nil {
			logPanic(ctx, name, rvr)
			g.collect(fmt.Errorf("%s: %w: %v", name, ErrPanic, rvr))
		}
	}()

	if err := ctx.Err(); err != nil {
		slog.WarnContext(ctx, "background task skipped", "task", name, "because", err)
		return
	}
	if err := f(ctx); err != nil {
		g.collect(fmt.Errorf("%s: %w", name, err))
	}
}

func logPanic(ctx context.Context, name string, rvr any) {
	stack := debug.Stack()
	var trace any = string(stack)
	if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
		trace = paths
	}
	slog.ErrorContext(ctx, "background task panicked", "task", name, "panic", rvr, "stack", trace)
}

func (g *Manager) collect(err error) {
	g.errMu.Lock()
	defer g.errMu.Unlock()
	g.errs = append(g.errs, err)
}

// Wait closes the manager, blocks until running tasks finish and returns
// their joined errors.
func (g *Manager) Wait() error {
	if g == nil {
		return nil
	}

	g.gate.Lock()
	g.closed = true
	g.gate.Unlock()

	g.wg.Wait()

	g.errMu.Lock()
	defer g.errMu.Unlock()
	return errors.Join(g.errs...)
}
