package memory

import (
	"log/slog"
	"sync"
)

// TaskRunner schedules background work. The orchestrator uses it to keep
// extraction off the reply path; tests swap in a synchronous runner.
type TaskRunner interface {
	Run(task func())
}

// GoRunner runs tasks on goroutines and tracks them for shutdown.
type GoRunner struct {
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewGoRunner creates a goroutine-backed runner.
func NewGoRunner(logger *slog.Logger) *GoRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoRunner{logger: logger}
}

// Run schedules a task on its own goroutine. Panics are contained so a
// misbehaving task cannot take down the process.
func (r *GoRunner) Run(task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panicked", "panic", rec)
			}
		}()
		task()
	}()
}

// Wait blocks until all scheduled tasks finish. Call on shutdown.
func (r *GoRunner) Wait() {
	r.wg.Wait()
}

// SyncRunner executes tasks inline. Test use only.
type SyncRunner struct{}

func (SyncRunner) Run(task func()) { task() }
