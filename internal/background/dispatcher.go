// Package background runs best-effort work that must never delay or fail a page.
package background

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTaskTimeout = 10 * time.Second

	logEventBackgroundTaskFailed  = "background_task_failed"
	logEventBackgroundTaskDropped = "background_task_dropped"
	logFieldTaskName              = "task"
)

// Job is one unit of best-effort work.
type Job func(ctx context.Context) error

// Dispatcher runs jobs on their own goroutines, detached from request cancellation.
// Failures are logged at debug level and never retried.
type Dispatcher struct {
	timeout   time.Duration
	logger    *zap.Logger
	waitGroup sync.WaitGroup
	mutex     sync.Mutex
	closed    bool
}

func NewDispatcher(timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultTaskTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{timeout: timeout, logger: logger}
}

// Go schedules job under name. Jobs submitted after Close are dropped.
func (dispatcher *Dispatcher) Go(name string, job Job) {
	if dispatcher == nil || job == nil {
		return
	}
	dispatcher.mutex.Lock()
	if dispatcher.closed {
		dispatcher.mutex.Unlock()
		dispatcher.logger.Debug(logEventBackgroundTaskDropped, zap.String(logFieldTaskName, name))
		return
	}
	dispatcher.waitGroup.Add(1)
	dispatcher.mutex.Unlock()

	go func() {
		defer dispatcher.waitGroup.Done()
		jobContext, cancel := context.WithTimeout(context.Background(), dispatcher.timeout)
		defer cancel()
		if jobErr := job(jobContext); jobErr != nil {
			dispatcher.logger.Debug(logEventBackgroundTaskFailed, zap.String(logFieldTaskName, name), zap.Error(jobErr))
		}
	}()
}

// Wait blocks until every scheduled job returned.
func (dispatcher *Dispatcher) Wait() {
	if dispatcher == nil {
		return
	}
	dispatcher.waitGroup.Wait()
}

// Close rejects new jobs and waits for the running ones.
func (dispatcher *Dispatcher) Close() {
	if dispatcher == nil {
		return
	}
	dispatcher.mutex.Lock()
	dispatcher.closed = true
	dispatcher.mutex.Unlock()
	dispatcher.waitGroup.Wait()
}
