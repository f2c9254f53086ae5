// Package task runs named periodic jobs such as the backend health probe.
package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultSchedulerInterval = time.Minute

	logEventTaskPanicked = "task_panicked"
	logEventTaskStarted  = "task_started"
	logEventTaskStopped  = "task_stopped"
	logFieldTaskName     = "task"
	logFieldInterval     = "interval"
	logFieldPanic        = "panic"
)

// RunnerFunc is one execution of a periodic job.
type RunnerFunc func(context.Context)

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithImmediateRun runs the job once as soon as the scheduler starts.
func WithImmediateRun() Option {
	return func(scheduler *Scheduler) {
		scheduler.runImmediately = true
	}
}

// WithLogger attaches a logger for lifecycle and panic events.
func WithLogger(logger *zap.Logger) Option {
	return func(scheduler *Scheduler) {
		if logger != nil {
			scheduler.logger = logger
		}
	}
}

// Scheduler runs a job every interval and on demand through Trigger.
type Scheduler struct {
	name           string
	interval       time.Duration
	runner         RunnerFunc
	runImmediately bool
	logger         *zap.Logger
	trigger        chan struct{}
	controlMutex   sync.Mutex
	cancel         context.CancelFunc
	done           chan struct{}
}

func NewScheduler(name string, interval time.Duration, runner RunnerFunc, options ...Option) *Scheduler {
	if interval <= 0 {
		interval = defaultSchedulerInterval
	}
	scheduler := &Scheduler{
		name:     name,
		interval: interval,
		runner:   runner,
		logger:   zap.NewNop(),
		trigger:  make(chan struct{}, 1),
	}
	for _, option := range options {
		option(scheduler)
	}
	return scheduler
}

// Start launches the loop. Starting a running scheduler is a no-op.
func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.controlMutex.Lock()
	if scheduler.cancel != nil {
		scheduler.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	done := make(chan struct{})
	scheduler.done = done
	scheduler.controlMutex.Unlock()

	scheduler.logger.Debug(logEventTaskStarted, zap.String(logFieldTaskName, scheduler.name), zap.Duration(logFieldInterval, scheduler.interval))
	go scheduler.loop(runtimeCtx, done)
}

// Trigger requests an extra run without waiting for it. Pending triggers coalesce.
func (scheduler *Scheduler) Trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.trigger <- struct{}{}:
	default:
	}
}

// Stop cancels the loop and waits for the current run to return.
func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.controlMutex.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.done = nil
	scheduler.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
		scheduler.logger.Debug(logEventTaskStopped, zap.String(logFieldTaskName, scheduler.name))
	}
}

func (scheduler *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	if scheduler.runImmediately {
		scheduler.run(ctx)
	}
	ticker := time.NewTicker(scheduler.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.trigger:
			scheduler.run(ctx)
			ticker.Reset(scheduler.interval)
		case <-ticker.C:
			scheduler.run(ctx)
		}
	}
}

func (scheduler *Scheduler) run(ctx context.Context) {
	if scheduler.runner == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			scheduler.logger.Error(logEventTaskPanicked, zap.String(logFieldTaskName, scheduler.name), zap.Any(logFieldPanic, recovered))
		}
	}()
	if ctx.Err() != nil {
		return
	}
	scheduler.runner(ctx)
}
