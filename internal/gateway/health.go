package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ruralassist/internal/task"
)

const (
	healthTaskName = "backend_health"

	logEventBackendOnline  = "backend_online"
	logEventBackendOffline = "backend_offline"
)

// HealthChecker probes backend reachability.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthMonitor tracks whether the backend answered its last health probe.
// It reports online until a probe fails.
type HealthMonitor struct {
	checker      HealthChecker
	probeTimeout time.Duration
	logger       *zap.Logger
	offline      atomic.Bool
	scheduler    *task.Scheduler
}

func NewHealthMonitor(checker HealthChecker, interval time.Duration, probeTimeout time.Duration, logger *zap.Logger) *HealthMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	monitor := &HealthMonitor{
		checker:      checker,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
	monitor.scheduler = task.NewScheduler(healthTaskName, interval, monitor.Probe, task.WithImmediateRun(), task.WithLogger(logger))
	return monitor
}

// Start begins periodic probing.
func (monitor *HealthMonitor) Start(ctx context.Context) {
	monitor.scheduler.Start(ctx)
}

// Stop ends periodic probing.
func (monitor *HealthMonitor) Stop() {
	monitor.scheduler.Stop()
}

// Online reports the outcome of the last probe.
func (monitor *HealthMonitor) Online() bool {
	if monitor == nil {
		return true
	}
	return !monitor.offline.Load()
}

// Probe runs one health check and records the result.
func (monitor *HealthMonitor) Probe(ctx context.Context) {
	probeContext := ctx
	if monitor.probeTimeout > 0 {
		var cancel context.CancelFunc
		probeContext, cancel = context.WithTimeout(ctx, monitor.probeTimeout)
		defer cancel()
	}
	probeErr := monitor.checker.Health(probeContext)
	wasOffline := monitor.offline.Swap(probeErr != nil)
	switch {
	case probeErr != nil && !wasOffline:
		monitor.logger.Warn(logEventBackendOffline, zap.Error(probeErr))
	case probeErr == nil && wasOffline:
		monitor.logger.Info(logEventBackendOnline)
	}
}
