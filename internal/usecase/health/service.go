package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component failed.
	Degraded Status = "degraded"
	// Unhealthy indicates the search engine is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in Report.Checks.
const (
	ComponentElastic    = "elasticsearch"
	ComponentCheckpoint = "checkpoint"
)

// DefaultTimeout bounds each individual check.
const DefaultTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	elastic    Pinger
	checkpoint Pinger
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a Service. checkpoint can be nil when cursors are not kept in Redis.
func New(elastic, checkpoint Pinger, logger *zap.Logger) *Service {
	return &Service{elastic: elastic, checkpoint: checkpoint, timeout: DefaultTimeout, logger: logger}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentElastic: s.ping(ctx, ComponentElastic, s.elastic),
	}
	if s.checkpoint != nil {
		checks[ComponentCheckpoint] = s.ping(ctx, ComponentCheckpoint, s.checkpoint)
	}

	status := Healthy
	switch {
	case checks[ComponentElastic] == CheckError:
		status = Unhealthy
	case checks[ComponentCheckpoint] == CheckError:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) ping(ctx context.Context, name string, p Pinger) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", zap.String("component", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
