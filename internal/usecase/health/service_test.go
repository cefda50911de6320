package health

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// --- Mocks ---

type mockPinger struct {
	err         error
	hadDeadline bool
}

func (m *mockPinger) Ping(ctx context.Context) error {
	_, m.hadDeadline = ctx.Deadline()
	return m.err
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	es := &mockPinger{}
	svc := New(es, &mockPinger{}, zap.NewNop())
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks[ComponentElastic] != CheckOK {
		t.Errorf("expected elasticsearch %q, got %q", CheckOK, r.Checks[ComponentElastic])
	}
	if r.Checks[ComponentCheckpoint] != CheckOK {
		t.Errorf("expected checkpoint %q, got %q", CheckOK, r.Checks[ComponentCheckpoint])
	}
	if !es.hadDeadline {
		t.Error("each check should run with a deadline")
	}
}

func TestCheck_ElasticError(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc := New(&mockPinger{err: errors.New("conn refused")}, &mockPinger{}, zap.New(core))
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks[ComponentElastic] != CheckError {
		t.Errorf("expected elasticsearch %q, got %q", CheckError, r.Checks[ComponentElastic])
	}
	if logs.FilterMessage("health check failed").Len() != 1 {
		t.Error("expected one warning for the failed component")
	}
}

func TestCheck_CheckpointError(t *testing.T) {
	svc := New(&mockPinger{}, &mockPinger{err: errors.New("timeout")}, zap.NewNop())
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks[ComponentCheckpoint] != CheckError {
		t.Errorf("expected checkpoint %q, got %q", CheckError, r.Checks[ComponentCheckpoint])
	}
}

func TestCheck_BothFail(t *testing.T) {
	svc := New(&mockPinger{err: errors.New("es down")}, &mockPinger{err: errors.New("redis down")}, zap.NewNop())
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
}

func TestCheck_NoCheckpoint(t *testing.T) {
	svc := New(&mockPinger{}, nil, zap.NewNop())
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks[ComponentCheckpoint]; ok {
		t.Error("checkpoint check should be absent when not configured")
	}
}
