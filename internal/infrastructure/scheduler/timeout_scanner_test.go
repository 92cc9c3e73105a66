package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/repository"
	"github.com/careloop/careloop/internal/infrastructure/monitoring"
)

type fakeLister struct {
	byTenant map[string][]*repository.PendingApproval
	err      error
	calls    []string
}

func (f *fakeLister) ListPendingApprovals(ctx context.Context, tenantID string) ([]*repository.PendingApproval, error) {
	f.calls = append(f.calls, tenantID)
	if f.err != nil {
		return nil, f.err
	}
	return f.byTenant[tenantID], nil
}

func pendingAt(generatedAt time.Time) *repository.PendingApproval {
	return &repository.PendingApproval{
		Conversation: &entity.Conversation{ID: "conv-1", TenantID: "acme"},
		Response:     &entity.AIResponse{ID: "resp-1", GeneratedAt: generatedAt},
	}
}

func TestScan_CoversEveryTenant(t *testing.T) {
	lister := &fakeLister{byTenant: map[string][]*repository.PendingApproval{}}
	s := NewTimeoutScanner(lister, nil, zap.NewNop(), []string{"acme", "globex"}, time.Minute, 15*time.Minute)

	s.scan(context.Background())

	if len(lister.calls) != 2 || lister.calls[0] != "acme" || lister.calls[1] != "globex" {
		t.Fatalf("expected one scan per tenant, got %v", lister.calls)
	}
}

func TestScan_UpdatesPendingGauge(t *testing.T) {
	lister := &fakeLister{byTenant: map[string][]*repository.PendingApproval{
		"acme": {pendingAt(time.Now()), pendingAt(time.Now())},
	}}
	monitor := monitoring.NewMonitor(zap.NewNop())
	s := NewTimeoutScanner(lister, monitor, zap.NewNop(), []string{"acme"}, time.Minute, 15*time.Minute)

	s.scan(context.Background())

	if got := monitor.GetStats()["pending_approvals"].(int64); got != 2 {
		t.Fatalf("expected gauge 2, got %v", got)
	}
}

func TestScan_ListErrorDoesNotAbort(t *testing.T) {
	lister := &fakeLister{err: errors.New("db down")}
	s := NewTimeoutScanner(lister, nil, zap.NewNop(), []string{"acme", "globex"}, time.Minute, 15*time.Minute)

	s.scan(context.Background())

	if len(lister.calls) != 2 {
		t.Fatalf("a failing tenant must not stop the sweep, got %v", lister.calls)
	}
}

func TestNewTimeoutScanner_Defaults(t *testing.T) {
	s := NewTimeoutScanner(&fakeLister{}, nil, zap.NewNop(), nil, 0, 0)
	if s.interval != time.Minute {
		t.Fatalf("expected default interval, got %v", s.interval)
	}
	if s.maxWait != 15*time.Minute {
		t.Fatalf("expected default max wait, got %v", s.maxWait)
	}
}
