package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/repository"
	"github.com/careloop/careloop/internal/infrastructure/monitoring"
	"github.com/careloop/careloop/pkg/safego"
)

// PendingLister fetches the review backlog for a tenant.
type PendingLister interface {
	ListPendingApprovals(ctx context.Context, tenantID string) ([]*repository.PendingApproval, error)
}

// TimeoutScanner periodically scans the review backlog and flags
// conversations that have been waiting too long. It only observes and logs;
// escalation (auto-handoff to an agent queue) is handled upstream.
type TimeoutScanner struct {
	repo     PendingLister
	monitor  *monitoring.Monitor
	logger   *zap.Logger
	tenants  []string
	interval time.Duration
	maxWait  time.Duration
}

// NewTimeoutScanner creates a scanner over the given tenants.
func NewTimeoutScanner(repo PendingLister, monitor *monitoring.Monitor, logger *zap.Logger, tenants []string, interval, maxWait time.Duration) *TimeoutScanner {
	if interval <= 0 {
		interval = time.Minute
	}
	if maxWait <= 0 {
		maxWait = 15 * time.Minute
	}
	return &TimeoutScanner{
		repo:     repo,
		monitor:  monitor,
		logger:   logger,
		tenants:  tenants,
		interval: interval,
		maxWait:  maxWait,
	}
}

// Start runs the scan loop until ctx is cancelled.
func (s *TimeoutScanner) Start(ctx context.Context) {
	safego.Go(s.logger, "timeout-scanner", func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.scan(ctx)
			}
		}
	})
}

func (s *TimeoutScanner) scan(ctx context.Context) {
	now := time.Now()
	total := 0

	for _, tenant := range s.tenants {
		pending, err := s.repo.ListPendingApprovals(ctx, tenant)
		if err != nil {
			s.logger.Warn("Pending approval scan failed",
				zap.String("tenant", tenant),
				zap.Error(err),
			)
			continue
		}
		total += len(pending)

		for _, p := range pending {
			waited := now.Sub(p.Response.GeneratedAt)
			if waited < s.maxWait {
				continue
			}
			s.logger.Warn("Approval waiting past threshold",
				zap.String("tenant", tenant),
				zap.String("conversation_id", p.Conversation.ID),
				zap.String("response_id", p.Response.ID),
				zap.Duration("waited", waited),
			)
		}
	}

	if s.monitor != nil {
		s.monitor.SetPendingApprovals(int64(total))
	}
}
