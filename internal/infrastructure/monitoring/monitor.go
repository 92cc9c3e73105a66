package monitoring

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metrics holds process-wide counters.
type Metrics struct {
	// Conversation flow
	ConversationsStarted uint64
	MessagesTotal        uint64

	// Generation
	GenerationsTotal    uint64
	GenerationsFallback uint64
	GenerationsGated    uint64 // sent to human review

	// Approval workflow
	ApprovalsApproved uint64
	ApprovalsModified uint64
	ApprovalsRejected uint64

	// Provider calls
	ProviderCallsTotal  uint64
	ProviderCallsFailed uint64
	TokensUsed          uint64

	// Latency (nanoseconds)
	GenerationLatencySum   uint64
	GenerationLatencyCount uint64

	ErrorsTotal uint64

	PendingApprovals int64

	StartTime time.Time
}

// Monitor collects runtime metrics.
type Monitor struct {
	metrics *Metrics
	logger  *zap.Logger
	mu      sync.RWMutex

	history      []MetricsSnapshot
	historyLimit int
}

// MetricsSnapshot is a point-in-time reading for trend charts.
type MetricsSnapshot struct {
	Timestamp         time.Time
	MessagesPerSecond float64
	AvgLatencyMs      float64
	PendingApprovals  int64
	MemoryMB          float64
	Goroutines        int
}

// NewMonitor creates a metrics collector.
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		metrics: &Metrics{
			StartTime: time.Now(),
		},
		logger:       logger,
		history:      make([]MetricsSnapshot, 0, 100),
		historyLimit: 100,
	}
}

func (m *Monitor) IncConversationStarted() { atomic.AddUint64(&m.metrics.ConversationsStarted, 1) }
func (m *Monitor) IncMessage()             { atomic.AddUint64(&m.metrics.MessagesTotal, 1) }
func (m *Monitor) IncGeneration()          { atomic.AddUint64(&m.metrics.GenerationsTotal, 1) }
func (m *Monitor) IncGenerationFallback()  { atomic.AddUint64(&m.metrics.GenerationsFallback, 1) }
func (m *Monitor) IncGenerationGated()     { atomic.AddUint64(&m.metrics.GenerationsGated, 1) }
func (m *Monitor) IncApprovalApproved()    { atomic.AddUint64(&m.metrics.ApprovalsApproved, 1) }
func (m *Monitor) IncApprovalModified()    { atomic.AddUint64(&m.metrics.ApprovalsModified, 1) }
func (m *Monitor) IncApprovalRejected()    { atomic.AddUint64(&m.metrics.ApprovalsRejected, 1) }
func (m *Monitor) IncProviderCall()        { atomic.AddUint64(&m.metrics.ProviderCallsTotal, 1) }
func (m *Monitor) IncProviderCallFailed()  { atomic.AddUint64(&m.metrics.ProviderCallsFailed, 1) }
func (m *Monitor) IncError()               { atomic.AddUint64(&m.metrics.ErrorsTotal, 1) }

func (m *Monitor) AddTokensUsed(n int) {
	if n > 0 {
		atomic.AddUint64(&m.metrics.TokensUsed, uint64(n))
	}
}

func (m *Monitor) SetPendingApprovals(n int64) {
	atomic.StoreInt64(&m.metrics.PendingApprovals, n)
}

func (m *Monitor) RecordGenerationLatency(d time.Duration) {
	atomic.AddUint64(&m.metrics.GenerationLatencySum, uint64(d.Nanoseconds()))
	atomic.AddUint64(&m.metrics.GenerationLatencyCount, 1)
}

// GetStats returns current readings as a flat map for the stats endpoint.
func (m *Monitor) GetStats() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.metrics.StartTime)

	avgLatency := float64(0)
	if count := atomic.LoadUint64(&m.metrics.GenerationLatencyCount); count > 0 {
		avgLatency = float64(atomic.LoadUint64(&m.metrics.GenerationLatencySum)) / float64(count) / 1e6
	}

	return map[string]interface{}{
		"uptime_seconds":        uptime.Seconds(),
		"conversations_started": atomic.LoadUint64(&m.metrics.ConversationsStarted),
		"messages_total":        atomic.LoadUint64(&m.metrics.MessagesTotal),
		"generations_total":     atomic.LoadUint64(&m.metrics.GenerationsTotal),
		"generations_fallback":  atomic.LoadUint64(&m.metrics.GenerationsFallback),
		"generations_gated":     atomic.LoadUint64(&m.metrics.GenerationsGated),
		"approvals_approved":    atomic.LoadUint64(&m.metrics.ApprovalsApproved),
		"approvals_modified":    atomic.LoadUint64(&m.metrics.ApprovalsModified),
		"approvals_rejected":    atomic.LoadUint64(&m.metrics.ApprovalsRejected),
		"provider_calls_total":  atomic.LoadUint64(&m.metrics.ProviderCallsTotal),
		"provider_calls_failed": atomic.LoadUint64(&m.metrics.ProviderCallsFailed),
		"tokens_used":           atomic.LoadUint64(&m.metrics.TokensUsed),
		"pending_approvals":     atomic.LoadInt64(&m.metrics.PendingApprovals),
		"errors_total":          atomic.LoadUint64(&m.metrics.ErrorsTotal),
		"avg_gen_latency_ms":    avgLatency,
		"memory_mb":             float64(memStats.Alloc) / 1024 / 1024,
		"goroutines":            runtime.NumGoroutine(),
	}
}

// Snapshot records a point-in-time reading into the history ring.
func (m *Monitor) Snapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	uptime := time.Since(m.metrics.StartTime).Seconds()
	msgTotal := atomic.LoadUint64(&m.metrics.MessagesTotal)

	avgLatency := float64(0)
	if count := atomic.LoadUint64(&m.metrics.GenerationLatencyCount); count > 0 {
		avgLatency = float64(atomic.LoadUint64(&m.metrics.GenerationLatencySum)) / float64(count) / 1e6
	}

	snapshot := MetricsSnapshot{
		Timestamp:         time.Now(),
		MessagesPerSecond: float64(msgTotal) / uptime,
		AvgLatencyMs:      avgLatency,
		PendingApprovals:  atomic.LoadInt64(&m.metrics.PendingApprovals),
		MemoryMB:          float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:        runtime.NumGoroutine(),
	}

	m.mu.Lock()
	m.history = append(m.history, snapshot)
	if len(m.history) > m.historyLimit {
		m.history = m.history[1:]
	}
	m.mu.Unlock()

	return snapshot
}

// GetHistory returns a copy of recorded snapshots.
func (m *Monitor) GetHistory() []MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]MetricsSnapshot, len(m.history))
	copy(result, m.history)
	return result
}

// StartCollector snapshots metrics on an interval until ctx is cancelled.
func (m *Monitor) StartCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Snapshot()
		}
	}
}
