package monitoring

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestMonitor_CountersUnderConcurrency(t *testing.T) {
	m := NewMonitor(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncMessage()
			m.IncGeneration()
			m.AddTokensUsed(10)
		}()
	}
	wg.Wait()

	stats := m.GetStats()
	if stats["messages_total"].(uint64) != 50 {
		t.Fatalf("expected 50 messages, got %v", stats["messages_total"])
	}
	if stats["generations_total"].(uint64) != 50 {
		t.Fatalf("expected 50 generations, got %v", stats["generations_total"])
	}
	if stats["tokens_used"].(uint64) != 500 {
		t.Fatalf("expected 500 tokens, got %v", stats["tokens_used"])
	}
}

func TestMonitor_AddTokensIgnoresNonPositive(t *testing.T) {
	m := NewMonitor(zap.NewNop())
	m.AddTokensUsed(0)
	m.AddTokensUsed(-5)

	if got := m.GetStats()["tokens_used"].(uint64); got != 0 {
		t.Fatalf("non-positive token counts must be ignored, got %v", got)
	}
}

func TestMonitor_GenerationLatencyAverage(t *testing.T) {
	m := NewMonitor(zap.NewNop())
	m.RecordGenerationLatency(100 * time.Millisecond)
	m.RecordGenerationLatency(300 * time.Millisecond)

	avg := m.GetStats()["avg_gen_latency_ms"].(float64)
	if avg != 200 {
		t.Fatalf("expected 200ms average, got %v", avg)
	}
}

func TestMonitor_PendingApprovalsGauge(t *testing.T) {
	m := NewMonitor(zap.NewNop())
	m.SetPendingApprovals(7)
	m.SetPendingApprovals(3)

	if got := m.GetStats()["pending_approvals"].(int64); got != 3 {
		t.Fatalf("gauge should hold the last value, got %v", got)
	}
}

func TestMonitor_HistoryRing(t *testing.T) {
	m := NewMonitor(zap.NewNop())
	m.historyLimit = 3

	for i := 0; i < 5; i++ {
		m.Snapshot()
	}
	if got := len(m.GetHistory()); got != 3 {
		t.Fatalf("history should cap at the limit, got %d", got)
	}
}

func TestPrometheusHandler_TextFormat(t *testing.T) {
	m := NewMonitor(zap.NewNop())
	m.IncConversationStarted()
	m.IncGenerationGated()
	m.SetPendingApprovals(2)
	m.RecordGenerationLatency(50 * time.Millisecond)

	rec := httptest.NewRecorder()
	m.PrometheusHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"careloop_conversations_started_total 1",
		"careloop_generations_gated_total 1",
		"careloop_pending_approvals 2",
		"# TYPE careloop_pending_approvals gauge",
		"careloop_generation_latency_avg_ms",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("exposition missing %q:\n%s", want, body)
		}
	}
}
