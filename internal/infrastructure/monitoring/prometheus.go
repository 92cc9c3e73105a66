package monitoring

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// PrometheusHandler returns an http.Handler that serves Prometheus text format metrics.
// This avoids pulling in the full prometheus/client_golang dependency.
// Mount it at "/metrics" in your HTTP server.
func (m *Monitor) PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(m.metrics.StartTime).Seconds()

		lines := []struct {
			name string
			help string
			typ  string
			val  interface{}
		}{
			{"careloop_conversations_started_total", "Conversations started", "counter", atomic.LoadUint64(&m.metrics.ConversationsStarted)},
			{"careloop_messages_total", "Messages persisted", "counter", atomic.LoadUint64(&m.metrics.MessagesTotal)},

			{"careloop_generations_total", "AI responses generated", "counter", atomic.LoadUint64(&m.metrics.GenerationsTotal)},
			{"careloop_generations_fallback_total", "Generations served by the static fallback", "counter", atomic.LoadUint64(&m.metrics.GenerationsFallback)},
			{"careloop_generations_gated_total", "Generations routed to human review", "counter", atomic.LoadUint64(&m.metrics.GenerationsGated)},

			{"careloop_approvals_approved_total", "Approval decisions: approved", "counter", atomic.LoadUint64(&m.metrics.ApprovalsApproved)},
			{"careloop_approvals_modified_total", "Approval decisions: modified", "counter", atomic.LoadUint64(&m.metrics.ApprovalsModified)},
			{"careloop_approvals_rejected_total", "Approval decisions: rejected", "counter", atomic.LoadUint64(&m.metrics.ApprovalsRejected)},

			{"careloop_provider_calls_total", "LLM provider attempts", "counter", atomic.LoadUint64(&m.metrics.ProviderCallsTotal)},
			{"careloop_provider_calls_failed_total", "Failed LLM provider attempts", "counter", atomic.LoadUint64(&m.metrics.ProviderCallsFailed)},
			{"careloop_tokens_used_total", "Tokens consumed across providers", "counter", atomic.LoadUint64(&m.metrics.TokensUsed)},

			{"careloop_errors_total", "Errors encountered", "counter", atomic.LoadUint64(&m.metrics.ErrorsTotal)},

			{"careloop_pending_approvals", "Conversations awaiting review", "gauge", atomic.LoadInt64(&m.metrics.PendingApprovals)},
			{"careloop_uptime_seconds", "Process uptime in seconds", "gauge", uptime},

			{"careloop_memory_alloc_bytes", "Current memory allocation in bytes", "gauge", memStats.Alloc},
			{"careloop_memory_sys_bytes", "Total memory obtained from OS", "gauge", memStats.Sys},
			{"careloop_goroutines", "Number of goroutines", "gauge", runtime.NumGoroutine()},
			{"careloop_gc_pause_total_ns", "Total GC pause time in nanoseconds", "counter", memStats.PauseTotalNs},
			{"careloop_gc_cycles_total", "Total number of completed GC cycles", "counter", memStats.NumGC},
		}

		for _, l := range lines {
			fmt.Fprintf(w, "# HELP %s %s\n", l.name, l.help)
			fmt.Fprintf(w, "# TYPE %s %s\n", l.name, l.typ)
			switch v := l.val.(type) {
			case uint64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int64:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case int:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			case float64:
				fmt.Fprintf(w, "%s %f\n", l.name, v)
			case uint32:
				fmt.Fprintf(w, "%s %d\n", l.name, v)
			}
			fmt.Fprintln(w)
		}

		genCount := atomic.LoadUint64(&m.metrics.GenerationLatencyCount)
		if genCount > 0 {
			avgMs := float64(atomic.LoadUint64(&m.metrics.GenerationLatencySum)) / float64(genCount) / 1e6
			fmt.Fprintf(w, "# HELP careloop_generation_latency_avg_ms Average generation latency in milliseconds\n")
			fmt.Fprintf(w, "# TYPE careloop_generation_latency_avg_ms gauge\n")
			fmt.Fprintf(w, "careloop_generation_latency_avg_ms %f\n\n", avgMs)
		}
	})
}
