package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/service"
)

// FallbackModel tags the synthesized result used when every provider fails.
const FallbackModel = "static-fallback"

// GenerationError aggregates every per-provider error collected during a
// fully exhausted generation attempt.
type GenerationError struct {
	Errors []error
}

func (e *GenerationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("all configured LLM providers failed: %s", strings.Join(parts, "; "))
}

// Unwrap exposes the collected errors to errors.Is/As.
func (e *GenerationError) Unwrap() []error {
	return e.Errors
}

// OrchestratorConfig tunes the retry/fallback policy.
type OrchestratorConfig struct {
	// MaxRetries is the number of retries after the first attempt, so each
	// provider is tried MaxRetries+1 times.
	MaxRetries int
	// RetryDelay is the fixed delay between attempts and between providers.
	RetryDelay time.Duration
	// BreakerThreshold enables a per-provider circuit breaker when > 0: a
	// provider whose retry budget is exhausted that many times in a row is
	// skipped (with a recorded error) until BreakerRecovery elapses. Zero
	// disables the breaker.
	BreakerThreshold int
	BreakerRecovery  time.Duration
}

// providerStats tracks per-provider performance metrics.
type providerStats struct {
	TotalCalls   int64
	FailureCount int64
	LastLatency  time.Duration
}

// Orchestrator implements service.LLMClient over an ordered provider list:
// configured primary first, then the remaining configured providers. Each
// provider is exhausted fully (maxRetries+1 attempts with a fixed delay)
// before the next one is tried. When every provider is exhausted it either
// synthesizes a static-fallback result or fails with a GenerationError.
type Orchestrator struct {
	providers []Provider
	cfg       OrchestratorConfig
	stats     map[string]*providerStats
	breakers  map[string]*CircuitBreaker
	mu        sync.RWMutex
	logger    *zap.Logger

	// sleep is swappable so tests don't wait out real delays.
	sleep func(time.Duration)
}

// Compile-time interface check: Orchestrator implements service.LLMClient
var _ service.LLMClient = (*Orchestrator)(nil)

// NewOrchestrator builds the provider order from primary + the remaining
// configured providers, dropping unconfigured and duplicate entries.
func NewOrchestrator(primary string, providers []Provider, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	o := &Orchestrator{
		cfg:      cfg,
		stats:    make(map[string]*providerStats),
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger.With(zap.String("component", "llm-orchestrator")),
		sleep:    time.Sleep,
	}

	seen := make(map[string]bool)
	add := func(p Provider) {
		if p == nil || seen[p.Name()] || !p.IsConfigured() {
			return
		}
		seen[p.Name()] = true
		o.providers = append(o.providers, p)
		o.stats[p.Name()] = &providerStats{}
		if cfg.BreakerThreshold > 0 {
			o.breakers[p.Name()] = NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerRecovery)
		}
		o.logger.Info("LLM provider registered", zap.String("name", p.Name()))
	}

	for _, p := range providers {
		if p != nil && p.Name() == primary {
			add(p)
		}
	}
	for _, p := range providers {
		add(p)
	}

	return o
}

// Providers returns the ordered provider names.
func (o *Orchestrator) Providers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// Generate implements service.LLMClient.
func (o *Orchestrator) Generate(ctx context.Context, messages []service.ChatMessage, opts service.GenerateOptions) (*service.LLMResult, error) {
	o.mu.RLock()
	providers := make([]Provider, len(o.providers))
	copy(providers, o.providers)
	o.mu.RUnlock()

	var collected []error

	for i, p := range providers {
		if cb, ok := o.breakers[p.Name()]; ok && !cb.Allow() {
			o.logger.Debug("Provider circuit open, skipping",
				zap.String("provider", p.Name()),
			)
			collected = append(collected, fmt.Errorf("provider %s: circuit open", p.Name()))
			continue
		}

		result, err := o.exhaustProvider(ctx, p, messages, opts)
		if err == nil {
			if cb, ok := o.breakers[p.Name()]; ok {
				cb.RecordSuccess()
			}
			return result, nil
		}

		if cb, ok := o.breakers[p.Name()]; ok {
			cb.RecordFailure()
		}
		collected = append(collected, fmt.Errorf("provider %s: %w", p.Name(), err))
		o.logger.Warn("Provider exhausted, trying next",
			zap.String("provider", p.Name()),
			zap.Error(err),
		)

		if i < len(providers)-1 {
			o.sleep(o.cfg.RetryDelay)
		}
	}

	if opts.StaticFallback != "" {
		o.logger.Info("Using static fallback response after provider failures",
			zap.Int("errors", len(collected)),
		)
		return &service.LLMResult{
			Provider: service.ProviderFallback,
			Model:    FallbackModel,
			Content:  opts.StaticFallback,
			Latency:  0,
			Usage:    nil,
		}, nil
	}

	return nil, &GenerationError{Errors: collected}
}

// exhaustProvider tries a single provider up to maxRetries+1 times with a
// fixed delay between attempts, returning the first success or the last
// error once the budget is spent.
func (o *Orchestrator) exhaustProvider(ctx context.Context, p Provider, messages []service.ChatMessage, opts service.GenerateOptions) (*service.LLMResult, error) {
	params := CompletionParams{
		Model:       opts.ModelOverride,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
	}

	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		start := time.Now()
		completion, err := p.Complete(ctx, messages, params)
		latency := time.Since(start)

		o.mu.Lock()
		if s, ok := o.stats[p.Name()]; ok {
			s.TotalCalls++
			s.LastLatency = latency
			if err != nil {
				s.FailureCount++
			}
		}
		o.mu.Unlock()

		if err == nil {
			o.logger.Debug("Provider succeeded",
				zap.String("provider", p.Name()),
				zap.Duration("latency", latency),
			)
			return &service.LLMResult{
				Provider: p.Name(),
				Model:    completion.Model,
				Content:  completion.Content,
				Latency:  latency,
				Usage:    completion.Usage,
			}, nil
		}

		lastErr = err
		o.logger.Warn("Provider attempt failed",
			zap.String("provider", p.Name()),
			zap.Int("attempt", attempt+1),
			zap.Duration("latency", latency),
			zap.Error(err),
		)

		if attempt < o.cfg.MaxRetries {
			o.sleep(o.cfg.RetryDelay)
		}
	}
	return nil, lastErr
}

// Status describes a provider's current state for diagnostics.
type Status struct {
	Name          string  `json:"name"`
	TotalCalls    int64   `json:"total_calls"`
	FailureCount  int64   `json:"failure_count"`
	LastLatencyMs float64 `json:"last_latency_ms"`
	CircuitState  string  `json:"circuit_state,omitempty"`
}

// ListProviders returns per-provider status and performance stats.
func (o *Orchestrator) ListProviders() []Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var result []Status
	for _, p := range o.providers {
		ps := Status{Name: p.Name()}
		if s, ok := o.stats[p.Name()]; ok {
			ps.TotalCalls = s.TotalCalls
			ps.FailureCount = s.FailureCount
			ps.LastLatencyMs = float64(s.LastLatency) / float64(time.Millisecond)
		}
		if cb, ok := o.breakers[p.Name()]; ok {
			ps.CircuitState = cb.State().String()
		}
		result = append(result, ps)
	}
	return result
}
