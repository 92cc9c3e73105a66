package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/service"
)

type fakeProvider struct {
	name       string
	configured bool
	calls      int
	failures   int // fail the first N calls
	err        error
	completion *Completion
}

func (p *fakeProvider) Name() string       { return p.name }
func (p *fakeProvider) IsConfigured() bool { return p.configured }

func (p *fakeProvider) Complete(ctx context.Context, messages []service.ChatMessage, params CompletionParams) (*Completion, error) {
	p.calls++
	if p.calls <= p.failures {
		if p.err != nil {
			return nil, p.err
		}
		return nil, errors.New("provider unavailable")
	}
	if p.completion != nil {
		return p.completion, nil
	}
	return &Completion{Content: "ok", Model: "model-" + p.name}, nil
}

func newTestOrchestrator(primary string, providers []Provider, cfg OrchestratorConfig) *Orchestrator {
	o := NewOrchestrator(primary, providers, cfg, zap.NewNop())
	o.sleep = func(time.Duration) {}
	return o
}

func prompt() []service.ChatMessage {
	return []service.ChatMessage{{Role: "user", Content: "hi"}}
}

func TestNewOrchestrator_PrimaryFirst(t *testing.T) {
	a := &fakeProvider{name: "anthropic", configured: true}
	b := &fakeProvider{name: "openai", configured: true}

	o := newTestOrchestrator("openai", []Provider{a, b}, OrchestratorConfig{})

	names := o.Providers()
	if len(names) != 2 || names[0] != "openai" || names[1] != "anthropic" {
		t.Fatalf("expected [openai anthropic], got %v", names)
	}
}

func TestNewOrchestrator_SkipsUnconfigured(t *testing.T) {
	a := &fakeProvider{name: "openai", configured: false}
	b := &fakeProvider{name: "anthropic", configured: true}

	o := newTestOrchestrator("openai", []Provider{a, b}, OrchestratorConfig{})

	names := o.Providers()
	if len(names) != 1 || names[0] != "anthropic" {
		t.Fatalf("unconfigured providers must be dropped, got %v", names)
	}
}

func TestNewOrchestrator_DropsDuplicates(t *testing.T) {
	a := &fakeProvider{name: "openai", configured: true}
	b := &fakeProvider{name: "openai", configured: true}

	o := newTestOrchestrator("openai", []Provider{a, b}, OrchestratorConfig{})

	if names := o.Providers(); len(names) != 1 {
		t.Fatalf("duplicate names must be dropped, got %v", names)
	}
}

func TestGenerate_UsesPrimaryOnSuccess(t *testing.T) {
	primary := &fakeProvider{name: "openai", configured: true}
	secondary := &fakeProvider{name: "anthropic", configured: true}

	o := newTestOrchestrator("openai", []Provider{secondary, primary}, OrchestratorConfig{MaxRetries: 2})

	result, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provider != "openai" {
		t.Fatalf("expected the primary to serve, got %s", result.Provider)
	}
	if primary.calls != 1 || secondary.calls != 0 {
		t.Fatalf("expected a single primary call, got primary=%d secondary=%d", primary.calls, secondary.calls)
	}
}

func TestGenerate_ExhaustsProviderBeforeSwitching(t *testing.T) {
	primary := &fakeProvider{name: "openai", configured: true, failures: 100}
	secondary := &fakeProvider{name: "anthropic", configured: true}

	o := newTestOrchestrator("openai", []Provider{primary, secondary}, OrchestratorConfig{MaxRetries: 2})

	result, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls != 3 {
		t.Fatalf("expected maxRetries+1 = 3 primary attempts, got %d", primary.calls)
	}
	if result.Provider != "anthropic" || secondary.calls != 1 {
		t.Fatalf("expected the secondary to serve after exhaustion, got %s (%d calls)", result.Provider, secondary.calls)
	}
}

func TestGenerate_RetriesWithinProvider(t *testing.T) {
	flaky := &fakeProvider{name: "openai", configured: true, failures: 2}

	o := newTestOrchestrator("openai", []Provider{flaky}, OrchestratorConfig{MaxRetries: 2})

	result, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected the third attempt to succeed, got %d calls", flaky.calls)
	}
	if result.Content != "ok" {
		t.Fatalf("unexpected content %q", result.Content)
	}
}

func TestGenerate_StaticFallback(t *testing.T) {
	a := &fakeProvider{name: "openai", configured: true, failures: 100}
	b := &fakeProvider{name: "anthropic", configured: true, failures: 100}

	o := newTestOrchestrator("openai", []Provider{a, b}, OrchestratorConfig{MaxRetries: 1})

	result, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{
		StaticFallback: "please hold for an agent",
	})
	if err != nil {
		t.Fatalf("fallback must not surface an error: %v", err)
	}
	if result.Provider != service.ProviderFallback {
		t.Fatalf("expected the fallback provider tag, got %s", result.Provider)
	}
	if result.Model != FallbackModel {
		t.Fatalf("expected the fallback model tag, got %s", result.Model)
	}
	if result.Content != "please hold for an agent" {
		t.Fatalf("unexpected content %q", result.Content)
	}
	if result.Latency != 0 || result.Usage != nil {
		t.Fatalf("fallback results carry no latency or usage: %+v", result)
	}
}

func TestGenerate_SleepsBetweenAttemptsAndProviders(t *testing.T) {
	a := &fakeProvider{name: "openai", configured: true, failures: 100}
	b := &fakeProvider{name: "anthropic", configured: true, failures: 100}

	o := NewOrchestrator("openai", []Provider{a, b}, OrchestratorConfig{
		MaxRetries: 1,
		RetryDelay: 250 * time.Millisecond,
	}, zap.NewNop())

	sleeps := 0
	o.sleep = func(d time.Duration) {
		if d != 250*time.Millisecond {
			t.Fatalf("delay must stay fixed, got %v", d)
		}
		sleeps++
	}

	_, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{StaticFallback: "hold on"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One delay inside each provider (between its two attempts), one between
	// the providers, none after the last.
	if sleeps != 3 {
		t.Fatalf("expected 3 delays, got %d", sleeps)
	}
}

func TestGenerate_AggregatesErrors(t *testing.T) {
	a := &fakeProvider{name: "openai", configured: true, failures: 100, err: errors.New("429")}
	b := &fakeProvider{name: "anthropic", configured: true, failures: 100, err: errors.New("503")}

	o := newTestOrchestrator("openai", []Provider{a, b}, OrchestratorConfig{MaxRetries: 0})

	_, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{})
	if err == nil {
		t.Fatal("expected an error when no fallback is configured")
	}

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected a GenerationError, got %T", err)
	}
	if len(genErr.Errors) != 2 {
		t.Fatalf("expected one entry per provider, got %d", len(genErr.Errors))
	}
	if !errors.Is(err, a.err) || !errors.Is(err, b.err) {
		t.Fatal("per-provider errors should unwrap")
	}
}

func TestGenerate_BreakerSkipsOpenProvider(t *testing.T) {
	broken := &fakeProvider{name: "openai", configured: true, failures: 100}
	healthy := &fakeProvider{name: "anthropic", configured: true}

	o := newTestOrchestrator("openai", []Provider{broken, healthy}, OrchestratorConfig{
		MaxRetries:       0,
		BreakerThreshold: 1,
		BreakerRecovery:  time.Hour,
	})

	// First call trips the breaker for the broken provider.
	if _, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if broken.calls != 1 {
		t.Fatalf("expected a single attempt before the trip, got %d", broken.calls)
	}

	// Second call skips it entirely.
	result, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if broken.calls != 1 {
		t.Fatalf("open circuit must skip the provider, got %d calls", broken.calls)
	}
	if result.Provider != "anthropic" {
		t.Fatalf("expected the healthy provider, got %s", result.Provider)
	}
}

func TestGenerate_UsageCarriedThrough(t *testing.T) {
	p := &fakeProvider{
		name:       "openai",
		configured: true,
		completion: &Completion{
			Content: "answer",
			Model:   "gpt-4o-mini",
			Usage:   &entity.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		},
	}

	o := newTestOrchestrator("openai", []Provider{p}, OrchestratorConfig{})

	result, err := o.Generate(context.Background(), prompt(), service.GenerateOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 15 {
		t.Fatalf("usage not carried: %+v", result.Usage)
	}
	if result.Model != "gpt-4o-mini" {
		t.Fatalf("model not carried: %s", result.Model)
	}
}
