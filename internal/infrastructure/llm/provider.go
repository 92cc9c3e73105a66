package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/service"
)

// CompletionParams are the per-call knobs forwarded to a provider.
// Values pass through unvalidated; range checks are the provider's concern.
type CompletionParams struct {
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Completion is a single successful provider response.
type Completion struct {
	Content string
	Model   string
	Usage   *entity.TokenUsage
}

// Provider is one configured LLM backend.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai", "anthropic").
	Name() string

	// Complete sends an ordered prompt and returns the completion.
	Complete(ctx context.Context, messages []service.ChatMessage, params CompletionParams) (*Completion, error)

	// IsConfigured reports whether the provider has credentials and can be
	// placed in the orchestration order.
	IsConfigured() bool
}

// ProviderConfig holds configuration for an LLM provider.
type ProviderConfig struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"` // "openai" (default) | "anthropic"
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"` // default model for this provider

	// RequestTimeout bounds a single attempt. Zero = transport default.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// --- Provider Factory Registry ---
// Providers register themselves via init() in their own package.
// Adding a new provider type = implement Provider + RegisterFactory("type", New).

// ProviderFactory creates a Provider from config.
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) Provider

var (
	factoryMu sync.RWMutex
	factories = map[string]ProviderFactory{}
)

// RegisterFactory registers a provider factory for the given type name.
// Called from init() in each provider sub-package (e.g. llm/openai).
func RegisterFactory(typeName string, factory ProviderFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// CreateProvider creates a Provider using the registered factory for
// cfg.Type. An empty Type defaults to "openai".
func CreateProvider(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	t := cfg.Type
	if t == "" {
		t = "openai"
	}

	factoryMu.RLock()
	factory, ok := factories[t]
	factoryMu.RUnlock()

	if !ok {
		factoryMu.RLock()
		available := make([]string, 0, len(factories))
		for k := range factories {
			available = append(available, k)
		}
		factoryMu.RUnlock()
		return nil, fmt.Errorf("unknown provider type %q (available: %v)", t, available)
	}

	return factory(cfg, logger), nil
}
