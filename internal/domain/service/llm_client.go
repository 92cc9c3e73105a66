package service

import (
	"context"
	"time"

	"github.com/careloop/careloop/internal/domain/entity"
)

// ProviderFallback is the provider tag of a synthesized static-fallback
// result, returned when every configured provider is exhausted.
const ProviderFallback = "fallback"

// ChatMessage is one turn of an ordered prompt.
type ChatMessage struct {
	Role    string `json:"role"` // system | user | assistant
	Content string `json:"content"`
}

// GenerateOptions tunes a single generation call. Numeric parameters pass
// through to the provider unvalidated.
type GenerateOptions struct {
	ModelOverride  string
	Temperature    float64
	TopP           float64
	MaxTokens      int
	StaticFallback string // empty = no fallback, exhaustion surfaces an error
}

// LLMResult is the unified response from any provider.
type LLMResult struct {
	Provider string
	Model    string
	Content  string
	Latency  time.Duration
	Usage    *entity.TokenUsage // nil for fallback results
}

// LLMClient generates a completion for an ordered prompt. Implementations
// own retry and provider-fallback policy.
type LLMClient interface {
	Generate(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (*LLMResult, error)
}
