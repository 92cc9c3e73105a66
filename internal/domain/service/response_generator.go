package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/knowledge"
)

// DefaultFallbackMessage is sent to the customer when every provider fails.
const DefaultFallbackMessage = "I apologize, but I'm having trouble processing your request right now. A human agent will assist you shortly."

// GeneratorConfig tunes response generation.
type GeneratorConfig struct {
	TopK                int     // knowledge results to retrieve
	MinScore            float64 // minimum retrieval similarity
	Model               string  // model override, empty = provider default
	Temperature         float64
	TopP                float64
	MaxTokens           int
	FallbackMessage     string
	ConfidenceThreshold float64
}

// DefaultGeneratorConfig returns the production defaults.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		TopK:                3,
		MinScore:            0.7,
		Temperature:         0.3,
		TopP:                0.9,
		MaxTokens:           600,
		FallbackMessage:     DefaultFallbackMessage,
		ConfidenceThreshold: DefaultConfidenceThreshold,
	}
}

// GeneratedResponse is a complete AI draft with scoring metadata.
type GeneratedResponse struct {
	ResponseID       string
	Body             string
	Confidence       float64
	RequiresApproval bool
	Provider         string
	Model            string
	Usage            entity.TokenUsage
	Latency          time.Duration
	KnowledgeSources []entity.KnowledgeSource
}

// ResponseGenerator turns a customer message into an AI draft: retrieve
// knowledge, build the prompt, call the LLM, score confidence, and decide
// whether a human must review.
type ResponseGenerator struct {
	retriever knowledge.Retriever
	llm       LLMClient
	cfg       GeneratorConfig
	logger    *zap.Logger
}

// NewResponseGenerator creates a response generator.
func NewResponseGenerator(retriever knowledge.Retriever, llm LLMClient, cfg GeneratorConfig, logger *zap.Logger) *ResponseGenerator {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = 0.7
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = DefaultFallbackMessage
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &ResponseGenerator{
		retriever: retriever,
		llm:       llm,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "response-generator")),
	}
}

// Generate produces an AI draft for the latest customer message.
// Retrieval failure degrades to an empty result set and never aborts
// generation.
func (g *ResponseGenerator) Generate(ctx context.Context, conversationID, tenantID, customerMessage string, history []*entity.Message) (*GeneratedResponse, error) {
	results, err := g.retriever.Search(ctx, customerMessage, tenantID, g.cfg.TopK, g.cfg.MinScore)
	if err != nil {
		g.logger.Warn("Knowledge retrieval failed, continuing without context",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		results = nil
	}

	sources := make([]entity.KnowledgeSource, 0, len(results))
	for _, r := range results {
		sources = append(sources, entity.KnowledgeSource{
			ItemID:    r.ItemID,
			Title:     r.Title,
			Score:     r.Score,
			SourceURI: r.SourceURI,
		})
	}

	messages := []ChatMessage{
		{Role: "system", Content: BuildSystemPrompt(results, history)},
		{Role: "user", Content: customerMessage},
	}

	llmResult, err := g.llm.Generate(ctx, messages, GenerateOptions{
		ModelOverride:  g.cfg.Model,
		Temperature:    g.cfg.Temperature,
		TopP:           g.cfg.TopP,
		MaxTokens:      g.cfg.MaxTokens,
		StaticFallback: g.cfg.FallbackMessage,
	})
	if err != nil {
		return nil, err
	}

	confidence := ScoreConfidence(results, llmResult.Provider)
	requiresApproval := RequiresApproval(confidence, g.cfg.ConfidenceThreshold)

	var usage entity.TokenUsage
	if llmResult.Usage != nil {
		usage = *llmResult.Usage
	}

	g.logger.Info("Generated AI response",
		zap.String("conversation_id", conversationID),
		zap.String("provider", llmResult.Provider),
		zap.Float64("confidence", confidence),
		zap.Bool("requires_approval", requiresApproval),
		zap.Int("knowledge_results", len(results)),
	)

	return &GeneratedResponse{
		ResponseID:       uuid.NewString(),
		Body:             llmResult.Content,
		Confidence:       confidence,
		RequiresApproval: requiresApproval,
		Provider:         llmResult.Provider,
		Model:            llmResult.Model,
		Usage:            usage,
		Latency:          llmResult.Latency,
		KnowledgeSources: sources,
	}, nil
}
