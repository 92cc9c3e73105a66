package entity

import (
	"time"
)

// ResponseStatus tracks the review state of a generated AI response.
// Transitions happen only through the approval workflow.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseApproved ResponseStatus = "approved"
	ResponseModified ResponseStatus = "modified"
	ResponseRejected ResponseStatus = "rejected"
)

// KnowledgeSource records one retrieved snippet that grounded a response.
type KnowledgeSource struct {
	ItemID    string  `json:"knowledge_item_id"`
	Title     string  `json:"title"`
	Score     float64 `json:"score"`
	SourceURI string  `json:"source_uri,omitempty"`
}

// TokenUsage is provider-reported token accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AIResponse is the metadata for one generated reply.
//
// RequiresApproval is fixed at generation time (confidence below the
// threshold) and never changes afterwards; only Status is mutable.
type AIResponse struct {
	ID               string
	ConversationID   string
	MessageID        string // the AI message carrying this response's body
	Provider         string
	Model            string
	Confidence       float64 // in [0,1]
	RequiresApproval bool
	Status           ResponseStatus
	KnowledgeSources []KnowledgeSource
	Usage            TokenUsage
	Latency          time.Duration
	ErrorReason      string // optional, set when generation degraded
	GeneratedAt      time.Time
}

// Finalized reports whether an approval decision has been recorded.
func (r *AIResponse) Finalized() bool {
	return r.Status != ResponsePending
}
