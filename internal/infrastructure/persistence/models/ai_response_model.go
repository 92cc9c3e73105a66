package models

import (
	"time"
)

// AIResponseModel is the database row for generated response metadata.
type AIResponseModel struct {
	ID               string `gorm:"primaryKey;size:64"`
	ConversationID   string `gorm:"size:64;index"`
	MessageID        string `gorm:"size:64"`
	Provider         string `gorm:"size:32"`
	Model            string `gorm:"size:64"`
	Confidence       float64
	RequiresApproval bool
	Status           string `gorm:"size:16"`
	KnowledgeSources string `gorm:"type:text"` // JSON
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencyMs        int64
	ErrorReason      string `gorm:"type:text"`
	GeneratedAt      time.Time
}

// TableName specifies the table name.
func (AIResponseModel) TableName() string {
	return "ai_responses"
}
