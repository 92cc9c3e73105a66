package models

import (
	"time"
)

// ConversationModel is the database row for a conversation.
type ConversationModel struct {
	ID                        string `gorm:"primaryKey;size:64"`
	TenantID                  string `gorm:"size:64;index:idx_conversations_tenant_status"`
	CustomerID                string `gorm:"size:64"`
	Status                    string `gorm:"size:32;index:idx_conversations_tenant_status"`
	Channel                   string `gorm:"size:32"`
	Priority                  string `gorm:"size:16"`
	StartedAt                 time.Time
	LastActivityAt            time.Time
	PendingApprovalResponseID string `gorm:"size:64"`
	EndedAt                   *time.Time
	Metadata                  string `gorm:"type:text"` // JSON
}

// TableName specifies the table name.
func (ConversationModel) TableName() string {
	return "conversations"
}
