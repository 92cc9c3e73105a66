package models

import (
	"time"
)

// MessageModel is the database row for a message.
type MessageModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	ConversationID string `gorm:"size:64;index:idx_messages_conversation_seq,unique"`
	SenderType     string `gorm:"size:16"`
	Body           string `gorm:"type:text"`
	Sequence       int    `gorm:"index:idx_messages_conversation_seq,unique"`
	CreatedAt      time.Time
	Attachments    string `gorm:"type:text"` // JSON
	SenderID       string `gorm:"size:64"`
	AIResponseID   string `gorm:"size:64;index"`
}

// TableName specifies the table name.
func (MessageModel) TableName() string {
	return "messages"
}
