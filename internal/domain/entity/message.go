package entity

import (
	"time"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAI       SenderType = "ai"
	SenderAgent    SenderType = "agent"
)

// IsValid reports whether t is a known sender type.
func (t SenderType) IsValid() bool {
	switch t {
	case SenderCustomer, SenderAI, SenderAgent:
		return true
	}
	return false
}

// Attachment describes a file attached to a message.
type Attachment struct {
	Name        string `json:"name"`
	URI         string `json:"uri"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

// Message is one turn in a conversation.
//
// Sequence is strictly increasing per conversation, starting at 1, assigned
// by the repository under the conversation lock, never reused.
type Message struct {
	ID             string
	ConversationID string
	Sender         SenderType
	Body           string
	Sequence       int
	CreatedAt      time.Time
	Attachments    []Attachment
	SenderID       string // optional, set for agent messages
	AIResponseID   string // optional, links an AI message to its AIResponse
}

// NewMessage creates a message. Sequence is left at zero; the repository
// assigns it when the message is persisted.
func NewMessage(id, conversationID string, sender SenderType, body string, now time.Time) (*Message, error) {
	if id == "" {
		return nil, ErrInvalidMessageID
	}
	if conversationID == "" {
		return nil, ErrInvalidConversationID
	}
	if !sender.IsValid() {
		return nil, ErrInvalidSenderType
	}
	if body == "" {
		return nil, ErrEmptyMessageBody
	}
	return &Message{
		ID:             id,
		ConversationID: conversationID,
		Sender:         sender,
		Body:           body,
		CreatedAt:      now,
	}, nil
}

// IsFromCustomer reports whether the message came from the customer.
func (m *Message) IsFromCustomer() bool {
	return m.Sender == SenderCustomer
}

// IsFromAI reports whether the message is an AI draft or reply.
func (m *Message) IsFromAI() bool {
	return m.Sender == SenderAI
}
