package entity

import (
	"time"
)

// Status is the conversation lifecycle state.
type Status string

const (
	StatusActive          Status = "active"
	StatusPendingApproval Status = "pending_approval"
	StatusAwaitingAgent   Status = "awaiting_agent"
)

// IsValid reports whether s is a known conversation status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPendingApproval, StatusAwaitingAgent:
		return true
	}
	return false
}

// Priority controls ordering in the approval queue.
type Priority string

const (
	PriorityStandard Priority = "standard"
	PriorityHigh     Priority = "high"
	PriorityVIP      Priority = "vip"
)

// Rank returns a sortable weight: vip > high > standard.
func (p Priority) Rank() int {
	switch p {
	case PriorityVIP:
		return 2
	case PriorityHigh:
		return 1
	default:
		return 0
	}
}

// Conversation is a customer-support conversation.
//
// Invariant: PendingApprovalResponseID is non-empty iff Status is
// pending_approval. Conversations are soft-ended via EndedAt, never deleted.
type Conversation struct {
	ID                        string
	TenantID                  string
	CustomerID                string // optional
	Status                    Status
	Channel                   string
	Priority                  Priority
	StartedAt                 time.Time
	LastActivityAt            time.Time
	PendingApprovalResponseID string // set only while Status == pending_approval
	EndedAt                   *time.Time
	Metadata                  map[string]interface{}
}

// NewConversation creates an active conversation.
func NewConversation(id, tenantID, customerID, channel string, priority Priority, now time.Time) (*Conversation, error) {
	if id == "" {
		return nil, ErrInvalidConversationID
	}
	if tenantID == "" {
		return nil, ErrInvalidTenantID
	}
	if channel == "" {
		channel = "text-web"
	}
	if priority == "" {
		priority = PriorityStandard
	}
	return &Conversation{
		ID:             id,
		TenantID:       tenantID,
		CustomerID:     customerID,
		Status:         StatusActive,
		Channel:        channel,
		Priority:       priority,
		StartedAt:      now,
		LastActivityAt: now,
		Metadata:       make(map[string]interface{}),
	}, nil
}

// IsEnded reports whether the conversation has been soft-ended.
func (c *Conversation) IsEnded() bool {
	return c.EndedAt != nil
}

// End soft-ends the conversation.
func (c *Conversation) End(now time.Time) {
	if c.EndedAt == nil {
		t := now
		c.EndedAt = &t
	}
}
