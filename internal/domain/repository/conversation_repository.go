package repository

import (
	"context"

	"github.com/careloop/careloop/internal/domain/entity"
)

// PendingApproval pairs a pending_approval conversation with the data an
// agent needs to review it.
type PendingApproval struct {
	Conversation        *entity.Conversation
	Response            *entity.AIResponse
	LastCustomerMessage *entity.Message
	ProposedMessage     *entity.Message
}

// ConversationRepository persists conversations, messages, AI responses and
// approval records.
//
// Implementations must serialize writes per conversation: the message insert
// and status update belonging to one logical response may not interleave
// with a concurrent response for the same conversation. Message sequence
// numbers are assigned by the repository under that lock, strictly
// increasing from 1.
type ConversationRepository interface {
	// CreateConversation persists a new conversation with its first message
	// (assigned sequence 1).
	CreateConversation(ctx context.Context, conversation *entity.Conversation, firstMessage *entity.Message) (*entity.Conversation, []*entity.Message, error)

	// AddMessage appends a message to a conversation, assigning the next
	// sequence number. When response is non-nil it is stored atomically with
	// the message and linked via the message's AIResponseID.
	AddMessage(ctx context.Context, message *entity.Message, response *entity.AIResponse) (*entity.Message, error)

	// GetConversation returns a conversation or a NOT_FOUND error.
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)

	// ListMessages returns a conversation's messages ordered by sequence.
	ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error)

	// UpdateConversationStatus transitions a conversation and sets or clears
	// the pending approval pointer (empty pendingResponseID clears it).
	UpdateConversationStatus(ctx context.Context, id string, status entity.Status, pendingResponseID string) error

	// FindAIResponse returns an AI response or a NOT_FOUND error.
	FindAIResponse(ctx context.Context, responseID string) (*entity.AIResponse, error)

	// FindMessageByResponseID returns the AI message linked to a response.
	FindMessageByResponseID(ctx context.Context, responseID string) (*entity.Message, error)

	// ListPendingApprovals returns a tenant's conversations with status
	// pending_approval. Ordering is the caller's concern.
	ListPendingApprovals(ctx context.Context, tenantID string) ([]*PendingApproval, error)

	// UpdateAIResponseStatus sets the review status of an AI response.
	UpdateAIResponseStatus(ctx context.Context, responseID string, status entity.ResponseStatus) error

	// UpdateMessageBody overwrites a message body (modified decisions).
	UpdateMessageBody(ctx context.Context, messageID string, body string) error

	// AppendApprovalRecord writes one audit entry. Append-only.
	AppendApprovalRecord(ctx context.Context, record *entity.ApprovalRecord) error
}
