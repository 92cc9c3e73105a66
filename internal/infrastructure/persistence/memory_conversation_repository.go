package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/repository"
	"github.com/careloop/careloop/pkg/errors"
)

// MemoryConversationRepository is the in-memory reference implementation of
// repository.ConversationRepository, used for development and tests.
//
// A single process-wide lock guards the maps, which trivially satisfies the
// per-conversation write-atomicity requirement: a message insert and its
// status update cannot interleave with a concurrent writer.
type MemoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message // conversation ID → ordered messages
	responses     map[string]*entity.AIResponse
	responseMsg   map[string]string // AI response ID → message ID
	messageByID   map[string]*entity.Message
	approvals     []*entity.ApprovalRecord
}

// NewMemoryConversationRepository creates an empty in-memory repository.
func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
		responses:     make(map[string]*entity.AIResponse),
		responseMsg:   make(map[string]string),
		messageByID:   make(map[string]*entity.Message),
	}
}

var _ repository.ConversationRepository = (*MemoryConversationRepository)(nil)

// CreateConversation persists a conversation with its first message.
func (r *MemoryConversationRepository) CreateConversation(ctx context.Context, conversation *entity.Conversation, firstMessage *entity.Message) (*entity.Conversation, []*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conversation.ID]; exists {
		return nil, nil, errors.NewConflictError("conversation already exists")
	}

	conv := cloneConversation(conversation)
	msg := cloneMessage(firstMessage)
	msg.Sequence = 1

	r.conversations[conv.ID] = conv
	r.messages[conv.ID] = []*entity.Message{msg}
	r.messageByID[msg.ID] = msg

	return cloneConversation(conv), []*entity.Message{cloneMessage(msg)}, nil
}

// AddMessage appends a message, assigning the next sequence number. The
// optional AI response is stored atomically with the message.
func (r *MemoryConversationRepository) AddMessage(ctx context.Context, message *entity.Message, response *entity.AIResponse) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[message.ConversationID]; !ok {
		return nil, errors.NewNotFoundError("conversation not found")
	}

	msg := cloneMessage(message)
	msg.Sequence = len(r.messages[message.ConversationID]) + 1

	if response != nil {
		resp := cloneResponse(response)
		msg.AIResponseID = resp.ID
		r.responses[resp.ID] = resp
		r.responseMsg[resp.ID] = msg.ID
	}

	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], msg)
	r.messageByID[msg.ID] = msg
	r.conversations[message.ConversationID].LastActivityAt = msg.CreatedAt

	return cloneMessage(msg), nil
}

// GetConversation returns a conversation or NOT_FOUND.
func (r *MemoryConversationRepository) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, errors.NewNotFoundError("conversation not found")
	}
	return cloneConversation(conv), nil
}

// ListMessages returns a conversation's messages ordered by sequence.
func (r *MemoryConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := r.messages[conversationID]
	out := make([]*entity.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

// UpdateConversationStatus transitions a conversation and sets or clears the
// pending approval pointer.
func (r *MemoryConversationRepository) UpdateConversationStatus(ctx context.Context, id string, status entity.Status, pendingResponseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return errors.NewNotFoundError("conversation not found")
	}
	conv.Status = status
	conv.PendingApprovalResponseID = pendingResponseID
	conv.LastActivityAt = time.Now().UTC()
	return nil
}

// FindAIResponse returns an AI response or NOT_FOUND.
func (r *MemoryConversationRepository) FindAIResponse(ctx context.Context, responseID string) (*entity.AIResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resp, ok := r.responses[responseID]
	if !ok {
		return nil, errors.NewNotFoundError("AI response not found")
	}
	return cloneResponse(resp), nil
}

// FindMessageByResponseID returns the AI message linked to a response.
func (r *MemoryConversationRepository) FindMessageByResponseID(ctx context.Context, responseID string) (*entity.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msgID, ok := r.responseMsg[responseID]
	if !ok {
		return nil, errors.NewNotFoundError("message not found for AI response")
	}
	msg, ok := r.messageByID[msgID]
	if !ok {
		return nil, errors.NewNotFoundError("message not found for AI response")
	}
	return cloneMessage(msg), nil
}

// ListPendingApprovals returns a tenant's pending_approval conversations
// with review context. Ordering is the caller's concern.
func (r *MemoryConversationRepository) ListPendingApprovals(ctx context.Context, tenantID string) ([]*repository.PendingApproval, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*repository.PendingApproval
	for _, conv := range r.conversations {
		if conv.TenantID != tenantID || conv.Status != entity.StatusPendingApproval {
			continue
		}
		resp, ok := r.responses[conv.PendingApprovalResponseID]
		if !ok {
			continue
		}

		var lastCustomer, proposed *entity.Message
		for _, m := range r.messages[conv.ID] {
			switch {
			case m.IsFromCustomer():
				lastCustomer = m
			case m.IsFromAI() && m.AIResponseID == resp.ID:
				proposed = m
			}
		}
		if lastCustomer == nil || proposed == nil {
			continue
		}

		out = append(out, &repository.PendingApproval{
			Conversation:        cloneConversation(conv),
			Response:            cloneResponse(resp),
			LastCustomerMessage: cloneMessage(lastCustomer),
			ProposedMessage:     cloneMessage(proposed),
		})
	}
	return out, nil
}

// UpdateAIResponseStatus sets the review status of an AI response.
func (r *MemoryConversationRepository) UpdateAIResponseStatus(ctx context.Context, responseID string, status entity.ResponseStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp, ok := r.responses[responseID]
	if !ok {
		return errors.NewNotFoundError("AI response not found")
	}
	resp.Status = status
	return nil
}

// UpdateMessageBody overwrites a message body.
func (r *MemoryConversationRepository) UpdateMessageBody(ctx context.Context, messageID string, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messageByID[messageID]
	if !ok {
		return errors.NewNotFoundError("message not found")
	}
	msg.Body = body
	return nil
}

// AppendApprovalRecord writes one audit entry.
func (r *MemoryConversationRepository) AppendApprovalRecord(ctx context.Context, record *entity.ApprovalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *record
	r.approvals = append(r.approvals, &copied)
	return nil
}

// ApprovalRecords returns a copy of the audit log (test hook).
func (r *MemoryConversationRepository) ApprovalRecords() []*entity.ApprovalRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.ApprovalRecord, 0, len(r.approvals))
	for _, rec := range r.approvals {
		copied := *rec
		out = append(out, &copied)
	}
	return out
}

// --- clone helpers: callers never share memory with the store ---

func cloneConversation(c *entity.Conversation) *entity.Conversation {
	copied := *c
	if c.Metadata != nil {
		copied.Metadata = make(map[string]interface{}, len(c.Metadata))
		for k, v := range c.Metadata {
			copied.Metadata[k] = v
		}
	}
	if c.EndedAt != nil {
		t := *c.EndedAt
		copied.EndedAt = &t
	}
	return &copied
}

func cloneMessage(m *entity.Message) *entity.Message {
	copied := *m
	if m.Attachments != nil {
		copied.Attachments = append([]entity.Attachment(nil), m.Attachments...)
	}
	return &copied
}

func cloneResponse(r *entity.AIResponse) *entity.AIResponse {
	copied := *r
	if r.KnowledgeSources != nil {
		copied.KnowledgeSources = append([]entity.KnowledgeSource(nil), r.KnowledgeSources...)
	}
	return &copied
}
