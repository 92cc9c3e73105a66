package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/repository"
	"github.com/careloop/careloop/internal/infrastructure/persistence/models"
	domainErrors "github.com/careloop/careloop/pkg/errors"
)

// GormConversationRepository is the database-backed implementation of
// repository.ConversationRepository. Per-conversation write atomicity comes
// from wrapping each logical write in a transaction that takes a row lock on
// the conversation.
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository creates a GORM-backed repository.
func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

var _ repository.ConversationRepository = (*GormConversationRepository)(nil)

// CreateConversation persists a conversation with its first message.
func (r *GormConversationRepository) CreateConversation(ctx context.Context, conversation *entity.Conversation, firstMessage *entity.Message) (*entity.Conversation, []*entity.Message, error) {
	convModel, err := toConversationModel(conversation)
	if err != nil {
		return nil, nil, err
	}

	msg := *firstMessage
	msg.Sequence = 1
	msgModel, err := toMessageModel(&msg)
	if err != nil {
		return nil, nil, err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(convModel).Error; err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to create conversation", err)
		}
		if err := tx.Create(msgModel).Error; err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to create first message", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	conv, err := toConversationEntity(convModel)
	if err != nil {
		return nil, nil, err
	}
	created, err := toMessageEntity(msgModel)
	if err != nil {
		return nil, nil, err
	}
	return conv, []*entity.Message{created}, nil
}

// AddMessage appends a message under the conversation row lock, assigning
// the next sequence number. The optional AI response is stored in the same
// transaction.
func (r *GormConversationRepository) AddMessage(ctx context.Context, message *entity.Message, response *entity.AIResponse) (*entity.Message, error) {
	msg := *message
	if response != nil {
		msg.AIResponseID = response.ID
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conv models.ConversationModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&conv, "id = ?", msg.ConversationID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainErrors.NewNotFoundError("conversation not found")
			}
			return domainErrors.NewInternalErrorWithCause("failed to lock conversation", err)
		}

		var count int64
		if err := tx.Model(&models.MessageModel{}).
			Where("conversation_id = ?", msg.ConversationID).
			Count(&count).Error; err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to count messages", err)
		}
		msg.Sequence = int(count) + 1

		msgModel, err := toMessageModel(&msg)
		if err != nil {
			return err
		}
		if err := tx.Create(msgModel).Error; err != nil {
			return domainErrors.NewInternalErrorWithCause("failed to create message", err)
		}

		if response != nil {
			respModel, err := toAIResponseModel(response)
			if err != nil {
				return err
			}
			if err := tx.Create(respModel).Error; err != nil {
				return domainErrors.NewInternalErrorWithCause("failed to create AI response", err)
			}
		}

		return tx.Model(&models.ConversationModel{}).
			Where("id = ?", msg.ConversationID).
			Update("last_activity_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}

	saved := msg
	return &saved, nil
}

// GetConversation returns a conversation or NOT_FOUND.
func (r *GormConversationRepository) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	var model models.ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("conversation not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find conversation", err)
	}
	return toConversationEntity(&model)
}

// ListMessages returns a conversation's messages ordered by sequence.
func (r *GormConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	var rows []models.MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence asc").
		Find(&rows).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list messages", err)
	}

	messages := make([]*entity.Message, 0, len(rows))
	for i := range rows {
		msg, err := toMessageEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// UpdateConversationStatus transitions a conversation and sets or clears the
// pending approval pointer.
func (r *GormConversationRepository) UpdateConversationStatus(ctx context.Context, id string, status entity.Status, pendingResponseID string) error {
	result := r.db.WithContext(ctx).Model(&models.ConversationModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                       string(status),
			"pending_approval_response_id": pendingResponseID,
			"last_activity_at":             time.Now().UTC(),
		})
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to update conversation status", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("conversation not found")
	}
	return nil
}

// FindAIResponse returns an AI response or NOT_FOUND.
func (r *GormConversationRepository) FindAIResponse(ctx context.Context, responseID string) (*entity.AIResponse, error) {
	var model models.AIResponseModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", responseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("AI response not found")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find AI response", err)
	}
	return toAIResponseEntity(&model)
}

// FindMessageByResponseID returns the AI message linked to a response.
func (r *GormConversationRepository) FindMessageByResponseID(ctx context.Context, responseID string) (*entity.Message, error) {
	var model models.MessageModel
	if err := r.db.WithContext(ctx).First(&model, "ai_response_id = ?", responseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainErrors.NewNotFoundError("message not found for AI response")
		}
		return nil, domainErrors.NewInternalErrorWithCause("failed to find message", err)
	}
	return toMessageEntity(&model)
}

// ListPendingApprovals returns a tenant's pending_approval conversations
// with review context.
func (r *GormConversationRepository) ListPendingApprovals(ctx context.Context, tenantID string) ([]*repository.PendingApproval, error) {
	var convs []models.ConversationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ? AND pending_approval_response_id <> ''",
			tenantID, string(entity.StatusPendingApproval)).
		Find(&convs).Error
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to list pending conversations", err)
	}

	out := make([]*repository.PendingApproval, 0, len(convs))
	for i := range convs {
		conv, err := toConversationEntity(&convs[i])
		if err != nil {
			return nil, err
		}

		resp, err := r.FindAIResponse(ctx, conv.PendingApprovalResponseID)
		if err != nil {
			if domainErrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		proposed, err := r.FindMessageByResponseID(ctx, resp.ID)
		if err != nil {
			if domainErrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		var lastCustomerRow models.MessageModel
		err = r.db.WithContext(ctx).
			Where("conversation_id = ? AND sender_type = ?", conv.ID, string(entity.SenderCustomer)).
			Order("sequence desc").
			First(&lastCustomerRow).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, domainErrors.NewInternalErrorWithCause("failed to find customer message", err)
		}
		lastCustomer, err := toMessageEntity(&lastCustomerRow)
		if err != nil {
			return nil, err
		}

		out = append(out, &repository.PendingApproval{
			Conversation:        conv,
			Response:            resp,
			LastCustomerMessage: lastCustomer,
			ProposedMessage:     proposed,
		})
	}
	return out, nil
}

// UpdateAIResponseStatus sets the review status of an AI response.
func (r *GormConversationRepository) UpdateAIResponseStatus(ctx context.Context, responseID string, status entity.ResponseStatus) error {
	result := r.db.WithContext(ctx).Model(&models.AIResponseModel{}).
		Where("id = ?", responseID).
		Update("status", string(status))
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to update AI response status", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("AI response not found")
	}
	return nil
}

// UpdateMessageBody overwrites a message body.
func (r *GormConversationRepository) UpdateMessageBody(ctx context.Context, messageID string, body string) error {
	result := r.db.WithContext(ctx).Model(&models.MessageModel{}).
		Where("id = ?", messageID).
		Update("body", body)
	if result.Error != nil {
		return domainErrors.NewInternalErrorWithCause("failed to update message body", result.Error)
	}
	if result.RowsAffected == 0 {
		return domainErrors.NewNotFoundError("message not found")
	}
	return nil
}

// AppendApprovalRecord writes one audit entry.
func (r *GormConversationRepository) AppendApprovalRecord(ctx context.Context, record *entity.ApprovalRecord) error {
	model := toApprovalRecordModel(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return domainErrors.NewInternalErrorWithCause("failed to append approval record", err)
	}
	return nil
}

// --- converters ---

func toConversationModel(c *entity.Conversation) (*models.ConversationModel, error) {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to marshal metadata", err)
	}
	return &models.ConversationModel{
		ID:                        c.ID,
		TenantID:                  c.TenantID,
		CustomerID:                c.CustomerID,
		Status:                    string(c.Status),
		Channel:                   c.Channel,
		Priority:                  string(c.Priority),
		StartedAt:                 c.StartedAt,
		LastActivityAt:            c.LastActivityAt,
		PendingApprovalResponseID: c.PendingApprovalResponseID,
		EndedAt:                   c.EndedAt,
		Metadata:                  string(metadata),
	}, nil
}

func toConversationEntity(m *models.ConversationModel) (*entity.Conversation, error) {
	metadata := make(map[string]interface{})
	if m.Metadata != "" {
		if err := json.Unmarshal([]byte(m.Metadata), &metadata); err != nil {
			metadata = make(map[string]interface{})
		}
	}
	return &entity.Conversation{
		ID:                        m.ID,
		TenantID:                  m.TenantID,
		CustomerID:                m.CustomerID,
		Status:                    entity.Status(m.Status),
		Channel:                   m.Channel,
		Priority:                  entity.Priority(m.Priority),
		StartedAt:                 m.StartedAt,
		LastActivityAt:            m.LastActivityAt,
		PendingApprovalResponseID: m.PendingApprovalResponseID,
		EndedAt:                   m.EndedAt,
		Metadata:                  metadata,
	}, nil
}

func toMessageModel(m *entity.Message) (*models.MessageModel, error) {
	attachments, err := json.Marshal(m.Attachments)
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to marshal attachments", err)
	}
	return &models.MessageModel{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderType:     string(m.Sender),
		Body:           m.Body,
		Sequence:       m.Sequence,
		CreatedAt:      m.CreatedAt,
		Attachments:    string(attachments),
		SenderID:       m.SenderID,
		AIResponseID:   m.AIResponseID,
	}, nil
}

func toMessageEntity(m *models.MessageModel) (*entity.Message, error) {
	var attachments []entity.Attachment
	if m.Attachments != "" {
		if err := json.Unmarshal([]byte(m.Attachments), &attachments); err != nil {
			attachments = nil
		}
	}
	return &entity.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         entity.SenderType(m.SenderType),
		Body:           m.Body,
		Sequence:       m.Sequence,
		CreatedAt:      m.CreatedAt,
		Attachments:    attachments,
		SenderID:       m.SenderID,
		AIResponseID:   m.AIResponseID,
	}, nil
}

func toAIResponseModel(r *entity.AIResponse) (*models.AIResponseModel, error) {
	sources, err := json.Marshal(r.KnowledgeSources)
	if err != nil {
		return nil, domainErrors.NewInternalErrorWithCause("failed to marshal knowledge sources", err)
	}
	return &models.AIResponseModel{
		ID:               r.ID,
		ConversationID:   r.ConversationID,
		MessageID:        r.MessageID,
		Provider:         r.Provider,
		Model:            r.Model,
		Confidence:       r.Confidence,
		RequiresApproval: r.RequiresApproval,
		Status:           string(r.Status),
		KnowledgeSources: string(sources),
		PromptTokens:     r.Usage.PromptTokens,
		CompletionTokens: r.Usage.CompletionTokens,
		TotalTokens:      r.Usage.TotalTokens,
		LatencyMs:        r.Latency.Milliseconds(),
		ErrorReason:      r.ErrorReason,
		GeneratedAt:      r.GeneratedAt,
	}, nil
}

func toAIResponseEntity(m *models.AIResponseModel) (*entity.AIResponse, error) {
	var sources []entity.KnowledgeSource
	if m.KnowledgeSources != "" {
		if err := json.Unmarshal([]byte(m.KnowledgeSources), &sources); err != nil {
			sources = nil
		}
	}
	return &entity.AIResponse{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		MessageID:        m.MessageID,
		Provider:         m.Provider,
		Model:            m.Model,
		Confidence:       m.Confidence,
		RequiresApproval: m.RequiresApproval,
		Status:           entity.ResponseStatus(m.Status),
		KnowledgeSources: sources,
		Usage: entity.TokenUsage{
			PromptTokens:     m.PromptTokens,
			CompletionTokens: m.CompletionTokens,
			TotalTokens:      m.TotalTokens,
		},
		Latency:     time.Duration(m.LatencyMs) * time.Millisecond,
		ErrorReason: m.ErrorReason,
		GeneratedAt: m.GeneratedAt,
	}, nil
}

func toApprovalRecordModel(r *entity.ApprovalRecord) *models.ApprovalRecordModel {
	return &models.ApprovalRecordModel{
		ID:            r.ID,
		AIResponseID:  r.AIResponseID,
		AgentID:       r.AgentID,
		Action:        string(r.Action),
		SubmittedText: r.SubmittedText,
		Notes:         r.Notes,
		TurnaroundMs:  r.Turnaround.Milliseconds(),
		DecidedAt:     r.DecidedAt,
	}
}
