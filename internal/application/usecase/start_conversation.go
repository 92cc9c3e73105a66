package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/repository"
	"github.com/careloop/careloop/internal/domain/service"
	"github.com/careloop/careloop/internal/infrastructure/monitoring"
	domainErrors "github.com/careloop/careloop/pkg/errors"
)

// Notifier pushes a review request to agents when a conversation enters
// pending_approval. Implementations must never block or fail the caller.
type Notifier interface {
	NotifyPendingApproval(ctx context.Context, conversation *entity.Conversation, response *entity.AIResponse, customerMessage, draft string)
}

// StartConversationInput is the request to open a conversation.
type StartConversationInput struct {
	TenantID    string
	CustomerID  string
	Channel     string
	Priority    string
	MessageBody string
	Attachments []entity.Attachment
	Metadata    map[string]interface{}
}

// ConversationView is the full conversation payload returned to callers.
type ConversationView struct {
	Conversation    *entity.Conversation
	Messages        []*entity.Message
	PendingApproval bool
}

// ConversationUsecase orchestrates the conversation lifecycle: persist the
// customer turn, generate the AI draft, and gate low-confidence drafts behind
// human review.
type ConversationUsecase struct {
	repo      repository.ConversationRepository
	generator *service.ResponseGenerator
	notifier  Notifier
	monitor   *monitoring.Monitor
	logger    *zap.Logger
	now       func() time.Time
}

// NewConversationUsecase creates the conversation orchestrator. notifier and
// monitor may be nil.
func NewConversationUsecase(repo repository.ConversationRepository, generator *service.ResponseGenerator, notifier Notifier, monitor *monitoring.Monitor, logger *zap.Logger) *ConversationUsecase {
	return &ConversationUsecase{
		repo:      repo,
		generator: generator,
		notifier:  notifier,
		monitor:   monitor,
		logger:    logger.With(zap.String("component", "conversation-usecase")),
		now:       time.Now,
	}
}

// Start opens a conversation with the customer's first message and an AI
// draft: sequence 1 is the customer turn, sequence 2 the AI turn. When the
// draft's confidence falls below the threshold the conversation transitions
// to pending_approval and agents are notified.
func (u *ConversationUsecase) Start(ctx context.Context, input StartConversationInput) (*ConversationView, error) {
	if input.TenantID == "" {
		return nil, domainErrors.NewInvalidInputError("tenant_id is required")
	}
	if input.MessageBody == "" {
		return nil, domainErrors.NewInvalidInputError("message body is required")
	}
	priority := entity.Priority(input.Priority)
	if input.Priority != "" && priority != entity.PriorityStandard && priority != entity.PriorityHigh && priority != entity.PriorityVIP {
		return nil, domainErrors.NewInvalidInputError("unknown priority: " + input.Priority)
	}

	now := u.now().UTC()

	conversation, err := entity.NewConversation(uuid.NewString(), input.TenantID, input.CustomerID, input.Channel, priority, now)
	if err != nil {
		return nil, domainErrors.NewInvalidInputError(err.Error())
	}
	if input.Metadata != nil {
		conversation.Metadata = input.Metadata
	}

	firstMessage, err := entity.NewMessage(uuid.NewString(), conversation.ID, entity.SenderCustomer, input.MessageBody, now)
	if err != nil {
		return nil, domainErrors.NewInvalidInputError(err.Error())
	}
	firstMessage.Attachments = input.Attachments

	conversation, messages, err := u.repo.CreateConversation(ctx, conversation, firstMessage)
	if err != nil {
		return nil, err
	}
	if u.monitor != nil {
		u.monitor.IncConversationStarted()
		u.monitor.IncMessage()
	}

	// Generation failure must not block delivery of the customer turn; the
	// generator already degrades to the static fallback on provider failure,
	// so an error here means something deeper (a persistence-grade fault).
	draft, err := u.generator.Generate(ctx, conversation.ID, conversation.TenantID, input.MessageBody, messages)
	if err != nil {
		u.logger.Error("AI draft generation failed",
			zap.String("conversation_id", conversation.ID),
			zap.Error(err),
		)
		return &ConversationView{Conversation: conversation, Messages: messages}, nil
	}
	if u.monitor != nil {
		u.monitor.IncGeneration()
		u.monitor.AddTokensUsed(draft.Usage.TotalTokens)
		u.monitor.RecordGenerationLatency(draft.Latency)
		if draft.Provider == service.ProviderFallback {
			u.monitor.IncGenerationFallback()
		}
	}

	aiMessage, response, err := u.persistDraft(ctx, conversation, draft)
	if err != nil {
		return nil, err
	}
	messages = append(messages, aiMessage)

	if draft.RequiresApproval {
		if err := u.repo.UpdateConversationStatus(ctx, conversation.ID, entity.StatusPendingApproval, response.ID); err != nil {
			return nil, err
		}
		conversation.Status = entity.StatusPendingApproval
		conversation.PendingApprovalResponseID = response.ID
		if u.monitor != nil {
			u.monitor.IncGenerationGated()
		}
		if u.notifier != nil {
			u.notifier.NotifyPendingApproval(ctx, conversation, response, input.MessageBody, draft.Body)
		}
	}

	return &ConversationView{
		Conversation:    conversation,
		Messages:        messages,
		PendingApproval: draft.RequiresApproval,
	}, nil
}

// persistDraft stores the AI turn and its response metadata atomically.
func (u *ConversationUsecase) persistDraft(ctx context.Context, conversation *entity.Conversation, draft *service.GeneratedResponse) (*entity.Message, *entity.AIResponse, error) {
	now := u.now().UTC()

	aiMessage, err := entity.NewMessage(uuid.NewString(), conversation.ID, entity.SenderAI, draft.Body, now)
	if err != nil {
		return nil, nil, domainErrors.NewInternalErrorWithCause("invalid AI draft", err)
	}

	status := entity.ResponseApproved // auto-sent, no review needed
	if draft.RequiresApproval {
		status = entity.ResponsePending
	}

	response := &entity.AIResponse{
		ID:               draft.ResponseID,
		ConversationID:   conversation.ID,
		MessageID:        aiMessage.ID,
		Provider:         draft.Provider,
		Model:            draft.Model,
		Confidence:       draft.Confidence,
		RequiresApproval: draft.RequiresApproval,
		Status:           status,
		KnowledgeSources: draft.KnowledgeSources,
		Usage:            draft.Usage,
		Latency:          draft.Latency,
		GeneratedAt:      now,
	}

	saved, err := u.repo.AddMessage(ctx, aiMessage, response)
	if err != nil {
		return nil, nil, err
	}
	if u.monitor != nil {
		u.monitor.IncMessage()
	}
	return saved, response, nil
}

// Get returns the full conversation view. PendingApproval is derived from
// the conversation's pending pointer.
func (u *ConversationUsecase) Get(ctx context.Context, conversationID string) (*ConversationView, error) {
	if conversationID == "" {
		return nil, domainErrors.NewInvalidInputError("conversation id is required")
	}

	conversation, err := u.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := u.repo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	return &ConversationView{
		Conversation:    conversation,
		Messages:        messages,
		PendingApproval: conversation.PendingApprovalResponseID != "",
	}, nil
}
