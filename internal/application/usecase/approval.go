package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/repository"
	"github.com/careloop/careloop/internal/infrastructure/monitoring"
	domainErrors "github.com/careloop/careloop/pkg/errors"
)

// DecideInput is an agent's decision on a pending AI response.
type DecideInput struct {
	ResponseID    string
	AgentID       string
	Action        string // approved, modified, rejected
	SubmittedText string // required meaning only for modified
	Notes         string
}

// DecideResult is the confirmation payload returned to the agent.
type DecideResult struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ApprovalUsecase implements the human review workflow over pending AI
// responses.
type ApprovalUsecase struct {
	repo    repository.ConversationRepository
	monitor *monitoring.Monitor
	logger  *zap.Logger
	now     func() time.Time
}

// NewApprovalUsecase creates the approval workflow. monitor may be nil.
func NewApprovalUsecase(repo repository.ConversationRepository, monitor *monitoring.Monitor, logger *zap.Logger) *ApprovalUsecase {
	return &ApprovalUsecase{
		repo:    repo,
		monitor: monitor,
		logger:  logger.With(zap.String("component", "approval-usecase")),
		now:     time.Now,
	}
}

// ListPending returns a tenant's review queue ordered by priority
// (vip > high > standard) and, within a priority, by how long the response
// has been waiting (oldest first). The sort is stable.
func (u *ApprovalUsecase) ListPending(ctx context.Context, tenantID string) ([]*repository.PendingApproval, error) {
	if tenantID == "" {
		return nil, domainErrors.NewInvalidInputError("tenant id is required")
	}

	pending, err := u.repo.ListPendingApprovals(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pending, func(i, j int) bool {
		ri, rj := pending[i].Conversation.Priority.Rank(), pending[j].Conversation.Priority.Rank()
		if ri != rj {
			return ri > rj
		}
		return pending[i].Response.GeneratedAt.Before(pending[j].Response.GeneratedAt)
	})

	if u.monitor != nil {
		u.monitor.SetPendingApprovals(int64(len(pending)))
	}
	return pending, nil
}

// Decide records an agent's decision: exactly one audit entry, the response
// status transition, the optional body overwrite, and the conversation
// transition. A response that already carries a decision yields CONFLICT.
func (u *ApprovalUsecase) Decide(ctx context.Context, input DecideInput) (*DecideResult, error) {
	action, err := entity.ParseApprovalAction(input.Action)
	if err != nil {
		return nil, domainErrors.NewInvalidInputError("invalid action: " + input.Action)
	}
	if input.ResponseID == "" {
		return nil, domainErrors.NewInvalidInputError("response id is required")
	}

	response, err := u.repo.FindAIResponse(ctx, input.ResponseID)
	if err != nil {
		return nil, err
	}
	if response.Finalized() {
		return nil, domainErrors.NewConflictError("response already decided: " + string(response.Status))
	}

	aiMessage, err := u.repo.FindMessageByResponseID(ctx, input.ResponseID)
	if err != nil {
		return nil, err
	}

	now := u.now().UTC()
	finalText := aiMessage.Body
	if action == entity.ActionModified && input.SubmittedText != "" {
		finalText = input.SubmittedText
	}

	record := &entity.ApprovalRecord{
		ID:            uuid.NewString(),
		AIResponseID:  input.ResponseID,
		AgentID:       input.AgentID,
		Action:        action,
		SubmittedText: finalText,
		Notes:         input.Notes,
		Turnaround:    now.Sub(response.GeneratedAt),
		DecidedAt:     now,
	}
	if err := u.repo.AppendApprovalRecord(ctx, record); err != nil {
		return nil, err
	}

	if err := u.repo.UpdateAIResponseStatus(ctx, input.ResponseID, entity.ResponseStatus(action)); err != nil {
		return nil, err
	}

	if action == entity.ActionModified && input.SubmittedText != "" {
		if err := u.repo.UpdateMessageBody(ctx, aiMessage.ID, finalText); err != nil {
			return nil, err
		}
	}

	var message string
	switch action {
	case entity.ActionApproved, entity.ActionModified:
		if err := u.repo.UpdateConversationStatus(ctx, response.ConversationID, entity.StatusActive, ""); err != nil {
			return nil, err
		}
		message = "Response approved and sent to customer"
	case entity.ActionRejected:
		if err := u.repo.UpdateConversationStatus(ctx, response.ConversationID, entity.StatusAwaitingAgent, ""); err != nil {
			return nil, err
		}
		message = "Response rejected, conversation escalated to agent"
	}

	if u.monitor != nil {
		switch action {
		case entity.ActionApproved:
			u.monitor.IncApprovalApproved()
		case entity.ActionModified:
			u.monitor.IncApprovalModified()
		case entity.ActionRejected:
			u.monitor.IncApprovalRejected()
		}
	}

	u.logger.Info("Processed approval decision",
		zap.String("response_id", input.ResponseID),
		zap.String("action", string(action)),
		zap.String("agent_id", input.AgentID),
		zap.Duration("turnaround", record.Turnaround),
	)

	return &DecideResult{
		Success:        true,
		Message:        message,
		ConversationID: response.ConversationID,
	}, nil
}
