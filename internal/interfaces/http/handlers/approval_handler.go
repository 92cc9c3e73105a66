package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/application/usecase"
	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/repository"
)

// ApprovalHandler exposes the human review endpoints.
type ApprovalHandler struct {
	approvals *usecase.ApprovalUsecase
	logger    *zap.Logger
}

// NewApprovalHandler creates the handler.
func NewApprovalHandler(approvals *usecase.ApprovalUsecase, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		approvals: approvals,
		logger:    logger,
	}
}

// PendingApprovalResource is one entry in the review queue.
type PendingApprovalResource struct {
	ConversationID  string                   `json:"conversation_id"`
	TenantID        string                   `json:"tenant_id"`
	Priority        string                   `json:"priority"`
	Channel         string                   `json:"channel"`
	ResponseID      string                   `json:"response_id"`
	Confidence      float64                  `json:"confidence"`
	Provider        string                   `json:"provider"`
	Model           string                   `json:"model"`
	GeneratedAt     time.Time                `json:"generated_at"`
	CustomerMessage string                   `json:"customer_message"`
	ProposedReply   string                   `json:"proposed_reply"`
	Sources         []entity.KnowledgeSource `json:"knowledge_sources,omitempty"`
}

// ListPending handles GET /api/v1/approvals/pending?tenant=.
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	tenantID := c.Query("tenant")

	pending, err := h.approvals.ListPending(c.Request.Context(), tenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	resources := make([]PendingApprovalResource, 0, len(pending))
	for _, p := range pending {
		resources = append(resources, toPendingResource(p))
	}

	c.JSON(http.StatusOK, gin.H{
		"pending": resources,
		"count":   len(resources),
	})
}

// DecideRequest is the POST /approvals/:responseID/approve payload.
type DecideRequest struct {
	Action        string `json:"action" binding:"required"`
	AgentID       string `json:"agent_id" binding:"required"`
	SubmittedText string `json:"submitted_text"`
	Notes         string `json:"notes"`
}

// Decide handles POST /api/v1/approvals/:responseID/approve.
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "INVALID_INPUT", "message": err.Error()},
		})
		return
	}

	result, err := h.approvals.Decide(c.Request.Context(), usecase.DecideInput{
		ResponseID:    c.Param("responseID"),
		AgentID:       req.AgentID,
		Action:        req.Action,
		SubmittedText: req.SubmittedText,
		Notes:         req.Notes,
	})
	if err != nil {
		h.logger.Warn("Approval decision failed",
			zap.String("response_id", c.Param("responseID")),
			zap.Error(err),
		)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func toPendingResource(p *repository.PendingApproval) PendingApprovalResource {
	resource := PendingApprovalResource{
		ConversationID: p.Conversation.ID,
		TenantID:       p.Conversation.TenantID,
		Priority:       string(p.Conversation.Priority),
		Channel:        p.Conversation.Channel,
		ResponseID:     p.Response.ID,
		Confidence:     p.Response.Confidence,
		Provider:       p.Response.Provider,
		Model:          p.Response.Model,
		GeneratedAt:    p.Response.GeneratedAt,
		Sources:        p.Response.KnowledgeSources,
	}
	if p.LastCustomerMessage != nil {
		resource.CustomerMessage = p.LastCustomerMessage.Body
	}
	if p.ProposedMessage != nil {
		resource.ProposedReply = p.ProposedMessage.Body
	}
	return resource
}
