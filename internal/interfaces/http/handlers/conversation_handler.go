package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/application/usecase"
	"github.com/careloop/careloop/internal/domain/entity"
)

// ConversationHandler exposes the conversation lifecycle endpoints.
type ConversationHandler struct {
	conversations *usecase.ConversationUsecase
	logger        *zap.Logger
}

// NewConversationHandler creates the handler.
func NewConversationHandler(conversations *usecase.ConversationUsecase, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		logger:        logger,
	}
}

// StartConversationRequest is the POST /conversations payload.
type StartConversationRequest struct {
	TenantID   string `json:"tenant_id" binding:"required"`
	CustomerID string `json:"customer_id"`
	Channel    string `json:"channel"`
	Priority   string `json:"priority"`
	Message    struct {
		Body        string              `json:"body" binding:"required"`
		Attachments []entity.Attachment `json:"attachments"`
	} `json:"message" binding:"required"`
	Metadata map[string]interface{} `json:"metadata"`
}

// MessageResource is the wire form of a message.
type MessageResource struct {
	ID             string              `json:"id"`
	ConversationID string              `json:"conversation_id"`
	SenderType     string              `json:"sender_type"`
	Body           string              `json:"body"`
	Sequence       int                 `json:"sequence"`
	CreatedAt      time.Time           `json:"created_at"`
	Attachments    []entity.Attachment `json:"attachments,omitempty"`
	SenderID       string              `json:"sender_id,omitempty"`
	AIResponseID   string              `json:"ai_response_id,omitempty"`
}

// ConversationResource is the wire form of a conversation.
type ConversationResource struct {
	ID                        string                 `json:"id"`
	TenantID                  string                 `json:"tenant_id"`
	CustomerID                string                 `json:"customer_id,omitempty"`
	Status                    string                 `json:"status"`
	Channel                   string                 `json:"channel"`
	Priority                  string                 `json:"priority"`
	StartedAt                 time.Time              `json:"started_at"`
	LastActivityAt            time.Time              `json:"last_activity_at"`
	PendingApprovalResponseID string                 `json:"pending_approval_response_id,omitempty"`
	EndedAt                   *time.Time             `json:"ended_at,omitempty"`
	Metadata                  map[string]interface{} `json:"metadata,omitempty"`
}

// ConversationResponse is the full conversation payload.
type ConversationResponse struct {
	Conversation    ConversationResource `json:"conversation"`
	Messages        []MessageResource    `json:"messages"`
	PendingApproval bool                 `json:"pending_approval"`
}

// StartConversation handles POST /api/v1/conversations.
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "INVALID_INPUT", "message": err.Error()},
		})
		return
	}

	view, err := h.conversations.Start(c.Request.Context(), usecase.StartConversationInput{
		TenantID:    req.TenantID,
		CustomerID:  req.CustomerID,
		Channel:     req.Channel,
		Priority:    req.Priority,
		MessageBody: req.Message.Body,
		Attachments: req.Message.Attachments,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.logger.Error("Failed to start conversation", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toConversationResponse(view))
}

// GetConversation handles GET /api/v1/conversations/:id.
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	view, err := h.conversations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toConversationResponse(view))
}

func toConversationResponse(view *usecase.ConversationView) ConversationResponse {
	messages := make([]MessageResource, 0, len(view.Messages))
	for _, m := range view.Messages {
		messages = append(messages, MessageResource{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderType:     string(m.Sender),
			Body:           m.Body,
			Sequence:       m.Sequence,
			CreatedAt:      m.CreatedAt,
			Attachments:    m.Attachments,
			SenderID:       m.SenderID,
			AIResponseID:   m.AIResponseID,
		})
	}

	conv := view.Conversation
	return ConversationResponse{
		Conversation: ConversationResource{
			ID:                        conv.ID,
			TenantID:                  conv.TenantID,
			CustomerID:                conv.CustomerID,
			Status:                    string(conv.Status),
			Channel:                   conv.Channel,
			Priority:                  string(conv.Priority),
			StartedAt:                 conv.StartedAt,
			LastActivityAt:            conv.LastActivityAt,
			PendingApprovalResponseID: conv.PendingApprovalResponseID,
			EndedAt:                   conv.EndedAt,
			Metadata:                  conv.Metadata,
		},
		Messages:        messages,
		PendingApproval: view.PendingApproval,
	}
}
