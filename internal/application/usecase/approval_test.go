package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/infrastructure/persistence"
	domainErrors "github.com/careloop/careloop/pkg/errors"
)

// seedPending creates a pending_approval conversation with one customer turn
// and one gated AI draft, returning the draft's response.
func seedPending(t *testing.T, repo *persistence.MemoryConversationRepository, tenantID string, priority entity.Priority, generatedAt time.Time) *entity.AIResponse {
	t.Helper()
	ctx := context.Background()

	conv, err := entity.NewConversation(uuid.NewString(), tenantID, "cust-1", "", priority, generatedAt)
	if err != nil {
		t.Fatalf("new conversation: %v", err)
	}
	customerMsg, err := entity.NewMessage(uuid.NewString(), conv.ID, entity.SenderCustomer, "my order is late", generatedAt)
	if err != nil {
		t.Fatalf("new message: %v", err)
	}
	if _, _, err := repo.CreateConversation(ctx, conv, customerMsg); err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	aiMsg, err := entity.NewMessage(uuid.NewString(), conv.ID, entity.SenderAI, "Your order ships tomorrow.", generatedAt)
	if err != nil {
		t.Fatalf("new AI message: %v", err)
	}
	response := &entity.AIResponse{
		ID:               uuid.NewString(),
		ConversationID:   conv.ID,
		MessageID:        aiMsg.ID,
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		Confidence:       0.55,
		RequiresApproval: true,
		Status:           entity.ResponsePending,
		GeneratedAt:      generatedAt,
	}
	if _, err := repo.AddMessage(ctx, aiMsg, response); err != nil {
		t.Fatalf("add message: %v", err)
	}
	if err := repo.UpdateConversationStatus(ctx, conv.ID, entity.StatusPendingApproval, response.ID); err != nil {
		t.Fatalf("update status: %v", err)
	}
	return response
}

func newApprovalTest(t *testing.T) (*ApprovalUsecase, *persistence.MemoryConversationRepository) {
	t.Helper()
	repo := persistence.NewMemoryConversationRepository()
	return NewApprovalUsecase(repo, nil, zap.NewNop()), repo
}

func TestListPending_OrdersByPriorityThenAge(t *testing.T) {
	uc, repo := newApprovalTest(t)
	base := time.Now().UTC().Add(-time.Hour)

	std := seedPending(t, repo, "acme", entity.PriorityStandard, base)
	vipOld := seedPending(t, repo, "acme", entity.PriorityVIP, base.Add(1*time.Minute))
	vipNew := seedPending(t, repo, "acme", entity.PriorityVIP, base.Add(5*time.Minute))
	high := seedPending(t, repo, "acme", entity.PriorityHigh, base.Add(2*time.Minute))

	pending, err := uc.ListPending(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 4 {
		t.Fatalf("expected 4 pending entries, got %d", len(pending))
	}

	want := []string{vipOld.ID, vipNew.ID, high.ID, std.ID}
	for i, id := range want {
		if pending[i].Response.ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, pending[i].Response.ID)
		}
	}
}

func TestListPending_ScopedToTenant(t *testing.T) {
	uc, repo := newApprovalTest(t)
	now := time.Now().UTC()

	seedPending(t, repo, "acme", entity.PriorityStandard, now)
	seedPending(t, repo, "globex", entity.PriorityStandard, now)

	pending, err := uc.ListPending(context.Background(), "acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 entry for acme, got %d", len(pending))
	}
	if pending[0].Conversation.TenantID != "acme" {
		t.Fatalf("wrong tenant: %s", pending[0].Conversation.TenantID)
	}
}

func TestListPending_RequiresTenant(t *testing.T) {
	uc, _ := newApprovalTest(t)
	if _, err := uc.ListPending(context.Background(), ""); !domainErrors.IsInvalidInput(err) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestDecide_Approved(t *testing.T) {
	uc, repo := newApprovalTest(t)
	ctx := context.Background()
	generatedAt := time.Now().UTC().Add(-10 * time.Minute)
	response := seedPending(t, repo, "acme", entity.PriorityStandard, generatedAt)

	result, err := uc.Decide(ctx, DecideInput{
		ResponseID: response.ID,
		AgentID:    "agent-7",
		Action:     "approved",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.Message != "Response approved and sent to customer" {
		t.Fatalf("unexpected result: %+v", result)
	}

	updated, err := repo.FindAIResponse(ctx, response.ID)
	if err != nil {
		t.Fatalf("find response: %v", err)
	}
	if updated.Status != entity.ResponseApproved {
		t.Fatalf("expected approved status, got %s", updated.Status)
	}

	conv, err := repo.GetConversation(ctx, response.ConversationID)
	if err != nil {
		t.Fatalf("get conversation: %v", err)
	}
	if conv.Status != entity.StatusActive || conv.PendingApprovalResponseID != "" {
		t.Fatalf("conversation should be active with the pointer cleared: %+v", conv)
	}

	records := repo.ApprovalRecords()
	if len(records) != 1 {
		t.Fatalf("expected exactly one audit record, got %d", len(records))
	}
	rec := records[0]
	if rec.Action != entity.ActionApproved || rec.AgentID != "agent-7" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.SubmittedText != "Your order ships tomorrow." {
		t.Fatalf("approved record should carry the original body, got %q", rec.SubmittedText)
	}
	if rec.Turnaround <= 0 {
		t.Fatalf("turnaround should be positive, got %v", rec.Turnaround)
	}
}

func TestDecide_ModifiedOverwritesBody(t *testing.T) {
	uc, repo := newApprovalTest(t)
	ctx := context.Background()
	response := seedPending(t, repo, "acme", entity.PriorityStandard, time.Now().UTC())

	result, err := uc.Decide(ctx, DecideInput{
		ResponseID:    response.ID,
		AgentID:       "agent-7",
		Action:        "modified",
		SubmittedText: "Your order ships today, apologies for the delay.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "Response approved and sent to customer" {
		t.Fatalf("unexpected message: %q", result.Message)
	}

	msg, err := repo.FindMessageByResponseID(ctx, response.ID)
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if msg.Body != "Your order ships today, apologies for the delay." {
		t.Fatalf("body not overwritten: %q", msg.Body)
	}

	updated, _ := repo.FindAIResponse(ctx, response.ID)
	if updated.Status != entity.ResponseModified {
		t.Fatalf("expected modified status, got %s", updated.Status)
	}

	records := repo.ApprovalRecords()
	if len(records) != 1 || records[0].SubmittedText != msg.Body {
		t.Fatalf("audit record should carry the final text: %+v", records)
	}

	conv, _ := repo.GetConversation(ctx, response.ConversationID)
	if conv.Status != entity.StatusActive || conv.PendingApprovalResponseID != "" {
		t.Fatalf("modified should resume the conversation: %+v", conv)
	}
}

func TestDecide_RejectedEscalates(t *testing.T) {
	uc, repo := newApprovalTest(t)
	ctx := context.Background()
	response := seedPending(t, repo, "acme", entity.PriorityStandard, time.Now().UTC())

	result, err := uc.Decide(ctx, DecideInput{
		ResponseID: response.ID,
		AgentID:    "agent-7",
		Action:     "rejected",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Message != "Response rejected, conversation escalated to agent" {
		t.Fatalf("unexpected message: %q", result.Message)
	}

	conv, _ := repo.GetConversation(ctx, response.ConversationID)
	if conv.Status != entity.StatusAwaitingAgent {
		t.Fatalf("expected awaiting_agent, got %s", conv.Status)
	}
	if conv.PendingApprovalResponseID != "" {
		t.Fatal("rejection should clear the pending pointer")
	}

	// The draft body stays untouched; it was never sent.
	msg, _ := repo.FindMessageByResponseID(ctx, response.ID)
	if msg.Body != "Your order ships tomorrow." {
		t.Fatalf("rejected draft body must not change: %q", msg.Body)
	}
}

func TestDecide_InvalidAction(t *testing.T) {
	uc, repo := newApprovalTest(t)
	response := seedPending(t, repo, "acme", entity.PriorityStandard, time.Now().UTC())

	_, err := uc.Decide(context.Background(), DecideInput{
		ResponseID: response.ID,
		AgentID:    "agent-7",
		Action:     "escalate",
	})
	if !domainErrors.IsInvalidInput(err) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if len(repo.ApprovalRecords()) != 0 {
		t.Fatal("invalid action must not write an audit record")
	}
}

func TestDecide_UnknownResponse(t *testing.T) {
	uc, repo := newApprovalTest(t)

	_, err := uc.Decide(context.Background(), DecideInput{
		ResponseID: "missing",
		AgentID:    "agent-7",
		Action:     "approved",
	})
	if !domainErrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if len(repo.ApprovalRecords()) != 0 {
		t.Fatal("unknown response must not write an audit record")
	}
}

func TestDecide_RepeatIsConflict(t *testing.T) {
	uc, repo := newApprovalTest(t)
	ctx := context.Background()
	response := seedPending(t, repo, "acme", entity.PriorityStandard, time.Now().UTC())

	if _, err := uc.Decide(ctx, DecideInput{ResponseID: response.ID, AgentID: "agent-7", Action: "approved"}); err != nil {
		t.Fatalf("first decision failed: %v", err)
	}

	_, err := uc.Decide(ctx, DecideInput{ResponseID: response.ID, AgentID: "agent-8", Action: "rejected"})
	if !domainErrors.IsConflict(err) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if len(repo.ApprovalRecords()) != 1 {
		t.Fatalf("repeat decisions must not add audit records, got %d", len(repo.ApprovalRecords()))
	}
}
