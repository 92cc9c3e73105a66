package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/careloop/careloop/internal/domain/entity"
	"github.com/careloop/careloop/internal/domain/knowledge"
	"github.com/careloop/careloop/internal/domain/service"
	"github.com/careloop/careloop/internal/infrastructure/persistence"
	domainErrors "github.com/careloop/careloop/pkg/errors"
)

type stubRetriever struct {
	results []knowledge.SearchResult
}

func (s *stubRetriever) Search(ctx context.Context, query, tenantID string, limit int, minScore float64) ([]knowledge.SearchResult, error) {
	return s.results, nil
}

type stubLLM struct {
	content string
	err     error
}

func (s *stubLLM) Generate(ctx context.Context, messages []service.ChatMessage, opts service.GenerateOptions) (*service.LLMResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.LLMResult{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Content:  s.content,
		Usage:    &entity.TokenUsage{PromptTokens: 50, CompletionTokens: 20, TotalTokens: 70},
	}, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *recordingNotifier) NotifyPendingApproval(ctx context.Context, conversation *entity.Conversation, response *entity.AIResponse, customerMessage, draft string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
}

func (n *recordingNotifier) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func newConversationTest(t *testing.T, retriever knowledge.Retriever, llm service.LLMClient) (*ConversationUsecase, *persistence.MemoryConversationRepository, *recordingNotifier) {
	t.Helper()
	repo := persistence.NewMemoryConversationRepository()
	generator := service.NewResponseGenerator(retriever, llm, service.DefaultGeneratorConfig(), zap.NewNop())
	notifier := &recordingNotifier{}
	return NewConversationUsecase(repo, generator, notifier, nil, zap.NewNop()), repo, notifier
}

func TestStart_GatedDraft(t *testing.T) {
	// No retrieval context keeps the confidence at 0.50, below the threshold.
	uc, repo, notifier := newConversationTest(t, &stubRetriever{}, &stubLLM{content: "Let me check that for you."})
	ctx := context.Background()

	view, err := uc.Start(ctx, StartConversationInput{
		TenantID:    "acme",
		CustomerID:  "cust-1",
		MessageBody: "Where is my order?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(view.Messages) != 2 {
		t.Fatalf("expected customer + AI turns, got %d messages", len(view.Messages))
	}
	if view.Messages[0].Sequence != 1 || view.Messages[0].Sender != entity.SenderCustomer {
		t.Fatalf("sequence 1 should be the customer turn: %+v", view.Messages[0])
	}
	if view.Messages[1].Sequence != 2 || view.Messages[1].Sender != entity.SenderAI {
		t.Fatalf("sequence 2 should be the AI turn: %+v", view.Messages[1])
	}
	if !view.PendingApproval {
		t.Fatal("a low-confidence draft should be gated")
	}
	if view.Conversation.Status != entity.StatusPendingApproval {
		t.Fatalf("expected pending_approval, got %s", view.Conversation.Status)
	}
	if view.Conversation.PendingApprovalResponseID == "" {
		t.Fatal("pending pointer should be set")
	}
	if notifier.Calls() != 1 {
		t.Fatalf("expected one review notification, got %d", notifier.Calls())
	}

	response, err := repo.FindAIResponse(ctx, view.Conversation.PendingApprovalResponseID)
	if err != nil {
		t.Fatalf("find response: %v", err)
	}
	if response.Status != entity.ResponsePending {
		t.Fatalf("gated draft should be pending, got %s", response.Status)
	}
	if response.MessageID != view.Messages[1].ID {
		t.Fatal("response should point at the AI message")
	}
}

func TestStart_AutoSentDraft(t *testing.T) {
	// Strong retrieval (top 0.9, two results) scores 0.965 and auto-sends.
	retriever := &stubRetriever{results: []knowledge.SearchResult{
		{ItemID: "kb-1", Title: "Orders", Content: "Track at /orders", Score: 0.9},
		{ItemID: "kb-2", Title: "Shipping", Content: "2 days", Score: 0.8},
	}}
	uc, repo, notifier := newConversationTest(t, retriever, &stubLLM{content: "Track your order at /orders."})
	ctx := context.Background()

	view, err := uc.Start(ctx, StartConversationInput{
		TenantID:    "acme",
		MessageBody: "Where is my order?",
		Priority:    "vip",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if view.PendingApproval {
		t.Fatal("high-confidence draft should auto-send")
	}
	if view.Conversation.Status != entity.StatusActive {
		t.Fatalf("conversation should stay active, got %s", view.Conversation.Status)
	}
	if view.Conversation.Priority != entity.PriorityVIP {
		t.Fatalf("priority not carried: %s", view.Conversation.Priority)
	}
	if notifier.Calls() != 0 {
		t.Fatal("auto-sent drafts must not notify reviewers")
	}

	response, err := repo.FindAIResponse(ctx, view.Messages[1].AIResponseID)
	if err != nil {
		t.Fatalf("find response: %v", err)
	}
	if response.Status != entity.ResponseApproved {
		t.Fatalf("auto-sent draft should be approved at creation, got %s", response.Status)
	}
	if len(response.KnowledgeSources) != 2 {
		t.Fatalf("sources not persisted: %d", len(response.KnowledgeSources))
	}
}

func TestStart_GenerationFailureStillDeliversCustomerTurn(t *testing.T) {
	uc, _, notifier := newConversationTest(t, &stubRetriever{}, &stubLLM{err: errors.New("providers down, no fallback")})

	view, err := uc.Start(context.Background(), StartConversationInput{
		TenantID:    "acme",
		MessageBody: "Hello?",
	})
	if err != nil {
		t.Fatalf("generation failure must not fail the request: %v", err)
	}
	if len(view.Messages) != 1 {
		t.Fatalf("expected only the customer turn, got %d messages", len(view.Messages))
	}
	if view.PendingApproval {
		t.Fatal("nothing to approve without a draft")
	}
	if notifier.Calls() != 0 {
		t.Fatal("no draft, no notification")
	}
}

func TestStart_Validation(t *testing.T) {
	uc, _, _ := newConversationTest(t, &stubRetriever{}, &stubLLM{content: "ok"})
	ctx := context.Background()

	cases := []StartConversationInput{
		{MessageBody: "hi"},                                       // missing tenant
		{TenantID: "acme"},                                        // missing body
		{TenantID: "acme", MessageBody: "hi", Priority: "urgent"}, // unknown priority
	}
	for i, input := range cases {
		if _, err := uc.Start(ctx, input); !domainErrors.IsInvalidInput(err) {
			t.Fatalf("case %d: expected INVALID_INPUT, got %v", i, err)
		}
	}
}

func TestStart_DefaultsChannelAndPriority(t *testing.T) {
	uc, _, _ := newConversationTest(t, &stubRetriever{}, &stubLLM{content: "ok"})

	view, err := uc.Start(context.Background(), StartConversationInput{
		TenantID:    "acme",
		MessageBody: "hi",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Conversation.Channel != "text-web" {
		t.Fatalf("expected the default channel, got %s", view.Conversation.Channel)
	}
	if view.Conversation.Priority != entity.PriorityStandard {
		t.Fatalf("expected standard priority, got %s", view.Conversation.Priority)
	}
}

func TestGet_ReturnsFullView(t *testing.T) {
	uc, _, _ := newConversationTest(t, &stubRetriever{}, &stubLLM{content: "Let me check."})
	ctx := context.Background()

	created, err := uc.Start(ctx, StartConversationInput{TenantID: "acme", MessageBody: "hi"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	view, err := uc.Get(ctx, created.Conversation.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(view.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(view.Messages))
	}
	if !view.PendingApproval {
		t.Fatal("pending flag should derive from the conversation pointer")
	}
}

func TestGet_UnknownConversation(t *testing.T) {
	uc, _, _ := newConversationTest(t, &stubRetriever{}, &stubLLM{content: "ok"})

	if _, err := uc.Get(context.Background(), "missing"); !domainErrors.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if _, err := uc.Get(context.Background(), ""); !domainErrors.IsInvalidInput(err) {
		t.Fatalf("expected INVALID_INPUT for empty id, got %v", err)
	}
}
