package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/prompt"
)

func chatTurns() []domain.Message {
	return []domain.Message{
		{ID: "m1", Content: "Can I take aspirin with ibuprofen?", Sender: domain.SenderUser, Timestamp: time.Unix(1, 0)},
	}
}

func TestAnswerStreamsTokensFromChatModel(t *testing.T) {
	chatClient := &fakeModelClient{model: "mistral", tokens: []string{"Avoid ", "combining ", "them."}}
	search := &fakeSearchService{results: []domain.RerankedResult{
		{Context: "NSAIDs increase bleeding risk when combined.", Score: 1.2},
	}}
	uc := NewChatUseCase(search, &fakeRegistry{clients: map[string]*fakeModelClient{
		domain.RoleChat: chatClient,
	}}, nil, ChatConfig{Collection: "medical_docs"}, nil)

	stream, err := uc.Answer(context.Background(), "", chatTurns(), "")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	tokens, err := stream.Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if strings.Join(tokens, "") != "Avoid combining them." {
		t.Fatalf("unexpected answer: %v", tokens)
	}
	if search.gotReq.Query != "Can I take aspirin with ibuprofen?" {
		t.Fatalf("expected latest user turn to drive retrieval, got %q", search.gotReq.Query)
	}
	if len(chatClient.gotPrompts) != 1 || !strings.Contains(chatClient.gotPrompts[0], "bleeding risk") {
		t.Fatalf("expected retrieved context in prompt, got %q", chatClient.gotPrompts)
	}
}

func TestAnswerTruncatesWhenModelSimulatesUserTurn(t *testing.T) {
	chatClient := &fakeModelClient{model: "mistral", tokens: []string{"Take ", "care.", "\n" + prompt.UserTag + ": and", "never delivered"}}
	uc := NewChatUseCase(&fakeSearchService{}, &fakeRegistry{clients: map[string]*fakeModelClient{
		domain.RoleChat: chatClient,
	}}, nil, ChatConfig{Collection: "medical_docs"}, nil)

	stream, err := uc.Answer(context.Background(), "", chatTurns(), "")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	tokens, err := stream.Drain(context.Background())
	if err != nil {
		t.Fatalf("expected truncation to complete normally, got %v", err)
	}
	if strings.Join(tokens, "") != "Take care." {
		t.Fatalf("expected truncated answer, got %v", tokens)
	}
}

func TestAnswerFailsWithoutUserTurn(t *testing.T) {
	uc := NewChatUseCase(&fakeSearchService{}, &fakeRegistry{clients: map[string]*fakeModelClient{}}, nil, ChatConfig{}, nil)

	_, err := uc.Answer(context.Background(), "", []domain.Message{
		{Content: "hello", Sender: domain.SenderAssistant, Timestamp: time.Unix(1, 0)},
	}, "medical_docs")
	if !domain.IsKind(err, domain.ErrPrompt) {
		t.Fatalf("expected ErrPrompt, got %v", err)
	}
}

func TestAnswerPropagatesRetrievalFailure(t *testing.T) {
	search := &fakeSearchService{err: domain.WrapError(domain.ErrRetrieval, "hybrid search", errors.New("down"))}
	uc := NewChatUseCase(search, &fakeRegistry{clients: map[string]*fakeModelClient{}}, nil, ChatConfig{Collection: "medical_docs"}, nil)

	_, err := uc.Answer(context.Background(), "", chatTurns(), "")
	if !domain.IsKind(err, domain.ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval to propagate, got %v", err)
	}
}

func TestAnswerFailsWhenChatRoleMissing(t *testing.T) {
	uc := NewChatUseCase(&fakeSearchService{}, &fakeRegistry{clients: map[string]*fakeModelClient{}}, nil, ChatConfig{Collection: "medical_docs"}, nil)

	_, err := uc.Answer(context.Background(), "", chatTurns(), "")
	if !domain.IsKind(err, domain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestAnswerIncludesAllergyLine(t *testing.T) {
	chatClient := &fakeModelClient{model: "mistral", tokens: []string{"ok"}}
	profiles := &fakeProfileStore{profile: &domain.Profile{UserID: "u-1", Allergies: []string{"penicillin"}}}
	uc := NewChatUseCase(&fakeSearchService{}, &fakeRegistry{clients: map[string]*fakeModelClient{
		domain.RoleChat: chatClient,
	}}, profiles, ChatConfig{Collection: "medical_docs"}, nil)

	stream, err := uc.Answer(context.Background(), "u-1", chatTurns(), "")
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if _, err := stream.Drain(context.Background()); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	if !strings.Contains(chatClient.gotPrompts[0], "penicillin") {
		t.Fatalf("expected allergy line in prompt, got %q", chatClient.gotPrompts[0])
	}
}

func TestNameKeepsExistingTitle(t *testing.T) {
	uc := NewChatUseCase(&fakeSearchService{}, &fakeRegistry{clients: map[string]*fakeModelClient{}}, nil, ChatConfig{}, nil)

	got, err := uc.Name(context.Background(), domain.ChatInfo{Name: "Aspirin dosage question"}, chatTurns())
	if err != nil {
		t.Fatalf("Name() error = %v", err)
	}
	if got != "Aspirin dosage question" {
		t.Fatalf("expected existing title untouched, got %q", got)
	}
}

func TestNameAsksNamerForDefaultPlaceholder(t *testing.T) {
	namer := &fakeModelClient{model: "llama3.2:1b", generated: `"Aspirin and Ibuprofen"` + "\n"}
	uc := NewChatUseCase(&fakeSearchService{}, &fakeRegistry{clients: map[string]*fakeModelClient{
		domain.RoleNamer: namer,
	}}, nil, ChatConfig{}, nil)

	got, err := uc.Name(context.Background(), domain.ChatInfo{Name: domain.DefaultChatName}, chatTurns())
	if err != nil {
		t.Fatalf("Name() error = %v", err)
	}
	if got != "Aspirin and Ibuprofen" {
		t.Fatalf("expected trimmed title, got %q", got)
	}
	if len(namer.gotPrompts) != 1 {
		t.Fatalf("expected one naming call, got %d", len(namer.gotPrompts))
	}
}

func TestNameFallsBackToDefaultOnEmptyTitle(t *testing.T) {
	namer := &fakeModelClient{model: "llama3.2:1b", generated: "   "}
	uc := NewChatUseCase(&fakeSearchService{}, &fakeRegistry{clients: map[string]*fakeModelClient{
		domain.RoleNamer: namer,
	}}, nil, ChatConfig{}, nil)

	got, err := uc.Name(context.Background(), domain.ChatInfo{}, chatTurns())
	if err != nil {
		t.Fatalf("Name() error = %v", err)
	}
	if got != domain.DefaultChatName {
		t.Fatalf("expected default name fallback, got %q", got)
	}
}
