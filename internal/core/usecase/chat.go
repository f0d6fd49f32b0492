package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
	"github.com/onurdev/diagnosys/internal/core/prompt"
	"github.com/onurdev/diagnosys/internal/streaming"
)

// ChatUseCase orchestrates one streamed answer: latest user turn drives
// retrieval, reranked context plus the full conversation becomes the prompt,
// and the chat model's blocking stream is bridged to the caller.
type ChatUseCase struct {
	search   ports.SearchService
	registry ports.ClientRegistry
	profiles ports.ProfileStore

	collection   string
	topK         int
	alpha        float64
	systemPrompt string
	logger       *slog.Logger
}

type ChatConfig struct {
	Collection   string
	TopK         int
	Alpha        float64
	SystemPrompt string
}

func NewChatUseCase(
	search ports.SearchService,
	registry ports.ClientRegistry,
	profiles ports.ProfileStore,
	cfg ChatConfig,
	logger *slog.Logger,
) *ChatUseCase {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = DefaultHybridAlpha
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		search:       search,
		registry:     registry,
		profiles:     profiles,
		collection:   cfg.Collection,
		topK:         cfg.TopK,
		alpha:        cfg.Alpha,
		systemPrompt: cfg.SystemPrompt,
		logger:       logger,
	}
}

func (uc *ChatUseCase) Answer(ctx context.Context, userID string, messages []domain.Message, collection string) (*streaming.Stream, error) {
	latest, err := domain.LatestUserMessage(messages)
	if err != nil {
		return nil, err
	}
	if collection == "" {
		collection = uc.collection
	}

	results, err := uc.search.SearchReranked(ctx, domain.SearchRequest{
		Query:      latest.Content,
		TopK:       uc.topK,
		Collection: collection,
		Alpha:      uc.alpha,
	})
	if err != nil {
		return nil, err
	}

	contextBlock := joinContexts(results)
	if allergies := uc.allergyLine(ctx, userID); allergies != "" {
		contextBlock = allergies + "\n\n" + contextBlock
	}

	input, err := prompt.BuildChatPrompt(messages, contextBlock, uc.systemPrompt)
	if err != nil {
		return nil, err
	}

	client, err := uc.registry.Get(domain.RoleChat)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("chat_answer_started",
		"user_id", userID,
		"collection", collection,
		"context_chunks", len(results),
		"model", client.Model(),
	)

	stream := streaming.Start(func(yield func(string) bool) error {
		return client.GenerateStream(ctx, input, yield)
	}, streaming.WithStopTag(prompt.UserTag))
	return stream, nil
}

// Name returns the conversation title, asking the namer model only when the
// chat still carries the default placeholder.
func (uc *ChatUseCase) Name(ctx context.Context, info domain.ChatInfo, messages []domain.Message) (string, error) {
	if info.Name != "" && info.Name != domain.DefaultChatName {
		return info.Name, nil
	}

	input, err := prompt.BuildNamingPrompt(messages)
	if err != nil {
		return "", err
	}
	client, err := uc.registry.Get(domain.RoleNamer)
	if err != nil {
		return "", err
	}

	title, err := client.Generate(ctx, input)
	if err != nil {
		return "", fmt.Errorf("generate chat name: %w", err)
	}
	title = strings.Trim(strings.TrimSpace(title), `"'`)
	if title == "" {
		return domain.DefaultChatName, nil
	}
	return title, nil
}

func (uc *ChatUseCase) allergyLine(ctx context.Context, userID string) string {
	if userID == "" || uc.profiles == nil {
		return ""
	}
	profile, err := uc.profiles.Get(ctx, userID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			uc.logger.Warn("profile_lookup_failed", "user_id", userID, "error", err)
		}
		return ""
	}
	if len(profile.Allergies) == 0 {
		return ""
	}
	return "Patient allergies: " + strings.Join(profile.Allergies, ", ")
}

func joinContexts(results []domain.RerankedResult) string {
	parts := make([]string, 0, len(results))
	for _, result := range results {
		parts = append(parts, result.Context)
	}
	return strings.Join(parts, "\n\n")
}
