// Package bootstrap wires infrastructure and use cases into a runnable app.
// Both binaries (api, worker) share the same graph; each picks the pieces it
// serves.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onurdev/diagnosys/internal/config"
	"github.com/onurdev/diagnosys/internal/core/domain"
	"github.com/onurdev/diagnosys/internal/core/ports"
	"github.com/onurdev/diagnosys/internal/core/usecase"
	"github.com/onurdev/diagnosys/internal/infrastructure/chunking"
	"github.com/onurdev/diagnosys/internal/infrastructure/embedding/tei"
	"github.com/onurdev/diagnosys/internal/infrastructure/extractor"
	"github.com/onurdev/diagnosys/internal/infrastructure/extractor/pdf"
	"github.com/onurdev/diagnosys/internal/infrastructure/extractor/plaintext"
	"github.com/onurdev/diagnosys/internal/infrastructure/extractor/xlsx"
	"github.com/onurdev/diagnosys/internal/infrastructure/llm/ollama"
	"github.com/onurdev/diagnosys/internal/infrastructure/prospectus"
	"github.com/onurdev/diagnosys/internal/infrastructure/queue/nats"
	"github.com/onurdev/diagnosys/internal/infrastructure/repository/postgres"
	"github.com/onurdev/diagnosys/internal/infrastructure/resilience"
	"github.com/onurdev/diagnosys/internal/infrastructure/storage/localfs"
	"github.com/onurdev/diagnosys/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Profiles ports.ProfileStore

	ChatUC    ports.ChatService
	SearchUC  ports.SearchService
	AnalyzeUC ports.AnalyzeService
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	profiles := postgres.NewProfileRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embeddingClient := tei.NewWithExecutor(cfg.EmbeddingURL, executor)
	vectorDB := qdrant.NewWithExecutor(cfg.QdrantURL, executor)
	chunker := chunking.NewSplitter(embeddingClient, cfg.ChunkSize, cfg.ChunkOverlap, logger)

	registry := ollama.NewRegistry()
	registry.Create(domain.RoleChat, cfg.OllamaURL, cfg.ChatModel, cfg.ChatTemperature)
	registry.Create(domain.RoleNamer, cfg.OllamaURL, cfg.NamerModel, cfg.NamerTemperature)
	registry.Create(domain.RoleAnalyzer, cfg.OllamaURL, cfg.AnalyzerModel, cfg.AnalyzerTemperature)
	warmModels(ctx, registry, cfg.OllamaURL, logger)

	dispatcher := extractor.NewDispatcher()
	dispatcher.Register("text/plain", plaintext.NewExtractor(storage))
	dispatcher.Register("application/pdf", pdf.NewExtractor(storage))
	dispatcher.Register("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", xlsx.NewExtractor(storage))

	fetcher := prospectus.New(cfg.ProspectusURL)

	indexUC := usecase.NewIndexUseCase(chunker, embeddingClient, vectorDB)
	rerankUC := usecase.NewRerankUseCase(embeddingClient)
	searchUC := usecase.NewSearchUseCase(embeddingClient, vectorDB, rerankUC, cfg.RerankThreshold)
	chatUC := usecase.NewChatUseCase(searchUC, registry, profiles, usecase.ChatConfig{
		Collection:   cfg.QdrantCollection,
		TopK:         cfg.RAGTopK,
		Alpha:        cfg.HybridAlpha,
		SystemPrompt: cfg.SystemPrompt,
	}, logger)
	analyzeUC := usecase.NewAnalyzeUseCase(fetcher, profiles, registry, logger)
	ingestUC := usecase.NewIngestUseCase(repo, storage, queue)
	processUC := usecase.NewProcessUseCase(repo, dispatcher, indexUC)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Repo:     repo,
		Profiles: profiles,

		ChatUC:    chatUC,
		SearchUC:  searchUC,
		AnalyzeUC: analyzeUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
			for _, role := range registry.Roles() {
				registry.Delete(role)
			}
		},
	}, nil
}

// warmModels verifies the model server is reachable and asks it to pull the
// configured models. Failures are logged, not fatal: the server may come up
// later and the first request will pull on demand.
func warmModels(ctx context.Context, registry *ollama.Registry, baseURL string, logger *slog.Logger) {
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	probe := ollama.New(baseURL, "", 0)
	version, err := probe.Version(warmCtx)
	if err != nil {
		logger.Warn("model_server_unreachable", "url", baseURL, "error", err)
		return
	}
	logger.Info("model_server_ready", "url", baseURL, "version", version)

	for _, role := range registry.Roles() {
		client, err := registry.Get(role)
		if err != nil {
			continue
		}
		puller, ok := client.(*ollama.Client)
		if !ok {
			continue
		}
		if err := puller.Pull(warmCtx); err != nil {
			logger.Warn("model_pull_failed", "role", role, "model", client.Model(), "error", err)
			continue
		}
		logger.Info("model_ready", "role", role, "model", client.Model())
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
