package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/onurdev/diagnosys/internal/adapters/http"
	"github.com/onurdev/diagnosys/internal/bootstrap"
	"github.com/onurdev/diagnosys/internal/config"
	"github.com/onurdev/diagnosys/internal/observability/logging"
	"github.com/onurdev/diagnosys/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	router := httpadapter.NewRouter(
		app.ChatUC,
		app.SearchUC,
		app.AnalyzeUC,
		app.IngestUC,
		app.Repo,
		app.Profiles,
		serverMetrics,
		httpadapter.Config{
			Service:           "api",
			DefaultCollection: cfg.QdrantCollection,
			DefaultTopK:       cfg.RAGTopK,
			DefaultAlpha:      cfg.HybridAlpha,
			RateLimitRPS:      cfg.RateLimitRPS,
			RateLimitBurst:    cfg.RateLimitBurst,
			MaxInFlight:       cfg.MaxInFlight,
		},
	).Handler()

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: chat responses stream tokens for as long as the
		// model generates. Per-request deadlines come from the client context.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_error", "error", err)
	}
}
