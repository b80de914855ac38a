package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sqlchat/sqlchat/internal/api"
	"github.com/sqlchat/sqlchat/internal/audit"
	"github.com/sqlchat/sqlchat/internal/auth"
	"github.com/sqlchat/sqlchat/internal/chat"
	"github.com/sqlchat/sqlchat/internal/compose"
	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/nl2sql"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/session"
)

func main() {
	cfg, err := config.LoadFromEnv("sqlchat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	client, err := llm.NewOpenAIClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize llm client", slog.Any("error", err))
		os.Exit(1)
	}

	sink, err := newAuditSink(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to initialize audit sink", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = sink.Close() }()

	manager := session.NewManager(cfg.Chat.SessionLimit)
	defer manager.CloseAll()

	chatService := chat.NewService(
		nl2sql.NewGenerator(client),
		compose.NewComposer(client),
		sink,
		logger,
		chat.Options{
			MaxResultRows: cfg.Chat.MaxResultRows,
			ReadOnly:      cfg.Chat.ReadOnly,
		},
	)

	deps := api.Dependencies{
		Logger:   logger,
		Sessions: manager,
		Chat:     chatService,
		Readiness: api.CombineReadinessChecks(
			api.CheckLLMConfig(cfg),
			api.CheckAuditConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func newAuditSink(ctx context.Context, cfg config.Config) (audit.Sink, error) {
	switch cfg.Audit.Backend {
	case config.AuditBackendFile:
		return audit.NewFileSink(cfg.Audit.Path)
	case config.AuditBackendS3:
		return audit.NewS3Sink(ctx, audit.S3Config{
			Endpoint:         cfg.Audit.S3.Endpoint,
			Region:           cfg.Audit.S3.Region,
			Bucket:           cfg.Audit.S3.Bucket,
			AccessKeyID:      cfg.Audit.S3.AccessKeyID,
			SecretAccessKey:  cfg.Audit.S3.SecretAccessKey,
			UseSSL:           cfg.Audit.S3.UseSSL,
			Prefix:           cfg.Audit.S3.Prefix,
			AutoCreateBucket: cfg.Audit.S3.AutoCreateBucket,
		})
	default:
		return audit.NopSink{}, nil
	}
}
