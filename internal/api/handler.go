package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlchat/sqlchat/internal/chat"
	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/dbconn"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/session"
)

type ReadinessCheck func(ctx context.Context) error

// ChatService answers one question within a session.
type ChatService interface {
	Ask(ctx context.Context, sess *session.Session, question string) (chat.TurnResult, error)
}

// DBOpener opens a database handle for a validated connection config.
// Injectable so handler tests can substitute a mock connection.
type DBOpener func(ctx context.Context, cfg dbconn.Config) (*sql.DB, error)

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Sessions          *session.Manager
	Chat              ChatService
	OpenDB            DBOpener
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.OpenDB == nil {
		deps.OpenDB = dbconn.Open
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		handleCreateSession(cfg, deps, w, r)
	})
	protected.HandleFunc("GET /v1/sessions/{session}/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSessionSchema(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sessions/{session}/chat", func(w http.ResponseWriter, r *http.Request) {
		handleSessionChat(deps, w, r)
	})
	protected.HandleFunc("POST /v1/sessions/{session}/reset", func(w http.ResponseWriter, r *http.Request) {
		handleSessionReset(deps, w, r)
	})
	protected.HandleFunc("DELETE /v1/sessions/{session}", func(w http.ResponseWriter, r *http.Request) {
		handleSessionDelete(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/sessions", protectedHandler)
	mux.Handle("GET /v1/sessions/{session}/schema", protectedHandler)
	mux.Handle("POST /v1/sessions/{session}/chat", protectedHandler)
	mux.Handle("POST /v1/sessions/{session}/reset", protectedHandler)
	mux.Handle("DELETE /v1/sessions/{session}", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckLLMConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.LLM.BaseURL == "" {
			return errors.New("llm base url is not configured")
		}
		if cfg.LLM.APIKey == "" {
			return errors.New("llm api key is not configured")
		}
		return nil
	}
}

func CheckAuditConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		switch cfg.Audit.Backend {
		case config.AuditBackendFile:
			if cfg.Audit.Path == "" {
				return errors.New("audit file path is not configured")
			}
		case config.AuditBackendS3:
			if cfg.Audit.S3.Endpoint == "" {
				return errors.New("audit object store endpoint is not configured")
			}
			if cfg.Audit.S3.Bucket == "" {
				return errors.New("audit object store bucket is not configured")
			}
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
