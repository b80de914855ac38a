package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sqlchat/sqlchat/internal/auth"
	"github.com/sqlchat/sqlchat/internal/chat"
	"github.com/sqlchat/sqlchat/internal/config"
	"github.com/sqlchat/sqlchat/internal/dbconn"
	"github.com/sqlchat/sqlchat/internal/schema"
	"github.com/sqlchat/sqlchat/internal/session"
)

type createSessionRequest struct {
	Connection dbconn.Config `json:"connection"`
}

type createSessionResponse struct {
	SessionID  string             `json:"session_id"`
	Connection dbconn.Config      `json:"connection"`
	Schema     schema.Description `json:"schema"`
	SchemaText string             `json:"schema_text"`
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Answer     string   `json:"answer"`
	SQL        string   `json:"sql"`
	Columns    []string `json:"columns,omitempty"`
	Rows       [][]any  `json:"rows,omitempty"`
	Failed     bool     `json:"failed"`
	Error      string   `json:"error,omitempty"`
	Fallback   bool     `json:"fallback"`
	DurationMs int64    `json:"duration_ms"`
}

func handleCreateSession(cfg config.Config, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session dependencies are not configured", false, nil)
		return
	}
	if err := requireAnyRole(r, "chat_user", "chat_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	request := createSessionRequest{Connection: defaultConnection(cfg)}
	if r.Body != nil && r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&request); err != nil {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid session request body", false, map[string]any{"details": err.Error()})
			return
		}
		request.Connection = mergeConnection(defaultConnection(cfg), request.Connection)
	}

	connCfg := request.Connection
	if err := connCfg.Validate(); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_CONNECTION", err.Error(), false, nil)
		return
	}

	db, err := deps.OpenDB(r.Context(), connCfg)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "CONNECTION_FAILED", err.Error(), true, nil)
		return
	}

	description, err := schema.Describe(r.Context(), db, schema.DefaultSchema(connCfg.Driver))
	if err != nil {
		_ = db.Close()
		writeError(r.Context(), w, http.StatusBadGateway, "INTROSPECTION_FAILED", err.Error(), true, nil)
		return
	}

	sess := session.New(connCfg, db, description)
	if err := deps.Sessions.Add(sess); err != nil {
		_ = db.Close()
		if errors.Is(err, session.ErrLimitReached) {
			writeError(r.Context(), w, http.StatusTooManyRequests, "SESSION_LIMIT", "session limit reached", true, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_ERROR", err.Error(), false, nil)
		return
	}

	sanitized := connCfg
	sanitized.Password = ""
	writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID:  sess.ID,
		Connection: sanitized,
		Schema:     description,
		SchemaText: description.Render(),
	})
}

func handleSessionSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}

	// Re-introspect so schema changes made after connect become visible.
	description, err := schema.Describe(r.Context(), sess.DB, schema.DefaultSchema(sess.Config.Driver))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "INTROSPECTION_FAILED", err.Error(), true, nil)
		return
	}
	sess.SetSchema(description)

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":  sess.ID,
		"schema":      description,
		"schema_text": description.Render(),
	})
}

func handleSessionChat(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Chat == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}

	var request chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}

	result, err := deps.Chat.Ask(r.Context(), sess, request.Question)
	if err != nil {
		switch {
		case errors.Is(err, chat.ErrEmptyQuestion):
			writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		case errors.Is(err, chat.ErrStatementRejected):
			writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH statements are allowed", false, nil)
		default:
			writeError(r.Context(), w, http.StatusBadGateway, "SQL_GENERATION_FAILED", err.Error(), true, nil)
		}
		return
	}

	response := chatResponse{
		Answer:     result.Answer,
		SQL:        result.SQL,
		Columns:    result.Result.Columns,
		Rows:       result.Result.Rows,
		Failed:     result.Result.Failed(),
		Fallback:   result.Fallback,
		DurationMs: result.Result.Duration.Milliseconds(),
	}
	if result.Result.Failed() {
		response.Error = result.Result.Failure.Message
	}
	writeJSON(w, http.StatusOK, response)
}

func handleSessionReset(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(deps, w, r)
	if !ok {
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"session_id": sess.ID, "status": "reset"})
}

func handleSessionDelete(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session dependencies are not configured", false, nil)
		return
	}
	id := strings.TrimSpace(r.PathValue("session"))
	if err := deps.Sessions.Remove(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session was not found", false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SESSION_ERROR", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "status": "closed"})
}

func sessionFromRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	if deps.Sessions == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SESSIONS_NOT_CONFIGURED", "session dependencies are not configured", false, nil)
		return nil, false
	}
	if err := requireAnyRole(r, "chat_user", "chat_admin"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return nil, false
	}
	id := strings.TrimSpace(r.PathValue("session"))
	sess, err := deps.Sessions.Get(id)
	if err != nil {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session was not found", false, nil)
		return nil, false
	}
	return sess, true
}

func defaultConnection(cfg config.Config) dbconn.Config {
	return dbconn.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
	}
}

func mergeConnection(base, override dbconn.Config) dbconn.Config {
	merged := base
	if override.Driver != "" {
		merged.Driver = override.Driver
	}
	if override.Host != "" {
		merged.Host = override.Host
	}
	if override.Port != "" {
		merged.Port = override.Port
	}
	if override.Username != "" {
		merged.Username = override.Username
	}
	if override.Password != "" {
		merged.Password = override.Password
	}
	if override.Database != "" {
		merged.Database = override.Database
	}
	return merged
}

func requireAnyRole(r *http.Request, roles ...string) error {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	for _, role := range roles {
		if identity.HasRole(role) {
			return nil
		}
	}
	return errors.New("missing required role, expected one of " + strings.Join(roles, ","))
}
