package sqlchatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Client is a thin wrapper over the sqlchat HTTP API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

type apiError struct {
	Status    int
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (e *apiError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("http %d [%s]: %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

type ConnectionParams struct {
	Driver   string `json:"driver,omitempty" yaml:"driver"`
	Host     string `json:"host,omitempty" yaml:"host"`
	Port     string `json:"port,omitempty" yaml:"port"`
	Username string `json:"username,omitempty" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password"`
	Database string `json:"database,omitempty" yaml:"database"`
}

type SessionInfo struct {
	SessionID  string `json:"session_id"`
	SchemaText string `json:"schema_text"`
}

type ChatResult struct {
	Answer     string   `json:"answer"`
	SQL        string   `json:"sql"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	Failed     bool     `json:"failed"`
	Error      string   `json:"error"`
	Fallback   bool     `json:"fallback"`
	DurationMs int64    `json:"duration_ms"`
}

func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/v1/health", nil, &out)
	return out, err
}

func (c *Client) Ready(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.do(ctx, http.MethodGet, "/v1/ready", nil, &out)
	return out, err
}

func (c *Client) CreateSession(ctx context.Context, conn ConnectionParams) (SessionInfo, error) {
	var out SessionInfo
	err := c.do(ctx, http.MethodPost, "/v1/sessions", map[string]any{"connection": conn}, &out)
	return out, err
}

func (c *Client) Schema(ctx context.Context, sessionID string) (SessionInfo, error) {
	var out SessionInfo
	err := c.do(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/schema", nil, &out)
	return out, err
}

func (c *Client) Ask(ctx context.Context, sessionID, question string) (ChatResult, error) {
	var out ChatResult
	err := c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/chat", map[string]any{"question": question}, &out)
	return out, err
}

func (c *Client) Reset(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+sessionID+"/reset", nil, nil)
}

func (c *Client) Close(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/sessions/"+sessionID, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(c.APIKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(c.APIKey))
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var decoded apiError
		if json.Unmarshal(raw, &decoded) == nil && decoded.Message != "" {
			decoded.Status = resp.StatusCode
			return &decoded
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
