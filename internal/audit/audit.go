package audit

import (
	"context"
	"time"
)

// Entry is one chat turn as seen by the audit trail: the question, the SQL
// the model produced, and whatever went wrong. Entries are append-only.
type Entry struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql,omitempty"`
	Error     string    `json:"error,omitempty"`
	Answer    string    `json:"answer,omitempty"`
}

type Sink interface {
	Record(ctx context.Context, entry Entry) error
	Close() error
}

// NopSink discards entries; used when auditing is disabled.
type NopSink struct{}

func (NopSink) Record(context.Context, Entry) error { return nil }

func (NopSink) Close() error { return nil }
