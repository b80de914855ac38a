package session

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sqlchat/sqlchat/internal/dbconn"
	"github.com/sqlchat/sqlchat/internal/schema"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in the conversation. Turns are never mutated after
// append.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Session owns one database handle and one conversation history. Nothing is
// shared between sessions. Within a session the turn mutex serializes the
// chat pipeline, and the schema and history have their own locks because
// re-introspection and history reads may run concurrently with a turn.
type Session struct {
	ID        string
	Config    dbconn.Config
	DB        *sql.DB
	CreatedAt time.Time

	turnMu    sync.Mutex
	schemaMu  sync.RWMutex
	desc      schema.Description
	historyMu sync.Mutex
	history   []Turn
}

func New(cfg dbconn.Config, db *sql.DB, description schema.Description) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Config:    cfg,
		DB:        db,
		desc:      description,
		CreatedAt: time.Now().UTC(),
	}
}

// Schema returns the most recent introspection result.
func (s *Session) Schema() schema.Description {
	s.schemaMu.RLock()
	defer s.schemaMu.RUnlock()
	return s.desc
}

// SetSchema replaces the cached schema after a re-introspection.
func (s *Session) SetSchema(description schema.Description) {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	s.desc = description
}

// WithTurn runs fn while holding the turn mutex, so one question is fully
// processed before the next is accepted.
func (s *Session) WithTurn(fn func() error) error {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	return fn()
}

// AppendExchange records one question/answer pair. The pair is appended
// together: the history never holds a question without the answer that an
// execution attempt produced for it.
func (s *Session) AppendExchange(question, answer string) {
	now := time.Now().UTC()
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append(s.history,
		Turn{Role: RoleUser, Text: question, CreatedAt: now},
		Turn{Role: RoleAssistant, Text: answer, CreatedAt: now},
	)
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the conversation but keeps the connection open.
func (s *Session) Reset() {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = nil
}

// Close releases the database handle.
func (s *Session) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
