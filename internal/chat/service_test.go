package chat

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sqlchat/sqlchat/internal/compose"
	"github.com/sqlchat/sqlchat/internal/dbconn"
	"github.com/sqlchat/sqlchat/internal/nl2sql"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/prompt"
	"github.com/sqlchat/sqlchat/internal/schema"
	"github.com/sqlchat/sqlchat/internal/session"
)

type fakeGenerator struct {
	query   nl2sql.GeneratedQuery
	err     error
	prompts []prompt.Prompt
}

func (f *fakeGenerator) Generate(_ context.Context, p prompt.Prompt) (nl2sql.GeneratedQuery, error) {
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return nl2sql.GeneratedQuery{}, f.err
	}
	return f.query, nil
}

type fakeComposer struct {
	answer string
	err    error
	inputs []compose.Input
}

func (f *fakeComposer) Compose(_ context.Context, in compose.Input) (string, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestSession(t *testing.T) (*session.Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	description := schema.Description{Tables: []schema.Table{{
		Name:    "tracks",
		Columns: []schema.Column{{Name: "id", Type: "integer"}},
	}}}
	return session.New(dbconn.Config{Driver: dbconn.DriverPostgres}, db, description), mock
}

func TestAskAnswersAndAppendsHistory(t *testing.T) {
	sess, mock := newTestSession(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tracks")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	gen := &fakeGenerator{query: nl2sql.GeneratedQuery{SQL: "SELECT COUNT(*) FROM tracks"}}
	comp := &fakeComposer{answer: "There are 42 tracks."}
	svc := NewService(gen, comp, nil, nil, Options{})

	result, err := svc.Ask(context.Background(), sess, "how many tracks are there?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if result.Answer != "There are 42 tracks." {
		t.Fatalf("answer = %q", result.Answer)
	}
	if result.SQL != "SELECT COUNT(*) FROM tracks" {
		t.Fatalf("sql = %q", result.SQL)
	}

	history := sess.History()
	if len(history) != 2 {
		t.Fatalf("history length = %d", len(history))
	}
	if history[0].Role != session.RoleUser || history[0].Text != "how many tracks are there?" {
		t.Fatalf("first turn = %+v", history[0])
	}
	if history[1].Role != session.RoleAssistant || history[1].Text != "There are 42 tracks." {
		t.Fatalf("second turn = %+v", history[1])
	}

	if len(comp.inputs) != 1 {
		t.Fatalf("composer called %d times", len(comp.inputs))
	}
	if !strings.Contains(comp.inputs[0].ResultText, "42") {
		t.Fatalf("result text did not carry the count: %q", comp.inputs[0].ResultText)
	}
}

func TestAskGenerationErrorAbortsTurn(t *testing.T) {
	sess, _ := newTestSession(t)
	genErr := &nl2sql.GenerationError{Reason: "empty completion"}
	gen := &fakeGenerator{err: genErr}
	comp := &fakeComposer{answer: "unused"}
	svc := NewService(gen, comp, nil, nil, Options{})

	_, err := svc.Ask(context.Background(), sess, "how many tracks?")
	var wantErr *nl2sql.GenerationError
	if !errors.As(err, &wantErr) {
		t.Fatalf("err = %v, want generation error", err)
	}
	if len(sess.History()) != 0 {
		t.Fatalf("history must stay empty after an aborted turn")
	}
	if len(comp.inputs) != 0 {
		t.Fatalf("composer must not run when generation fails")
	}
}

func TestAskStatementFailureFlowsToComposer(t *testing.T) {
	sess, mock := newTestSession(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM missing")).
		WillReturnError(errors.New(`relation "missing" does not exist`))

	gen := &fakeGenerator{query: nl2sql.GeneratedQuery{SQL: "SELECT * FROM missing"}}
	comp := &fakeComposer{answer: "That table does not exist."}
	svc := NewService(gen, comp, nil, nil, Options{})

	result, err := svc.Ask(context.Background(), sess, "list everything in missing")
	if err != nil {
		t.Fatalf("statement failures must not fail the turn: %v", err)
	}
	if !result.Result.Failed() {
		t.Fatal("expected a captured statement failure")
	}
	if result.Answer != "That table does not exist." {
		t.Fatalf("answer = %q", result.Answer)
	}
	if len(comp.inputs) != 1 || !strings.Contains(comp.inputs[0].ResultText, "ERROR:") {
		t.Fatalf("composer must see the failure text, got %+v", comp.inputs)
	}
	if len(sess.History()) != 2 {
		t.Fatalf("history length = %d, the attempted turn must still be recorded", len(sess.History()))
	}
}

func TestAskComposeFallbackUsesRawResult(t *testing.T) {
	sess, mock := newTestSession(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM tracks")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	gen := &fakeGenerator{query: nl2sql.GeneratedQuery{SQL: "SELECT COUNT(*) FROM tracks"}}
	comp := &fakeComposer{err: &compose.CompositionError{Err: errors.New("model unavailable")}}
	svc := NewService(gen, comp, nil, nil, Options{})

	result, err := svc.Ask(context.Background(), sess, "how many tracks?")
	if err != nil {
		t.Fatalf("composition failures must not fail the turn: %v", err)
	}
	if !result.Fallback {
		t.Fatal("expected fallback answer")
	}
	if !strings.Contains(result.Answer, "7") {
		t.Fatalf("fallback answer must carry the raw result, got %q", result.Answer)
	}
	history := sess.History()
	if len(history) != 2 || history[1].Text != result.Answer {
		t.Fatalf("history = %+v", history)
	}
}

func TestAskReadOnlyGuardRejectsWrites(t *testing.T) {
	sess, _ := newTestSession(t)
	gen := &fakeGenerator{query: nl2sql.GeneratedQuery{SQL: "DROP TABLE tracks"}}
	comp := &fakeComposer{answer: "unused"}
	svc := NewService(gen, comp, nil, nil, Options{ReadOnly: true})

	rejectedBefore := turnOutcomeCount(t, observability.TurnOutcomeStatementRejected)
	generationBefore := turnOutcomeCount(t, observability.TurnOutcomeGenerationError)

	_, err := svc.Ask(context.Background(), sess, "please drop the tracks table")
	if !errors.Is(err, ErrStatementRejected) {
		t.Fatalf("err = %v, want ErrStatementRejected", err)
	}
	if len(sess.History()) != 0 {
		t.Fatalf("rejected statements must not enter the history")
	}

	// Policy rejections count under their own outcome, not as model failures.
	if got := turnOutcomeCount(t, observability.TurnOutcomeStatementRejected); got != rejectedBefore+1 {
		t.Fatalf("statement_rejected turns = %v, want %v", got, rejectedBefore+1)
	}
	if got := turnOutcomeCount(t, observability.TurnOutcomeGenerationError); got != generationBefore {
		t.Fatalf("generation_error turns = %v, want %v", got, generationBefore)
	}
}

func turnOutcomeCount(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "sqlchat_chat_turns_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestAskEmptyQuestion(t *testing.T) {
	sess, _ := newTestSession(t)
	svc := NewService(&fakeGenerator{}, &fakeComposer{}, nil, nil, Options{})

	if _, err := svc.Ask(context.Background(), sess, "   "); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("err = %v, want ErrEmptyQuestion", err)
	}
}
