package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sqlchat/sqlchat/internal/audit"
	"github.com/sqlchat/sqlchat/internal/compose"
	"github.com/sqlchat/sqlchat/internal/executor"
	"github.com/sqlchat/sqlchat/internal/nl2sql"
	"github.com/sqlchat/sqlchat/internal/observability"
	"github.com/sqlchat/sqlchat/internal/prompt"
	"github.com/sqlchat/sqlchat/internal/session"
)

// ErrEmptyQuestion rejects a blank question before any model call.
var ErrEmptyQuestion = errors.New("question is required")

// ErrStatementRejected is returned by the read-only guard. The statement
// never reached the database, so no turn is recorded in the history.
var ErrStatementRejected = errors.New("statement rejected by read-only policy")

type Generator interface {
	Generate(ctx context.Context, p prompt.Prompt) (nl2sql.GeneratedQuery, error)
}

type Composer interface {
	Compose(ctx context.Context, in compose.Input) (string, error)
}

type Options struct {
	// MaxResultRows caps how many rows are rendered into the answer prompt.
	MaxResultRows int
	// ReadOnly enables the SELECT/WITH-only guard on generated statements.
	ReadOnly bool
}

// TurnResult is what one fully processed question produced.
type TurnResult struct {
	Answer   string
	SQL      string
	Result   executor.Result
	Fallback bool
}

// Service runs the chat pipeline: build prompt, generate SQL, execute,
// compose the answer, append the exchange. One turn at a time per session.
type Service struct {
	generator Generator
	composer  Composer
	sink      audit.Sink
	logger    *slog.Logger
	opts      Options
}

func NewService(generator Generator, composer Composer, sink audit.Sink, logger *slog.Logger, opts Options) *Service {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if opts.MaxResultRows <= 0 {
		opts.MaxResultRows = 50
	}
	return &Service{
		generator: generator,
		composer:  composer,
		sink:      sink,
		logger:    logger,
		opts:      opts,
	}
}

// Ask processes one question end to end. A statement failure is not an
// error: it flows into the answer so the user hears what went wrong. An
// error return means the turn was aborted and nothing was appended to the
// history.
func (s *Service) Ask(ctx context.Context, sess *session.Session, question string) (TurnResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return TurnResult{}, ErrEmptyQuestion
	}

	var result TurnResult
	err := sess.WithTurn(func() error {
		var err error
		result, err = s.runTurn(ctx, sess, question)
		return err
	})
	return result, err
}

func (s *Service) runTurn(ctx context.Context, sess *session.Session, question string) (TurnResult, error) {
	start := time.Now()
	history := sess.History()
	description := sess.Schema()

	generated, err := s.generator.Generate(ctx, prompt.BuildGeneration(description, history, question))
	if err != nil {
		observability.IncrementGenerationFailure()
		observability.ObserveTurn(observability.TurnOutcomeGenerationError, time.Since(start))
		s.record(ctx, sess.ID, question, "", err.Error(), "")
		s.log(ctx, sess.ID, question, "", err)
		return TurnResult{}, err
	}

	if s.opts.ReadOnly && !executor.IsReadOnly(generated.SQL) {
		err := fmt.Errorf("%w: %s", ErrStatementRejected, generated.SQL)
		observability.ObserveTurn(observability.TurnOutcomeStatementRejected, time.Since(start))
		s.record(ctx, sess.ID, question, generated.SQL, err.Error(), "")
		s.log(ctx, sess.ID, question, generated.SQL, err)
		return TurnResult{}, err
	}

	execResult := executor.Execute(ctx, sess.DB, generated.SQL)
	if execResult.Failed() {
		observability.IncrementStatementFailure()
	}
	resultText := execResult.RenderText(s.opts.MaxResultRows)

	answer, composeErr := s.composer.Compose(ctx, compose.Input{
		Schema:     description,
		History:    history,
		Question:   question,
		SQL:        generated.SQL,
		ResultText: resultText,
	})
	fallback := false
	if composeErr != nil {
		// Present the raw outcome rather than failing the turn.
		answer = resultText
		fallback = true
	}

	sess.AppendExchange(question, answer)

	failureText := ""
	if execResult.Failed() {
		failureText = execResult.Failure.Message
	}
	s.record(ctx, sess.ID, question, generated.SQL, failureText, answer)
	var turnErr error
	if failureText != "" {
		turnErr = errors.New(failureText)
	}
	s.log(ctx, sess.ID, question, generated.SQL, turnErr)

	outcome := observability.TurnOutcomeAnswered
	switch {
	case fallback:
		outcome = observability.TurnOutcomeComposeFallback
	case execResult.Failed():
		outcome = observability.TurnOutcomeStatementFailed
	}
	observability.ObserveTurn(outcome, time.Since(start))

	return TurnResult{
		Answer:   answer,
		SQL:      generated.SQL,
		Result:   execResult,
		Fallback: fallback,
	}, nil
}

func (s *Service) record(ctx context.Context, sessionID, question, sqlText, errText, answer string) {
	entry := audit.Entry{
		Time:      time.Now().UTC(),
		SessionID: sessionID,
		Question:  question,
		SQL:       sqlText,
		Error:     errText,
		Answer:    answer,
	}
	if err := s.sink.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.Any("error", err))
	}
}

func (s *Service) log(ctx context.Context, sessionID, question, sqlText string, err error) {
	if s.logger == nil {
		return
	}
	attrs := []any{
		slog.String("session_id", sessionID),
		slog.String("question", question),
		slog.String("sql", sqlText),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		s.logger.WarnContext(ctx, "chat_turn", attrs...)
		return
	}
	s.logger.InfoContext(ctx, "chat_turn", attrs...)
}
