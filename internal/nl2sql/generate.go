package nl2sql

import (
	"context"
	"fmt"

	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/prompt"
)

// GenerationError covers both a failed model call and a completion with no
// recognizable statement in it.
type GenerationError struct {
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generate sql: %s: %v", e.Reason, e.Err)
	}
	return "generate sql: " + e.Reason
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Generator turns a built prompt into one executable SQL statement.
type Generator struct {
	client llm.Client
}

func NewGenerator(client llm.Client) *Generator {
	return &Generator{client: client}
}

// Generate sends the prompt and extracts a single statement from the
// completion. It performs no syntax or safety validation beyond extraction.
func (g *Generator) Generate(ctx context.Context, p prompt.Prompt) (GeneratedQuery, error) {
	completion, err := g.client.Complete(ctx, llm.Request{System: p.System, User: p.User})
	if err != nil {
		return GeneratedQuery{}, &GenerationError{Reason: "model call failed", Err: err}
	}
	return Extract(completion)
}
