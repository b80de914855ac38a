package compose

import (
	"context"
	"fmt"

	"github.com/sqlchat/sqlchat/internal/llm"
	"github.com/sqlchat/sqlchat/internal/prompt"
	"github.com/sqlchat/sqlchat/internal/schema"
	"github.com/sqlchat/sqlchat/internal/session"
)

// CompositionError means the answer model call failed. The caller falls
// back to presenting the raw execution result instead.
type CompositionError struct {
	Err error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose answer: %v", e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

// Input is everything the answer prompt needs. ResultText is the rendered
// execution outcome: rows on success, the failure message on error, so the
// model cannot hallucinate a result that did not happen.
type Input struct {
	Schema     schema.Description
	History    []session.Turn
	Question   string
	SQL        string
	ResultText string
}

// Composer phrases an execution outcome as a natural-language answer.
type Composer struct {
	client llm.Client
}

func NewComposer(client llm.Client) *Composer {
	return &Composer{client: client}
}

// Compose returns the model's answer verbatim.
func (c *Composer) Compose(ctx context.Context, in Input) (string, error) {
	p := prompt.BuildAnswer(in.Schema, in.History, in.Question, in.SQL, in.ResultText)
	answer, err := c.client.Complete(ctx, llm.Request{System: p.System, User: p.User})
	if err != nil {
		return "", &CompositionError{Err: err}
	}
	return answer, nil
}
