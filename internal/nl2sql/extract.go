package nl2sql

import (
	"regexp"
	"strings"
)

// Source records which extraction branch produced the statement.
type Source string

const (
	// SourceFenced means the statement came from the first fenced code
	// block in the completion.
	SourceFenced Source = "fenced"
	// SourceCompletion means the whole completion was treated as the
	// statement.
	SourceCompletion Source = "completion"
)

// GeneratedQuery pairs the raw completion with the statement extracted from
// it. It lives for one turn only.
type GeneratedQuery struct {
	Raw    string `json:"raw"`
	SQL    string `json:"sql"`
	Source Source `json:"source"`
}

var fencedBlock = regexp.MustCompile("(?s)```(?:sql)?[ \t]*\n?(.*?)```")

// Extract pulls one SQL statement out of a model completion. Models are
// told not to use fences, but they sometimes do anyway, so the first fenced
// block wins when present; otherwise the whole completion is the statement.
// Trailing semicolons and whitespace are stripped either way.
func Extract(completion string) (GeneratedQuery, error) {
	source := SourceCompletion
	candidate := completion
	if match := fencedBlock.FindStringSubmatch(completion); match != nil {
		source = SourceFenced
		candidate = match[1]
	}

	sql := strings.TrimSpace(candidate)
	sql = strings.TrimRight(sql, "; \t\r\n")
	if sql == "" {
		return GeneratedQuery{}, &GenerationError{Reason: "completion contains no SQL statement"}
	}
	return GeneratedQuery{Raw: completion, SQL: sql, Source: source}, nil
}
