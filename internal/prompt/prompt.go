package prompt

import (
	"fmt"
	"strings"

	"github.com/sqlchat/sqlchat/internal/schema"
	"github.com/sqlchat/sqlchat/internal/session"
)

// HistoryWindow is the fixed trailing window of conversation turns rendered
// into every prompt: 12 turns, i.e. the last 6 question/answer pairs. Older
// turns stay in the session history but are not sent to the model.
const HistoryWindow = 12

// Prompt is the exact text pair sent to the model.
type Prompt struct {
	System string
	User   string
}

const generationSystem = `You are a data analyst at a company. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, write a SQL query that would answer the user's question. Take the conversation history into account.
Write only the SQL query and nothing else. Do not wrap the SQL query in any other text, not even backticks.`

const answerSystem = `You are a data analyst at a company. You are interacting with a user who is asking you questions about the company's database.
Based on the table schema below, question, sql query, and sql response, write a natural language response.
If the sql response reports an error, explain the error to the user plainly and do not invent a result.`

const fewShotExamples = `Example:
Question: which 3 artists have the most tracks?
SQL Query: SELECT artist_id, COUNT(*) AS track_count FROM tracks GROUP BY artist_id ORDER BY track_count DESC LIMIT 3;
Question: Name 10 artists
SQL Query: SELECT name FROM artists LIMIT 10;`

// BuildGeneration renders the SQL generation prompt. It is a pure function:
// identical inputs produce byte-identical output, and an empty history keeps
// the same section layout with an empty history body.
func BuildGeneration(description schema.Description, history []session.Turn, question string) Prompt {
	var b strings.Builder
	b.WriteString("<SCHEMA>\n")
	b.WriteString(description.Render())
	b.WriteString("\n</SCHEMA>\n\n")
	b.WriteString("Conversation history:\n")
	b.WriteString(renderHistory(history))
	b.WriteString("\n\n")
	b.WriteString(fewShotExamples)
	b.WriteString("\n\nYour turn:\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nSQL Query:")
	return Prompt{System: generationSystem, User: b.String()}
}

// BuildAnswer renders the natural-language answer prompt. The result text
// carries either rendered rows or the statement failure message, so the
// model is always grounded in the true execution outcome.
func BuildAnswer(description schema.Description, history []session.Turn, question, sqlText, resultText string) Prompt {
	var b strings.Builder
	b.WriteString("<SCHEMA>\n")
	b.WriteString(description.Render())
	b.WriteString("\n</SCHEMA>\n\n")
	b.WriteString("Conversation history:\n")
	b.WriteString(renderHistory(history))
	b.WriteString("\n\nSQL Query: <SQL>")
	b.WriteString(sqlText)
	b.WriteString("</SQL>\nUser question: ")
	b.WriteString(question)
	b.WriteString("\nSQL Response: ")
	b.WriteString(resultText)
	return Prompt{System: answerSystem, User: b.String()}
}

func renderHistory(history []session.Turn) string {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	if len(history) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(history))
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Text))
	}
	return strings.Join(lines, "\n")
}
