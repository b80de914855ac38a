package prompt

import (
	"strings"
	"testing"

	"github.com/sqlchat/sqlchat/internal/schema"
	"github.com/sqlchat/sqlchat/internal/session"
)

func trackSchema() schema.Description {
	return schema.Description{Tables: []schema.Table{
		{Name: "tracks", Columns: []schema.Column{{Name: "id", Type: "bigint"}, {Name: "name", Type: "text"}}},
	}}
}

func TestBuildGenerationIsPure(t *testing.T) {
	history := []session.Turn{
		{Role: session.RoleUser, Text: "how many tracks?"},
		{Role: session.RoleAssistant, Text: "There are 42 tracks."},
	}
	first := BuildGeneration(trackSchema(), history, "name five tracks")
	second := BuildGeneration(trackSchema(), history, "name five tracks")
	if first != second {
		t.Fatal("BuildGeneration() is not deterministic")
	}
}

func TestBuildGenerationContainsSchemaAndQuestion(t *testing.T) {
	p := BuildGeneration(trackSchema(), nil, "how many tracks are there?")
	if !strings.Contains(p.User, "<SCHEMA>") || !strings.Contains(p.User, "</SCHEMA>") {
		t.Fatalf("prompt missing schema tags: %q", p.User)
	}
	if !strings.Contains(p.User, "TABLE tracks (") {
		t.Fatalf("prompt missing schema body: %q", p.User)
	}
	if !strings.Contains(p.User, "Question: how many tracks are there?") {
		t.Fatalf("prompt missing question: %q", p.User)
	}
	if !strings.Contains(p.System, "Write only the SQL query") {
		t.Fatalf("system prompt = %q", p.System)
	}
}

func TestBuildGenerationEmptyHistoryKeepsLayout(t *testing.T) {
	empty := BuildGeneration(trackSchema(), nil, "q")
	full := BuildGeneration(trackSchema(), []session.Turn{
		{Role: session.RoleUser, Text: "earlier question"},
		{Role: session.RoleAssistant, Text: "earlier answer"},
	}, "q")

	for _, p := range []Prompt{empty, full} {
		if !strings.Contains(p.User, "Conversation history:\n") {
			t.Fatalf("missing history section: %q", p.User)
		}
	}
	if !strings.Contains(empty.User, "(none)") {
		t.Fatalf("empty history marker missing: %q", empty.User)
	}
	if !strings.Contains(full.User, "user: earlier question") {
		t.Fatalf("history body missing: %q", full.User)
	}
	// Same template shape: stripping the history bodies leaves identical text.
	normalizedEmpty := strings.Replace(empty.User, "(none)", "", 1)
	normalizedFull := strings.Replace(full.User, "user: earlier question\nassistant: earlier answer", "", 1)
	if normalizedEmpty != normalizedFull {
		t.Fatal("history content changed the surrounding template")
	}
}

func TestBuildGenerationTrimsHistoryWindow(t *testing.T) {
	var history []session.Turn
	for i := 0; i < HistoryWindow; i++ {
		history = append(history,
			session.Turn{Role: session.RoleUser, Text: "old question"},
			session.Turn{Role: session.RoleAssistant, Text: "old answer"},
		)
	}
	history = append(history, session.Turn{Role: session.RoleUser, Text: "latest question"})

	p := BuildGeneration(trackSchema(), history, "q")
	if !strings.Contains(p.User, "latest question") {
		t.Fatal("window dropped the newest turn")
	}
	if got := strings.Count(p.User, "old question"); got > HistoryWindow/2 {
		t.Fatalf("window kept %d old turns", got)
	}
}

func TestBuildAnswerCarriesFailureText(t *testing.T) {
	p := BuildAnswer(trackSchema(), nil, "how many rows?", "SELECT COUNT(*) FROM missing", `ERROR: relation "missing" does not exist`)
	if !strings.Contains(p.User, `relation "missing" does not exist`) {
		t.Fatalf("failure text missing: %q", p.User)
	}
	if !strings.Contains(p.User, "<SQL>SELECT COUNT(*) FROM missing</SQL>") {
		t.Fatalf("sql missing: %q", p.User)
	}
	if !strings.Contains(p.System, "do not invent a result") {
		t.Fatalf("system prompt = %q", p.System)
	}
}
