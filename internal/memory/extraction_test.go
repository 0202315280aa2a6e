package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/raphaelgruber/luma-go/internal/models"
)

// fakeGenerator returns canned responses per prompt keyword.
type fakeGenerator struct {
	extractionOutput string
	summaryOutput    string
	err              error
	calls            int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, userPrompt string, _ int, _ float64) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(userPrompt, "Summarize this conversation") {
		return g.summaryOutput, nil
	}
	return g.extractionOutput, nil
}

func turns(n int) []models.Turn {
	out := make([]models.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out = append(out, models.Turn{Role: role, Content: "turn content"})
	}
	return out
}

func TestProcessSkipsShortConversations(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{}
	e := NewExtractor(store, gen, nil)

	e.Process(context.Background(), "test-user", testSessionID(), turns(5))

	if gen.calls != 0 {
		t.Errorf("generator called %d times for a short conversation, want 0", gen.calls)
	}
	if len(store.inserted) != 0 {
		t.Errorf("facts inserted for a short conversation: %+v", store.inserted)
	}
}

func TestProcessStoresValidFactsAndSummary(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{
		extractionOutput: `Here are the insights:
` + "```json" + `
[
  {"category": "goal", "content": "Wants to rebuild a morning routine", "theme": "habits"},
  {"category": "banana", "content": "Invalid category is dropped", "theme": "noise"},
  {"category": "trigger", "content": "  Sudden schedule changes cause stress  ", "theme": "stress"}
]
` + "```",
		summaryOutput: "The user discussed routines and schedule stress.",
	}
	e := NewExtractor(store, gen, nil)

	e.Process(context.Background(), "test-user", testSessionID(), turns(8))

	if len(store.inserted) != 2 {
		t.Fatalf("inserted = %d facts, want 2 (got %+v)", len(store.inserted), store.inserted)
	}
	if store.inserted[0].Category != models.CategoryGoal {
		t.Errorf("first fact category = %s, want goal", store.inserted[0].Category)
	}
	if store.inserted[1].Content != "Sudden schedule changes cause stress" {
		t.Errorf("content not trimmed: %q", store.inserted[1].Content)
	}
	for _, fact := range store.inserted {
		if fact.UserID != "test-user" || fact.SessionID == nil {
			t.Errorf("fact missing ownership fields: %+v", fact)
		}
	}

	sid := testSessionID()
	if got := store.summaries[sid.String()]; got != "The user discussed routines and schedule stress." {
		t.Errorf("summary = %q", got)
	}
}

func TestProcessDeduplicatesAgainstStoredFacts(t *testing.T) {
	store := newFakeStore()
	store.sessionFacts = []models.MemoryFact{
		fact(models.CategoryGoal, "Wants to rebuild a morning routine"),
	}
	gen := &fakeGenerator{
		extractionOutput: `[{"category": "goal", "content": "Wants to rebuild a morning routine", "theme": "habits"}]`,
		summaryOutput:    "digest",
	}
	e := NewExtractor(store, gen, nil)

	e.Process(context.Background(), "test-user", testSessionID(), turns(8))

	if len(store.inserted) != 0 {
		t.Errorf("duplicate fact was inserted: %+v", store.inserted)
	}
}

func TestProcessSurvivesGenerationFailure(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{err: errors.New("backend down")}
	e := NewExtractor(store, gen, nil)

	// Must not panic or insert anything
	e.Process(context.Background(), "test-user", testSessionID(), turns(10))

	if len(store.inserted) != 0 {
		t.Errorf("facts inserted despite generation failure: %+v", store.inserted)
	}
}

func TestParseExtractedFactsFallback(t *testing.T) {
	raw := `I could not produce JSON, but here is what I found.

INSIGHTS
- Realization: The user opens up more after talking about concrete events from the week
TRIGGERS
- Stressor: Unexpected calls from family members tend to derail the user's whole day`

	facts := parseExtractedFacts(raw)
	if len(facts) != 2 {
		t.Fatalf("parsed %d facts, want 2 (got %+v)", len(facts), facts)
	}
	if facts[0].Category != "insight" {
		t.Errorf("first category = %q, want insight", facts[0].Category)
	}
	if facts[1].Category != "trigger" {
		t.Errorf("second category = %q, want trigger", facts[1].Category)
	}
}

func TestParseExtractedFactsGarbage(t *testing.T) {
	if facts := parseExtractedFacts("no structure here"); len(facts) != 0 {
		t.Errorf("garbage input produced facts: %+v", facts)
	}
}

func TestFormatTranscriptWindow(t *testing.T) {
	history := []models.Turn{
		{Role: models.RoleUser, Content: "one"},
		{Role: models.RoleAssistant, Content: "two"},
		{Role: models.RoleUser, Content: "three"},
	}

	got := formatTranscript(history, 2)
	want := "Assistant: two\nUser: three"
	if got != want {
		t.Errorf("formatTranscript = %q, want %q", got, want)
	}
}
