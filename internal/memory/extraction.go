package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/luma-go/internal/models"
)

// Generator is the slice of the LLM backend the extractor needs.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

const (
	// minTurnsForExtraction gates extraction until the conversation has
	// enough substance to mine.
	minTurnsForExtraction = 6

	// extractionWindow bounds how many trailing turns go into the
	// transcript.
	extractionWindow = 12

	extractionMaxTokens = 400
	summaryMaxTokens    = 200
)

const extractionSystemPrompt = "You are an expert therapeutic AI that extracts precise insights from conversations. Return only valid JSON."

const extractionPromptTemplate = `Analyze this therapeutic conversation and extract key insights about the user. Focus on patterns, preferences, triggers, and growth indicators.

CONVERSATION:
%s

Extract structured insights in these categories:
1. INSIGHTS: New realizations or patterns about the user's personality, values, or behavior
2. PREFERENCES: How they prefer to communicate, cope, or be supported
3. TRIGGERS: What upsets them, causes stress, or creates emotional reactions
4. PROGRESS: Signs of growth, improvement, or therapeutic breakthroughs
5. RELATIONSHIPS: Patterns in their family, work, or social dynamics
6. GOALS: Things they want to achieve, change, or work toward

For each insight, provide:
- Category: one of [insight, preference, trigger, progress, relationship, goal]
- Content: Clear, specific insight (2-3 sentences max)
- Theme: Single keyword representing the main theme

Return ONLY a JSON array with no additional text:
[{"category": "insight", "content": "User processes emotions better when given specific frameworks rather than open-ended questions", "theme": "communication"}]

Extract only NEW insights not previously captured. Be specific and actionable.`

const summaryPromptTemplate = `Summarize this conversation in 2-3 sentences. Capture the emotional tone, the main topics, and anything the user committed to. Write in third person about "the user".

CONVERSATION:
%s

Summary:`

// Extractor mines finished turns for durable facts and maintains the
// rolling session digest.
type Extractor struct {
	store  Store
	model  Generator
	logger *slog.Logger
}

// NewExtractor creates an extractor using the given generation backend.
func NewExtractor(store Store, model Generator, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{store: store, model: model, logger: logger}
}

// extractedFact is the wire shape the extraction prompt asks for.
type extractedFact struct {
	Category string `json:"category"`
	Content  string `json:"content"`
	Theme    string `json:"theme"`
}

// Process extracts facts from the conversation and refreshes the session
// digest. Errors are logged, never returned: extraction is best-effort
// and must not disturb the conversation loop.
func (e *Extractor) Process(ctx context.Context, userID string, sessionID surrealmodels.RecordID, history []models.Turn) {
	if len(history) < minTurnsForExtraction {
		return
	}

	transcript := formatTranscript(history, extractionWindow)

	e.extractFacts(ctx, userID, sessionID, transcript)
	e.refreshSummary(ctx, sessionID, transcript)
}

func (e *Extractor) extractFacts(ctx context.Context, userID string, sessionID surrealmodels.RecordID, transcript string) {
	prompt := fmt.Sprintf(extractionPromptTemplate, transcript)

	raw, err := e.model.Generate(ctx, extractionSystemPrompt, prompt, extractionMaxTokens, 0.2)
	if err != nil {
		e.logger.Warn("memory extraction generation failed", "user_id", userID, "error", err)
		return
	}

	extracted := parseExtractedFacts(raw)
	if len(extracted) == 0 {
		e.logger.Debug("no facts extracted", "user_id", userID)
		return
	}

	// Skip facts already stored for this session
	existing, err := e.store.QuerySessionMemories(ctx, userID, sessionID, 100)
	if err != nil {
		e.logger.Warn("existing memory lookup failed", "user_id", userID, "error", err)
		existing = nil
	}
	known := make(map[string]struct{}, len(existing))
	for _, fact := range existing {
		known[dedupeKey(fact)] = struct{}{}
	}

	facts := make([]models.MemoryFact, 0, len(extracted))
	for _, item := range extracted {
		if !models.ValidCategory(item.Category) {
			continue
		}
		fact := models.MemoryFact{
			UserID:    userID,
			SessionID: &sessionID,
			Category:  models.Category(item.Category),
			Content:   strings.TrimSpace(item.Content),
			Theme:     strings.TrimSpace(item.Theme),
		}
		if fact.Content == "" {
			continue
		}
		if _, ok := known[dedupeKey(fact)]; ok {
			continue
		}
		known[dedupeKey(fact)] = struct{}{}
		facts = append(facts, fact)
	}

	if len(facts) == 0 {
		return
	}

	inserted, err := e.store.QueryInsertMemoryFacts(ctx, facts)
	if err != nil {
		e.logger.Warn("memory insert failed", "user_id", userID, "inserted", inserted, "error", err)
		return
	}
	e.logger.Info("extracted memories stored", "user_id", userID, "count", inserted)
}

func (e *Extractor) refreshSummary(ctx context.Context, sessionID surrealmodels.RecordID, transcript string) {
	prompt := fmt.Sprintf(summaryPromptTemplate, transcript)

	summary, err := e.model.Generate(ctx, "You summarize therapeutic conversations faithfully and concisely.", prompt, summaryMaxTokens, 0.3)
	if err != nil {
		e.logger.Warn("session summary generation failed", "error", err)
		return
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return
	}

	if err := e.store.QueryUpsertSummary(ctx, sessionID, summary); err != nil {
		e.logger.Warn("session summary upsert failed", "error", err)
	}
}

// formatTranscript renders the trailing turns as "User:/Assistant:" lines.
func formatTranscript(history []models.Turn, window int) string {
	turns := history
	if len(turns) > window {
		turns = turns[len(turns)-window:]
	}

	var sb strings.Builder
	for _, turn := range turns {
		speaker := "User"
		if turn.Role == models.RoleAssistant {
			speaker = "Assistant"
		}
		sb.WriteString(speaker)
		sb.WriteString(": ")
		sb.WriteString(turn.Content)
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

// parseExtractedFacts decodes the model output. It tolerates code fences
// and leading prose around the JSON array; if no array decodes, it falls
// back to a line-oriented parse.
func parseExtractedFacts(raw string) []extractedFact {
	clean := strings.ReplaceAll(raw, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start >= 0 && end > start {
		var facts []extractedFact
		if err := json.Unmarshal([]byte(clean[start:end+1]), &facts); err == nil {
			return facts
		}
	}

	return fallbackParseFacts(clean)
}

// fallbackParseFacts recovers facts from prose-style output. A category
// word anywhere in a line switches the current category; lines shaped
// like "Label: content" become facts.
func fallbackParseFacts(content string) []extractedFact {
	var facts []extractedFact

	current := string(models.CategoryInsight)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		for _, cat := range []string{"insight", "preference", "trigger", "progress", "relationship", "goal"} {
			if strings.Contains(lower, cat) {
				current = cat
				break
			}
		}

		idx := strings.Index(line, ":")
		if idx < 0 || len(line) <= 20 {
			continue
		}
		body := strings.TrimSpace(line[idx+1:])
		if len(body) <= 10 {
			continue
		}
		facts = append(facts, extractedFact{Category: current, Content: body, Theme: current})
	}
	return facts
}
