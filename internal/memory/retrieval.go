// Package memory provides long-term memory retrieval and extraction for
// the companion. Retrieval runs inline on every turn; extraction runs in
// the background after the reply is sent.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/luma-go/internal/analysis"
	"github.com/raphaelgruber/luma-go/internal/models"
)

// Store is the persistence surface retrieval and extraction need. It is
// satisfied by *db.Client.
type Store interface {
	QuerySessionMemories(ctx context.Context, userID string, sessionID surrealmodels.RecordID, limit int) ([]models.MemoryFact, error)
	QueryMemories(ctx context.Context, userID string, categories []models.Category, themes []string, searchText string, limit int) ([]models.MemoryFact, error)
	QueryMemoriesByCategory(ctx context.Context, userID string, categories []models.Category, limit int) ([]models.MemoryFact, error)
	QueryInsertMemoryFacts(ctx context.Context, facts []models.MemoryFact) (int, error)
	QueryUpsertSummary(ctx context.Context, sessionID surrealmodels.RecordID, summary string) error
}

// RetrievalResult groups the facts pulled in for one turn.
type RetrievalResult struct {
	SessionMemories      []models.ScoredFact
	CrossSessionMemories []models.ScoredFact
	CriticalInsights     []models.ScoredFact
	RetrievalTime        time.Duration
}

// relevanceFloor drops facts whose score cannot meaningfully shape the
// reply.
const relevanceFloor = 0.3

// criticalRelevance marks a fact as a critical insight on score alone,
// whatever its category.
const criticalRelevance = 0.8

// contentKeyLen bounds the content prefix used for deduplication.
const contentKeyLen = 50

// Retriever scores and ranks stored facts against the current message.
type Retriever struct {
	store   Store
	weights analysis.RelevanceWeights
	logger  *slog.Logger
}

// NewRetriever creates a retriever over the given store.
func NewRetriever(store Store, weights analysis.RelevanceWeights, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, weights: weights, logger: logger}
}

// Retrieve pulls session-scoped, cross-session, and critical facts for a
// turn. Store failures degrade to empty lists; a broken memory layer must
// never break the conversation.
func (r *Retriever) Retrieve(
	ctx context.Context,
	userID string,
	sessionID surrealmodels.RecordID,
	message string,
	limit int,
) RetrievalResult {
	start := time.Now()

	markers := analysis.ExtractMarkers(message)
	emotionalContext := analysis.InferEmotionalContext(message)
	themes := markers.Themes(emotionalContext)

	// Overfetch so the relevance filter still fills the limit
	candidateLimit := 2 * limit

	seen := make(map[string]struct{})

	sessionFacts, err := r.store.QuerySessionMemories(ctx, userID, sessionID, candidateLimit)
	if err != nil {
		r.logger.Warn("session memory lookup failed", "user_id", userID, "error", err)
		sessionFacts = nil
	}
	session := r.rank(message, sessionFacts, limit, seen)

	crossFacts, err := r.store.QueryMemories(ctx, userID, durableCategories(), themes, message, candidateLimit)
	if err != nil {
		r.logger.Warn("cross-session memory lookup failed", "user_id", userID, "error", err)
		crossFacts = nil
	}
	cross := r.rank(message, filterDurable(crossFacts), limit, seen)

	// A fact is critical on score alone: anything above the critical
	// threshold moves out of its ranked list into the insights.
	var critical []models.ScoredFact
	session, critical = splitCritical(session, critical)
	cross, critical = splitCritical(cross, critical)

	// Crisis facts bypass the relevance floor entirely, and distressed
	// messages widen the lookup to trigger facts too.
	priority := analysis.AssessPriority(message)
	criticalFacts, err := r.store.QueryMemoriesByCategory(ctx, userID, criticalCategories(priority), limit)
	if err != nil {
		r.logger.Warn("critical insight lookup failed", "user_id", userID, "error", err)
		criticalFacts = nil
	}
	for _, fact := range criticalFacts {
		key := dedupeKey(fact)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		critical = append(critical, models.ScoredFact{
			MemoryFact: fact,
			Relevance:  analysis.ScoreRelevance(message, fact.Content, fact.Category, r.weights),
		})
	}

	return RetrievalResult{
		SessionMemories:      session,
		CrossSessionMemories: cross,
		CriticalInsights:     critical,
		RetrievalTime:        time.Since(start),
	}
}

// rank scores candidates, drops low-relevance and duplicate facts, and
// keeps the top results.
func (r *Retriever) rank(message string, candidates []models.MemoryFact, limit int, seen map[string]struct{}) []models.ScoredFact {
	scored := make([]models.ScoredFact, 0, len(candidates))
	for _, fact := range candidates {
		key := dedupeKey(fact)
		if _, ok := seen[key]; ok {
			continue
		}

		score := analysis.ScoreRelevance(message, fact.Content, fact.Category, r.weights)
		if score <= relevanceFloor {
			continue
		}
		seen[key] = struct{}{}
		scored = append(scored, models.ScoredFact{MemoryFact: fact, Relevance: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// splitCritical moves facts scoring above the critical threshold from a
// ranked list into the critical insights, keeping the lists disjoint.
func splitCritical(ranked, critical []models.ScoredFact) ([]models.ScoredFact, []models.ScoredFact) {
	kept := ranked[:0]
	for _, fact := range ranked {
		if fact.Relevance > criticalRelevance {
			critical = append(critical, fact)
		} else {
			kept = append(kept, fact)
		}
	}
	return kept, critical
}

// criticalCategories picks the category set for the critical-insight
// lookup based on how urgent the message reads.
func criticalCategories(p analysis.Priority) []models.Category {
	if p >= analysis.PriorityHigh {
		return []models.Category{models.CategoryCrisis, models.CategoryTrigger}
	}
	return []models.Category{models.CategoryCrisis}
}

// durableCategories lists the categories allowed to cross session
// boundaries.
func durableCategories() []models.Category {
	return []models.Category{
		models.CategoryProgress,
		models.CategoryGoal,
		models.CategoryPreference,
		models.CategoryTrigger,
	}
}

func filterDurable(facts []models.MemoryFact) []models.MemoryFact {
	out := facts[:0]
	for _, fact := range facts {
		if fact.Category.Durable() {
			out = append(out, fact)
		}
	}
	return out
}

func dedupeKey(fact models.MemoryFact) string {
	content := fact.Content
	if len(content) > contentKeyLen {
		content = content[:contentKeyLen]
	}
	return string(fact.Category) + "|" + content
}
