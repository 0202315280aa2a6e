package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Category classifies a long-term memory fact.
type Category string

// Fact categories. Crisis is never produced by extraction; it is reserved
// for safety-relevant facts flagged at write time.
const (
	CategoryInsight      Category = "insight"
	CategoryPreference   Category = "preference"
	CategoryTrigger      Category = "trigger"
	CategoryProgress     Category = "progress"
	CategoryRelationship Category = "relationship"
	CategoryGoal         Category = "goal"
	CategoryCrisis       Category = "crisis"
)

// ValidCategory reports whether s names a known fact category.
func ValidCategory(s string) bool {
	switch Category(s) {
	case CategoryInsight, CategoryPreference, CategoryTrigger,
		CategoryProgress, CategoryRelationship, CategoryGoal, CategoryCrisis:
		return true
	}
	return false
}

// Durable reports whether facts of this category are worth surfacing
// across sessions. One-off insights and relationship notes stay
// session-scoped.
func (c Category) Durable() bool {
	switch c {
	case CategoryProgress, CategoryGoal, CategoryPreference, CategoryTrigger:
		return true
	}
	return false
}

// MemoryFact is a durable, categorized insight extracted from
// conversation. Facts are append-only; they are never mutated after
// insertion.
type MemoryFact struct {
	ID         surrealmodels.RecordID  `json:"id"`
	UserID     string                  `json:"user_id"`
	SessionID  *surrealmodels.RecordID `json:"session_id,omitempty"`
	Category   Category                `json:"category"`
	Content    string                  `json:"content"`
	Theme      string                  `json:"theme,omitempty"`
	Importance *float64                `json:"importance,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// ScoredFact pairs a fact with its relevance to the current message.
type ScoredFact struct {
	MemoryFact
	Relevance float64 `json:"relevance"`
}
