package analysis

import (
	"strings"

	"github.com/raphaelgruber/luma-go/internal/models"
)

// Markers are the semantic signals extracted from one message, used both
// for store-side predicate building and for relevance scoring.
type Markers struct {
	Keywords      []string
	Emotions      []string
	Relationships []string
	LifeDomains   []string
	Actions       []string
}

// Category word-lists. Fixed vocabularies, matched by substring against
// the lowercased message.
var (
	emotionWords = []string{
		"sad", "happy", "angry", "anxious", "worried", "excited",
		"frustrated", "lonely", "hopeful", "overwhelmed", "conflicted",
		"peaceful",
	}

	relationshipWords = []string{
		"family", "friend", "partner", "spouse", "work", "boss",
		"colleague", "parent", "child", "sibling", "mother", "father",
	}

	lifeDomainWords = []string{
		"job", "career", "health", "money", "finance", "relationship",
		"stress", "goal", "dream", "home", "school", "therapy",
	}

	actionWords = []string{
		"change", "improve", "stop", "start", "learn", "understand",
		"decide", "choose", "help", "support", "cope",
	}
)

// minKeywordLen filters trivial tokens out of keyword extraction.
const minKeywordLen = 3

// ExtractMarkers pulls the bounded keyword sets out of a message.
func ExtractMarkers(message string) Markers {
	text := strings.ToLower(message)

	return Markers{
		Keywords:      longTokens(text),
		Emotions:      matches(emotionWords, text),
		Relationships: matches(relationshipWords, text),
		LifeDomains:   matches(lifeDomainWords, text),
		Actions:       matches(actionWords, text),
	}
}

// Themes returns the flattened theme terms used for store-side OR
// predicates: emotions, relationships, and life domains, plus the inferred
// emotional context.
func (m Markers) Themes(context models.Category) []string {
	themes := make([]string, 0, len(m.Emotions)+len(m.Relationships)+len(m.LifeDomains)+1)
	themes = append(themes, m.Emotions...)
	themes = append(themes, m.Relationships...)
	themes = append(themes, m.LifeDomains...)
	if context != "" {
		themes = append(themes, string(context))
	}
	return themes
}

// InferEmotionalContext maps a message to the memory category it most
// likely concerns. Deterministic keyword priority: crisis outranks
// everything, insight is the default.
func InferEmotionalContext(message string) models.Category {
	text := strings.ToLower(message)

	switch {
	case containsAny(text, []string{"harm", "hurt", "suicide", "crisis"}):
		return models.CategoryCrisis
	case containsAny(text, []string{"better", "progress", "improvement", "breakthrough"}):
		return models.CategoryProgress
	case containsAny(text, []string{"relationship", "family", "partner", "friend"}):
		return models.CategoryRelationship
	case containsAny(text, []string{"goal", "want to", "planning", "future"}):
		return models.CategoryGoal
	case containsAny(text, []string{"trigger", "upset", "angry", "anxious"}):
		return models.CategoryTrigger
	default:
		return models.CategoryInsight
	}
}

// Priority classifies how urgently memory context is needed. It gates the
// critical-insight sub-query in retrieval.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// AssessPriority inspects a message for urgency indicators.
func AssessPriority(message string) Priority {
	text := strings.ToLower(message)

	switch {
	case containsAny(text, []string{"crisis", "emergency", "harm", "suicide", "can't cope", "can't go on"}):
		return PriorityCritical
	case containsAny(text, []string{"overwhelmed", "breaking point", "desperate", "lost", "hopeless"}):
		return PriorityHigh
	case containsAny(text, []string{"struggle", "difficult", "challenging", "confused", "stuck"}):
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func longTokens(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > minKeywordLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func isWordRune(r rune) bool {
	return r == '\'' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func matches(words []string, text string) []string {
	var out []string
	for _, w := range words {
		if strings.Contains(text, w) {
			out = append(out, w)
		}
	}
	return out
}
