package analysis

import (
	"strings"

	"github.com/raphaelgruber/luma-go/internal/models"
)

// RelevanceWeights holds the scoring weights for memory relevance.
// Hand-tuned configuration, same caveat as ComplexityWeights.
type RelevanceWeights struct {
	SharedToken    float64 `yaml:"shared_token"`
	SharedCategory float64 `yaml:"shared_category"`
	ContextMatch   float64 `yaml:"context_match"`
	RecencyBonus   float64 `yaml:"recency_bonus"`
}

// DefaultRelevanceWeights returns the production tuning.
func DefaultRelevanceWeights() RelevanceWeights {
	return RelevanceWeights{
		SharedToken:    0.2,
		SharedCategory: 0.3,
		ContextMatch:   0.4,
		RecencyBonus:   0.1,
	}
}

// ScoreRelevance rates how relevant a candidate memory is to the current
// message, in [0, 1]. Pure and deterministic: identical inputs always
// produce identical scores.
func ScoreRelevance(message, candidate string, category models.Category, w RelevanceWeights) float64 {
	if strings.TrimSpace(candidate) == "" {
		return 0
	}

	msgMarkers := ExtractMarkers(message)
	candMarkers := ExtractMarkers(candidate)

	score := float64(overlap(msgMarkers.Keywords, candMarkers.Keywords)) * w.SharedToken

	shared := overlap(msgMarkers.Emotions, candMarkers.Emotions) +
		overlap(msgMarkers.Relationships, candMarkers.Relationships) +
		overlap(msgMarkers.LifeDomains, candMarkers.LifeDomains)
	score += float64(shared) * w.SharedCategory

	if category == InferEmotionalContext(message) {
		score += w.ContextMatch
	}

	score += w.RecencyBonus

	if score > 1.0 {
		return 1.0
	}
	return score
}

func overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	n := 0
	for _, s := range a {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := set[s]; ok {
			n++
		}
	}
	return n
}
