// Package analysis provides the pure, deterministic classifiers that gate
// routing on every turn: message complexity, memory relevance, and
// therapeutic theme detection. Nothing in this package performs I/O.
package analysis

import "strings"

// Tier is the discrete complexity bucket assigned to a message. It drives
// both the context window size and the backend choice.
type Tier int

const (
	TierSimple Tier = iota
	TierModerate
	TierComplex
	TierVeryComplex
)

func (t Tier) String() string {
	switch t {
	case TierSimple:
		return "simple"
	case TierModerate:
		return "moderate"
	case TierComplex:
		return "complex"
	case TierVeryComplex:
		return "very-complex"
	}
	return "unknown"
}

// Backend is the recommended generation strategy for a tier.
type Backend int

const (
	BackendFast Backend = iota
	BackendDeep
	BackendHybrid
)

func (b Backend) String() string {
	switch b {
	case BackendFast:
		return "fast"
	case BackendDeep:
		return "deep"
	case BackendHybrid:
		return "hybrid"
	}
	return "unknown"
}

// Complexity is the per-message routing decision.
type Complexity struct {
	Score   float64
	Tier    Tier
	Factors []string
	Backend Backend
	Window  int
}

// ComplexityWeights holds the additive factor weights and tier thresholds.
// The numbers are hand-tuned, not calibrated against labeled data; treat
// them as configuration.
type ComplexityWeights struct {
	LongMessage   float64 `yaml:"long_message"`
	MultiSentence float64 `yaml:"multi_sentence"`
	Question      float64 `yaml:"question"`
	DeepEmotion   float64 `yaml:"deep_emotion"`
	Analysis      float64 `yaml:"analysis"`
	Comparative   float64 `yaml:"comparative"`
	LifeSituation float64 `yaml:"life_situation"`
	Therapeutic   float64 `yaml:"therapeutic"`
	Planning      float64 `yaml:"planning"`
	LongDialogue  float64 `yaml:"long_dialogue"`

	ModerateAt    float64 `yaml:"moderate_at"`
	ComplexAt     float64 `yaml:"complex_at"`
	VeryComplexAt float64 `yaml:"very_complex_at"`
}

// DefaultComplexityWeights returns the production tuning.
func DefaultComplexityWeights() ComplexityWeights {
	return ComplexityWeights{
		LongMessage:   0.15,
		MultiSentence: 0.10,
		Question:      0.25,
		DeepEmotion:   0.30,
		Analysis:      0.35,
		Comparative:   0.25,
		LifeSituation: 0.20,
		Therapeutic:   0.30,
		Planning:      0.20,
		LongDialogue:  0.05,

		ModerateAt:    0.35,
		ComplexAt:     0.60,
		VeryComplexAt: 0.80,
	}
}

const longMessageChars = 250

var (
	questionPhrases = []string{"why", "how", "what if", "should i", "help me understand", "explain"}

	deepEmotionWords = []string{
		"confused", "overwhelmed", "conflicted", "torn", "struggling",
		"ambivalent", "complex feelings",
	}

	analysisWords = []string{
		"analyze", "pattern", "understand", "figure out", "make sense",
		"interpret", "meaning",
	}

	comparativePhrases = []string{
		" vs ", " versus ", " compared to ", " on one hand ", " on the other hand ",
	}

	lifeSituationPhrases = []string{
		"relationship", "career decision", "major change", "life transition",
		"family dynamics",
	}

	therapeuticWords = []string{
		"therapy", "counselor", "trauma", "healing", "breakthrough",
		"pattern", "trigger",
	}

	planningWords = []string{"steps", "process", "approach", "strategy", "plan"}
)

// AnalyzeComplexity scores a message and maps it to a tier, a recommended
// backend, and a context window size. It is total: every input, including
// the empty string, resolves to a valid Complexity.
func AnalyzeComplexity(message string, conversationLength int, w ComplexityWeights) Complexity {
	text := strings.ToLower(message)
	var score float64
	var factors []string

	add := func(weight float64, factor string) {
		score += weight
		factors = append(factors, factor)
	}

	if len(message) > longMessageChars {
		add(w.LongMessage, "long-message")
	}

	if countSentences(message) > 3 {
		add(w.MultiSentence, "multi-sentence")
	}

	if containsAny(text, questionPhrases) {
		add(w.Question, "complex-question")
	}
	if containsAny(text, deepEmotionWords) {
		add(w.DeepEmotion, "emotional-complexity")
	}
	if containsAny(text, analysisWords) {
		add(w.Analysis, "analysis-request")
	}
	if containsAny(text, comparativePhrases) {
		add(w.Comparative, "comparative-analysis")
	}
	if containsAny(text, lifeSituationPhrases) {
		add(w.LifeSituation, "life-complexity")
	}
	if containsAny(text, therapeuticWords) {
		add(w.Therapeutic, "therapeutic-processing")
	}
	if containsAny(text, planningWords) {
		add(w.Planning, "problem-solving")
	}
	if conversationLength > 30 {
		add(w.LongDialogue, "extended-conversation")
	}

	c := Complexity{Score: score, Factors: factors}
	switch {
	case score >= w.VeryComplexAt:
		c.Tier = TierVeryComplex
		c.Backend = BackendHybrid
		c.Window = 25
	case score >= w.ComplexAt:
		c.Tier = TierComplex
		c.Backend = BackendDeep
		c.Window = 20
	case score >= w.ModerateAt:
		c.Tier = TierModerate
		c.Backend = BackendFast
		c.Window = 15
	default:
		c.Tier = TierSimple
		c.Backend = BackendFast
		c.Window = 10
	}
	return c
}

func countSentences(s string) int {
	n := 0
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
