package analysis

import (
	"strings"

	"github.com/raphaelgruber/luma-go/internal/models"
)

// Theme tags produced by the detector. The vocabulary follows the CBT,
// DBT, and IFS frameworks the companion's prompts are built around.
const (
	ThemeCognitiveDistortion = "cbt_cognitive_distortion"
	ThemeEmotionRegulation   = "dbt_emotion_regulation"
	ThemeInterpersonal       = "dbt_interpersonal"
	ThemeDistressTolerance   = "dbt_distress_tolerance"
	ThemePartsWork           = "ifs_parts_work"
	ThemeSelfCompassion      = "ifs_self_compassion"
	ThemeBehavioral          = "cbt_behavioral"
	ThemeRecurring           = "recurring_pattern"
	ThemeMemoryPattern       = "memory_pattern"
)

// ThemeReport is the outcome of scanning one turn for therapeutic themes.
type ThemeReport struct {
	Score             float64
	Themes            []string
	Critical          bool
	SuggestReflection bool
	Reason            string
}

// ThemeWeights holds per-theme hit weights and decision thresholds.
type ThemeWeights struct {
	CognitiveDistortion float64 `yaml:"cognitive_distortion"`
	EmotionRegulation   float64 `yaml:"emotion_regulation"`
	Interpersonal       float64 `yaml:"interpersonal"`
	DistressTolerance   float64 `yaml:"distress_tolerance"`
	PartsWork           float64 `yaml:"parts_work"`
	SelfCompassion      float64 `yaml:"self_compassion"`
	Behavioral          float64 `yaml:"behavioral"`
	Recurrence          float64 `yaml:"recurrence"`
	MemoryPattern       float64 `yaml:"memory_pattern"`

	ReflectAt  float64 `yaml:"reflect_at"`
	CriticalAt float64 `yaml:"critical_at"`
}

// DefaultThemeWeights returns the production tuning. Distress/crisis
// language carries the highest weight so a single hit crosses the
// reflection threshold.
func DefaultThemeWeights() ThemeWeights {
	return ThemeWeights{
		CognitiveDistortion: 0.30,
		EmotionRegulation:   0.40,
		Interpersonal:       0.35,
		DistressTolerance:   0.50,
		PartsWork:           0.35,
		SelfCompassion:      0.40,
		Behavioral:          0.30,
		Recurrence:          0.20,
		MemoryPattern:       0.15,

		ReflectAt:  0.40,
		CriticalAt: 0.50,
	}
}

var (
	cognitiveDistortionWords = []string{
		"always", "never", "everyone", "nobody", "terrible", "awful",
		"can't handle", "should have", "must be", "all or nothing",
		"catastrophizing", "worst case", "i'm stupid", "i'm worthless",
	}

	emotionRegulationWords = []string{
		"out of control", "can't stop crying", "rage", "fury", "overwhelmed",
		"emotional rollercoaster", "up and down", "intense feelings",
		"can't calm down", "spiraling", "losing it", "breaking down",
	}

	interpersonalWords = []string{
		"relationship problems", "can't communicate", "always fighting",
		"toxic relationship", "boundaries", "people pleasing", "conflict",
		"misunderstood", "can't say no", "walking on eggshells",
	}

	distressWords = []string{
		"crisis", "emergency", "can't cope", "can't go on", "falling apart",
		"breaking point", "suicidal", "self-harm", "urges", "impulsive",
		"destructive behavior", "addiction", "relapse", "can't resist",
	}

	partsWorkWords = []string{
		"part of me", "inner critic", "internal battle", "conflicted",
		"torn between", "inner child", "different sides", "self-criticism",
		"inner voice", "sabotaging myself", "inner conflict",
	}

	selfCompassionWords = []string{
		"hate myself", "i'm terrible", "can't forgive myself", "self-hatred",
		"hard on myself", "perfectionist", "never good enough", "shame",
		"guilt", "self-blame", "beating myself up",
	}

	behavioralWords = []string{
		"avoidance", "procrastination", "can't get motivated", "stuck",
		"same pattern", "bad habits", "cycle", "routine problems",
		"can't break", "keep doing", "automatic",
	}

	recurrenceWords = []string{
		"again", "same thing", "pattern", "cycle", "repeat", "always",
		"every time", "happens again", "story of my life",
	}

	therapeuticMemoryWords = []string{
		"cognitive", "emotional", "behavioral", "pattern", "trigger",
	}
)

// recentTurnWindow bounds how far back recurrence detection looks.
const recentTurnWindow = 5

// DetectThemes scans a message, the recent history, and the retrieved
// memory facts for therapeutic themes. Pure offline classifier; it never
// calls a generation backend.
func DetectThemes(message string, history []models.Turn, criticalFacts []models.ScoredFact, w ThemeWeights) ThemeReport {
	text := strings.ToLower(message)

	var score float64
	var themes []string

	scan := func(words []string, weight float64, tag string) {
		for _, word := range words {
			if strings.Contains(text, word) {
				score += weight
				themes = append(themes, tag)
			}
		}
	}

	scan(cognitiveDistortionWords, w.CognitiveDistortion, ThemeCognitiveDistortion)
	scan(emotionRegulationWords, w.EmotionRegulation, ThemeEmotionRegulation)
	scan(interpersonalWords, w.Interpersonal, ThemeInterpersonal)
	scan(distressWords, w.DistressTolerance, ThemeDistressTolerance)
	scan(partsWorkWords, w.PartsWork, ThemePartsWork)
	scan(selfCompassionWords, w.SelfCompassion, ThemeSelfCompassion)
	scan(behavioralWords, w.Behavioral, ThemeBehavioral)

	if hasRecurrence(text, history) || distinctCount(themes) >= 2 {
		score += w.Recurrence
		themes = append(themes, ThemeRecurring)
	}

	if referencesTherapeuticWork(criticalFacts) {
		score += w.MemoryPattern
		themes = append(themes, ThemeMemoryPattern)
	}

	report := ThemeReport{
		Score:             score,
		Themes:            dedupe(themes),
		Critical:          score >= w.CriticalAt,
		SuggestReflection: score >= w.ReflectAt,
	}
	if report.SuggestReflection {
		report.Reason = reflectionReason(report.Themes)
	}
	return report
}

func hasRecurrence(text string, history []models.Turn) bool {
	recent := history
	if len(recent) > recentTurnWindow {
		recent = recent[len(recent)-recentTurnWindow:]
	}
	var sb strings.Builder
	for _, turn := range recent {
		sb.WriteString(strings.ToLower(turn.Content))
		sb.WriteByte(' ')
	}
	combined := sb.String()

	for _, word := range recurrenceWords {
		if strings.Contains(text, word) || strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

func referencesTherapeuticWork(facts []models.ScoredFact) bool {
	for _, f := range facts {
		content := strings.ToLower(f.Content)
		for _, word := range therapeuticMemoryWords {
			if strings.Contains(content, word) {
				return true
			}
		}
	}
	return false
}

// reflectionReason picks exactly one human-readable sentence by theme
// priority.
func reflectionReason(themes []string) string {
	has := func(tag string) bool {
		for _, t := range themes {
			if t == tag {
				return true
			}
		}
		return false
	}

	switch {
	case has(ThemeCognitiveDistortion):
		return "I notice some thought patterns that might benefit from deeper exploration. Journaling can help identify and reframe these cognitive patterns through structured self-reflection."
	case has(ThemeEmotionRegulation):
		return "These intense emotions suggest journaling could be helpful for processing and understanding your emotional experiences more deeply."
	case has(ThemePartsWork):
		return "There seems to be some internal conflict happening. Journaling with self-authoring exercises could help you understand and integrate these different parts of yourself."
	case has(ThemeSelfCompassion):
		return "I hear some self-criticism. Journaling can be a space to develop more self-compassion and understanding through structured reflection."
	default:
		return "This seems like an important moment for deeper reflection. Journaling could help you process these experiences more thoroughly."
	}
}

func distinctCount(themes []string) int {
	set := make(map[string]struct{}, len(themes))
	for _, t := range themes {
		set[t] = struct{}{}
	}
	return len(set)
}

func dedupe(themes []string) []string {
	seen := make(map[string]struct{}, len(themes))
	out := themes[:0]
	for _, t := range themes {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
