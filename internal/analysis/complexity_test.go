package analysis

import (
	"strings"
	"testing"
)

func TestAnalyzeComplexityTiers(t *testing.T) {
	w := DefaultComplexityWeights()

	tests := []struct {
		name    string
		message string
		convLen int
		tier    Tier
		backend Backend
		window  int
	}{
		{"empty message", "", 0, TierSimple, BackendFast, 10},
		{"greeting", "hello", 0, TierSimple, BackendFast, 10},
		{"short neutral", "the weather was nice today", 3, TierSimple, BackendFast, 10},
		{
			"single analysis request",
			"can you help me make sense of this feeling",
			4,
			TierModerate, BackendFast, 15,
		},
		{
			"emotional question",
			"why do I feel so conflicted about my career decision",
			4,
			TierComplex, BackendDeep, 20,
		},
		{
			"deep therapeutic analysis",
			"I feel overwhelmed and I keep seeing the same pattern, can you analyze it",
			10,
			TierVeryComplex, BackendHybrid, 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeComplexity(tt.message, tt.convLen, w)
			if got.Tier != tt.tier {
				t.Errorf("tier = %s, want %s (score %.2f, factors %v)", got.Tier, tt.tier, got.Score, got.Factors)
			}
			if got.Backend != tt.backend {
				t.Errorf("backend = %s, want %s", got.Backend, tt.backend)
			}
			if got.Window != tt.window {
				t.Errorf("window = %d, want %d", got.Window, tt.window)
			}
		})
	}
}

func TestAnalyzeComplexityShortNeutralIsSimple(t *testing.T) {
	// Any message under the length threshold with no keyword hits must
	// resolve to simple with a 10-message window.
	w := DefaultComplexityWeights()
	for _, msg := range []string{"ok", "thanks", "good morning", "nice weather here"} {
		got := AnalyzeComplexity(msg, 0, w)
		if got.Tier != TierSimple || got.Window != 10 {
			t.Errorf("AnalyzeComplexity(%q): tier=%s window=%d, want simple/10", msg, got.Tier, got.Window)
		}
		if got.Score != 0 {
			t.Errorf("AnalyzeComplexity(%q): score=%.2f, want 0", msg, got.Score)
		}
	}
}

func TestAnalyzeComplexityLongOverwhelmedMessage(t *testing.T) {
	// 300-char message with overwhelmed + pattern + analyze must reach at
	// least the deep tier.
	msg := "I feel completely overwhelmed by everything happening at once and I keep noticing the same pattern in how I react to stress, could you analyze what is going on with me? " +
		strings.Repeat("It keeps happening over and over and I do not know what to do about it. ", 2)
	if len(msg) < 300 {
		t.Fatalf("test message too short: %d", len(msg))
	}

	got := AnalyzeComplexity(msg, 8, DefaultComplexityWeights())
	if got.Score < 0.6 {
		t.Errorf("score = %.2f, want >= 0.6", got.Score)
	}
	if got.Backend != BackendDeep && got.Backend != BackendHybrid {
		t.Errorf("backend = %s, want deep or hybrid", got.Backend)
	}
}

func TestAnalyzeComplexityIsDeterministic(t *testing.T) {
	w := DefaultComplexityWeights()
	msg := "why do I always feel torn between my career and my family dynamics"
	a := AnalyzeComplexity(msg, 12, w)
	b := AnalyzeComplexity(msg, 12, w)
	if a.Score != b.Score || a.Tier != b.Tier || len(a.Factors) != len(b.Factors) {
		t.Errorf("same input produced different results: %+v vs %+v", a, b)
	}
}

func TestTierAndBackendStrings(t *testing.T) {
	if TierVeryComplex.String() != "very-complex" {
		t.Errorf("TierVeryComplex.String() = %q", TierVeryComplex.String())
	}
	if BackendHybrid.String() != "hybrid" {
		t.Errorf("BackendHybrid.String() = %q", BackendHybrid.String())
	}
	if Tier(99).String() != "unknown" {
		t.Errorf("out-of-range tier should stringify to unknown")
	}
}
