// Package prompt assembles the system prompt for a turn from the
// retrieved memories, the trailing conversation window, and the
// complexity analysis. Assembly is deterministic: the same inputs always
// produce the same prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/raphaelgruber/luma-go/internal/analysis"
	"github.com/raphaelgruber/luma-go/internal/memory"
	"github.com/raphaelgruber/luma-go/internal/models"
)

// Assembled is the prompt pair handed to a generation backend.
type Assembled struct {
	System      string
	UserMessage string
}

const basePrompt = "You are Luma, an expert AI life coach with advanced therapeutic training and deep memory integration."

// criticalRelevance promotes any fact scoring above it into the critical
// block regardless of category.
const criticalRelevance = 0.8

// factsPerCategory caps how many facts each non-critical category
// contributes.
const factsPerCategory = 2

// categoryOrder fixes the block order so assembly stays deterministic.
var categoryOrder = []models.Category{
	models.CategoryProgress,
	models.CategoryPreference,
	models.CategoryTrigger,
	models.CategoryRelationship,
	models.CategoryGoal,
	models.CategoryInsight,
}

// Assemble builds the backend prompt for one turn.
func Assemble(
	message string,
	history []models.Turn,
	retrieval memory.RetrievalResult,
	complexity analysis.Complexity,
) Assembled {
	window := history
	if len(window) > complexity.Window {
		window = window[len(window)-complexity.Window:]
	}

	all := make([]models.ScoredFact, 0,
		len(retrieval.SessionMemories)+len(retrieval.CrossSessionMemories)+len(retrieval.CriticalInsights))
	all = append(all, retrieval.SessionMemories...)
	all = append(all, retrieval.CrossSessionMemories...)
	all = append(all, retrieval.CriticalInsights...)

	var sb strings.Builder
	sb.WriteString(basePrompt)
	sb.WriteString(contextAwareness(len(all), len(window)))
	sb.WriteString(complexityGuidance(complexity))
	sb.WriteString(responseFramework(complexity.Tier))
	sb.WriteString(memoryContext(all))
	sb.WriteString(conversationContext(window))

	return Assembled{System: sb.String(), UserMessage: message}
}

func contextAwareness(memoryCount, messageCount int) string {
	if memoryCount > 0 {
		return fmt.Sprintf("\n\nCONTEXT INTEGRATION: You have access to %d relevant insights from past conversations and %d recent messages. Use this context naturally to provide personalized, consistent guidance that builds on previous interactions.", memoryCount, messageCount)
	}
	return fmt.Sprintf("\n\nCONTEXT INTEGRATION: You have %d recent messages for context. Build rapport while gathering deeper understanding.", messageCount)
}

func complexityGuidance(c analysis.Complexity) string {
	factors := strings.Join(c.Factors, ", ")
	switch c.Tier {
	case analysis.TierVeryComplex:
		return fmt.Sprintf("\n\nCOMPLEX ANALYSIS MODE: This query requires deep, structured analysis. Factors: %s. Provide comprehensive reasoning with multiple perspectives and actionable insights.", factors)
	case analysis.TierComplex:
		return fmt.Sprintf("\n\nANALYTICAL MODE: This situation needs thoughtful analysis. Factors: %s. Draw connections between patterns and provide specific guidance.", factors)
	case analysis.TierModerate:
		return "\n\nSUPPORTIVE GUIDANCE MODE: Provide empathetic support with practical insights. Reference relevant context and offer specific next steps."
	default:
		return "\n\nEMPATHETIC SUPPORT MODE: Provide warm, immediate support with brief, actionable guidance (2-3 sentences)."
	}
}

func responseFramework(tier analysis.Tier) string {
	if tier == analysis.TierComplex || tier == analysis.TierVeryComplex {
		return `

STRUCTURED RESPONSE FRAMEWORK:
1. REFLECTION: Acknowledge and reflect back what you understand about their situation
2. INSIGHT: Provide pattern-based insights drawing from their history and current context
3. ACTION: Suggest specific, actionable steps they can take
4. FOLLOW-UP: Set up natural follow-up questions or check-in points

Maintain warmth and empathy while providing structured, actionable guidance.`
	}
	return "\n\nRESPONSE APPROACH: Provide immediate empathetic support, reference relevant context naturally, and offer practical next steps. Keep responses conversational yet insightful."
}

// memoryContext renders the retrieved facts as categorized blocks. The
// critical block carries every crisis or high-relevance fact; the other
// categories are capped so no single category dominates the prompt.
func memoryContext(all []models.ScoredFact) string {
	if len(all) == 0 {
		return ""
	}

	var critical []string
	byCategory := make(map[models.Category][]string)
	for _, fact := range all {
		if fact.Category == models.CategoryCrisis || fact.Relevance > criticalRelevance {
			critical = append(critical, fact.Content)
			continue
		}
		byCategory[fact.Category] = append(byCategory[fact.Category], fact.Content)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n\nRELEVANT USER CONTEXT (%d insights):", len(all))

	if len(critical) > 0 {
		sb.WriteString("\nCRITICAL CONTEXT: ")
		sb.WriteString(strings.Join(critical, " | "))
	}

	for _, category := range categoryOrder {
		contents := byCategory[category]
		if len(contents) == 0 {
			continue
		}
		if len(contents) > factsPerCategory {
			contents = contents[:factsPerCategory]
		}
		fmt.Fprintf(&sb, "\n%s: %s", strings.ToUpper(string(category)), strings.Join(contents, " | "))
	}
	return sb.String()
}

func conversationContext(window []models.Turn) string {
	if len(window) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n\nRECENT CONVERSATION (%d messages):", len(window))
	for _, turn := range window {
		fmt.Fprintf(&sb, "\n%s: %s", turn.Role, turn.Content)
	}
	return sb.String()
}
