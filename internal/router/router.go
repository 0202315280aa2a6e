// Package router dispatches assembled prompts to the generation
// backends. The fast backend answers simple turns, the deep backend
// handles analytical ones, and hybrid runs a deep analysis pass followed
// by a fast empathetic rewrite. Every path degrades rather than fails:
// the router always returns a reply.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/luma-go/internal/analysis"
	"github.com/raphaelgruber/luma-go/internal/llm"
	"github.com/raphaelgruber/luma-go/internal/prompt"
)

// Generator is the slice of the LLM backend the router needs.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int, temperature float64) (string, error)
}

// Result is the outcome of routing one turn.
type Result struct {
	Reply string
	// Backend that actually produced the reply, which differs from the
	// requested backend after a fallback.
	Backend analysis.Backend
	// Degraded is set when the requested backend failed and a fallback
	// produced the reply.
	Degraded bool
	// Static is set when every backend failed and the reply is a canned
	// supportive line.
	Static bool
}

const (
	fastTemperature = 0.7
	deepTemperature = 0.6
)

const analysisTask = `

ANALYSIS TASK: Provide a structured analysis of this situation including:
1. Key patterns or themes you observe
2. Important insights from their history that apply
3. Specific recommendations or next steps
4. Areas that need follow-up or deeper exploration

Keep the analysis clinical and structured - this will be used to inform an empathetic response.`

const rewriteTaskTemplate = `

ANALYSIS FROM REASONING SYSTEM: %s

TASK: Based on this analysis and the user context, provide a warm, empathetic response that incorporates the key insights while maintaining your therapeutic, supportive tone. Make it feel natural and conversational, not clinical.`

// Router picks and drives the generation backends for a turn.
type Router struct {
	fast   Generator
	deep   Generator
	logger *slog.Logger
}

// New creates a router over the two backends.
func New(fast, deep Generator, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{fast: fast, deep: deep, logger: logger}
}

// logBackendFailure separates dead providers from transient blips: a
// fatal API error (bad key, exhausted quota) needs an operator, not a
// retry, so it logs at ERROR.
func (r *Router) logBackendFailure(msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err)
	if errors.Is(err, llm.ErrFatalAPI) {
		r.logger.Error(msg, attrs...)
		return
	}
	r.logger.Warn(msg, attrs...)
}

// Route generates a reply using the backend the complexity analysis
// selected.
func (r *Router) Route(ctx context.Context, p prompt.Assembled, c analysis.Complexity) Result {
	switch c.Backend {
	case analysis.BackendDeep:
		return r.routeDeep(ctx, p, c)
	case analysis.BackendHybrid:
		return r.routeHybrid(ctx, p, c)
	default:
		return r.routeFast(ctx, p, c)
	}
}

func (r *Router) routeFast(ctx context.Context, p prompt.Assembled, c analysis.Complexity) Result {
	reply, err := r.fast.Generate(ctx, p.System, p.UserMessage, maxTokensFor(c.Tier), fastTemperature)
	if err != nil || strings.TrimSpace(reply) == "" {
		r.logBackendFailure("fast backend failed", err, "tier", c.Tier.String())
		return Result{Reply: StaticFallback(p.UserMessage), Backend: analysis.BackendFast, Degraded: true, Static: true}
	}
	return Result{Reply: strings.TrimSpace(reply), Backend: analysis.BackendFast}
}

func (r *Router) routeDeep(ctx context.Context, p prompt.Assembled, c analysis.Complexity) Result {
	reply, err := r.deep.Generate(ctx, p.System, p.UserMessage, maxTokensFor(c.Tier), deepTemperature)
	if err == nil && strings.TrimSpace(reply) != "" {
		return Result{Reply: strings.TrimSpace(reply), Backend: analysis.BackendDeep}
	}
	r.logBackendFailure("deep backend failed, falling back to fast", err, "tier", c.Tier.String())

	fallback := r.routeFast(ctx, p, c)
	fallback.Degraded = true
	return fallback
}

// hybridState tracks the two-step hybrid flow.
type hybridState int

const (
	awaitingAnalysis hybridState = iota
	awaitingRewrite
	hybridDegraded
)

// routeHybrid runs the deep backend for analysis, then the fast backend
// to rewrite the analysis into an empathetic reply. A failed analysis
// skips the rewrite and degrades to a plain fast reply; a failed rewrite
// surfaces the raw analysis, which is clinical in tone but still answers
// the user.
func (r *Router) routeHybrid(ctx context.Context, p prompt.Assembled, c analysis.Complexity) Result {
	state := awaitingAnalysis
	var deepAnalysis string

	for {
		switch state {
		case awaitingAnalysis:
			out, err := r.deep.Generate(ctx, p.System+analysisTask, p.UserMessage, maxTokensFor(c.Tier), deepTemperature)
			deepAnalysis = strings.TrimSpace(out)
			if err != nil || deepAnalysis == "" {
				r.logBackendFailure("hybrid analysis failed", err)
				state = hybridDegraded
				continue
			}
			state = awaitingRewrite

		case awaitingRewrite:
			system := p.System + fmt.Sprintf(rewriteTaskTemplate, deepAnalysis)
			reply, err := r.fast.Generate(ctx, system, p.UserMessage, maxTokensFor(c.Tier), fastTemperature)
			if err != nil || strings.TrimSpace(reply) == "" {
				r.logBackendFailure("hybrid rewrite failed, surfacing raw analysis", err)
				return Result{Reply: deepAnalysis, Backend: analysis.BackendHybrid, Degraded: true}
			}
			return Result{Reply: strings.TrimSpace(reply), Backend: analysis.BackendHybrid}

		default:
			// Plain fast reply without the analysis overlay
			fallback := r.routeFast(ctx, p, c)
			fallback.Degraded = true
			return fallback
		}
	}
}

// maxTokensFor scales the reply budget with the tier.
func maxTokensFor(tier analysis.Tier) int {
	switch tier {
	case analysis.TierSimple:
		return 150
	case analysis.TierModerate:
		return 250
	default:
		return 400
	}
}
