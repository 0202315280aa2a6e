// Package orchestrator drives one conversation turn end to end:
// session management, memory retrieval, complexity analysis, theme
// detection, context assembly, backend routing, and persistence, with
// extraction scheduled in the background after the reply is out.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/luma-go/internal/analysis"
	"github.com/raphaelgruber/luma-go/internal/memory"
	"github.com/raphaelgruber/luma-go/internal/metrics"
	"github.com/raphaelgruber/luma-go/internal/models"
	"github.com/raphaelgruber/luma-go/internal/prompt"
	"github.com/raphaelgruber/luma-go/internal/router"
)

// ErrNoUser is returned when no user partition is configured. A turn
// without a user would write into nobody's memory, so this is a hard
// precondition.
var ErrNoUser = errors.New("no user configured")

const (
	// History grows to the high-water mark, then is trimmed back so the
	// cap does not trim on every turn.
	historyHighWater = 50
	historyLowWater  = 40

	// bootstrapMessages seeds the in-memory history when a session is
	// resumed.
	bootstrapMessages = 20

	slowTurn      = 3 * time.Second
	slowRetrieval = 500 * time.Millisecond
)

// Store is the persistence surface the orchestrator needs beyond the
// memory layer. Satisfied by *db.Client.
type Store interface {
	memory.Store
	QueryCreateSession(ctx context.Context, userID string) (*models.Session, error)
	QueryActiveSession(ctx context.Context, userID string, maxAgeSecs int) (*models.Session, error)
	QueryTouchSession(ctx context.Context, sessionID surrealmodels.RecordID) error
	QueryCloseSession(ctx context.Context, sessionID surrealmodels.RecordID) error
	QueryInsertMessage(ctx context.Context, sessionID surrealmodels.RecordID, userID, role, content string) (*models.Message, error)
	QueryRecentMessages(ctx context.Context, sessionID surrealmodels.RecordID, limit int) ([]models.Message, error)
}

// Reply is the outcome of one turn.
type Reply struct {
	Text              string
	Tier              analysis.Tier
	Backend           analysis.Backend
	Degraded          bool
	SuggestReflection bool
	ReflectionReason  string
}

// Options configures an Orchestrator.
type Options struct {
	UserID             string
	SessionReuseWindow time.Duration
	MemoryLimit        int
	ComplexityWeights  analysis.ComplexityWeights
	ThemeWeights       analysis.ThemeWeights
}

// Orchestrator owns the conversation state for one user.
type Orchestrator struct {
	store     Store
	retriever *memory.Retriever
	extractor *memory.Extractor
	router    *router.Router
	runner    memory.TaskRunner
	collector *metrics.Collector
	opts      Options
	logger    *slog.Logger

	mu        sync.Mutex
	sessionID *surrealmodels.RecordID
	history   []models.Turn
	// generation invalidates in-flight background work when the session
	// changes. Atomic so background tasks can check it without the lock.
	generation atomic.Int64
}

// New creates an orchestrator. Collector and logger may be nil.
func New(
	store Store,
	retriever *memory.Retriever,
	extractor *memory.Extractor,
	rt *router.Router,
	runner memory.TaskRunner,
	collector *metrics.Collector,
	opts Options,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = 8
	}
	return &Orchestrator{
		store:     store,
		retriever: retriever,
		extractor: extractor,
		router:    rt,
		runner:    runner,
		collector: collector,
		opts:      opts,
		logger:    logger,
	}
}

// SendMessage runs one full turn and returns the companion's reply.
func (o *Orchestrator) SendMessage(ctx context.Context, message string) (Reply, error) {
	if o.opts.UserID == "" {
		return Reply{}, ErrNoUser
	}

	turnStart := time.Now()

	o.mu.Lock()
	defer o.mu.Unlock()

	sessionID, err := o.ensureSession(ctx)
	if err != nil {
		return Reply{}, fmt.Errorf("ensure session: %w", err)
	}

	// Retrieval and user-message persistence are independent; run them
	// concurrently and join before assembly.
	var (
		wg         sync.WaitGroup
		retrieval  memory.RetrievalResult
		persistErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		retrieval = o.retriever.Retrieve(ctx, o.opts.UserID, sessionID, message, o.opts.MemoryLimit)
	}()
	go func() {
		defer wg.Done()
		_, persistErr = o.store.QueryInsertMessage(ctx, sessionID, o.opts.UserID, models.RoleUser, message)
	}()
	wg.Wait()

	if persistErr != nil {
		// The turn continues; the message just won't survive a restart
		o.logger.Warn("user message persist failed", "error", persistErr)
	}
	o.collector.RecordTiming(metrics.OpMemoryRetrieval, retrieval.RetrievalTime)
	if retrieval.RetrievalTime > slowRetrieval {
		o.logger.Warn("slow memory retrieval", "duration_ms", retrieval.RetrievalTime.Milliseconds())
	}

	complexity := analysis.AnalyzeComplexity(message, len(o.history), o.opts.ComplexityWeights)
	themes := analysis.DetectThemes(message, o.history, retrieval.CriticalInsights, o.opts.ThemeWeights)

	assemblyStart := time.Now()
	assembled := prompt.Assemble(message, o.history, retrieval, complexity)
	o.collector.RecordTiming(metrics.OpContextAssembly, time.Since(assemblyStart))

	genStart := time.Now()
	result := o.router.Route(ctx, assembled, complexity)
	genOp := metrics.OpLLMFast
	if result.Backend == analysis.BackendDeep || result.Backend == analysis.BackendHybrid {
		genOp = metrics.OpLLMDeep
	}
	o.collector.RecordTiming(genOp, time.Since(genStart))

	replyText := result.Reply
	if themes.SuggestReflection && !result.Static {
		replyText += "\n\n" + themes.Reason
	}

	if _, err := o.store.QueryInsertMessage(ctx, sessionID, o.opts.UserID, models.RoleAssistant, replyText); err != nil {
		o.logger.Warn("assistant message persist failed", "error", err)
	}
	if err := o.store.QueryTouchSession(ctx, sessionID); err != nil {
		o.logger.Warn("session touch failed", "error", err)
	}

	now := time.Now()
	o.history = append(o.history,
		models.Turn{Role: models.RoleUser, Content: message, Timestamp: now},
		models.Turn{Role: models.RoleAssistant, Content: replyText, Timestamp: now},
	)
	o.capHistory()

	o.scheduleExtraction(sessionID)

	turnTime := time.Since(turnStart)
	o.collector.RecordTiming(metrics.OpTurn, turnTime)
	if turnTime > slowTurn {
		o.logger.Warn("slow turn", "duration_ms", turnTime.Milliseconds(), "backend", result.Backend.String())
	}
	o.logger.Info("turn complete",
		"tier", complexity.Tier.String(),
		"backend", result.Backend.String(),
		"degraded", result.Degraded,
		"memories", len(retrieval.SessionMemories)+len(retrieval.CrossSessionMemories)+len(retrieval.CriticalInsights),
		"theme_score", themes.Score,
		"duration_ms", turnTime.Milliseconds(),
	)

	return Reply{
		Text:              replyText,
		Tier:              complexity.Tier,
		Backend:           result.Backend,
		Degraded:          result.Degraded,
		SuggestReflection: themes.SuggestReflection,
		ReflectionReason:  themes.Reason,
	}, nil
}

// StartNewSession closes the current session and opens a fresh one with
// empty history. In-flight background extraction for the old session is
// invalidated.
func (o *Orchestrator) StartNewSession(ctx context.Context) error {
	if o.opts.UserID == "" {
		return ErrNoUser
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sessionID != nil {
		if err := o.store.QueryCloseSession(ctx, *o.sessionID); err != nil {
			o.logger.Warn("session close failed", "error", err)
		}
	}

	session, err := o.store.QueryCreateSession(ctx, o.opts.UserID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	o.sessionID = &session.ID
	o.history = nil
	o.generation.Add(1)
	o.logger.Info("new session started", "session", session.ID.String())
	return nil
}

// SessionID returns the current session ID, or nil before the first turn.
func (o *Orchestrator) SessionID() *surrealmodels.RecordID {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// History returns a copy of the in-memory conversation history.
func (o *Orchestrator) History() []models.Turn {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.Turn, len(o.history))
	copy(out, o.history)
	return out
}

// Metrics returns a snapshot of the per-operation timings.
func (o *Orchestrator) Metrics() metrics.Snapshot {
	return o.collector.Snapshot()
}

// ensureSession resumes a recent active session or creates a new one,
// bootstrapping the in-memory history on resume. Caller holds the lock.
func (o *Orchestrator) ensureSession(ctx context.Context) (surrealmodels.RecordID, error) {
	if o.sessionID != nil {
		return *o.sessionID, nil
	}

	maxAge := int(o.opts.SessionReuseWindow.Seconds())
	if maxAge > 0 {
		session, err := o.store.QueryActiveSession(ctx, o.opts.UserID, maxAge)
		if err != nil {
			return surrealmodels.RecordID{}, err
		}
		if session != nil {
			o.sessionID = &session.ID
			o.bootstrapHistory(ctx, session.ID)
			return session.ID, nil
		}
	}

	session, err := o.store.QueryCreateSession(ctx, o.opts.UserID)
	if err != nil {
		return surrealmodels.RecordID{}, err
	}
	o.sessionID = &session.ID
	return session.ID, nil
}

// bootstrapHistory loads the trailing messages of a resumed session.
// Failures leave the history empty; the session still works.
func (o *Orchestrator) bootstrapHistory(ctx context.Context, sessionID surrealmodels.RecordID) {
	start := time.Now()
	msgs, err := o.store.QueryRecentMessages(ctx, sessionID, bootstrapMessages)
	o.collector.RecordTiming(metrics.OpDBQuery, time.Since(start))
	if err != nil {
		o.logger.Warn("history bootstrap failed", "error", err)
		return
	}

	o.history = o.history[:0]
	for _, msg := range msgs {
		o.history = append(o.history, models.Turn{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
		})
	}
	o.logger.Info("history bootstrapped", "messages", len(o.history))
}

func (o *Orchestrator) capHistory() {
	if len(o.history) > historyHighWater {
		o.history = o.history[len(o.history)-historyLowWater:]
	}
}

// scheduleExtraction hands the current history to the background
// extractor. The snapshot is copied so later turns cannot race it, and
// the generation token drops results for abandoned sessions. Caller
// holds the lock.
func (o *Orchestrator) scheduleExtraction(sessionID surrealmodels.RecordID) {
	if len(o.history) < 6 {
		return
	}

	snapshot := make([]models.Turn, len(o.history))
	copy(snapshot, o.history)
	gen := o.generation.Load()
	userID := o.opts.UserID

	o.runner.Run(func() {
		if gen != o.generation.Load() {
			return
		}
		o.extractor.Process(context.Background(), userID, sessionID, snapshot)
	})
}
