package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/luma-go/internal/analysis"
	"github.com/raphaelgruber/luma-go/internal/memory"
	"github.com/raphaelgruber/luma-go/internal/models"
	"github.com/raphaelgruber/luma-go/internal/router"
)

// memStore is a full in-memory Store for orchestrator tests.
type memStore struct {
	sessions map[string]*models.Session
	messages []models.Message
	facts    []models.MemoryFact
	summary  map[string]string
	nextID   int
	closed   []string
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]*models.Session),
		summary:  make(map[string]string),
	}
}

func (s *memStore) QueryCreateSession(_ context.Context, userID string) (*models.Session, error) {
	s.nextID++
	id := surrealmodels.NewRecordID("session", s.nextID)
	session := &models.Session{ID: id, UserID: userID, Status: models.SessionActive, UpdatedAt: time.Now()}
	s.sessions[id.String()] = session
	return session, nil
}

func (s *memStore) QueryActiveSession(_ context.Context, userID string, maxAgeSecs int) (*models.Session, error) {
	cutoff := time.Now().Add(-time.Duration(maxAgeSecs) * time.Second)
	var newest *models.Session
	for _, session := range s.sessions {
		if session.UserID != userID || session.Status != models.SessionActive {
			continue
		}
		if session.UpdatedAt.Before(cutoff) {
			continue
		}
		if newest == nil || session.UpdatedAt.After(newest.UpdatedAt) {
			newest = session
		}
	}
	return newest, nil
}

func (s *memStore) QueryTouchSession(_ context.Context, sessionID surrealmodels.RecordID) error {
	if session, ok := s.sessions[sessionID.String()]; ok {
		session.UpdatedAt = time.Now()
	}
	return nil
}

func (s *memStore) QueryCloseSession(_ context.Context, sessionID surrealmodels.RecordID) error {
	if session, ok := s.sessions[sessionID.String()]; ok {
		session.Status = models.SessionClosed
	}
	s.closed = append(s.closed, sessionID.String())
	return nil
}

func (s *memStore) QueryInsertMessage(_ context.Context, sessionID surrealmodels.RecordID, userID, role, content string) (*models.Message, error) {
	msg := models.Message{Session: sessionID, UserID: userID, Role: role, Content: content, CreatedAt: time.Now()}
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *memStore) QueryRecentMessages(_ context.Context, sessionID surrealmodels.RecordID, limit int) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range s.messages {
		if msg.Session == sessionID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) QuerySessionMemories(_ context.Context, userID string, sessionID surrealmodels.RecordID, limit int) ([]models.MemoryFact, error) {
	var out []models.MemoryFact
	for _, fact := range s.facts {
		if fact.UserID == userID && fact.SessionID != nil && *fact.SessionID == sessionID {
			out = append(out, fact)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) QueryMemories(_ context.Context, userID string, categories []models.Category, themes []string, _ string, limit int) ([]models.MemoryFact, error) {
	catSet := make(map[models.Category]struct{})
	for _, c := range categories {
		catSet[c] = struct{}{}
	}
	themeSet := make(map[string]struct{})
	for _, t := range themes {
		themeSet[t] = struct{}{}
	}

	var out []models.MemoryFact
	for _, fact := range s.facts {
		if fact.UserID != userID {
			continue
		}
		_, catHit := catSet[fact.Category]
		_, themeHit := themeSet[fact.Theme]
		if catHit || themeHit {
			out = append(out, fact)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) QueryMemoriesByCategory(_ context.Context, userID string, categories []models.Category, limit int) ([]models.MemoryFact, error) {
	catSet := make(map[models.Category]struct{})
	for _, c := range categories {
		catSet[c] = struct{}{}
	}
	var out []models.MemoryFact
	for _, fact := range s.facts {
		if fact.UserID != userID {
			continue
		}
		if _, ok := catSet[fact.Category]; ok {
			out = append(out, fact)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) QueryInsertMemoryFacts(_ context.Context, facts []models.MemoryFact) (int, error) {
	s.facts = append(s.facts, facts...)
	return len(facts), nil
}

func (s *memStore) QueryUpsertSummary(_ context.Context, sessionID surrealmodels.RecordID, summary string) error {
	s.summary[sessionID.String()] = summary
	return nil
}

// cannedBackend answers every call with the same reply, or fails.
type cannedBackend struct {
	reply string
	err   error
	calls int
}

func (b *cannedBackend) Generate(_ context.Context, _, _ string, _ int, _ float64) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return b.reply, nil
}

type fixture struct {
	orch  *Orchestrator
	store *memStore
	fast  *cannedBackend
	deep  *cannedBackend
}

func newFixture(t *testing.T, userID string) *fixture {
	t.Helper()

	store := newMemStore()
	fast := &cannedBackend{reply: "warm supportive reply"}
	deep := &cannedBackend{reply: "structured analytical reply"}
	extractGen := &cannedBackend{reply: `[{"category": "insight", "content": "Extracted insight from conversation", "theme": "growth"}]`}

	orch := New(
		store,
		memory.NewRetriever(store, analysis.DefaultRelevanceWeights(), nil),
		memory.NewExtractor(store, extractGen, nil),
		router.New(fast, deep, nil),
		memory.SyncRunner{},
		nil,
		Options{
			UserID:             userID,
			SessionReuseWindow: 12 * time.Hour,
			MemoryLimit:        8,
			ComplexityWeights:  analysis.DefaultComplexityWeights(),
			ThemeWeights:       analysis.DefaultThemeWeights(),
		},
		nil,
	)
	return &fixture{orch: orch, store: store, fast: fast, deep: deep}
}

func TestSendMessageRequiresUser(t *testing.T) {
	f := newFixture(t, "")
	if _, err := f.orch.SendMessage(context.Background(), "hello"); !errors.Is(err, ErrNoUser) {
		t.Errorf("err = %v, want ErrNoUser", err)
	}
}

func TestSendMessageSimpleTurn(t *testing.T) {
	f := newFixture(t, "user-1")

	reply, err := f.orch.SendMessage(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if reply.Tier != analysis.TierSimple {
		t.Errorf("tier = %s, want simple", reply.Tier)
	}
	if reply.Backend != analysis.BackendFast {
		t.Errorf("backend = %s, want fast", reply.Backend)
	}
	if reply.Text != "warm supportive reply" {
		t.Errorf("text = %q", reply.Text)
	}
	if f.deep.calls != 0 {
		t.Errorf("deep backend called %d times for a simple turn", f.deep.calls)
	}

	// Both turns persisted
	if len(f.store.messages) != 2 {
		t.Fatalf("persisted %d messages, want 2", len(f.store.messages))
	}
	if f.store.messages[0].Role != models.RoleUser || f.store.messages[1].Role != models.RoleAssistant {
		t.Errorf("roles = %s/%s", f.store.messages[0].Role, f.store.messages[1].Role)
	}
}

func TestSendMessageComplexTurnUsesDeepBackend(t *testing.T) {
	f := newFixture(t, "user-1")

	reply, err := f.orch.SendMessage(context.Background(),
		"why do I feel so conflicted about my career decision")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if reply.Backend != analysis.BackendDeep {
		t.Errorf("backend = %s, want deep", reply.Backend)
	}
	if f.deep.calls == 0 {
		t.Error("deep backend never called")
	}
}

func TestSendMessageDeepFailureStillReplies(t *testing.T) {
	f := newFixture(t, "user-1")
	f.deep.err = errors.New("backend down")

	reply, err := f.orch.SendMessage(context.Background(),
		"why do I feel so conflicted about my career decision")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply.Text == "" {
		t.Fatal("reply must be non-empty after deep failure")
	}
	if !reply.Degraded {
		t.Error("deep failure must surface as degraded")
	}
}

func TestSendMessageAppendsReflectionNudge(t *testing.T) {
	f := newFixture(t, "user-1")

	reply, err := f.orch.SendMessage(context.Background(), "I feel like I can't go on anymore")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if !reply.SuggestReflection {
		t.Fatal("crisis-tier message must suggest reflection")
	}
	if !strings.Contains(reply.Text, reply.ReflectionReason) {
		t.Error("reflection nudge must be appended to the reply text")
	}
}

func TestExtractionFiresAfterEnoughTurns(t *testing.T) {
	f := newFixture(t, "user-1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.orch.SendMessage(ctx, "talking about my week and my stress"); err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
	}

	// After three turns the history holds six entries; the synchronous
	// runner executes extraction before SendMessage returns.
	if len(f.store.facts) == 0 {
		t.Fatal("extraction did not store any facts")
	}
	if f.store.facts[0].Category != models.CategoryInsight {
		t.Errorf("fact category = %s, want insight", f.store.facts[0].Category)
	}
	sessionID := f.orch.SessionID()
	if sessionID == nil {
		t.Fatal("no session after turns")
	}
	if f.store.summary[sessionID.String()] == "" {
		t.Error("extraction must refresh the session digest")
	}
}

func TestStartNewSessionResetsState(t *testing.T) {
	f := newFixture(t, "user-1")
	ctx := context.Background()

	if _, err := f.orch.SendMessage(ctx, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	old := f.orch.SessionID()

	if err := f.orch.StartNewSession(ctx); err != nil {
		t.Fatalf("StartNewSession failed: %v", err)
	}

	if len(f.orch.History()) != 0 {
		t.Error("new session must start with empty history")
	}
	current := f.orch.SessionID()
	if current == nil || old == nil || *current == *old {
		t.Error("new session must have a fresh ID")
	}
	if len(f.store.closed) != 1 || f.store.closed[0] != old.String() {
		t.Errorf("old session not closed: %v", f.store.closed)
	}
}

func TestSessionResumeBootstrapsHistory(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	// Seed an active session with past messages
	session, _ := store.QueryCreateSession(ctx, "user-1")
	for i := 0; i < 4; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		_, _ = store.QueryInsertMessage(ctx, session.ID, "user-1", role, "earlier turn")
	}

	f := newFixture(t, "user-1")
	f.orch.store = store
	f.orch.retriever = memory.NewRetriever(store, analysis.DefaultRelevanceWeights(), nil)

	if _, err := f.orch.SendMessage(ctx, "hello again"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	// 4 bootstrapped + 2 from this turn
	if got := len(f.orch.History()); got != 6 {
		t.Errorf("history = %d turns, want 6", got)
	}
	resumed := f.orch.SessionID()
	if resumed == nil || *resumed != session.ID {
		t.Error("orchestrator must resume the recent active session")
	}
}

func TestHistoryIsCapped(t *testing.T) {
	f := newFixture(t, "user-1")
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if _, err := f.orch.SendMessage(ctx, "another ordinary check-in message"); err != nil {
			t.Fatalf("turn %d failed: %v", i, err)
		}
	}

	if got := len(f.orch.History()); got > historyHighWater {
		t.Errorf("history = %d turns, want <= %d", got, historyHighWater)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	store := newMemStore()
	store.facts = []models.MemoryFact{
		{UserID: "other-user", Category: models.CategoryCrisis, Content: "Other user's crisis fact"},
	}

	f := newFixture(t, "user-1")
	f.orch.store = store
	f.orch.retriever = memory.NewRetriever(store, analysis.DefaultRelevanceWeights(), nil)

	if _, err := f.orch.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	for _, msg := range store.messages {
		if msg.UserID != "user-1" {
			t.Errorf("message written for wrong user: %+v", msg)
		}
	}
}
