// Package db provides SurrealDB query functions for sessions, messages,
// and long-term memory facts.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/luma-go/internal/models"
)

// CategoryCount represents a memory category with its fact count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// QueryCreateSession creates a new active session for a user.
func (c *Client) QueryCreateSession(ctx context.Context, userID string) (*models.Session, error) {
	id := uuid.NewString()

	results, err := surrealdb.Query[[]models.Session](ctx, c.db, `
		CREATE type::record("session", $id) SET
			user_id = $user_id,
			status = 'active'
		RETURN AFTER
	`, map[string]any{
		"id":      id,
		"user_id": userID,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create session: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// QueryActiveSession returns the most recently updated active session for a
// user, or nil if the newest one is older than maxAgeSecs.
func (c *Client) QueryActiveSession(ctx context.Context, userID string, maxAgeSecs int) (*models.Session, error) {
	results, err := surrealdb.Query[[]models.Session](ctx, c.db, `
		SELECT * FROM session
		WHERE user_id = $user_id
			AND status = 'active'
			AND updated_at > time::now() - duration::from::secs($max_age)
		ORDER BY updated_at DESC
		LIMIT 1
	`, map[string]any{
		"user_id": userID,
		"max_age": maxAgeSecs,
	})
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}

// QueryTouchSession bumps a session's updated_at to now.
func (c *Client) QueryTouchSession(ctx context.Context, sessionID surrealmodels.RecordID) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE $session SET updated_at = time::now()
	`, map[string]any{"session": sessionID})
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// QueryCloseSession marks a session closed. Idempotent.
func (c *Client) QueryCloseSession(ctx context.Context, sessionID surrealmodels.RecordID) error {
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPDATE $session SET status = 'closed', updated_at = time::now()
	`, map[string]any{"session": sessionID})
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// QueryListSessions returns a user's sessions, newest first.
func (c *Client) QueryListSessions(ctx context.Context, userID string, limit int) ([]models.Session, error) {
	results, err := surrealdb.Query[[]models.Session](ctx, c.db, `
		SELECT * FROM session
		WHERE user_id = $user_id
		ORDER BY updated_at DESC
		LIMIT $limit
	`, map[string]any{
		"user_id": userID,
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.Session{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryInsertMessage appends a conversation turn to a session.
func (c *Client) QueryInsertMessage(
	ctx context.Context,
	sessionID surrealmodels.RecordID,
	userID string,
	role string,
	content string,
) (*models.Message, error) {
	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		CREATE message SET
			session = $session,
			user_id = $user_id,
			role = $role,
			content = $content
		RETURN AFTER
	`, map[string]any{
		"session": sessionID,
		"user_id": userID,
		"role":    role,
		"content": content,
	})
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("insert message: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// QueryRecentMessages returns the last N messages of a session in
// chronological order.
func (c *Client) QueryRecentMessages(
	ctx context.Context,
	sessionID surrealmodels.RecordID,
	limit int,
) ([]models.Message, error) {
	results, err := surrealdb.Query[[]models.Message](ctx, c.db, `
		SELECT * FROM message
		WHERE session = $session
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{
		"session": sessionID,
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.Message{}, nil
	}

	// Reverse into chronological order
	msgs := (*results)[0].Result
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// QueryMemories searches a user's memory facts by any combination of
// categories, themes, and full-text match on the content. The predicates
// are OR-ed: a fact matches if it hits any supplied criterion. Results are
// newest first.
func (c *Client) QueryMemories(
	ctx context.Context,
	userID string,
	categories []models.Category,
	themes []string,
	searchText string,
	limit int,
) ([]models.MemoryFact, error) {
	// Build dynamic OR predicate from the supplied criteria
	var clauses []string
	vars := map[string]any{
		"user_id": userID,
		"limit":   limit,
	}

	if len(categories) > 0 {
		clauses = append(clauses, "category IN $categories")
		cats := make([]string, len(categories))
		for i, cat := range categories {
			cats[i] = string(cat)
		}
		vars["categories"] = cats
	}
	if len(themes) > 0 {
		clauses = append(clauses, "theme IN $themes")
		vars["themes"] = themes
	}
	if strings.TrimSpace(searchText) != "" {
		clauses = append(clauses, "content @0@ $q")
		vars["q"] = searchText
	}

	if len(clauses) == 0 {
		return []models.MemoryFact{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT * FROM memory
		WHERE user_id = $user_id AND (%s)
		ORDER BY created_at DESC
		LIMIT $limit
	`, strings.Join(clauses, " OR "))

	results, err := surrealdb.Query[[]models.MemoryFact](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.MemoryFact{}, nil
	}
	return (*results)[0].Result, nil
}

// QuerySessionMemories returns a user's facts extracted from one session,
// newest first.
func (c *Client) QuerySessionMemories(
	ctx context.Context,
	userID string,
	sessionID surrealmodels.RecordID,
	limit int,
) ([]models.MemoryFact, error) {
	results, err := surrealdb.Query[[]models.MemoryFact](ctx, c.db, `
		SELECT * FROM memory
		WHERE user_id = $user_id AND session_id = $session
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{
		"user_id": userID,
		"session": sessionID,
		"limit":   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("session memories: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.MemoryFact{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryMemoriesByCategory returns a user's facts in the given categories,
// newest first.
func (c *Client) QueryMemoriesByCategory(
	ctx context.Context,
	userID string,
	categories []models.Category,
	limit int,
) ([]models.MemoryFact, error) {
	cats := make([]string, len(categories))
	for i, cat := range categories {
		cats[i] = string(cat)
	}

	results, err := surrealdb.Query[[]models.MemoryFact](ctx, c.db, `
		SELECT * FROM memory
		WHERE user_id = $user_id AND category IN $categories
		ORDER BY created_at DESC
		LIMIT $limit
	`, map[string]any{
		"user_id":    userID,
		"categories": cats,
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("memories by category: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.MemoryFact{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryInsertMemoryFacts appends extracted facts to the memory table.
// Returns the number of inserted facts.
func (c *Client) QueryInsertMemoryFacts(ctx context.Context, facts []models.MemoryFact) (int, error) {
	if len(facts) == 0 {
		return 0, nil
	}

	inserted := 0
	for _, fact := range facts {
		vars := map[string]any{
			"user_id":    fact.UserID,
			"category":   string(fact.Category),
			"content":    fact.Content,
			"session":    nil,
			"theme":      nil,
			"importance": nil,
		}
		if fact.SessionID != nil {
			vars["session"] = *fact.SessionID
		}
		if fact.Theme != "" {
			vars["theme"] = fact.Theme
		}
		if fact.Importance != nil {
			vars["importance"] = *fact.Importance
		}

		_, err := surrealdb.Query[any](ctx, c.db, `
			CREATE memory SET
				user_id = $user_id,
				session_id = $session,
				category = $category,
				content = $content,
				theme = $theme,
				importance = $importance
		`, vars)
		if err != nil {
			return inserted, fmt.Errorf("insert memory fact: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// QueryMemoryCounts returns fact counts grouped by category for a user.
func (c *Client) QueryMemoryCounts(ctx context.Context, userID string) ([]CategoryCount, error) {
	results, err := surrealdb.Query[[]CategoryCount](ctx, c.db, `
		SELECT category, count() AS count FROM memory
		WHERE user_id = $user_id
		GROUP BY category
		ORDER BY count DESC
	`, map[string]any{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("memory counts: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []CategoryCount{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryUpsertSummary creates or replaces the rolling digest for a session.
func (c *Client) QueryUpsertSummary(ctx context.Context, sessionID surrealmodels.RecordID, summary string) error {
	// UNIQUE index on session makes this a single-row upsert
	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT summary SET
			session = $session,
			summary = $summary,
			updated_at = time::now()
		WHERE session = $session
	`, map[string]any{
		"session": sessionID,
		"summary": summary,
	})
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

// QueryGetSummary retrieves the rolling digest for a session.
// Returns nil if none exists yet.
func (c *Client) QueryGetSummary(ctx context.Context, sessionID surrealmodels.RecordID) (*models.SessionSummary, error) {
	results, err := surrealdb.Query[[]models.SessionSummary](ctx, c.db, `
		SELECT * FROM summary WHERE session = $session LIMIT 1
	`, map[string]any{"session": sessionID})
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return &(*results)[0].Result[0], nil
}
