// Package models defines the persistent data structures for the Luma
// conversational companion: sessions, messages, summaries, and long-term
// memory facts.
package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session statuses.
const (
	SessionActive = "active"
	SessionClosed = "closed"
)

// Session represents a bounded run of conversation turns for one user.
// A user has at most one active session in normal operation.
type Session struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	Status    string                 `json:"status"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Message represents a single conversation turn. Messages are append-only.
type Message struct {
	ID        surrealmodels.RecordID `json:"id"`
	Session   surrealmodels.RecordID `json:"session"`
	UserID    string                 `json:"user_id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
}

// SessionSummary is a rolling digest of one session. At most one row per
// session; each update replaces the prior text entirely.
type SessionSummary struct {
	ID        surrealmodels.RecordID `json:"id"`
	Session   surrealmodels.RecordID `json:"session"`
	Summary   string                 `json:"summary"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Turn is the in-memory representation of one conversation turn held in
// the orchestrator's history window. It carries no record ID because
// turns may exist locally before persistence completes.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
