// Package server exposes conversations over a WebSocket JSON protocol.
//
// Each connection is bound to one user (via the "user" query parameter)
// and carries a private conversation. Clients send frames like
//
//	{"type": "message", "text": "hello"}
//	{"type": "new_session"}
//
// and receive "reply", "session_started" or "error" frames back.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/luma-go/internal/metrics"
	"github.com/raphaelgruber/luma-go/internal/orchestrator"
)

// turnTimeout bounds a single turn, including deep-model generation.
const turnTimeout = 60 * time.Second

// Conversation is the per-user surface the server drives. Satisfied by
// *orchestrator.Orchestrator.
type Conversation interface {
	SendMessage(ctx context.Context, message string) (orchestrator.Reply, error)
	StartNewSession(ctx context.Context) error
}

// Factory builds a conversation for a user. Called once per connection.
type Factory func(userID string) (Conversation, error)

// ClientFrame is a message from the client.
type ClientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ServerFrame is a message to the client.
type ServerFrame struct {
	Type              string `json:"type"`
	Text              string `json:"text,omitempty"`
	Tier              string `json:"tier,omitempty"`
	Backend           string `json:"backend,omitempty"`
	Degraded          bool   `json:"degraded,omitempty"`
	SuggestReflection bool   `json:"suggest_reflection,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Server accepts WebSocket conversations and serves runtime stats.
type Server struct {
	factory   Factory
	collector *metrics.Collector
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// New creates a server. Collector and logger may be nil.
func New(factory Factory, collector *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		factory:   factory,
		collector: collector,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local dev
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// Handler returns the HTTP routes: /ws, /health and /stats.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/stats", s.handleStats)
	return withRequestLogging(mux, s.logger)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var snapshot metrics.Snapshot
	if s.collector != nil {
		snapshot = s.collector.Snapshot()
	}
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Warn("failed to encode stats", "error", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "missing user parameter", http.StatusBadRequest)
		return
	}

	conversation, err := s.factory(userID)
	if err != nil {
		s.logger.Error("failed to build conversation", "user", userID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	s.logger.Info("client connected", "conn_id", connID, "user", userID, "remote", conn.RemoteAddr().String())
	s.serveConn(r.Context(), conn, conversation)
	s.logger.Info("client disconnected", "conn_id", connID, "user", userID)
}

// serveConn reads frames until the connection closes. Turns run
// sequentially per connection, matching the one-conversation model.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn, conversation Conversation) {
	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		response := s.dispatch(ctx, conversation, frame)
		if err := conn.WriteJSON(response); err != nil {
			s.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, conversation Conversation, frame ClientFrame) ServerFrame {
	switch frame.Type {
	case "message":
		if frame.Text == "" {
			return ServerFrame{Type: "error", Error: "empty message"}
		}
		turnCtx, cancel := context.WithTimeout(ctx, turnTimeout)
		defer cancel()

		reply, err := conversation.SendMessage(turnCtx, frame.Text)
		if err != nil {
			s.logger.Error("turn failed", "error", err)
			return ServerFrame{Type: "error", Error: "failed to process message"}
		}
		return ServerFrame{
			Type:              "reply",
			Text:              reply.Text,
			Tier:              reply.Tier.String(),
			Backend:           reply.Backend.String(),
			Degraded:          reply.Degraded,
			SuggestReflection: reply.SuggestReflection,
		}

	case "new_session":
		if err := conversation.StartNewSession(ctx); err != nil {
			s.logger.Error("failed to start session", "error", err)
			return ServerFrame{Type: "error", Error: "failed to start session"}
		}
		return ServerFrame{Type: "session_started"}

	default:
		return ServerFrame{Type: "error", Error: fmt.Sprintf("unknown frame type: %q", frame.Type)}
	}
}
