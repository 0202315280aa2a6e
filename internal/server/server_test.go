package server_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/luma-go/internal/analysis"
	"github.com/raphaelgruber/luma-go/internal/metrics"
	"github.com/raphaelgruber/luma-go/internal/orchestrator"
	"github.com/raphaelgruber/luma-go/internal/server"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// fakeConversation echoes messages and counts session restarts.
type fakeConversation struct {
	userID      string
	failSend    bool
	newSessions int
	received    []string
}

func (f *fakeConversation) SendMessage(ctx context.Context, message string) (orchestrator.Reply, error) {
	if f.failSend {
		return orchestrator.Reply{}, errors.New("backend down")
	}
	f.received = append(f.received, message)
	return orchestrator.Reply{
		Text:    "echo: " + message,
		Tier:    analysis.TierSimple,
		Backend: analysis.BackendFast,
	}, nil
}

func (f *fakeConversation) StartNewSession(ctx context.Context) error {
	f.newSessions++
	return nil
}

// startServer returns a running test server and the last conversation built.
func startServer(t *testing.T, failSend bool) (*httptest.Server, *fakeConversation) {
	t.Helper()

	conversation := &fakeConversation{failSend: failSend}
	factory := func(userID string) (server.Conversation, error) {
		conversation.userID = userID
		return conversation, nil
	}

	srv := server.New(factory, metrics.NewCollector(), testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, conversation
}

func dial(t *testing.T, ts *httptest.Server, user string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?user=" + user
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dial should succeed")
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestMessageRoundTrip(t *testing.T) {
	ts, conversation := startServer(t, false)
	conn := dial(t, ts, "alex")

	require.NoError(t, conn.WriteJSON(server.ClientFrame{Type: "message", Text: "hello there"}))

	var frame server.ServerFrame
	require.NoError(t, conn.ReadJSON(&frame))

	assert.Equal(t, "reply", frame.Type)
	assert.Equal(t, "echo: hello there", frame.Text)
	assert.Equal(t, "simple", frame.Tier)
	assert.Equal(t, "fast", frame.Backend)
	assert.Equal(t, "alex", conversation.userID, "factory should receive the query user")
}

func TestNewSessionFrame(t *testing.T) {
	ts, conversation := startServer(t, false)
	conn := dial(t, ts, "alex")

	require.NoError(t, conn.WriteJSON(server.ClientFrame{Type: "new_session"}))

	var frame server.ServerFrame
	require.NoError(t, conn.ReadJSON(&frame))

	assert.Equal(t, "session_started", frame.Type)
	assert.Equal(t, 1, conversation.newSessions)
}

func TestErrorFrames(t *testing.T) {
	tests := []struct {
		name     string
		failSend bool
		send     server.ClientFrame
		wantErr  string
	}{
		{
			name:    "empty message",
			send:    server.ClientFrame{Type: "message"},
			wantErr: "empty message",
		},
		{
			name:    "unknown frame type",
			send:    server.ClientFrame{Type: "dance"},
			wantErr: `unknown frame type: "dance"`,
		},
		{
			name:     "backend failure",
			failSend: true,
			send:     server.ClientFrame{Type: "message", Text: "hi"},
			wantErr:  "failed to process message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _ := startServer(t, tt.failSend)
			conn := dial(t, ts, "alex")

			require.NoError(t, conn.WriteJSON(tt.send))

			var frame server.ServerFrame
			require.NoError(t, conn.ReadJSON(&frame))
			assert.Equal(t, "error", frame.Type)
			assert.Equal(t, tt.wantErr, frame.Error)
		})
	}
}

func TestConnectionRequiresUser(t *testing.T) {
	ts, _ := startServer(t, false)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err, "dial without user should fail")
	if conn != nil {
		conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndStats(t *testing.T) {
	ts, _ := startServer(t, false)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	stats, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer stats.Body.Close()
	assert.Equal(t, http.StatusOK, stats.StatusCode)
	assert.Equal(t, "application/json", stats.Header.Get("Content-Type"))

	body, err := io.ReadAll(stats.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "UptimeSeconds")
}
