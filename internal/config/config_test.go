package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/luma-go/internal/analysis"
)

func TestDefaults(t *testing.T) {
	cfg := defaults()

	assert.Equal(t, "ws://localhost:8000/rpc", cfg.SurrealDBURL)
	assert.Equal(t, ProviderAnthropic, cfg.FastProvider)
	assert.Equal(t, ProviderOpenAI, cfg.DeepProvider)
	assert.Equal(t, 30*time.Second, cfg.BackendTimeout)
	assert.Equal(t, 12*time.Hour, cfg.SessionReuseWindow)
	assert.Equal(t, 8, cfg.MemoryLimit)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte("fast_model: from-file\nuser_id: file-user\n"), 0644)
	require.NoError(t, err)

	t.Setenv("LUMA_CONFIG", path)
	t.Setenv("LUMA_FAST_MODEL", "from-env")

	cfg := Load()
	assert.Equal(t, "from-env", cfg.FastModel, "env must win over file")
	assert.Equal(t, "file-user", cfg.UserID, "file value kept when env unset")
}

func TestWeightOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `complexity_weights:
  long_message: 0.15
  question: 0.25
  moderate_at: 0.35
  complex_at: 0.60
  very_complex_at: 0.90
relevance_weights:
  shared_token: 0.25
  shared_category: 0.30
  context_match: 0.40
  recency_bonus: 0.05
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg := defaults()
	require.NoError(t, loadFile(path, &cfg))

	require.NotNil(t, cfg.ComplexityWeights)
	assert.Equal(t, 0.90, cfg.ComplexityWeightsOrDefault().VeryComplexAt)
	assert.Equal(t, 0.25, cfg.RelevanceWeightsOrDefault().SharedToken)

	// Absent sections keep the built-in tuning.
	assert.Nil(t, cfg.ThemeWeights)
	assert.Equal(t, analysis.DefaultThemeWeights(), cfg.ThemeWeightsOrDefault())
}

func TestLoadFileMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fast_model: [unterminated"), 0644))

	cfg := defaults()
	err := loadFile(path, &cfg)
	assert.Error(t, err)
	// Defaults survive a bad file.
	assert.Equal(t, ProviderAnthropic, cfg.FastProvider)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("turn complete", "model", "fast")

	assert.Contains(t, stderr.String(), "turn complete")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "turn complete", entry["msg"])
	assert.Equal(t, "fast", entry["model"])
}
