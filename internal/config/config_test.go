package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "FEED_TIMEOUT_SECONDS", "INGEST_TIMEOUT_SECONDS", "TAG_AMP_REPLACEMENT", "API_KEYS", "FEED_END_POLICY"} {
		t.Setenv(k, "")
	}
	cfg := Parse()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 20*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 10*time.Minute, cfg.IngestTimeout)
	assert.Equal(t, "and", cfg.TagAmpReplacement)
	assert.Equal(t, "hour", cfg.FeedEndPolicy)
	assert.Empty(t, cfg.APIKeys)
	assert.False(t, cfg.Production())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("FEED_TIMEOUT_SECONDS", "5")
	t.Setenv("FEED_PAGE_SIZE", "not-a-number")
	t.Setenv("API_KEYS", " a, ,b ")
	t.Setenv("ENVIRONMENT", "Production")
	cfg := Parse()
	assert.Equal(t, 5*time.Second, cfg.FeedTimeout)
	assert.Equal(t, 0, cfg.FeedPageSize)
	assert.Len(t, cfg.APIKeys, 2)
	assert.Contains(t, cfg.APIKeys, "b")
	assert.True(t, cfg.Production())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MODERATOR_EMAIL=bot@grinnell.edu\nPORT=9999\n"), 0o600))
	// registers the restore, then clears so the file value applies
	t.Setenv("MODERATOR_EMAIL", "")
	require.NoError(t, os.Unsetenv("MODERATOR_EMAIL"))
	t.Setenv("PORT", "7000")

	cfg := Load(path)
	assert.Equal(t, "bot@grinnell.edu", cfg.ModeratorEmail)
	assert.Equal(t, "7000", cfg.Port)
}
