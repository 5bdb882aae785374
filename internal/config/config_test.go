package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaultsAndFallbackCredentials(t *testing.T) {
	cfg, err := load("", "", envMap(map[string]string{
		"SUPABASE_URL": "https://project.supabase.co",
		"SUPABASE_KEY": "anon",
	}))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgREST, cfg.StoreDriver)
	assert.Equal(t, 24*time.Hour, cfg.AuditInterval)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "https://project.supabase.co", cfg.FallbackURL)
	assert.Equal(t, "anon", cfg.FallbackAPIKey)
	assert.Error(t, cfg.RequireBot())
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	yamlPath := writeFile(t, dir, "tasky.yaml", `
telegram:
  token: from-file
  admin_chat_id: 10
  allowed_chats: [10, 11]
store:
  driver: postgres
  database_url: postgres://file/db
  fallback_url: https://fallback.example
  fallback_api_key: service-role
  http_timeout_seconds: 5
audit:
  interval_hours: 6
  at: "08:30"
`)
	dotenvPath := writeFile(t, dir, ".env", "DATABASE_URL=postgres://dotenv/db\nAUDIT_AT=07:00\n")

	cfg, err := load(yamlPath, dotenvPath, envMap(map[string]string{
		"AUDIT_AT":      "06:15",
		"ALLOWED_CHATS": "42, 43",
	}))
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.TelegramToken)
	assert.Equal(t, int64(10), cfg.AdminChatID)
	assert.Equal(t, []int64{42, 43}, cfg.AllowedChats)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://dotenv/db", cfg.DatabaseURL)
	assert.Equal(t, "https://fallback.example", cfg.FallbackURL)
	assert.Equal(t, "service-role", cfg.FallbackAPIKey)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 6*time.Hour, cfg.AuditInterval)
	assert.Equal(t, "06:15", cfg.AuditAt)
	assert.NoError(t, cfg.RequireBot())

	assert.True(t, cfg.ChatAllowed(42))
	assert.False(t, cfg.ChatAllowed(10))
}

func TestLoadSQLiteDefaultsDatabase(t *testing.T) {
	cfg, err := load("", "", envMap(map[string]string{"STORE_DRIVER": "sqlite"}))
	require.NoError(t, err)
	assert.Equal(t, "tasky.db", cfg.DatabaseURL)
	assert.True(t, cfg.ChatAllowed(1))
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing supabase", env: map[string]string{}},
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres"}},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "mysql"}},
		{name: "bad admin chat", env: map[string]string{"STORE_DRIVER": "sqlite", "ADMIN_CHAT_ID": "abc"}},
		{name: "bad allowed chats", env: map[string]string{"STORE_DRIVER": "sqlite", "ALLOWED_CHATS": "1,x"}},
		{name: "bad timeout", env: map[string]string{"STORE_DRIVER": "sqlite", "HTTP_TIMEOUT_SECONDS": "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load("", "", envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := load(filepath.Join(t.TempDir(), "nope.yaml"), "", envMap(nil))
	assert.Error(t, err)
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, 5*time.Hour, parseInterval("5"))
	assert.Equal(t, 90*time.Minute, parseInterval("1.5"))
	assert.Zero(t, parseInterval("0"))
	assert.Zero(t, parseInterval("soon"))
}
