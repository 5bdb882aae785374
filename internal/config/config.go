package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverPostgREST = "postgrest"
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
)

// Config keeps runtime settings for every command.
type Config struct {
	TelegramToken string
	AdminChatID   int64
	AllowedChats  []int64

	StoreDriver    string
	SupabaseURL    string
	SupabaseKey    string
	DatabaseURL    string
	FallbackURL    string
	FallbackAPIKey string

	AuditInterval time.Duration
	AuditAt       string
	HTTPTimeout   time.Duration
}

// fileConfig is the layout of tasky.yaml.
type fileConfig struct {
	Telegram struct {
		Token        string  `yaml:"token"`
		AdminChatID  int64   `yaml:"admin_chat_id"`
		AllowedChats []int64 `yaml:"allowed_chats"`
	} `yaml:"telegram"`

	Store struct {
		Driver         string `yaml:"driver"`
		SupabaseURL    string `yaml:"supabase_url"`
		SupabaseKey    string `yaml:"supabase_key"`
		DatabaseURL    string `yaml:"database_url"`
		FallbackURL    string `yaml:"fallback_url"`
		FallbackAPIKey string `yaml:"fallback_api_key"`
		TimeoutSeconds int    `yaml:"http_timeout_seconds"`
	} `yaml:"store"`

	Audit struct {
		IntervalHours float64 `yaml:"interval_hours"`
		At            string  `yaml:"at"`
	} `yaml:"audit"`
}

var defaultFiles = []string{"tasky.yaml", "tasky.yml", ".tasky.yaml"}

// Load builds the configuration from defaults, then the YAML file at path
// (or the first default file found), then .env, then the environment.
func Load(path string) (Config, error) {
	return load(path, ".env", os.LookupEnv)
}

func load(path, dotenvPath string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Config{
		StoreDriver:   DriverPostgREST,
		AuditInterval: 24 * time.Hour,
		HTTPTimeout:   15 * time.Second,
	}

	if err := applyFile(&cfg, path); err != nil {
		return cfg, err
	}

	dotenv := map[string]string{}
	if dotenvPath != "" {
		if _, err := os.Stat(dotenvPath); err == nil {
			values, err := godotenv.Read(dotenvPath)
			if err != nil {
				return cfg, fmt.Errorf("read %s: %w", dotenvPath, err)
			}
			dotenv = values
		}
	}
	lookup := func(key string) string {
		if v, ok := lookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(dotenv[key])
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}

	if cfg.StoreDriver == DriverSQLite && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "tasky.db"
	}
	if cfg.FallbackURL == "" {
		cfg.FallbackURL = cfg.SupabaseURL
	}
	if cfg.FallbackAPIKey == "" {
		cfg.FallbackAPIKey = cfg.SupabaseKey
	}

	return cfg, cfg.Validate()
}

func applyFile(cfg *Config, path string) error {
	if path == "" {
		for _, loc := range defaultFiles {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&cfg.TelegramToken, fc.Telegram.Token)
	if fc.Telegram.AdminChatID != 0 {
		cfg.AdminChatID = fc.Telegram.AdminChatID
	}
	if len(fc.Telegram.AllowedChats) > 0 {
		cfg.AllowedChats = fc.Telegram.AllowedChats
	}
	setString(&cfg.StoreDriver, fc.Store.Driver)
	setString(&cfg.SupabaseURL, fc.Store.SupabaseURL)
	setString(&cfg.SupabaseKey, fc.Store.SupabaseKey)
	setString(&cfg.DatabaseURL, fc.Store.DatabaseURL)
	setString(&cfg.FallbackURL, fc.Store.FallbackURL)
	setString(&cfg.FallbackAPIKey, fc.Store.FallbackAPIKey)
	if fc.Store.TimeoutSeconds > 0 {
		cfg.HTTPTimeout = time.Duration(fc.Store.TimeoutSeconds) * time.Second
	}
	if fc.Audit.IntervalHours > 0 {
		cfg.AuditInterval = time.Duration(fc.Audit.IntervalHours * float64(time.Hour))
	}
	setString(&cfg.AuditAt, fc.Audit.At)
	return nil
}

func applyEnv(cfg *Config, lookup func(string) string) error {
	setString(&cfg.TelegramToken, lookup("TELEGRAM_TOKEN"))
	setString(&cfg.StoreDriver, lookup("STORE_DRIVER"))
	setString(&cfg.SupabaseURL, lookup("SUPABASE_URL"))
	setString(&cfg.SupabaseKey, lookup("SUPABASE_KEY"))
	setString(&cfg.DatabaseURL, lookup("DATABASE_URL"))
	setString(&cfg.FallbackURL, lookup("FALLBACK_URL"))
	setString(&cfg.FallbackAPIKey, lookup("FALLBACK_API_KEY"))
	setString(&cfg.AuditAt, lookup("AUDIT_AT"))

	if raw := lookup("ADMIN_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("ADMIN_CHAT_ID: %w", err)
		}
		cfg.AdminChatID = id
	}
	if raw := lookup("ALLOWED_CHATS"); raw != "" {
		chats, err := parseChatIDs(raw)
		if err != nil {
			return fmt.Errorf("ALLOWED_CHATS: %w", err)
		}
		cfg.AllowedChats = chats
	}
	if raw := lookup("AUDIT_INTERVAL_HOURS"); raw != "" {
		cfg.AuditInterval = parseInterval(raw)
	}
	if raw := lookup("HTTP_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("HTTP_TIMEOUT_SECONDS must be a positive integer, got %q", raw)
		}
		cfg.HTTPTimeout = time.Duration(seconds) * time.Second
	}
	return nil
}

// Validate checks that the chosen store driver has what it needs.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverPostgREST:
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return errors.New("SUPABASE_URL and SUPABASE_KEY are required for the postgrest driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

// RequireBot checks the settings only the bot needs.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN is required")
	}
	return nil
}

// ChatAllowed reports whether chatID may use the bot. An empty list allows
// every chat.
func (c Config) ChatAllowed(chatID int64) bool {
	if len(c.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseInterval reads a positive number of hours. Anything else disables
// the interval job.
func parseInterval(raw string) time.Duration {
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
