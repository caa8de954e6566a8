// Package config は環境変数（および任意のYAMLファイル）から設定を読み込む。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionBackend はセッションの永続化先の種類。
type SessionBackend string

const (
	SessionBackendFile     SessionBackend = "file"
	SessionBackendMemory   SessionBackend = "memory"
	SessionBackendPostgres SessionBackend = "postgres"
	SessionBackendRedis    SessionBackend = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend REST API
	APIBaseURL  string
	HTTPTimeout time.Duration // 0 はトランスポートのデフォルト（タイムアウトなし）

	// Identity provider
	IdentityBaseURL string
	IdentityAPIKey  string

	// Session persistence
	SessionBackend   SessionBackend
	SessionFile      string
	DatabaseURL      string
	RedisURL         string
	SessionKeyPrefix string

	// Logging / metrics
	LogLevel        string
	MetricsTextfile string

	// Tech news import
	FeedFetchTimeout time.Duration
	FeedMaxSize      int64

	// Development backend
	DevServerPort      string
	DevServerJWTSecret string
	DevServerTokenTTL  time.Duration
	RateLimitGeneral   int // req/min/user
	CORSAllowedOrigin  string
}

// source は環境変数を優先し、なければYAMLファイルの値を返す。
type source struct {
	file map[string]string
}

func (s source) get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

// Load は環境変数からConfigを読み込む。
// CAMPUSLINK_CONFIGにYAMLファイルが指定されている場合、その値を既定値として使い、
// 環境変数で上書きする。必須項目が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CAMPUSLINK_CONFIG"); path != "" {
		values, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		src.file = values
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = strings.TrimRight(src.get("CAMPUSLINK_API_URL"), "/")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "CAMPUSLINK_API_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.HTTPTimeout = src.getDuration("HTTP_TIMEOUT", 0)
	cfg.IdentityBaseURL = strings.TrimRight(src.getString("IDENTITY_BASE_URL", "https://identitytoolkit.googleapis.com/v1"), "/")
	cfg.IdentityAPIKey = src.getString("IDENTITY_API_KEY", "")
	cfg.SessionBackend = SessionBackend(strings.ToLower(src.getString("SESSION_BACKEND", string(SessionBackendFile))))
	cfg.SessionFile = src.getString("SESSION_FILE", defaultSessionFile())
	cfg.DatabaseURL = src.getString("DATABASE_URL", "")
	cfg.RedisURL = src.getString("REDIS_URL", "")
	cfg.SessionKeyPrefix = src.getString("SESSION_KEY_PREFIX", "campuslink")
	cfg.LogLevel = src.getString("LOG_LEVEL", "info")
	cfg.MetricsTextfile = src.getString("METRICS_TEXTFILE", "")
	cfg.FeedFetchTimeout = src.getDuration("FEED_FETCH_TIMEOUT", 10*time.Second)
	cfg.FeedMaxSize = src.getInt64("FEED_MAX_SIZE", 5242880)
	cfg.DevServerPort = src.getString("DEVSERVER_PORT", "8000")
	cfg.DevServerJWTSecret = src.getString("DEVSERVER_JWT_SECRET", "")
	cfg.DevServerTokenTTL = src.getDuration("DEVSERVER_TOKEN_TTL", 24*time.Hour)
	cfg.RateLimitGeneral = src.getInt("RATE_LIMIT_GENERAL", 120)
	cfg.CORSAllowedOrigin = src.getString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	if err := cfg.validateSessionBackend(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSessionBackend はセッション永続化先と必要な接続情報の整合性を検証する。
func (c *Config) validateSessionBackend() error {
	switch c.SessionBackend {
	case SessionBackendFile, SessionBackendMemory:
		return nil
	case SessionBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("SESSION_BACKEND=postgres requires DATABASE_URL")
		}
		return nil
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("SESSION_BACKEND=redis requires REDIS_URL")
		}
		return nil
	default:
		return fmt.Errorf("unknown SESSION_BACKEND: %q (allowed: file, memory, postgres, redis)", c.SessionBackend)
	}
}

// loadFile はフラットな「環境変数名: 値」形式のYAMLファイルを読み込む。
func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".campuslink", "session.json")
	}
	return filepath.Join(dir, "campuslink", "session.json")
}

func (s source) getString(key, defaultVal string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return defaultVal
}

func (s source) getInt(key string, defaultVal int) int {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getInt64(key string, defaultVal int64) int64 {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func (s source) getDuration(key string, defaultVal time.Duration) time.Duration {
	v := s.get(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
