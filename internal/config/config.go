// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// セッションの保存先
const (
	SessionBackendCookie   = "cookie"
	SessionBackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string

	// Backend
	BackendBaseURL      string
	BackendTimeout      time.Duration
	BackendAllowPrivate bool

	// Query cache
	QueryStaleTime time.Duration
	RedisURL       string

	// Session
	SessionSecret      string
	SessionBackend     string
	DatabaseURL        string
	AdminWorkspaceIdle time.Duration

	// Rate Limit
	LoginRatePerMin int

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// defaultBackendBaseURL は既定のバックエンドオリジン。
const defaultBackendBaseURL = "https://periodicodb-1.onrender.com"

// minSessionSecretLength はCookie署名鍵の最小長（バイト）。
const minSessionSecretLength = 32

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.SessionBackend = strings.ToLower(getEnvString("SESSION_BACKEND", SessionBackendCookie))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.SessionBackend == SessionBackendPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.SessionSecret) < minSessionSecretLength {
		return nil, fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecretLength)
	}

	switch cfg.SessionBackend {
	case SessionBackendCookie, SessionBackendPostgres:
	default:
		return nil, fmt.Errorf("unsupported SESSION_BACKEND: %q (allowed: cookie, postgres)", cfg.SessionBackend)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BackendBaseURL = strings.TrimRight(getEnvString("BACKEND_BASE_URL", defaultBackendBaseURL), "/")
	cfg.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 15*time.Second)
	cfg.BackendAllowPrivate = getEnvBool("BACKEND_ALLOW_PRIVATE", false)
	cfg.QueryStaleTime = getEnvDuration("QUERY_STALE_TIME", 15*time.Second)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.AdminWorkspaceIdle = getEnvDuration("ADMIN_WORKSPACE_IDLE", 30*time.Minute)
	cfg.LoginRatePerMin = getEnvInt("LOGIN_RATE_PER_MIN", 10)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
