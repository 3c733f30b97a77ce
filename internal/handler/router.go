// Package handler はHTMLページとHTTPルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/periodico/internal/metrics"
	"github.com/hitoshi/periodico/internal/middleware"
	"github.com/hitoshi/periodico/internal/model"
	"github.com/hitoshi/periodico/internal/session"
)

// maxBodyBytes はリクエストボディの上限。画像アップロードを含む。
const maxBodyBytes = maxImageBytes + 1<<20

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger  *slog.Logger
	Metrics metrics.MetricsCollector

	// ミドルウェア依存
	Renderer     *Renderer
	Flash        middleware.Flasher
	SessionStore session.Store
	RateLimiter  *middleware.RateLimiter
	CSRF         middleware.CSRFConfig

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ページ
	Feed  *FeedHandler
	Auth  *AuthHandler
	Admin *AdminHandler
	Prefs *PrefsHandler
}

// NewRouter は全ページのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → BodyLimit → Session → CSRF
//
// 管理画面（/admin, /users, /category, /publicaciones）はRequireAdminの内側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	csrf := deps.CSRF
	if csrf.Render == nil {
		csrf.Render = deps.Renderer.Error
	}

	r.Use(middleware.NewRecoveryMiddleware(deps.Renderer.Error))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewBodyLimitMiddleware(maxBodyBytes))
	r.Use(middleware.NewSessionMiddleware(deps.SessionStore))
	r.Use(middleware.NewCSRFMiddleware(csrf))

	// --- 運用 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 読者向け ---
	r.Get("/", deps.Feed.Home)
	r.Get("/noticia/{id}", deps.Feed.Detail)
	r.Get("/rss.xml", deps.Feed.RSS)

	r.Post("/preferencias/tema", deps.Prefs.ToggleTheme)
	r.Post("/preferencias/texto", deps.Prefs.ToggleLargeText)

	// --- ログイン ---
	r.Get("/login", deps.Auth.LoginForm)
	if deps.RateLimiter != nil {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", deps.Auth.Login)
	} else {
		r.Post("/login", deps.Auth.Login)
	}
	r.Post("/logout", deps.Auth.Logout)

	// --- 管理画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireAdminMiddleware(deps.Flash))
		deps.Admin.Routes(r)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		deps.Renderer.Error(w, r, http.StatusNotFound, model.NewNotFoundError())
	})

	return r
}
