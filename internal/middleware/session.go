package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/periodico/internal/session"
)

// Flasher はフラッシュ通知の追加に必要なインターフェース。
type Flasher interface {
	Add(w http.ResponseWriter, r *http.Request, n session.Notice) error
}

// NewSessionMiddleware はCookieからログイン状態を読み取り、リクエストコンテキストに注入する。
// 読み取りに失敗した場合は未ログインとして扱い、リクエストは止めない。
func NewSessionMiddleware(store session.Store) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, err := store.Load(r)
			if err != nil {
				slog.WarnContext(r.Context(), "failed to load admin session",
					slog.String("error", err.Error()),
				)
			}
			if st.IsAuthenticated() {
				noteAdmin(r.Context(), st.User.ID)
			}
			ctx := session.WithState(r.Context(), st)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewRequireAdminMiddleware は未ログインのリクエストを通知付きでトップページへリダイレクトする。
// SessionMiddlewareの後に配置する。
func NewRequireAdminMiddleware(flash Flasher) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session.FromContext(r.Context()).IsAuthenticated() {
				next.ServeHTTP(w, r)
				return
			}
			if err := flash.Add(w, r, session.Notice{
				Title:       "Acceso denegado",
				Description: "Debe iniciar sesión para acceder al panel",
				Variant:     session.VariantDestructive,
			}); err != nil {
				slog.WarnContext(r.Context(), "failed to add flash", slog.String("error", err.Error()))
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
		})
	}
}

// NewBodyLimitMiddleware はリクエストボディの大きさをmaxBytesに制限する。
func NewBodyLimitMiddleware(maxBytes int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
