package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
)

const (
	// csrfCookieName はCSRFトークンを保持するCookieの名前。
	csrfCookieName = "csrf_token"

	// CSRFFieldName はフォームに埋め込むhiddenフィールド名。
	CSRFFieldName = "csrf_token"

	// csrfHeaderName はフォーム以外から送る場合のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"

	csrfMaxAge = 86400

	// formMaxMemory はmultipartフォームをメモリに保持する上限（FormValueと同じ値）。
	formMaxMemory = 32 << 20
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	// Render は検証失敗時のエラーページ。nilの場合はテキストで返す。
	Render ErrorRenderer
}

type csrfContextKey struct{}

// NewCSRFMiddleware はdouble-submit方式のCSRF対策ミドルウェアを返す。
// 安全なメソッドではトークンCookieを用意してコンテキストに格納する。
// 状態変更メソッドではCookieとフォームフィールド（またはヘッダー）の一致を必須とする。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	render := renderOrPlain(config.Render)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				token := ensureCSRFCookie(w, r, config)
				ctx := context.WithValue(r.Context(), csrfContextKey{}, token)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			cookieToken, err := r.Cookie(csrfCookieName)
			if err != nil || cookieToken.Value == "" {
				csrfFailed(w, r, render, "missing cookie token")
				return
			}

			submitted := r.Header.Get(csrfHeaderName)
			if submitted == "" {
				// ボディの上限超過はトークン欠落ではなく413として返す
				if err := parseForm(r); err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						slog.WarnContext(r.Context(), "request body too large",
							slog.Int64("limit", tooLarge.Limit),
							slog.String("path", r.URL.Path),
						)
						render(w, r, http.StatusRequestEntityTooLarge, NewPayloadTooLargeError())
						return
					}
				}
				submitted = r.PostFormValue(CSRFFieldName)
			}
			if submitted == "" {
				csrfFailed(w, r, render, "missing form token")
				return
			}

			if subtle.ConstantTimeCompare([]byte(cookieToken.Value), []byte(submitted)) != 1 {
				csrfFailed(w, r, render, "token mismatch")
				return
			}

			ctx := context.WithValue(r.Context(), csrfContextKey{}, cookieToken.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CSRFToken はフォームに埋め込むトークンを返す。
// CSRFミドルウェアを通過していないリクエストでは空文字列。
func CSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey{}).(string)
	return token
}

func csrfFailed(w http.ResponseWriter, r *http.Request, render ErrorRenderer, reason string) {
	slog.WarnContext(r.Context(), "CSRF validation failed",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	render(w, r, http.StatusForbidden, NewForbiddenError())
}

// parseForm はContent-Typeに応じてフォームを解析する。
func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(formMaxMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	return err
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie はCSRFトークンCookieが未設定の場合に設定し、有効なトークンを返す。
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, config CSRFConfig) string {
	if c, err := r.Cookie(csrfCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	token, err := generateCSRFToken()
	if err != nil {
		slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
		return ""
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   csrfMaxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// generateCSRFToken は暗号的に安全なCSRFトークンを生成する。
func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
