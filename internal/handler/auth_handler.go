package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/periodico/internal/admin"
	"github.com/hitoshi/periodico/internal/backend"
	"github.com/hitoshi/periodico/internal/metrics"
	"github.com/hitoshi/periodico/internal/model"
	"github.com/hitoshi/periodico/internal/session"
)

// Authenticator はログインAPIを呼び出す。
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*model.SessionUser, error)
}

// ログイン試行の結果（メトリクスのラベル）
const (
	loginOK       = "ok"
	loginRejected = "rejected"
	loginInvalid  = "invalid"
	loginNetwork  = "network"
)

// AuthHandler はログイン・ログアウトを扱う。
type AuthHandler struct {
	auth      Authenticator
	store     session.Store
	workspace *admin.Workspace
	render    *Renderer
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(auth Authenticator, store session.Store, workspace *admin.Workspace, render *Renderer, logger *slog.Logger, m metrics.MetricsCollector) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &AuthHandler{
		auth:      auth,
		store:     store,
		workspace: workspace,
		render:    render,
		logger:    logger,
		metrics:   m,
	}
}

// loginPage はログイン画面のデータ。
type loginPage struct {
	Username string
	Notice   *session.Notice
}

// LoginForm はログインフォームを表示する。ログイン済みの場合は管理画面へ移動する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()).IsAuthenticated() {
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	h.render.Page(w, r, http.StatusOK, pageLogin, "Iniciar sesión", loginPage{})
}

// Login は資格情報を検証し、成功時にセッションを保存して管理画面へ移動する。
// 失敗時はセッションを変更せずにフォームを再表示する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("nombreUsuario"))
	password := r.FormValue("password")

	user, err := h.auth.Login(r.Context(), username, password)
	if err != nil {
		status, notice, outcome := classifyLoginError(err)
		h.metrics.RecordLogin(outcome)
		h.logger.InfoContext(r.Context(), "login failed",
			slog.String("outcome", outcome),
			slog.String("error", err.Error()),
		)
		h.render.Page(w, r, status, pageLogin, "Iniciar sesión", loginPage{Username: username, Notice: &notice})
		return
	}

	if _, err := h.store.Save(w, r, user); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save admin session", slog.String("error", err.Error()))
		h.render.Error(w, r, http.StatusInternalServerError, &model.APIError{
			Code:     "SESSION_SAVE_FAILED",
			Message:  "No se pudo iniciar la sesión",
			Category: "system",
			Action:   "Intenta nuevamente en unos momentos.",
		})
		return
	}
	h.metrics.RecordLogin(loginOK)

	h.render.Notify(w, r, session.Notice{
		Title:       "Bienvenido",
		Description: "Hola, " + user.DisplayName(),
		Variant:     session.VariantSuccess,
	})
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// classifyLoginError はログイン失敗をステータス・通知・メトリクスのラベルに変換する。
func classifyLoginError(err error) (int, session.Notice, string) {
	notice := session.Notice{Title: "Error de autenticación", Variant: session.VariantDestructive}

	kind := model.KindNetwork
	if ff, ok := model.AsFetchFailure(err); ok {
		kind = ff.Kind
	}
	if errors.Is(err, backend.ErrInvalidCredentials) {
		kind = model.KindHTTP
	}

	switch kind {
	case model.KindNetwork:
		notice.Title = "Error de conexión"
		notice.Description = "No se pudo conectar con el servidor. Intenta nuevamente."
		return http.StatusServiceUnavailable, notice, loginNetwork
	case model.KindValidation:
		notice.Description = "Ingresa tu usuario y contraseña."
		return http.StatusBadRequest, notice, loginInvalid
	default:
		notice.Description = "Usuario o contraseña incorrectos."
		return http.StatusUnauthorized, notice, loginRejected
	}
}

// Logout はセッションと管理画面の状態を破棄してトップページへ移動する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	st := session.FromContext(r.Context())
	if err := h.store.Clear(w, r); err != nil {
		h.logger.WarnContext(r.Context(), "failed to clear admin session", slog.String("error", err.Error()))
	}
	if st.ID != "" && h.workspace != nil {
		h.workspace.Drop(st.ID)
	}
	h.render.Notify(w, r, session.Notice{
		Title:   "Sesión cerrada",
		Variant: session.VariantInfo,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
