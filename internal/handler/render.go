package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/periodico/internal/middleware"
	"github.com/hitoshi/periodico/internal/model"
	"github.com/hitoshi/periodico/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページテンプレート名
const (
	pageFeed          = "feed.html"
	pageDetail        = "detail.html"
	pageLogin         = "login.html"
	pageAdmin         = "admin.html"
	pageUsers         = "users.html"
	pageCategory      = "category.html"
	pagePublications  = "publicaciones.html"
	pageConfirmDelete = "confirm_delete.html"
	pageError         = "error.html"
)

var pageNames = []string{
	pageFeed, pageDetail, pageLogin, pageAdmin, pageUsers,
	pageCategory, pagePublications, pageConfirmDelete, pageError,
}

// NoticeSource はフラッシュ通知の取り出しと追加を行う。
type NoticeSource interface {
	Add(w http.ResponseWriter, r *http.Request, n session.Notice) error
	Pop(w http.ResponseWriter, r *http.Request) []session.Notice
}

// pageData はレイアウトに渡す共通データ。Contentがページ固有のデータ。
type pageData struct {
	Title     string
	Path      string
	Prefs     session.Prefs
	Session   session.State
	CSRFToken string
	Notices   []session.Notice
	Content   any
}

// Renderer は埋め込みテンプレートからHTMLページを描画する。
type Renderer struct {
	pages  map[string]*template.Template
	flash  NoticeSource
	logger *slog.Logger
}

// NewRenderer はすべてのページテンプレートを解析してRendererを生成する。
func NewRenderer(flash NoticeSource, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, flash: flash, logger: logger}, nil
}

// Page はページを描画する。描画はバッファに行い、失敗した場合は500を返す。
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, page, title string, content any) {
	t, ok := rd.pages[page]
	if !ok {
		rd.logger.ErrorContext(r.Context(), "unknown template", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := pageData{
		Title:     title,
		Path:      r.URL.RequestURI(),
		Prefs:     session.ReadPrefs(r),
		Session:   session.FromContext(r.Context()),
		CSRFToken: middleware.CSRFToken(r),
		Content:   content,
	}
	if rd.flash != nil {
		data.Notices = rd.flash.Pop(w, r)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		rd.logger.ErrorContext(r.Context(), "failed to render template",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error はエラーページを描画する。middleware.ErrorRendererとして使う。
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, apiErr *model.APIError) {
	rd.Page(w, r, status, pageError, apiErr.Message, apiErr)
}

// Notify はフラッシュ通知を追加する。失敗はログのみに残す。
func (rd *Renderer) Notify(w http.ResponseWriter, r *http.Request, n session.Notice) {
	if rd.flash == nil {
		return
	}
	if err := rd.flash.Add(w, r, n); err != nil {
		rd.logger.WarnContext(r.Context(), "failed to add flash", slog.String("error", err.Error()))
	}
}
