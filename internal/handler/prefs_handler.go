package handler

import (
	"net/http"
	"strings"

	"github.com/hitoshi/periodico/internal/session"
)

// PrefsHandler はテーマと文字サイズの切り替えを扱う。
type PrefsHandler struct {
	writer session.PrefsWriter
}

// NewPrefsHandler はPrefsHandlerを生成する。
func NewPrefsHandler(writer session.PrefsWriter) *PrefsHandler {
	return &PrefsHandler{writer: writer}
}

// ToggleTheme はテーマを切り替えて元のページへ戻る。
// POST /preferencias/tema
func (h *PrefsHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	h.writer.ToggleTheme(w, r)
	http.Redirect(w, r, returnPath(r.FormValue("volver")), http.StatusSeeOther)
}

// ToggleLargeText は文字サイズ拡大を切り替えて元のページへ戻る。
// POST /preferencias/texto
func (h *PrefsHandler) ToggleLargeText(w http.ResponseWriter, r *http.Request) {
	h.writer.ToggleLargeText(w, r)
	http.Redirect(w, r, returnPath(r.FormValue("volver")), http.StatusSeeOther)
}

// returnPath は戻り先が同一オリジンのパスの場合のみそれを返し、それ以外は"/"を返す。
func returnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
