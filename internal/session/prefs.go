package session

import (
	"net/http"
	"strconv"
	"time"
)

// 表示設定のCookie名
const (
	ThemeCookie     = "theme"
	LargeTextCookie = "largeText"
)

// テーマ
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

const prefsMaxAge = 365 * 24 * time.Hour

// Prefs は読者の表示設定。テーマと文字サイズは独立して切り替える。
type Prefs struct {
	Theme     string
	LargeText bool
}

// ReadPrefs はCookieから表示設定を読み取る。
// テーマのCookieがない場合はSec-CH-Prefers-Color-Schemeヒントに従い、それもなければlight。
func ReadPrefs(r *http.Request) Prefs {
	p := Prefs{Theme: ThemeLight}
	if c, err := r.Cookie(ThemeCookie); err == nil && (c.Value == ThemeLight || c.Value == ThemeDark) {
		p.Theme = c.Value
	} else if r.Header.Get("Sec-CH-Prefers-Color-Scheme") == ThemeDark {
		p.Theme = ThemeDark
	}
	if c, err := r.Cookie(LargeTextCookie); err == nil {
		p.LargeText, _ = strconv.ParseBool(c.Value)
	}
	return p
}

// PrefsWriter は表示設定のCookieを書き込む。
type PrefsWriter struct {
	Secure bool
	Domain string
}

// ToggleTheme はテーマを切り替えて新しい設定を返す。
func (pw PrefsWriter) ToggleTheme(w http.ResponseWriter, r *http.Request) Prefs {
	p := ReadPrefs(r)
	if p.Theme == ThemeDark {
		p.Theme = ThemeLight
	} else {
		p.Theme = ThemeDark
	}
	pw.set(w, ThemeCookie, p.Theme)
	return p
}

// ToggleLargeText は文字サイズ拡大を切り替えて新しい設定を返す。
func (pw PrefsWriter) ToggleLargeText(w http.ResponseWriter, r *http.Request) Prefs {
	p := ReadPrefs(r)
	p.LargeText = !p.LargeText
	pw.set(w, LargeTextCookie, strconv.FormatBool(p.LargeText))
	return p
}

func (pw PrefsWriter) set(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   pw.Domain,
		MaxAge:   int(prefsMaxAge / time.Second),
		Secure:   pw.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
