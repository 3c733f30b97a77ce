package security

import (
	"html"
	"html/template"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は記事本文を表示用に無害化する。
// 本文はバックエンドからそのまま届くため、HTMLが混入していても安全に表示できるようにする。
type ContentSanitizer struct {
	body  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerを生成する。
// 本文ポリシー: p, br, ul, ol, li, blockquote, strong, em と https/http のリンクのみ許可。
// リンクにはtarget="_blank"とrel="noopener noreferrer"を付与する。
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "blockquote", "strong", "em")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &ContentSanitizer{
		body:  p,
		plain: bluemonday.StrictPolicy(),
	}
}

// Body は本文を無害化したHTMLを返す。改行は<br>に変換する。
func (s *ContentSanitizer) Body(raw string) template.HTML {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	clean := s.body.Sanitize(raw)
	clean = strings.ReplaceAll(clean, "\n", "<br>")
	return template.HTML(clean)
}

// Excerpt はタグを除去したプレーンテキストを最大maxRunes文字で返す。
// 切り詰めた場合は末尾に"…"を付ける。戻り値はエスケープ前のテキストで、出力時にhtml/templateがエスケープする。
func (s *ContentSanitizer) Excerpt(raw string, maxRunes int) string {
	text := html.UnescapeString(s.plain.Sanitize(raw))
	text = strings.Join(strings.Fields(text), " ")
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
