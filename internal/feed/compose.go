// Package feed は記事一覧から読者向けフィードと記事詳細の表示モデルを組み立てる。
package feed

import (
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/hitoshi/periodico/internal/datelabel"
	"github.com/hitoshi/periodico/internal/model"
	"github.com/hitoshi/periodico/internal/security"
)

// Variant はフィード項目のレイアウト分類。
type Variant string

const (
	VariantHero     Variant = "hero"
	VariantFeatured Variant = "featured"
	VariantDefault  Variant = "default"
)

// featuredCount はheroに続くfeatured項目の数。
const featuredCount = 2

// defaultExcerptRunes は抜粋の最大文字数。
const defaultExcerptRunes = 180

// EmptyState は表示する項目がない場合の理由。
type EmptyState int

const (
	EmptyNone EmptyState = iota
	EmptyNoResults
	EmptyNoPublications
)

// Message は空状態の表示文言を返す。
func (e EmptyState) Message() string {
	switch e {
	case EmptyNoResults:
		return "No se encontraron resultados para tu búsqueda"
	case EmptyNoPublications:
		return "No hay noticias disponibles"
	default:
		return ""
	}
}

// Entry はフィードの1項目。
type Entry struct {
	Publication  model.Publication
	Variant      Variant
	DateLabel    string
	IsToday      bool
	Excerpt      string
	ImageURL     string
	CategoryName string
	Link         string
}

// View はフィード画面の表示モデル。
type View struct {
	Entries    []Entry
	Empty      EmptyState
	Search     string
	CategoryID *int
}

// Composer はフィードと記事詳細の表示モデルを組み立てる。
type Composer struct {
	sanitizer    *security.ContentSanitizer
	excerptRunes int
}

// NewComposer はComposerを生成する。
func NewComposer(sanitizer *security.ContentSanitizer) *Composer {
	return &Composer{sanitizer: sanitizer, excerptRunes: defaultExcerptRunes}
}

// Compose は記事一覧を検索語で絞り込み、新着順に並べ、レイアウト分類を割り当てる。
// categoryIDがnilの場合（「Todas」）のみhero/featuredを割り当てる。
func (c *Composer) Compose(pubs []model.Publication, categoryID *int, search string, now time.Time) View {
	filtered := datelabel.SortByRecency(Filter(pubs, search), func(p model.Publication) string { return p.Date })
	variants := AssignVariants(len(filtered), categoryID == nil)

	entries := make([]Entry, len(filtered))
	for i, p := range filtered {
		entries[i] = Entry{
			Publication:  p,
			Variant:      variants[i],
			DateLabel:    datelabel.LabelFor(p.Date, now),
			IsToday:      datelabel.IsToday(p.Date, now),
			Excerpt:      c.sanitizer.Excerpt(p.Description, c.excerptRunes),
			ImageURL:     security.SafeImageURL(p.ImageURL),
			CategoryName: categoryName(p),
			Link:         DetailPath(p.ID),
		}
	}

	view := View{Entries: entries, Search: search, CategoryID: categoryID}
	if len(entries) == 0 {
		if search != "" {
			view.Empty = EmptyNoResults
		} else {
			view.Empty = EmptyNoPublications
		}
	}
	return view
}

// Filter はタイトルまたは本文に検索語を含む記事を返す。大文字小文字は区別しない。
// 空の検索語はすべてに一致する。入力の順序を保つ。
func Filter(pubs []model.Publication, search string) []model.Publication {
	out := make([]model.Publication, 0, len(pubs))
	if search == "" {
		return append(out, pubs...)
	}
	fold := cases.Fold()
	needle := fold.String(search)
	for _, p := range pubs {
		if strings.Contains(fold.String(p.Title), needle) || strings.Contains(fold.String(p.Description), needle) {
			out = append(out, p)
		}
	}
	return out
}

// AssignVariants はn件分のレイアウト分類を返す。
// magazineがtrueの場合、先頭がhero、続く2件がfeatured、残りがdefault。
func AssignVariants(n int, magazine bool) []Variant {
	variants := make([]Variant, n)
	for i := range variants {
		switch {
		case !magazine:
			variants[i] = VariantDefault
		case i == 0:
			variants[i] = VariantHero
		case i <= featuredCount:
			variants[i] = VariantFeatured
		default:
			variants[i] = VariantDefault
		}
	}
	return variants
}

// DetailPath は記事詳細ページのパスを返す。
func DetailPath(id int) string {
	return "/noticia/" + strconv.Itoa(id)
}

func categoryName(p model.Publication) string {
	if p.Category != nil {
		return p.Category.Name
	}
	return ""
}

// Chip はカテゴリ絞り込みのチップ。
type Chip struct {
	Label  string
	Href   string
	Active bool
}

// Chips はカテゴリチップを返す。先頭は常に「Todas」で、以降はバックエンドの順序に従う。
func Chips(categories []model.Category, selected *int) []Chip {
	chips := make([]Chip, 0, len(categories)+1)
	chips = append(chips, Chip{Label: "Todas", Href: "/", Active: selected == nil})
	for _, cat := range categories {
		chips = append(chips, Chip{
			Label:  cat.Description,
			Href:   "/?categoria=" + strconv.Itoa(cat.ID),
			Active: selected != nil && *selected == cat.ID,
		})
	}
	return chips
}

// Share は共有リンク。
type Share struct {
	Canonical string
	WhatsApp  string
	Facebook  string
}

// ShareLinks は記事の正規URLとSNS共有リンクを返す。
func ShareLinks(baseURL string, p model.Publication) Share {
	canonical := strings.TrimRight(baseURL, "/") + DetailPath(p.ID)
	return Share{
		Canonical: canonical,
		WhatsApp:  "https://wa.me/?text=" + url.QueryEscape(p.Title+" "+canonical),
		Facebook:  "https://www.facebook.com/sharer/sharer.php?u=" + url.QueryEscape(canonical),
	}
}

// Detail は記事詳細画面の表示モデル。
type Detail struct {
	Publication  model.Publication
	DateLabel    string
	ViewsLabel   string
	Body         template.HTML
	ImageURL     string
	CategoryName string
	Share        Share
}

// Detail は記事詳細の表示モデルを組み立てる。
func (c *Composer) Detail(p model.Publication, baseURL string, now time.Time) Detail {
	return Detail{
		Publication:  p,
		DateLabel:    datelabel.LabelFor(p.Date, now),
		ViewsLabel:   fmt.Sprintf("%d vistas", p.ViewCount),
		Body:         c.sanitizer.Body(p.Description),
		ImageURL:     security.SafeImageURL(p.ImageURL),
		CategoryName: categoryName(p),
		Share:        ShareLinks(baseURL, p),
	}
}
