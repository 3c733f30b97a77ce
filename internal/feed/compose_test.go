package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/periodico/internal/model"
	"github.com/hitoshi/periodico/internal/security"
)

func newTestComposer() *Composer {
	return NewComposer(security.NewContentSanitizer())
}

func samplePublications() []model.Publication {
	return []model.Publication{
		{ID: 1, Title: "Partido de fútbol", Description: "El equipo ganó", Date: "2024-03-01T10:00:00"},
		{ID: 2, Title: "Elecciones", Description: "Resultados del FÚTBOL político", Date: "2024-03-05T09:00:00"},
		{ID: 3, Title: "Clima", Description: "Lluvias", Date: "2024-03-04T08:00:00"},
		{ID: 4, Title: "Economía", Description: "Inflación", Date: "2024-03-03T08:00:00"},
		{ID: 5, Title: "Cultura", Description: "Festival", Date: "no-es-fecha"},
	}
}

func ids(pubs []model.Publication) []int {
	out := make([]int, len(pubs))
	for i, p := range pubs {
		out[i] = p.ID
	}
	return out
}

func TestFilter(t *testing.T) {
	pubs := samplePublications()
	tests := []struct {
		name   string
		search string
		want   []int
	}{
		{name: "empty matches all", search: "", want: []int{1, 2, 3, 4, 5}},
		{name: "case insensitive title or body", search: "fútbol", want: []int{1, 2}},
		{name: "upper case query", search: "CLIMA", want: []int{3}},
		{name: "no match", search: "astronomía", want: []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(pubs, tt.search))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Filter(%q) (-want +got):\n%s", tt.search, diff)
			}
		})
	}
}

func TestFilter_DoesNotMutateInput(t *testing.T) {
	pubs := samplePublications()
	before := ids(pubs)
	_ = Filter(pubs, "clima")
	if diff := cmp.Diff(before, ids(pubs)); diff != "" {
		t.Errorf("入力が変更された (-before +after):\n%s", diff)
	}
}

func TestAssignVariants(t *testing.T) {
	tests := []struct {
		n        int
		magazine bool
		want     []Variant
	}{
		{n: 5, magazine: true, want: []Variant{VariantHero, VariantFeatured, VariantFeatured, VariantDefault, VariantDefault}},
		{n: 2, magazine: true, want: []Variant{VariantHero, VariantFeatured}},
		{n: 0, magazine: true, want: []Variant{}},
		{n: 3, magazine: false, want: []Variant{VariantDefault, VariantDefault, VariantDefault}},
	}
	for _, tt := range tests {
		got := AssignVariants(tt.n, tt.magazine)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("AssignVariants(%d, %v) (-want +got):\n%s", tt.n, tt.magazine, diff)
		}
	}
}

func TestCompose_AllCategoriesView(t *testing.T) {
	now := time.Date(2024, 3, 5, 18, 0, 0, 0, time.Local)
	view := newTestComposer().Compose(samplePublications(), nil, "", now)

	gotIDs := make([]int, len(view.Entries))
	gotVariants := make([]Variant, len(view.Entries))
	for i, e := range view.Entries {
		gotIDs[i] = e.Publication.ID
		gotVariants[i] = e.Variant
	}
	if diff := cmp.Diff([]int{2, 3, 4, 1, 5}, gotIDs); diff != "" {
		t.Errorf("並び順 (-want +got):\n%s", diff)
	}
	wantVariants := []Variant{VariantHero, VariantFeatured, VariantFeatured, VariantDefault, VariantDefault}
	if diff := cmp.Diff(wantVariants, gotVariants); diff != "" {
		t.Errorf("レイアウト分類 (-want +got):\n%s", diff)
	}

	first := view.Entries[0]
	if first.DateLabel != "Subida hoy" || !first.IsToday {
		t.Errorf("当日の記事のラベル = %q IsToday=%v", first.DateLabel, first.IsToday)
	}
	if view.Entries[1].DateLabel != "Ayer" {
		t.Errorf("前日の記事のラベル = %q", view.Entries[1].DateLabel)
	}
	if view.Entries[3].DateLabel != "1 de marzo, 2024" {
		t.Errorf("過去の記事のラベル = %q", view.Entries[3].DateLabel)
	}
	if view.Entries[4].DateLabel != "no-es-fecha" {
		t.Errorf("解釈できない日付はそのまま = %q", view.Entries[4].DateLabel)
	}
	if first.Link != "/noticia/2" {
		t.Errorf("Link = %q", first.Link)
	}
	if view.Empty != EmptyNone {
		t.Errorf("Empty = %v, want EmptyNone", view.Empty)
	}
}

func TestCompose_CategoryViewIsUniform(t *testing.T) {
	cat := 1
	view := newTestComposer().Compose(samplePublications(), &cat, "", time.Now())
	for _, e := range view.Entries {
		if e.Variant != VariantDefault {
			t.Errorf("カテゴリ表示は default のみ: id=%d variant=%s", e.Publication.ID, e.Variant)
		}
	}
}

func TestCompose_EmptyStates(t *testing.T) {
	c := newTestComposer()
	if v := c.Compose(samplePublications(), nil, "astronomía", time.Now()); v.Empty != EmptyNoResults {
		t.Errorf("検索結果なし: Empty = %v", v.Empty)
	}
	if v := c.Compose(nil, nil, "", time.Now()); v.Empty != EmptyNoPublications {
		t.Errorf("記事なし: Empty = %v", v.Empty)
	}
	// 空白だけの検索語もそのまま検索として扱う
	if v := c.Compose(samplePublications(), nil, "   ", time.Now()); v.Empty != EmptyNoResults || len(v.Entries) != 0 {
		t.Errorf("空白のみの検索: Empty = %v entries=%d", v.Empty, len(v.Entries))
	}
	if v := c.Compose(nil, nil, " ", time.Now()); v.Empty != EmptyNoResults {
		t.Errorf("空白のみの検索で記事なし: Empty = %v", v.Empty)
	}
	if EmptyNoResults.Message() != "No se encontraron resultados para tu búsqueda" {
		t.Errorf("Message = %q", EmptyNoResults.Message())
	}
}

func TestCompose_ExcerptStripsMarkup(t *testing.T) {
	pubs := []model.Publication{{ID: 1, Title: "T", Description: "<p>Hola <b>mundo</b></p><script>alert(1)</script>", Date: "2024-03-05"}}
	view := newTestComposer().Compose(pubs, nil, "", time.Now())
	if got := view.Entries[0].Excerpt; got != "Hola mundo" {
		t.Errorf("Excerpt = %q, want %q", got, "Hola mundo")
	}
}

func TestChips(t *testing.T) {
	cats := []model.Category{{ID: 1, Description: "Deportes"}, {ID: 3, Description: "Cultura"}}

	got := Chips(cats, nil)
	want := []Chip{
		{Label: "Todas", Href: "/", Active: true},
		{Label: "Deportes", Href: "/?categoria=1"},
		{Label: "Cultura", Href: "/?categoria=3"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Chips (-want +got):\n%s", diff)
	}

	sel := 3
	got = Chips(cats, &sel)
	if got[0].Active || got[1].Active || !got[2].Active {
		t.Errorf("選択中のチップのみ Active であるべき: %+v", got)
	}
}

func TestShareLinks(t *testing.T) {
	s := ShareLinks("https://periodico.example/", model.Publication{ID: 7, Title: "Gran final"})
	if s.Canonical != "https://periodico.example/noticia/7" {
		t.Errorf("Canonical = %q", s.Canonical)
	}
	if s.WhatsApp != "https://wa.me/?text=Gran+final+https%3A%2F%2Fperiodico.example%2Fnoticia%2F7" {
		t.Errorf("WhatsApp = %q", s.WhatsApp)
	}
	if !strings.HasPrefix(s.Facebook, "https://www.facebook.com/sharer/sharer.php?u=https%3A%2F%2F") {
		t.Errorf("Facebook = %q", s.Facebook)
	}
}

func TestDetail(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.Local)
	p := model.Publication{
		ID: 9, Title: "Nota", Description: "Línea 1\nLínea 2", Date: "2024-03-05",
		ViewCount: 12, ImageURL: "http://127.0.0.1/x.png",
		Category: &model.CategorySummary{ID: 2, Name: "Cultura"},
	}
	d := newTestComposer().Detail(p, "https://periodico.example", now)

	if d.ViewsLabel != "12 vistas" {
		t.Errorf("ViewsLabel = %q", d.ViewsLabel)
	}
	if d.DateLabel != "Subida hoy" {
		t.Errorf("DateLabel = %q", d.DateLabel)
	}
	if string(d.Body) != "Línea 1<br>Línea 2" {
		t.Errorf("Body = %q", d.Body)
	}
	if d.ImageURL != "" {
		t.Errorf("内部アドレスの画像は表示しない: %q", d.ImageURL)
	}
	if d.CategoryName != "Cultura" {
		t.Errorf("CategoryName = %q", d.CategoryName)
	}
}
