package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func samplePublications(now time.Time) string {
	today := now.Format(time.DateOnly)
	yesterday := now.AddDate(0, 0, -1).Format(time.DateOnly)
	return `[
		{"id":1,"titulo":"Final del torneo","descripcion":"Crónica del partido","fecha":"2024-03-05","visualizacion":3,"categoria":{"id":1,"nombre":"Deportes"}},
		{"id":2,"titulo":"Nueva biblioteca","descripcion":"Inauguración en el centro","fecha":"` + today + `","visualizacion":10},
		{"id":3,"titulo":"Lluvias intensas","descripcion":"Alerta meteorológica","fecha":"` + yesterday + `","visualizacion":7},
		{"id":4,"titulo":"Feria del libro","descripcion":"Editoriales locales","fecha":"2024-01-10","visualizacion":1}
	]`
}

// TestFeed_ChipsFromCategories はカテゴリ一覧から「Todas」に続くチップが表示されることを検証する。
func TestFeed_ChipsFromCategories(t *testing.T) {
	app := newTestApp(t, newFakeBackend())

	resp, body := app.get(t, "/")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	assertContains(t, body, `<a href="/" class="activa" aria-current="page">Todas</a>`, `<a href="/?categoria=1">Deportes</a>`)
	if strings.Index(body, ">Todas<") > strings.Index(body, ">Deportes<") {
		t.Error("「Todas」が先頭にない")
	}
	assertContains(t, body, "No hay noticias disponibles")
}

// TestFeed_CategorySelectionFetchesOnlyThatCategory はカテゴリ選択時にそのカテゴリの記事だけを取得することを検証する。
func TestFeed_CategorySelectionFetchesOnlyThatCategory(t *testing.T) {
	fb := newFakeBackend()
	fb.json("GET /api/Publicaciones/ListarPorCategoria/1", http.StatusOK,
		`[{"id":9,"titulo":"Gol de último minuto","descripcion":"Resumen","fecha":"2024-03-05"}]`)
	app := newTestApp(t, fb)

	resp, body := app.get(t, "/?categoria=1")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if n := fb.count("GET /api/Publicaciones/ListarPorCategoria/1"); n != 1 {
		t.Errorf("カテゴリ別一覧の呼び出し回数 = %d, want 1", n)
	}
	if n := fb.count("GET /api/Publicaciones/ListarPublicacionesActivos"); n != 0 {
		t.Errorf("全件一覧の呼び出し回数 = %d, want 0", n)
	}
	req, _ := fb.lastRequest("GET /api/Publicaciones/ListarPorCategoria/1")
	if got := req.URL.Query().Get("estado"); got != "Activo" {
		t.Errorf("estado = %q, want Activo", got)
	}
	assertContains(t, body, "Gol de último minuto", `<a href="/?categoria=1" class="activa" aria-current="page">Deportes</a>`)
	if strings.Contains(body, "noticia hero") {
		t.Error("カテゴリ表示でheroが割り当てられている")
	}
}

// TestFeed_VariantsAndSearch は「Todas」表示のレイアウト分類と検索の空状態を検証する。
func TestFeed_VariantsAndSearch(t *testing.T) {
	fb := newFakeBackend()
	fb.json("GET /api/Publicaciones/ListarPublicacionesActivos", http.StatusOK, samplePublications(time.Now()))
	app := newTestApp(t, fb)

	_, body := app.get(t, "/")
	if n := strings.Count(body, `class="noticia hero"`); n != 1 {
		t.Errorf("hero の数 = %d, want 1", n)
	}
	if n := strings.Count(body, `class="noticia featured"`); n != 2 {
		t.Errorf("featured の数 = %d, want 2", n)
	}
	// 新着順: 今日の記事がhero
	hero := body[strings.Index(body, `class="noticia hero"`):]
	if !strings.HasPrefix(hero[strings.Index(hero, "<h2>"):], `<h2><a href="/noticia/2">Nueva biblioteca</a></h2>`) {
		t.Errorf("heroが今日の記事ではない: %.200s", hero)
	}
	assertContains(t, body, "Subida hoy", "Ayer", "5 de marzo, 2024")

	_, body = app.get(t, "/?q=LIBRO")
	assertContains(t, body, "Feria del libro")
	if strings.Contains(body, "Nueva biblioteca") {
		t.Error("検索語に一致しない記事が表示されている")
	}

	_, body = app.get(t, "/?q=inexistente")
	assertContains(t, body, "No se encontraron resultados para tu búsqueda")

	_, body = app.get(t, "/?q=%20%20%20")
	assertContains(t, body, "No se encontraron resultados para tu búsqueda")
	if strings.Contains(body, "Feria del libro") {
		t.Error("空白のみの検索語でも文字どおりに絞り込むべき")
	}

	if n := fb.count("GET /api/Publicaciones/ListarPublicacionesActivos"); n != 1 {
		t.Errorf("一覧の呼び出し回数 = %d, want 1（キャッシュが効いていない）", n)
	}
}

// TestFeed_BackendErrorShowsRetry は一覧取得の失敗時に再試行リンクを表示することを検証する。
func TestFeed_BackendErrorShowsRetry(t *testing.T) {
	fb := newFakeBackend()
	fb.json("GET /api/Publicaciones/ListarPublicacionesActivos", http.StatusInternalServerError, `{"error":"boom"}`)
	app := newTestApp(t, fb)

	resp, body := app.get(t, "/")

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	assertContains(t, body, "Reintentar", ">Todas<")

	// エラーはキャッシュしない
	app.get(t, "/")
	if n := fb.count("GET /api/Publicaciones/ListarPublicacionesActivos"); n != 2 {
		t.Errorf("一覧の呼び出し回数 = %d, want 2", n)
	}
}

func TestDetail_ShowsPublication(t *testing.T) {
	fb := newFakeBackend()
	fb.json("GET /api/Publicaciones/3", http.StatusOK,
		`{"id":3,"titulo":"Lluvias intensas","descripcion":"<p>Alerta</p><script>alert(1)</script>","fecha":"2024-03-05","visualizacion":12,"imagenUrl":"https://img.example/lluvia.jpg"}`)
	app := newTestApp(t, fb)

	resp, body := app.get(t, "/noticia/3")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	assertContains(t, body,
		"<h1>Lluvias intensas</h1>",
		"12 vistas",
		"5 de marzo, 2024",
		"<p>Alerta</p>",
		"https://wa.me/?text=",
		"https://www.facebook.com/sharer/sharer.php?u=",
		`src="https://img.example/lluvia.jpg"`,
	)
	if strings.Contains(body, "alert(1)") {
		t.Error("本文のscriptが除去されていない")
	}
}

func TestDetail_NotFound(t *testing.T) {
	fb := newFakeBackend()
	fb.json("GET /api/Publicaciones/99", http.StatusNotFound, ``)
	app := newTestApp(t, fb)

	for _, path := range []string{"/noticia/99", "/noticia/abc"} {
		resp, _ := app.get(t, path)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, resp.StatusCode)
		}
	}
}

// TestDetail_BackendError は取得失敗時に中立的なメッセージを表示することを検証する。
func TestDetail_BackendError(t *testing.T) {
	fb := newFakeBackend()
	fb.json("GET /api/Publicaciones/5", http.StatusServiceUnavailable, ``)
	app := newTestApp(t, fb)

	resp, body := app.get(t, "/noticia/5")

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	assertContains(t, body, "No se pudo cargar la noticia", "Volver")
}

func TestNotFoundPage(t *testing.T) {
	app := newTestApp(t, newFakeBackend())

	resp, body := app.get(t, "/no-existe")

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	assertContains(t, body, "Página no encontrada")
}
