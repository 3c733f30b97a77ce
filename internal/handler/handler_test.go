package handler

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/hitoshi/periodico/internal/admin"
	"github.com/hitoshi/periodico/internal/backend"
	"github.com/hitoshi/periodico/internal/feed"
	"github.com/hitoshi/periodico/internal/query"
	"github.com/hitoshi/periodico/internal/security"
	"github.com/hitoshi/periodico/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeBackend はREST APIのテストダブル。"METHOD /path"ごとに応答を差し替えられ、呼び出し回数を記録する。
type fakeBackend struct {
	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	calls    map[string]int
	last     map[string]*http.Request
	bodies   map[string][]byte
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		handlers: make(map[string]http.HandlerFunc),
		calls:    make(map[string]int),
		last:     make(map[string]*http.Request),
		bodies:   make(map[string][]byte),
	}
	b.json("GET /api/Categorias/ListarCategoriasActivos", http.StatusOK, `[{"id":1,"descripcion":"Deportes"}]`)
	b.json("GET /api/Publicaciones/ListarPublicacionesActivos", http.StatusOK, `[]`)
	b.json("GET /api/Usuarios/ListarUsuariosActivos", http.StatusOK, `[]`)
	b.json("POST /api/Usuarios/Login", http.StatusOK, `[{"id":1,"nombre":"Ana"}]`)
	return b
}

// handle はキーに対する応答を設定する。
func (b *fakeBackend) handle(key string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[key] = h
}

// json はキーに対して固定のJSON応答を設定する。
func (b *fakeBackend) json(key string, status int, body string) {
	b.handle(key, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

// lastRequest はキーに対する最後のリクエストとボディを返す。
func (b *fakeBackend) lastRequest(key string) (*http.Request, []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last[key], b.bodies[key]
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.calls[key]++
	b.last[key] = r
	b.bodies[key] = body
	h, ok := b.handlers[key]
	b.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	h(w, r)
}

// testApp はルーター全体を起動したテスト用サーバー。
type testApp struct {
	server    *httptest.Server
	client    *http.Client
	backend   *fakeBackend
	store     *session.CookieStore
	workspace *admin.Workspace
}

func newTestApp(t *testing.T, fb *fakeBackend) *testApp {
	t.Helper()
	backendServer := httptest.NewServer(fb)
	t.Cleanup(backendServer.Close)
	return newTestAppWithBackendURL(t, fb, backendServer.URL)
}

func newTestAppWithBackendURL(t *testing.T, fb *fakeBackend, backendURL string) *testApp {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	client := backend.NewClient(&http.Client{Timeout: 5 * time.Second}, backendURL, logger, nil)
	cache := query.New(query.Options{Logger: logger})
	opts := session.CookieOptions{Secret: []byte(testSecret)}
	flash := session.NewFlasher(opts)
	store := session.NewCookieStore(opts)

	render, err := NewRenderer(flash, logger)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	workspace := admin.NewWorkspace(func() *admin.Screens {
		return admin.NewScreens(admin.Deps{
			Users:        client,
			Categories:   client,
			Publications: client,
			Cache:        cache,
			Logger:       logger,
		})
	}, time.Hour)
	composer := feed.NewComposer(security.NewContentSanitizer())

	router := NewRouter(&RouterDeps{
		Logger:       logger,
		Renderer:     render,
		Flash:        flash,
		SessionStore: store,
		Feed:         NewFeedHandler(client, cache, composer, render, "https://periodico.example", logger),
		Auth:         NewAuthHandler(client, store, workspace, render, logger, nil),
		Admin:        NewAdminHandler(workspace, render, logger),
		Prefs:        NewPrefsHandler(session.PrefsWriter{}),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		t.Fatalf("cookiejar.New: %v", err)
	}
	return &testApp{
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		backend:   fb,
		store:     store,
		workspace: workspace,
	}
}

// get はGETリクエストを送り、レスポンスと本文を返す。
func (a *testApp) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := a.client.Get(a.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

// postForm はCSRFトークンを付けてフォームを送信する。
func (a *testApp) postForm(t *testing.T, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	if values == nil {
		values = url.Values{}
	}
	values.Set("csrf_token", a.csrfToken(t))
	resp, err := a.client.PostForm(a.server.URL+path, values)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

// postMultipart はCSRFトークンを付けてmultipartフォームを送信する。
func (a *testApp) postMultipart(t *testing.T, path string, fields map[string]string, fileField, fileName string, fileData []byte) (*http.Response, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("csrf_token", a.csrfToken(t))
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write(fileData)
	}
	mw.Close()

	resp, err := a.client.Post(a.server.URL+path, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, readBody(t, resp)
}

// csrfToken はCookieのCSRFトークンを返す。未発行なら/healthにアクセスして発行させる。
func (a *testApp) csrfToken(t *testing.T) string {
	t.Helper()
	if c := a.cookie("csrf_token"); c != nil {
		return c.Value
	}
	a.get(t, "/health")
	c := a.cookie("csrf_token")
	if c == nil {
		t.Fatal("CSRFトークンCookieが発行されない")
	}
	return c.Value
}

func (a *testApp) cookie(name string) *http.Cookie {
	u, _ := url.Parse(a.server.URL)
	for _, c := range a.client.Jar.Cookies(u) {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// login はバックエンドの既定応答（Ana）でログインする。
func (a *testApp) login(t *testing.T) {
	t.Helper()
	resp, _ := a.postForm(t, "/login", url.Values{"nombreUsuario": {"ana"}, "password": {"secreta"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("ログインのstatus = %d, want 303", resp.StatusCode)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("本文の読み込みに失敗: %v", err)
	}
	return string(b)
}

func assertRedirect(t *testing.T, resp *http.Response, want string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != want {
		t.Errorf("Location = %q, want %q", loc, want)
	}
}

func assertContains(t *testing.T, body string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(body, want) {
			t.Errorf("本文に%qが含まれていない", want)
		}
	}
}
