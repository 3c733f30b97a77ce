package admin

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/periodico/internal/backend"
	"github.com/hitoshi/periodico/internal/metrics"
	"github.com/hitoshi/periodico/internal/model"
)

// DefaultIdleTimeout は使われていないセッションの画面状態を破棄するまでの時間。
const DefaultIdleTimeout = 30 * time.Minute

// UserController はユーザー一覧を扱うControllerの型。
type UserController = Controller[model.User, backend.UserInput]

// CategoryController はカテゴリ一覧を扱うControllerの型。
type CategoryController = Controller[model.Category, backend.CategoryInput]

// Screens は1セッション分の管理画面の状態。
type Screens struct {
	Users        *UserController
	Categories   *CategoryController
	Publications *PublicationScreen
}

// Deps は画面状態の生成に必要な依存関係。
type Deps struct {
	Users          UserAPI
	Categories     CategoryAPI
	Publications   PublicationAPI
	ListCategories CategoryLister
	Cache          Invalidator
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
}

// NewScreens は空の画面状態を生成する。
func NewScreens(d Deps) *Screens {
	listCategories := d.ListCategories
	if listCategories == nil {
		listCategories = d.Categories.ListCategories
	}
	return &Screens{
		Users:        NewController[model.User, backend.UserInput](Users{API: d.Users}, d.Cache, d.Logger, d.Metrics),
		Categories:   NewController[model.Category, backend.CategoryInput](Categories{API: d.Categories}, d.Cache, d.Logger, d.Metrics),
		Publications: NewPublicationScreen(d.Publications, listCategories, d.Cache, d.Logger, d.Metrics),
	}
}

type slot struct {
	screens  *Screens
	lastUsed time.Time
}

// Workspace はセッションごとの画面状態を保持する。
// 状態は最初のアクセス時に生成し、一定時間使われなければEvictIdleで破棄する。
type Workspace struct {
	newScreens func() *Screens
	idle       time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*slot
}

// NewWorkspace はWorkspaceを生成する。
func NewWorkspace(newScreens func() *Screens, idle time.Duration) *Workspace {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Workspace{
		newScreens: newScreens,
		idle:       idle,
		now:        time.Now,
		sessions:   make(map[string]*slot),
	}
}

// Get はセッションの画面状態を返す。存在しなければ生成する。
func (w *Workspace) Get(sessionID string) *Screens {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.sessions[sessionID]
	if !ok {
		s = &slot{screens: w.newScreens()}
		w.sessions[sessionID] = s
	}
	s.lastUsed = w.now()
	return s.screens
}

// Drop はセッションの画面状態を破棄する（ログアウト時）。
func (w *Workspace) Drop(sessionID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.sessions, sessionID)
}

// EvictIdle は一定時間使われていない画面状態を破棄し、破棄した数を返す。
func (w *Workspace) EvictIdle() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := w.now().Add(-w.idle)
	n := 0
	for id, s := range w.sessions {
		if s.lastUsed.Before(cutoff) {
			delete(w.sessions, id)
			n++
		}
	}
	return n
}

// Len は保持しているセッション数を返す。
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}
