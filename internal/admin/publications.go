package admin

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/periodico/internal/backend"
	"github.com/hitoshi/periodico/internal/metrics"
	"github.com/hitoshi/periodico/internal/model"
)

// PublicationController は記事の一覧を扱うControllerの型。
type PublicationController = Controller[model.Publication, backend.PublicationInput]

// CategoryLister はカテゴリ一覧を取得する。
type CategoryLister func(ctx context.Context) ([]model.Category, error)

// PublicationScreen は記事画面の状態。記事一覧に加えて、表示名の解決と
// セレクタの選択肢に使うカテゴリ一覧を保持する。
type PublicationScreen struct {
	*PublicationController
	listCategories CategoryLister

	mu         sync.Mutex
	categories []model.Category
}

// NewPublicationScreen はPublicationScreenを生成する。
func NewPublicationScreen(api PublicationAPI, listCategories CategoryLister, cache Invalidator, logger *slog.Logger, m metrics.MetricsCollector) *PublicationScreen {
	return &PublicationScreen{
		PublicationController: NewController[model.Publication, backend.PublicationInput](Publications{API: api}, cache, logger, m),
		listCategories:        listCategories,
	}
}

// Load は記事一覧とカテゴリ一覧を並行して取得する。
// カテゴリの取得失敗はログに残すだけで、記事一覧は表示できる状態にする。
func (s *PublicationScreen) Load(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		return s.PublicationController.Load(ctx)
	})
	g.Go(func() error {
		cats, err := s.listCategories(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load categories for publications screen", "error", err)
			return nil
		}
		s.mu.Lock()
		s.categories = cats
		s.mu.Unlock()
		return nil
	})
	return g.Wait()
}

// Categories はカテゴリ一覧のコピーを返す。
func (s *PublicationScreen) Categories() []model.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.categories)
}

// CategoryName はカテゴリIDの表示名を返す。見つからない場合は"ID: n"。
func (s *PublicationScreen) CategoryName(id int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c.Description
		}
	}
	return fmt.Sprintf("ID: %d", id)
}

// DefaultCategoryID は新規作成フォームで初期選択するカテゴリ（先頭）のIDを返す。
func (s *PublicationScreen) DefaultCategoryID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.categories) == 0 {
		return 0
	}
	return s.categories[0].ID
}
