package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/periodico/internal/admin"
	"github.com/hitoshi/periodico/internal/feed"
	"github.com/hitoshi/periodico/internal/model"
	"github.com/hitoshi/periodico/internal/query"
)

// ReaderAPI は読者向け画面が必要とするバックエンド操作。
type ReaderAPI interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListPublications(ctx context.Context) ([]model.Publication, error)
	ListPublicationsByCategory(ctx context.Context, categoryID int) ([]model.Publication, error)
	GetPublication(ctx context.Context, id int) (*model.Publication, error)
}

// キャッシュキー。管理画面の変更時はリソース名単位で無効化される。
func categoriesKey() query.Key {
	return query.NewKey(admin.ResourceCategories)
}

func publicationsKey(categoryID *int) query.Key {
	return query.NewKey(admin.ResourcePublications, categoryID)
}

func publicationKey(id int) query.Key {
	return query.NewKey(admin.ResourcePublications, "detalle", id)
}

// FeedHandler は読者向けのフィード・記事詳細・RSSを扱う。
type FeedHandler struct {
	api      ReaderAPI
	cache    *query.Client
	composer *feed.Composer
	render   *Renderer
	baseURL  string
	logger   *slog.Logger
	now      func() time.Time
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(api ReaderAPI, cache *query.Client, composer *feed.Composer, render *Renderer, baseURL string, logger *slog.Logger) *FeedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedHandler{
		api:      api,
		cache:    cache,
		composer: composer,
		render:   render,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      time.Now,
	}
}

// feedPage はフィード画面のデータ。
type feedPage struct {
	Chips     []feed.Chip
	View      feed.View
	LoadError *model.APIError
	RetryHref string
}

// categories はキャッシュ経由でカテゴリ一覧を取得する。
func (h *FeedHandler) categories(ctx context.Context) ([]model.Category, error) {
	return query.Fetch(ctx, h.cache, categoriesKey(), h.api.ListCategories)
}

// publications はキャッシュ経由で記事一覧を取得する。categoryIDがnilなら全件。
func (h *FeedHandler) publications(ctx context.Context, categoryID *int) ([]model.Publication, error) {
	return query.Fetch(ctx, h.cache, publicationsKey(categoryID), func(ctx context.Context) ([]model.Publication, error) {
		if categoryID == nil {
			return h.api.ListPublications(ctx)
		}
		return h.api.ListPublicationsByCategory(ctx, *categoryID)
	})
}

// Home はフィード画面を表示する。
// GET /?categoria={id}&q={検索語}
func (h *FeedHandler) Home(w http.ResponseWriter, r *http.Request) {
	categoryID := parseCategoryParam(r.URL.Query().Get("categoria"))
	search := r.URL.Query().Get("q")

	var (
		cats    []model.Category
		pubs    []model.Publication
		catErr  error
		pubsErr error
	)
	var g errgroup.Group
	g.Go(func() error {
		cats, catErr = h.categories(r.Context())
		return nil
	})
	g.Go(func() error {
		pubs, pubsErr = h.publications(r.Context(), categoryID)
		return nil
	})
	_ = g.Wait()

	if catErr != nil {
		// チップは「Todas」のみで表示を続ける
		h.logger.WarnContext(r.Context(), "カテゴリ一覧の取得に失敗しました", slog.String("error", catErr.Error()))
	}

	page := feedPage{Chips: feed.Chips(cats, categoryID)}
	status := http.StatusOK
	if pubsErr != nil {
		if errors.Is(pubsErr, context.Canceled) {
			return
		}
		h.logger.WarnContext(r.Context(), "記事一覧の取得に失敗しました", slog.String("error", pubsErr.Error()))
		page.LoadError = model.ToAPIError(pubsErr)
		page.RetryHref = r.URL.RequestURI()
		page.View = feed.View{Search: search, CategoryID: categoryID}
		status = http.StatusBadGateway
	} else {
		page.View = h.composer.Compose(pubs, categoryID, search, h.now())
	}

	h.render.Page(w, r, status, pageFeed, "Noticias", page)
}

// detailPage は記事詳細画面のデータ。
type detailPage struct {
	Detail    feed.Detail
	LoadError *model.APIError
}

// Detail は記事詳細を表示する。
// GET /noticia/{id}
func (h *FeedHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		h.render.Error(w, r, http.StatusNotFound, model.NewPublicationNotFoundError())
		return
	}

	p, err := query.Fetch(r.Context(), h.cache, publicationKey(id), func(ctx context.Context) (*model.Publication, error) {
		return h.api.GetPublication(ctx, id)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if model.IsStatus(err, http.StatusNotFound) {
			h.render.Error(w, r, http.StatusNotFound, model.NewPublicationNotFoundError())
			return
		}
		h.logger.WarnContext(r.Context(), "記事の取得に失敗しました",
			slog.Int("id", id),
			slog.String("error", err.Error()),
		)
		h.render.Page(w, r, http.StatusBadGateway, pageDetail, "Noticia", detailPage{LoadError: model.ToAPIError(err)})
		return
	}

	d := h.composer.Detail(*p, h.baseURL, h.now())
	h.render.Page(w, r, http.StatusOK, pageDetail, p.Title, detailPage{Detail: d})
}

// parseCategoryParam はカテゴリ指定を解析する。不正な値は「Todas」として扱う。
func parseCategoryParam(s string) *int {
	if s == "" {
		return nil
	}
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
