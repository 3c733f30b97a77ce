// Package admin は管理画面（ユーザー・カテゴリ・記事）の一覧状態と作成・更新・削除を扱う。
// 3つの画面は同じControllerを型パラメータで使い分ける。
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/hitoshi/periodico/internal/metrics"
)

// ErrNotConfirmed は削除の確認が行われていないことを示す。
var ErrNotConfirmed = errors.New("delete requires confirmation")

// Resource は管理対象リソースのバックエンド操作。
// Tはレコード、Inはフォーム入力の型。
type Resource[T any, In any] interface {
	// Name はメトリクスとキャッシュ無効化に使うリソース名。
	Name() string
	List(ctx context.Context) ([]T, error)
	// Create は作成したレコードを返す。応答が使えない場合はusable=false。
	Create(ctx context.Context, in In) (created *T, usable bool, err error)
	Update(ctx context.Context, id int, in In) error
	Delete(ctx context.Context, id int) error
	ID(item T) int
	// Merge は更新成功後の一覧に反映するレコードを返す。フォームの値と既存のidを合わせる。
	Merge(id int, in In, prev T) T
	// RefetchAfterCreate がtrueの場合、作成後は応答に関わらず一覧を再取得する。
	RefetchAfterCreate() bool
}

// SaveOutcome は保存操作の結果。
type SaveOutcome int

const (
	OutcomeUpdated SaveOutcome = iota + 1
	OutcomeAppended
	OutcomeRefetched
	// OutcomeCreatedNotListed は作成は成功したが一覧の再取得に失敗したことを示す。
	OutcomeCreatedNotListed
)

// Invalidator はリソース名に対応するキャッシュを破棄する。
type Invalidator interface {
	Invalidate(ctx context.Context, name string)
}

// Controller は1画面分のローカル一覧を保持し、書き込み成功時のみ一覧を更新する。
// 失敗時は一覧を変更しない。
type Controller[T any, In any] struct {
	res     Resource[T, In]
	cache   Invalidator
	logger  *slog.Logger
	metrics metrics.MetricsCollector

	mu     sync.Mutex
	items  []T
	loaded bool
}

// NewController はControllerを生成する。cacheはnilでもよい。
func NewController[T any, In any](res Resource[T, In], cache Invalidator, logger *slog.Logger, m metrics.MetricsCollector) *Controller[T, In] {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Controller[T, In]{res: res, cache: cache, logger: logger, metrics: m}
}

// Load は一覧を取得してローカル状態を置き換える。失敗時は以前の状態を保つ。
func (c *Controller[T, In]) Load(ctx context.Context) error {
	items, err := c.res.List(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", c.res.Name(), err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = items
	c.loaded = true
	return nil
}

// Loaded は一覧を一度でも読み込んだかどうかを返す。
func (c *Controller[T, In]) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Items は現在のローカル一覧のコピーを返す。
func (c *Controller[T, In]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

// Find はidに一致するレコードを返す。
func (c *Controller[T, In]) Find(id int) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range c.items {
		if c.res.ID(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// Save はeditingIDがnilなら作成、そうでなければ更新を行う。
func (c *Controller[T, In]) Save(ctx context.Context, editingID *int, in In) (SaveOutcome, error) {
	if editingID != nil {
		return c.update(ctx, *editingID, in)
	}
	return c.create(ctx, in)
}

func (c *Controller[T, In]) update(ctx context.Context, id int, in In) (SaveOutcome, error) {
	if err := c.res.Update(ctx, id, in); err != nil {
		c.record("update", err)
		return 0, err
	}
	c.record("update", nil)
	c.invalidate(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, it := range c.items {
		if c.res.ID(it) == id {
			c.items[i] = c.res.Merge(id, in, it)
			break
		}
	}
	return OutcomeUpdated, nil
}

func (c *Controller[T, In]) create(ctx context.Context, in In) (SaveOutcome, error) {
	created, usable, err := c.res.Create(ctx, in)
	if err != nil {
		c.record("create", err)
		return 0, err
	}
	c.record("create", nil)
	c.invalidate(ctx)

	if usable && created != nil && !c.res.RefetchAfterCreate() {
		c.mu.Lock()
		c.items = append(c.items, *created)
		c.mu.Unlock()
		return OutcomeAppended, nil
	}

	if err := c.Load(ctx); err != nil {
		c.logger.WarnContext(ctx, "作成後の一覧再取得に失敗しました",
			slog.String("resource", c.res.Name()),
			slog.String("error", err.Error()),
		)
		return OutcomeCreatedNotListed, nil
	}
	return OutcomeRefetched, nil
}

// Delete は確認済みの場合のみ削除し、成功時に一覧からidのレコードを取り除く。
func (c *Controller[T, In]) Delete(ctx context.Context, id int, confirmed bool) error {
	if !confirmed {
		return ErrNotConfirmed
	}
	if err := c.res.Delete(ctx, id); err != nil {
		c.record("delete", err)
		return err
	}
	c.record("delete", nil)
	c.invalidate(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = slices.DeleteFunc(c.items, func(it T) bool { return c.res.ID(it) == id })
	return nil
}

func (c *Controller[T, In]) invalidate(ctx context.Context) {
	if c.cache != nil {
		c.cache.Invalidate(ctx, c.res.Name())
	}
}

func (c *Controller[T, In]) record(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.RecordAdminMutation(c.res.Name(), action, outcome)
}
