// Package query はバックエンド呼び出しの結果をキー単位でキャッシュし、
// 同一キーへの同時リクエストを1回の呼び出しにまとめる。
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/periodico/internal/metrics"
)

// DefaultStaleTime は取得結果を新鮮とみなす既定の期間。
const DefaultStaleTime = 15 * time.Second

// Status はキーごとの取得状態。
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Key はリソース名とパラメータからなるキャッシュキー。
// パラメータが異なれば別のキーとして独立した状態を持つ。
type Key struct {
	Name   string
	Params []any
}

// NewKey はKeyを生成する。
func NewKey(name string, params ...any) Key {
	return Key{Name: name, Params: params}
}

// String は正規化したキー文字列を返す（例: "publications:3"、"publications:all"）。
// nilのパラメータは"all"として扱う。
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Name + ":all"
	}
	parts := make([]string, 0, len(k.Params)+1)
	parts = append(parts, k.Name)
	for _, p := range k.Params {
		parts = append(parts, paramString(p))
	}
	return strings.Join(parts, ":")
}

func paramString(p any) string {
	switch v := p.(type) {
	case nil:
		return "all"
	case *int:
		if v == nil {
			return "all"
		}
		return fmt.Sprint(*v)
	default:
		return fmt.Sprint(v)
	}
}

// Snapshot はキーの状態のスナップショット。
type Snapshot struct {
	Status    Status
	Data      any
	Err       error
	UpdatedAt time.Time
}

type entry struct {
	name      string
	status    Status
	data      any
	err       error
	updatedAt time.Time
}

// Options はClientの設定。
type Options struct {
	StaleTime time.Duration
	Store     Store // nilの場合はメモリのみ
	Logger    *slog.Logger
	Metrics   metrics.MetricsCollector
}

// Client はクエリキャッシュ。
type Client struct {
	mu      sync.Mutex
	entries map[string]*entry
	// gens はリソース名ごとの世代。Invalidateで進み、それ以前に始まった取得の結果は保存しない。
	gens  map[string]uint64
	group singleflight.Group

	staleTime time.Duration
	store     Store
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// New はClientを生成する。
func New(opts Options) *Client {
	if opts.StaleTime <= 0 {
		opts.StaleTime = DefaultStaleTime
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	return &Client{
		entries:   make(map[string]*entry),
		gens:      make(map[string]uint64),
		staleTime: opts.StaleTime,
		store:     opts.Store,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       time.Now,
	}
}

// State はキーの現在の状態を返す。未取得のキーはStatusIdle。
func (c *Client) State(key Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Snapshot{Status: StatusIdle}
	}
	return Snapshot{Status: e.status, Data: e.data, Err: e.err, UpdatedAt: e.updatedAt}
}

// Invalidate は指定したリソース名のキーをすべて破棄する。
func (c *Client) Invalidate(ctx context.Context, name string) {
	c.mu.Lock()
	c.gens[name]++
	var keys []string
	for k, e := range c.entries {
		if e.name == name {
			keys = append(keys, k)
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.group.Forget(k)
	}
	if c.store != nil && len(keys) > 0 {
		if err := c.store.Delete(ctx, keys...); err != nil {
			c.logger.WarnContext(ctx, "L2キャッシュの削除に失敗しました",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		}
	}
}

// fresh はキーのデータが新鮮であればそれを返す。
func (c *Client) fresh(ks string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ks]
	if !ok || e.status != StatusSuccess {
		return nil, false
	}
	if c.now().Sub(e.updatedAt) >= c.staleTime {
		return nil, false
	}
	return e.data, true
}

// generation はリソース名の現在の世代を返す。
func (c *Client) generation(name string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[name]
}

func (c *Client) setLoading(key Key, ks string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ks]
	if !ok {
		e = &entry{name: key.Name}
		c.entries[ks] = e
	}
	e.status = StatusLoading
}

// setResult は取得結果を保存する。取得開始後にInvalidateされていれば保存せずfalseを返す。
func (c *Client) setResult(key Key, ks string, gen uint64, data any, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key.Name] != gen {
		return false
	}
	e, ok := c.entries[ks]
	if !ok {
		e = &entry{name: key.Name}
		c.entries[ks] = e
	}
	e.updatedAt = c.now()
	if err != nil {
		// 前回のデータは保持しない
		e.status = StatusError
		e.data = nil
		e.err = err
		return true
	}
	e.status = StatusSuccess
	e.data = data
	e.err = nil
	return true
}

// Fetch はキーのデータを返す。
// 新鮮なデータがあればそれを返し、なければfnを呼び出す。同じキーで実行中の呼び出しがあれば
// その結果を待つ。fnは呼び出し元のキャンセルに影響されずに完了まで実行され、
// 呼び出し元のctxが終了した場合はctx.Err()を返す。
func Fetch[T any](ctx context.Context, c *Client, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	ks := key.String()

	if data, ok := c.fresh(ks); ok {
		if v, ok := data.(T); ok {
			c.metrics.RecordCacheLookup(key.Name, metrics.CacheHit)
			return v, nil
		}
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(ks, func() (any, error) {
		gen := c.generation(key.Name)
		c.setLoading(key, ks)

		if v, ok := loadL2[T](detached, c, ks); ok {
			c.metrics.RecordCacheLookup(key.Name, metrics.CacheL2Hit)
			c.setResult(key, ks, gen, v, nil)
			return v, nil
		}

		v, err := fn(detached)
		committed := c.setResult(key, ks, gen, v, err)
		if err != nil {
			c.metrics.RecordCacheLookup(key.Name, metrics.CacheError)
			return nil, err
		}
		c.metrics.RecordCacheLookup(key.Name, metrics.CacheMiss)
		if committed {
			storeL2(detached, c, ks, v)
			// 書き込みの間にInvalidateされた場合は古い結果をL2に残さない
			if c.generation(key.Name) != gen {
				deleteL2(detached, c, ks)
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.metrics.RecordCacheLookup(key.Name, metrics.CacheShared)
		}
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("query %s: cached value has type %T", ks, res.Val)
		}
		return v, nil
	}
}

// loadL2 はL2ストアからデータを読み出す。エラーはログに残してミスとして扱う。
func loadL2[T any](ctx context.Context, c *Client, ks string) (T, bool) {
	var v T
	if c.store == nil {
		return v, false
	}
	b, ok, err := c.store.Get(ctx, ks)
	if err != nil {
		c.logger.WarnContext(ctx, "L2キャッシュの読み込みに失敗しました",
			slog.String("key", ks),
			slog.String("error", err.Error()),
		)
		return v, false
	}
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		c.logger.WarnContext(ctx, "L2キャッシュのデコードに失敗しました",
			slog.String("key", ks),
			slog.String("error", err.Error()),
		)
		return v, false
	}
	return v, true
}

// deleteL2 はL2ストアからキーを削除する。
func deleteL2(ctx context.Context, c *Client, ks string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, ks); err != nil {
		c.logger.WarnContext(ctx, "L2キャッシュの削除に失敗しました",
			slog.String("key", ks),
			slog.String("error", err.Error()),
		)
	}
}

// storeL2 は成功した結果をL2ストアに書き込む。失敗してもメモリキャッシュのみで動作を続ける。
func storeL2[T any](ctx context.Context, c *Client, ks string, v T) {
	if c.store == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.WarnContext(ctx, "L2キャッシュのエンコードに失敗しました",
			slog.String("key", ks),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := c.store.Set(ctx, ks, b, c.staleTime); err != nil {
		c.logger.WarnContext(ctx, "L2キャッシュの書き込みに失敗しました",
			slog.String("key", ks),
			slog.String("error", err.Error()),
		)
	}
}
