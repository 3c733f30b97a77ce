package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func TestKey_String(t *testing.T) {
	three := 3
	var none *int
	tests := []struct {
		key  Key
		want string
	}{
		{NewKey("categories"), "categories:all"},
		{NewKey("publications", 3), "publications:3"},
		{NewKey("publications", &three), "publications:3"},
		{NewKey("publications", none), "publications:all"},
		{NewKey("publications", nil), "publications:all"},
		{NewKey("publication", 42, "detail"), "publication:42:detail"},
	}
	for _, tt := range tests {
		if got := tt.key.String(); got != tt.want {
			t.Errorf("Key%v.String() = %q, want %q", tt.key.Params, got, tt.want)
		}
	}
}

func TestFetch_CachesFreshResult(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	var calls atomic.Int32
	fn := func(ctx context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"a", "b"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := Fetch(context.Background(), c, NewKey("list"), fn)
		if err != nil {
			t.Fatalf("Fetch がエラーを返した: %v", err)
		}
		if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
			t.Errorf("結果が一致しない (-want +got):\n%s", diff)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("呼び出し回数 = %d, want 1", n)
	}
	if s := c.State(NewKey("list")); s.Status != StatusSuccess {
		t.Errorf("状態 = %s, want success", s.Status)
	}
}

func TestFetch_RefetchesWhenStale(t *testing.T) {
	c := New(Options{StaleTime: 10 * time.Second})
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var calls atomic.Int32
	fn := func(ctx context.Context) (int, error) {
		return int(calls.Add(1)), nil
	}

	if v, _ := Fetch(context.Background(), c, NewKey("n"), fn); v != 1 {
		t.Fatalf("1回目 = %d, want 1", v)
	}
	now = now.Add(9 * time.Second)
	if v, _ := Fetch(context.Background(), c, NewKey("n"), fn); v != 1 {
		t.Errorf("期限内はキャッシュを返すべき: %d", v)
	}
	now = now.Add(2 * time.Second)
	if v, _ := Fetch(context.Background(), c, NewKey("n"), fn); v != 2 {
		t.Errorf("期限切れ後は再取得すべき: %d", v)
	}
}

func TestFetch_ConcurrentRequestsShareOneCall(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(Options{StaleTime: time.Minute})
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "ok", nil
	}

	const n = 5
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Fetch(context.Background(), c, NewKey("publications", 1), fn)
		}(i)
	}

	waitFor(t, func() bool { return c.State(NewKey("publications", 1)).Status == StatusLoading })
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("同時リクエストの呼び出し回数 = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil || results[i] != "ok" {
			t.Errorf("caller %d: result=%q err=%v", i, results[i], errs[i])
		}
	}
}

func TestFetch_DistinctKeysAreIndependent(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	var calls atomic.Int32
	fetchFor := func(id int) func(context.Context) (int, error) {
		return func(ctx context.Context) (int, error) {
			calls.Add(1)
			return id * 10, nil
		}
	}

	a, _ := Fetch(context.Background(), c, NewKey("publications", 1), fetchFor(1))
	b, _ := Fetch(context.Background(), c, NewKey("publications", 2), fetchFor(2))
	if a != 10 || b != 20 {
		t.Errorf("a=%d b=%d", a, b)
	}
	if calls.Load() != 2 {
		t.Errorf("キーごとに1回ずつ呼び出すべき: %d", calls.Load())
	}
}

func TestFetch_ErrorIsNotCached(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	boom := errors.New("boom")
	var calls atomic.Int32
	fn := func(ctx context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", boom
		}
		return "recovered", nil
	}

	_, err := Fetch(context.Background(), c, NewKey("x"), fn)
	if !errors.Is(err, boom) {
		t.Fatalf("エラーが伝播していない: %v", err)
	}
	s := c.State(NewKey("x"))
	if s.Status != StatusError || !errors.Is(s.Err, boom) {
		t.Errorf("状態 = %+v, want error", s)
	}

	got, err := Fetch(context.Background(), c, NewKey("x"), fn)
	if err != nil || got != "recovered" {
		t.Errorf("再リクエストで新しい呼び出しを行うべき: %q %v", got, err)
	}
}

func TestFetch_CallerCancelDoesNotAbortCall(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(Options{StaleTime: time.Minute})
	release := make(chan struct{})
	fn := func(ctx context.Context) (string, error) {
		<-release
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "done", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, NewKey("slow"), fn)
		errCh <- err
	}()

	waitFor(t, func() bool { return c.State(NewKey("slow")).Status == StatusLoading })
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("呼び出し元には ctx.Err() を返すべき: %v", err)
	}

	close(release)
	waitFor(t, func() bool { return c.State(NewKey("slow")).Status == StatusSuccess })
	if s := c.State(NewKey("slow")); s.Data != "done" {
		t.Errorf("呼び出しは完了まで実行されるべき: %+v", s)
	}
}

func TestInvalidate_DropsAllKeysForName(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	var calls atomic.Int32
	fn := func(ctx context.Context) (int, error) { return int(calls.Add(1)), nil }

	Fetch(context.Background(), c, NewKey("users"), fn)
	Fetch(context.Background(), c, NewKey("categories"), fn)

	c.Invalidate(context.Background(), "users")

	if s := c.State(NewKey("users")); s.Status != StatusIdle {
		t.Errorf("無効化後の状態 = %s, want idle", s.Status)
	}
	if s := c.State(NewKey("categories")); s.Status != StatusSuccess {
		t.Errorf("他のキーは残るべき: %s", s.Status)
	}
	if v, _ := Fetch(context.Background(), c, NewKey("users"), fn); v != 3 {
		t.Errorf("無効化後は再取得すべき: %d", v)
	}
}

func TestInvalidate_DuringFetchDiscardsOldResult(t *testing.T) {
	c := New(Options{StaleTime: time.Minute})
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) ([]string, error) {
		if calls.Add(1) == 1 {
			<-release
			return []string{"old"}, nil
		}
		return []string{"new"}, nil
	}

	done := make(chan []string)
	go func() {
		v, _ := Fetch(context.Background(), c, NewKey("publications"), fn)
		done <- v
	}()
	waitFor(t, func() bool { return c.State(NewKey("publications")).Status == StatusLoading })

	// 取得中に書き込みが成功して無効化された
	c.Invalidate(context.Background(), "publications")
	close(release)
	if got := <-done; !cmp.Equal(got, []string{"old"}) {
		t.Errorf("実行中の呼び出し元には取得した値を返す: %v", got)
	}

	if s := c.State(NewKey("publications")); s.Status == StatusSuccess {
		t.Errorf("無効化前に始まった取得の結果を保存してはならない: %+v", s)
	}
	got, err := Fetch(context.Background(), c, NewKey("publications"), fn)
	if err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}
	if diff := cmp.Diff([]string{"new"}, got); diff != "" {
		t.Errorf("無効化後は再取得すべき (-want +got):\n%s", diff)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("呼び出し回数 = %d, want 2", n)
	}
}

func TestState_UnknownKeyIsIdle(t *testing.T) {
	c := New(Options{})
	if s := c.State(NewKey("nada")); s.Status != StatusIdle || s.Data != nil {
		t.Errorf("未取得キーの状態 = %+v", s)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("条件が時間内に満たされなかった")
}
