package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/periodico/internal/admin"
	"github.com/hitoshi/periodico/internal/backend"
	"github.com/hitoshi/periodico/internal/config"
	"github.com/hitoshi/periodico/internal/database"
	"github.com/hitoshi/periodico/internal/feed"
	"github.com/hitoshi/periodico/internal/handler"
	"github.com/hitoshi/periodico/internal/logger"
	"github.com/hitoshi/periodico/internal/metrics"
	"github.com/hitoshi/periodico/internal/middleware"
	"github.com/hitoshi/periodico/internal/query"
	"github.com/hitoshi/periodico/internal/repository"
	"github.com/hitoshi/periodico/internal/security"
	"github.com/hitoshi/periodico/internal/session"
	"github.com/hitoshi/periodico/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("backend", cfg.BackendBaseURL),
		slog.String("session_backend", cfg.SessionBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// server はserveモードで組み立てた依存関係一式。
type server struct {
	handler   http.Handler
	cleanup   *cleanup.Job
	limiter   *middleware.RateLimiter
	workspace *admin.Workspace
	closers   []func() error
}

// Close は外部接続とバックグラウンド処理を停止する。
func (s *server) Close() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newServer は設定から全依存関係をワイヤリングする。
// Redis・Postgresは設定されている場合のみ接続し、接続できなければエラーを返す。
func newServer(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *server, err error) {
	srv := &server{}
	defer func() {
		if err != nil {
			srv.Close()
		}
	}()

	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 2. バックエンドクライアント
	httpClient := security.NewBackendClient(security.BackendClientConfig{
		Timeout:      cfg.BackendTimeout,
		AllowPrivate: cfg.BackendAllowPrivate,
	})
	api := backend.NewClient(httpClient, cfg.BackendBaseURL, log, collector)

	// 3. クエリキャッシュ（REDIS_URLがあればL2として使う）
	queryOpts := query.Options{StaleTime: cfg.QueryStaleTime, Logger: log, Metrics: collector}
	if cfg.RedisURL != "" {
		store, err := query.OpenRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		srv.closers = append(srv.closers, store.Close)
		queryOpts.Store = store
		log.Info("redis query store enabled")
	}
	cache := query.New(queryOpts)

	// 4. セッション
	cookieOpts := session.CookieOptions{
		Secret: []byte(cfg.SessionSecret),
		Secure: cfg.CookieSecure,
		Domain: cfg.CookieDomain,
	}
	var (
		store    session.Store
		sessions cleanup.SessionSweeper
		db       *sql.DB
	)
	switch cfg.SessionBackend {
	case config.SessionBackendPostgres:
		db, err = database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		srv.closers = append(srv.closers, db.Close)
		if _, err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		repo := repository.NewPostgresAdminSessionRepo(db)
		store = session.NewPostgresStore(cookieOpts, repo, cfg.AdminWorkspaceIdle)
		sessions = repo
		log.Info("database connection established")
	default:
		store = session.NewCookieStore(cookieOpts)
	}
	flash := session.NewFlasher(cookieOpts)

	// 5. 画面
	render, err := handler.NewRenderer(flash, log)
	if err != nil {
		return nil, err
	}
	srv.workspace = admin.NewWorkspace(func() *admin.Screens {
		return admin.NewScreens(admin.Deps{
			Users:        api,
			Categories:   api,
			Publications: api,
			Cache:        cache,
			Logger:       log,
			Metrics:      collector,
		})
	}, cfg.AdminWorkspaceIdle)
	composer := feed.NewComposer(security.NewContentSanitizer())

	// 6. ミドルウェア
	limiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.LoginRatePerMin > 0 {
		// configのLoginRatePerMinはreq/min単位なのでreq/secに変換する
		limiterCfg.LoginRate = rate.Limit(float64(cfg.LoginRatePerMin) / 60.0)
		limiterCfg.LoginBurst = cfg.LoginRatePerMin
	}
	limiterCfg.Render = render.Error
	srv.limiter = middleware.NewRateLimiter(limiterCfg)

	deps := &handler.RouterDeps{
		Logger:       log,
		Metrics:      collector,
		Renderer:     render,
		Flash:        flash,
		SessionStore: store,
		RateLimiter:  srv.limiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		MetricsHandler: metrics.Handler(registry),

		Feed:  handler.NewFeedHandler(api, cache, composer, render, cfg.BaseURL, log),
		Auth:  handler.NewAuthHandler(api, store, srv.workspace, render, log, collector),
		Admin: handler.NewAdminHandler(srv.workspace, render, log),
		Prefs: handler.NewPrefsHandler(session.PrefsWriter{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}),
	}
	if db != nil {
		deps.HealthChecker = db
	}
	srv.handler = handler.NewRouter(deps)
	srv.cleanup = cleanup.NewJob(sessions, srv.workspace, cfg.AdminWorkspaceIdle, log)

	return srv, nil
}

// runServe はHTTPサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()
	srv, err := newServer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	go srv.cleanup.Start(jobCtx, cleanup.DefaultInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Info("web server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// Postgresのadmin_sessionsから期限切れセッションを定期的に削除する。
// 複数のserveプロセスでセッションを共有する構成向けで、SESSION_BACKEND=postgresが前提。
func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.SessionBackend != config.SessionBackendPostgres {
		return fmt.Errorf("worker requires SESSION_BACKEND=%s", config.SessionBackendPostgres)
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	job := cleanup.NewJob(repository.NewPostgresAdminSessionRepo(db), nil, cfg.AdminWorkspaceIdle, slog.Default())

	slog.Info("worker starting",
		slog.Duration("interval", cleanup.DefaultInterval),
		slog.Duration("idle", cfg.AdminWorkspaceIdle),
	)
	job.Start(ctx, cleanup.DefaultInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
