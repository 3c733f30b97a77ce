// Package cleanup は期限切れの管理者セッションと管理画面の状態を定期的に削除するジョブを提供する。
// Postgresのadmin_sessionsは最終アクセスがアイドル期間を超えた行を削除し、
// プロセス内のWorkspaceはアイドル状態の画面をまとめて破棄する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの既定の実行間隔。
const DefaultInterval = 10 * time.Minute

// SessionSweeper はアイドル期間を超えたセッションを削除する。
// repository.AdminSessionRepositoryが満たす。
type SessionSweeper interface {
	DeleteIdle(ctx context.Context, idle time.Duration) (int64, error)
}

// Evictor はアイドル状態の管理画面を破棄する。*admin.Workspaceが満たす。
type Evictor interface {
	EvictIdle() int
}

// Job は期限切れセッションの削除ジョブ。
// Sessions・Workspaceのどちらもnilにできる（cookieセッションではSessionsがない）。
// 冪等: 削除対象がない場合でもエラーにならない。
type Job struct {
	sessions  SessionSweeper
	workspace Evictor
	logger    *slog.Logger
	Idle      time.Duration // セッションのアイドル期間
}

// NewJob は新しいJobを生成する。
func NewJob(sessions SessionSweeper, workspace Evictor, idle time.Duration, logger *slog.Logger) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		sessions:  sessions,
		workspace: workspace,
		logger:    logger,
		Idle:      idle,
	}
}

// Run は1回分の削除を実行する。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	var deletedSessions int64
	if j.sessions != nil {
		n, err := j.sessions.DeleteIdle(ctx, j.Idle)
		if err != nil {
			j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
				slog.String("error", err.Error()),
				slog.Duration("idle", j.Idle),
			)
			return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
		}
		deletedSessions = n
	}

	evicted := 0
	if j.workspace != nil {
		evicted = j.workspace.EvictIdle()
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", deletedSessions),
		slog.Int("evicted_workspaces", evicted),
		slog.Duration("idle", j.Idle),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は起動直後に1回実行し、以降intervalごとに実行する。ctxがキャンセルされるまでブロックする。
// 実行が失敗してもジョブは継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
