package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresAdminSessionRepo はPostgreSQLを使用した管理者セッションリポジトリ。
type PostgresAdminSessionRepo struct {
	db *sql.DB
}

// NewPostgresAdminSessionRepo はPostgresAdminSessionRepoを生成する。
func NewPostgresAdminSessionRepo(db *sql.DB) *PostgresAdminSessionRepo {
	return &PostgresAdminSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresAdminSessionRepo) Create(ctx context.Context, s *AdminSession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_sessions (id, user_id, user_json, created_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, []byte(s.UserJSON), s.CreatedAt, s.LastSeenAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create admin session: %w", err)
	}
	return nil
}

// FindActive は有効なセッションを取得し、last_seen_atを現在時刻に更新する。
func (r *PostgresAdminSessionRepo) FindActive(ctx context.Context, id string, idle time.Duration) (*AdminSession, error) {
	s := &AdminSession{}
	var userJSON []byte
	err := r.db.QueryRowContext(ctx,
		`UPDATE admin_sessions
		 SET last_seen_at = now()
		 WHERE id = $1 AND last_seen_at > now() - $2::interval
		 RETURNING id, user_id, user_json, created_at, last_seen_at`,
		id, intervalString(idle),
	).Scan(&s.ID, &s.UserID, &userJSON, &s.CreatedAt, &s.LastSeenAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find admin session: %w", err)
	}
	s.UserJSON = userJSON
	return s, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *PostgresAdminSessionRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM admin_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete admin session: %w", err)
	}
	return nil
}

// DeleteIdle は最終アクセスがidleより古いセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (r *PostgresAdminSessionRepo) DeleteIdle(ctx context.Context, idle time.Duration) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE last_seen_at < now() - $1::interval`,
		intervalString(idle),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete idle admin sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	return n, nil
}

// intervalString はPostgreSQLのinterval型として解釈できる秒数表現を返す。
func intervalString(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d/time.Second))
}

// compile-time interface check
var _ AdminSessionRepository = (*PostgresAdminSessionRepo)(nil)
