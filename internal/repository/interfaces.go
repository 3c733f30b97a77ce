// Package repository はデータ永続化のインターフェースと実装を定義する。
package repository

import (
	"context"
	"encoding/json"
	"time"
)

// AdminSession は管理者ログインのサーバー側セッション。
// UserJSONにはログインAPIが返したユーザーオブジェクトをそのまま保持する。
type AdminSession struct {
	ID         string
	UserID     int
	UserJSON   json.RawMessage
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// AdminSessionRepository は管理者セッションの永続化インターフェース。
type AdminSessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *AdminSession) error
	// FindActive は最終アクセスがidle以内のセッションを取得し、最終アクセス時刻を更新する。
	// 見つからない場合はnilを返す。
	FindActive(ctx context.Context, id string, idle time.Duration) (*AdminSession, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteIdle は最終アクセスがidleより古いセッションを削除し、削除件数を返す。
	DeleteIdle(ctx context.Context, idle time.Duration) (int64, error)
}
