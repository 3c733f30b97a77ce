// Package session は管理者ログイン状態・フラッシュ通知・表示設定をCookieで扱う。
package session

import (
	"context"
	"net/http"

	"github.com/hitoshi/periodico/internal/model"
)

// CookieName はログイン状態を保持するCookie名。
const CookieName = "adminUser"

// Status はログイン状態。
type Status int

const (
	Anonymous Status = iota
	Authenticated
)

func (s Status) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// State はリクエストごとのログイン状態。
// IDはセッションを識別する値で、管理画面の状態をセッション単位に分けるために使う。
type State struct {
	Status Status
	User   *model.SessionUser
	ID     string
}

// IsAuthenticated はログイン済みかどうかを返す。
func (s State) IsAuthenticated() bool {
	return s.Status == Authenticated && s.User != nil
}

// Store はログイン状態の保存先。
type Store interface {
	// Load はリクエストからログイン状態を読み取る。Cookieがない場合はAnonymous。
	Load(r *http.Request) (State, error)
	// Save はログインしたユーザーを保存し、新しい状態を返す。
	Save(w http.ResponseWriter, r *http.Request, user *model.SessionUser) (State, error)
	// Clear はログイン状態を破棄する。
	Clear(w http.ResponseWriter, r *http.Request) error
}

type contextKey string

var stateContextKey = contextKey("session_state")

// WithState はコンテキストにログイン状態を格納する。
func WithState(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, stateContextKey, s)
}

// FromContext はコンテキストからログイン状態を取り出す。未設定の場合はAnonymous。
func FromContext(ctx context.Context) State {
	s, ok := ctx.Value(stateContextKey).(State)
	if !ok {
		return State{Status: Anonymous}
	}
	return s
}
