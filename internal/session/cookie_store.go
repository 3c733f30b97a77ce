package session

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/hitoshi/periodico/internal/model"
)

// セッション値のキー
const (
	valueUser = "user"
	valueID   = "sid"
)

// CookieOptions はCookieの属性。
type CookieOptions struct {
	Secret []byte
	Secure bool
	Domain string
}

func newGorillaStore(opts CookieOptions) *sessions.CookieStore {
	store := sessions.NewCookieStore(opts.Secret)
	store.Options = &sessions.Options{
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   0, // ブラウザセッション限り
		Secure:   opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// CookieStore は署名付きCookieにユーザーオブジェクトをそのまま保持するStore。
type CookieStore struct {
	store *sessions.CookieStore
}

// NewCookieStore はCookieStoreを生成する。
func NewCookieStore(opts CookieOptions) *CookieStore {
	return &CookieStore{store: newGorillaStore(opts)}
}

// Load はCookieのユーザーオブジェクトからログイン状態を復元する。
// 署名が不正、または内容が壊れている場合はAnonymousとして扱う。
func (s *CookieStore) Load(r *http.Request) (State, error) {
	sess, err := s.store.Get(r, CookieName)
	if err != nil {
		return State{Status: Anonymous}, nil
	}
	raw, ok := sess.Values[valueUser].(string)
	if !ok || raw == "" {
		return State{Status: Anonymous}, nil
	}
	user, ok := model.ParseSessionUser(json.RawMessage(raw))
	if !ok {
		return State{Status: Anonymous}, nil
	}
	id, _ := sess.Values[valueID].(string)
	return State{Status: Authenticated, User: user, ID: id}, nil
}

// Save はユーザーオブジェクトをCookieに保存する。
func (s *CookieStore) Save(w http.ResponseWriter, r *http.Request, user *model.SessionUser) (State, error) {
	sess, _ := s.store.Get(r, CookieName)
	id := uuid.NewString()
	sess.Values[valueUser] = string(user.Raw)
	sess.Values[valueID] = id
	if err := sess.Save(r, w); err != nil {
		return State{Status: Anonymous}, fmt.Errorf("save session cookie: %w", err)
	}
	return State{Status: Authenticated, User: user, ID: id}, nil
}

// Clear はCookieを削除する。
func (s *CookieStore) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, CookieName)
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("clear session cookie: %w", err)
	}
	return nil
}

var _ Store = (*CookieStore)(nil)
