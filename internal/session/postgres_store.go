package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/hitoshi/periodico/internal/model"
	"github.com/hitoshi/periodico/internal/repository"
)

// PostgresStore はCookieにセッションIDのみを持ち、ユーザーオブジェクトをadmin_sessionsに保存するStore。
// 最終アクセスからidleを過ぎたセッションは無効になる。
type PostgresStore struct {
	cookies *sessions.CookieStore
	repo    repository.AdminSessionRepository
	idle    time.Duration
	now     func() time.Time
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(opts CookieOptions, repo repository.AdminSessionRepository, idle time.Duration) *PostgresStore {
	return &PostgresStore{
		cookies: newGorillaStore(opts),
		repo:    repo,
		idle:    idle,
		now:     time.Now,
	}
}

// Load はCookieのセッションIDからDB上のセッションを読み取る。
func (s *PostgresStore) Load(r *http.Request) (State, error) {
	sess, err := s.cookies.Get(r, CookieName)
	if err != nil {
		return State{Status: Anonymous}, nil
	}
	id, ok := sess.Values[valueID].(string)
	if !ok || id == "" {
		return State{Status: Anonymous}, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return State{Status: Anonymous}, nil
	}

	row, err := s.repo.FindActive(r.Context(), id, s.idle)
	if err != nil {
		return State{Status: Anonymous}, fmt.Errorf("load admin session: %w", err)
	}
	if row == nil {
		return State{Status: Anonymous}, nil
	}
	user, ok := model.ParseSessionUser(row.UserJSON)
	if !ok {
		return State{Status: Anonymous}, nil
	}
	return State{Status: Authenticated, User: user, ID: id}, nil
}

// Save はDBにセッションを作成し、CookieにセッションIDを保存する。
func (s *PostgresStore) Save(w http.ResponseWriter, r *http.Request, user *model.SessionUser) (State, error) {
	id := uuid.NewString()
	now := s.now()
	err := s.repo.Create(r.Context(), &repository.AdminSession{
		ID:         id,
		UserID:     user.ID,
		UserJSON:   json.RawMessage(user.Raw),
		CreatedAt:  now,
		LastSeenAt: now,
	})
	if err != nil {
		return State{Status: Anonymous}, err
	}

	sess, _ := s.cookies.Get(r, CookieName)
	sess.Values[valueID] = id
	if err := sess.Save(r, w); err != nil {
		return State{Status: Anonymous}, fmt.Errorf("save session cookie: %w", err)
	}
	return State{Status: Authenticated, User: user, ID: id}, nil
}

// Clear はDBのセッションとCookieを削除する。
func (s *PostgresStore) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.cookies.Get(r, CookieName)
	if id, ok := sess.Values[valueID].(string); ok && id != "" {
		if err := s.repo.DeleteByID(r.Context(), id); err != nil {
			return err
		}
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("clear session cookie: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
