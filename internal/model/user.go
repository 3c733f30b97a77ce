package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// User は管理画面で管理するアカウントを表す。
// ログイン中のセッション保持者（SessionUser）とは別物。
// パスワードは平文で扱われる（バックエンドの契約に従う）。
type User struct {
	ID       int    `json:"id"`
	Name     string `json:"nombre"`
	Phone    Phone  `json:"telefono"`
	Username string `json:"nombreUsuario"`
	Password string `json:"password,omitempty"`
}

// Phone は電話番号を表す。
// バックエンドは数値・文字列のどちらでも返すため、両方を受け付けて文字列として保持する。
type Phone string

// UnmarshalJSON は数値・文字列・nullのいずれも受け付ける。
func (p *Phone) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Phone(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("telefono: %w", err)
	}
	*p = Phone(n.String())
	return nil
}

// SessionUser はログインAPIが返したユーザーオブジェクト。
// Rawにはバックエンドの応答をそのまま保持し、セッションにはRawを保存する。
type SessionUser struct {
	ID       int
	Name     string
	Username string
	Raw      json.RawMessage
}

// sessionUserFields はSessionUserの表示用フィールドを取り出すための型。
type sessionUserFields struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"nombre"`
	Username string      `json:"nombreUsuario"`
}

// ParseSessionUser はバックエンドのユーザーオブジェクトからSessionUserを生成する。
// idが存在しない（または0の）場合はok=falseを返す。
func ParseSessionUser(raw json.RawMessage) (*SessionUser, bool) {
	var f sessionUserFields
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return nil, false
	}
	id, err := strconv.Atoi(f.ID.String())
	if err != nil || id == 0 {
		return nil, false
	}
	compact := &bytes.Buffer{}
	if err := json.Compact(compact, raw); err != nil {
		return nil, false
	}
	return &SessionUser{
		ID:       id,
		Name:     f.Name,
		Username: f.Username,
		Raw:      json.RawMessage(compact.Bytes()),
	}, true
}

// DisplayName は挨拶表示に使う名前を返す。
func (u *SessionUser) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
