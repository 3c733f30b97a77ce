package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/periodico/internal/model"
)

const usersPath = "/api/Usuarios"

// ErrInvalidCredentials はログイン応答にユーザーが含まれないことを示す。
var ErrInvalidCredentials = errors.New("credenciales incorrectas")

// ListUsers は有効なユーザー一覧を取得する。
// GET /api/Usuarios/ListarUsuariosActivos
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	const op = "users.list"
	body, err := c.do(ctx, request{op: op, method: http.MethodGet, path: usersPath + "/ListarUsuariosActivos"})
	if err != nil {
		return nil, err
	}
	return decodeList[model.User](op, body)
}

// Login は管理者の認証を行う。
// POST /api/Usuarios/Login?nombreUsuario=&password=（同じ内容をJSONボディでも送る）
// 応答はオブジェクトまたは1要素の配列で、idを持つオブジェクトのみ認証成功として扱う。
// 認証失敗はKindHTTP（401等）、またはErrInvalidCredentialsを包んだFetchFailureとして返す。
func (c *Client) Login(ctx context.Context, username, password string) (*model.SessionUser, error) {
	const op = "users.login"
	if strings.TrimSpace(username) == "" {
		return nil, model.NewValidationFailure(op, "nombreUsuario")
	}
	if strings.TrimSpace(password) == "" {
		return nil, model.NewValidationFailure(op, "password")
	}

	q := url.Values{}
	q.Set("nombreUsuario", username)
	q.Set("password", password)
	payload, err := json.Marshal(map[string]string{
		"nombreUsuario": username,
		"password":      password,
	})
	if err != nil {
		return nil, &model.FetchFailure{Kind: model.KindValidation, Op: op, Field: "password", Err: err}
	}

	body, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        usersPath + "/Login",
		query:       q,
		body:        bytes.NewReader(payload),
		contentType: "application/json",
	})
	if err != nil {
		return nil, err
	}

	raw, err := decodeOneOrFirst(body)
	if err != nil {
		return nil, &model.FetchFailure{Kind: model.KindParse, Op: op, Err: ErrInvalidCredentials}
	}
	user, ok := model.ParseSessionUser(raw)
	if !ok {
		return nil, &model.FetchFailure{Kind: model.KindParse, Op: op, Err: ErrInvalidCredentials}
	}
	return user, nil
}

// CreateUser はユーザーを作成する。
// POST /api/Usuarios/Crear?nombre=&telefono=&nombreusuario=&password=
func (c *Client) CreateUser(ctx context.Context, in UserInput) (*model.User, bool, error) {
	const op = "users.create"
	if err := in.Validate(op); err != nil {
		return nil, false, err
	}
	body, err := c.do(ctx, request{op: op, method: http.MethodPost, path: usersPath + "/Crear", query: in.query()})
	if err != nil {
		return nil, false, err
	}
	created, ok := decodeCreated(body, func(v model.User) int { return v.ID })
	if !ok {
		return nil, false, nil
	}
	return &created, true, nil
}

// UpdateUser はユーザーを更新する。
// PUT /api/Usuarios/Actualizar?id=&nombre=&telefono=&nombreusuario=&password=
func (c *Client) UpdateUser(ctx context.Context, id int, in UserInput) error {
	const op = "users.update"
	if err := in.Validate(op); err != nil {
		return err
	}
	q := in.query()
	q.Set("id", strconv.Itoa(id))
	_, err := c.do(ctx, request{op: op, method: http.MethodPut, path: usersPath + "/Actualizar", query: q})
	return err
}

// DeleteUser はユーザーを削除する。
// DELETE /api/Usuarios/{id}
func (c *Client) DeleteUser(ctx context.Context, id int) error {
	_, err := c.do(ctx, request{op: "users.delete", method: http.MethodDelete, path: usersPath + "/" + strconv.Itoa(id)})
	return err
}
