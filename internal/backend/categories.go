package backend

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/periodico/internal/model"
)

const categoriesPath = "/api/Categorias"

// ListCategories は有効なカテゴリ一覧を取得する。
// GET /api/Categorias/ListarCategoriasActivos
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	const op = "categories.list"
	body, err := c.do(ctx, request{op: op, method: http.MethodGet, path: categoriesPath + "/ListarCategoriasActivos"})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Category](op, body)
}

// CreateCategory はカテゴリを作成する。
// POST /api/Categorias/Crear?descripcion=
// 応答が使えない場合はok=falseを返す（呼び出し元が一覧を再取得する）。
func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, bool, error) {
	const op = "categories.create"
	if err := in.Validate(op); err != nil {
		return nil, false, err
	}
	body, err := c.do(ctx, request{op: op, method: http.MethodPost, path: categoriesPath + "/Crear", query: in.query()})
	if err != nil {
		return nil, false, err
	}
	created, ok := decodeCreated(body, func(v model.Category) int { return v.ID })
	if !ok {
		return nil, false, nil
	}
	return &created, true, nil
}

// UpdateCategory はカテゴリを更新する。
// PUT /api/Categorias/Actualizar?id=&descripcion=
func (c *Client) UpdateCategory(ctx context.Context, id int, in CategoryInput) error {
	const op = "categories.update"
	if err := in.Validate(op); err != nil {
		return err
	}
	q := in.query()
	q.Set("id", strconv.Itoa(id))
	_, err := c.do(ctx, request{op: op, method: http.MethodPut, path: categoriesPath + "/Actualizar", query: q})
	return err
}

// DeleteCategory はカテゴリを削除する。
// DELETE /api/Categorias/{id}
func (c *Client) DeleteCategory(ctx context.Context, id int) error {
	_, err := c.do(ctx, request{op: "categories.delete", method: http.MethodDelete, path: categoriesPath + "/" + strconv.Itoa(id)})
	return err
}
