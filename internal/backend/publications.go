package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/periodico/internal/model"
)

const publicationsPath = "/api/Publicaciones"

// ListPublications は有効な記事一覧を取得する。
// GET /api/Publicaciones/ListarPublicacionesActivos
func (c *Client) ListPublications(ctx context.Context) ([]model.Publication, error) {
	const op = "publications.list"
	body, err := c.do(ctx, request{op: op, method: http.MethodGet, path: publicationsPath + "/ListarPublicacionesActivos"})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Publication](op, body)
}

// ListPublicationsByCategory はカテゴリ別の有効な記事一覧を取得する。
// GET /api/Publicaciones/ListarPorCategoria/{id}?estado=Activo
func (c *Client) ListPublicationsByCategory(ctx context.Context, categoryID int) ([]model.Publication, error) {
	const op = "publications.list_by_category"
	q := url.Values{}
	q.Set("estado", "Activo")
	body, err := c.do(ctx, request{
		op:     op,
		method: http.MethodGet,
		path:   publicationsPath + "/ListarPorCategoria/" + strconv.Itoa(categoryID),
		query:  q,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[model.Publication](op, body)
}

// GetPublication は記事を1件取得する。
// GET /api/Publicaciones/{id}
func (c *Client) GetPublication(ctx context.Context, id int) (*model.Publication, error) {
	const op = "publications.get"
	body, err := c.do(ctx, request{op: op, method: http.MethodGet, path: publicationsPath + "/" + strconv.Itoa(id)})
	if err != nil {
		return nil, err
	}
	var p model.Publication
	if err := decodeJSON(op, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePublication は記事をmultipartで作成する。
// POST /api/Publicaciones/Crear
// 応答が使えない場合はok=falseを返す。
func (c *Client) CreatePublication(ctx context.Context, in PublicationInput) (*model.Publication, bool, error) {
	const op = "publications.create"
	if err := in.Validate(op); err != nil {
		return nil, false, err
	}
	payload, contentType, err := in.multipart()
	if err != nil {
		return nil, false, &model.FetchFailure{Kind: model.KindValidation, Op: op, Field: "Imagen", Err: err}
	}
	body, err := c.do(ctx, request{
		op:          op,
		method:      http.MethodPost,
		path:        publicationsPath + "/Crear",
		body:        payload,
		contentType: contentType,
	})
	if err != nil {
		return nil, false, err
	}
	created, ok := decodeCreated(body, func(v model.Publication) int { return v.ID })
	if !ok {
		return nil, false, nil
	}
	return &created, true, nil
}

// UpdatePublication は記事をmultipartで更新する。画像は新しいファイルが選ばれた場合のみ送る。
// PUT /api/Publicaciones/Actualizar/{id}
func (c *Client) UpdatePublication(ctx context.Context, id int, in PublicationInput) error {
	const op = "publications.update"
	if err := in.Validate(op); err != nil {
		return err
	}
	payload, contentType, err := in.multipart()
	if err != nil {
		return &model.FetchFailure{Kind: model.KindValidation, Op: op, Field: "Imagen", Err: err}
	}
	_, err = c.do(ctx, request{
		op:          op,
		method:      http.MethodPut,
		path:        publicationsPath + "/Actualizar/" + strconv.Itoa(id),
		body:        payload,
		contentType: contentType,
	})
	return err
}

// DeletePublication は記事を削除する。
// DELETE /api/Publicaciones/{id}
func (c *Client) DeletePublication(ctx context.Context, id int) error {
	_, err := c.do(ctx, request{op: "publications.delete", method: http.MethodDelete, path: publicationsPath + "/" + strconv.Itoa(id)})
	return err
}
