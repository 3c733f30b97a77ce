package model

// Publication はニュース記事（公開物）を表す。
// Descriptionは本文としても使用される。ViewCountはサーバー側で管理され、クライアントからは変更しない。
type Publication struct {
	ID          int              `json:"id"`
	Title       string           `json:"titulo"`
	Description string           `json:"descripcion"`
	ImageURL    string           `json:"imagenUrl"`
	Date        string           `json:"fecha"`
	ViewCount   int              `json:"visualizacion"`
	CategoryID  int              `json:"categoriaId,omitempty"`
	Category    *CategorySummary `json:"categoria,omitempty"`
	Status      string           `json:"estado,omitempty"`

	// 管理画面の一覧APIはこちらのキーでカテゴリ・投稿者を返す
	IDCategoria int `json:"idcategoria,omitempty"`
	IDUsuario   int `json:"idusuario,omitempty"`
}

// CategoryRef は記事のカテゴリIDを返す。
// 一覧APIによってキー名が異なるため、設定されている方を採用する。
func (p Publication) CategoryRef() int {
	if p.IDCategoria != 0 {
		return p.IDCategoria
	}
	if p.CategoryID != 0 {
		return p.CategoryID
	}
	if p.Category != nil {
		return p.Category.ID
	}
	return 0
}
