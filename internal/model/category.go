// Package model はドメインモデルを定義する。
// バックエンドとやり取りするレコードをそのままの形で表現し、正規化は行わない。
package model

// Category はニュースのカテゴリを表す。
// idはバックエンドが採番する。
type Category struct {
	ID          int    `json:"id"`
	Description string `json:"descripcion"`
	Status      string `json:"estado,omitempty"`
}

// CategorySummary は記事に埋め込まれるカテゴリの要約。
type CategorySummary struct {
	ID   int    `json:"id"`
	Name string `json:"nombre"`
}
