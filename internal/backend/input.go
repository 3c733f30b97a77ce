package backend

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/periodico/internal/model"
)

// CategoryInput はカテゴリ作成・更新のフォーム値。
type CategoryInput struct {
	Description string
}

// Validate は必須項目を検証する。
func (in CategoryInput) Validate(op string) error {
	if strings.TrimSpace(in.Description) == "" {
		return model.NewValidationFailure(op, "descripcion")
	}
	return nil
}

func (in CategoryInput) query() url.Values {
	q := url.Values{}
	q.Set("descripcion", in.Description)
	return q
}

// UserInput はユーザー作成・更新のフォーム値。
type UserInput struct {
	Name     string
	Phone    string
	Username string
	Password string
}

// Validate は必須項目を検証する。
func (in UserInput) Validate(op string) error {
	if strings.TrimSpace(in.Name) == "" {
		return model.NewValidationFailure(op, "nombre")
	}
	if strings.TrimSpace(in.Username) == "" {
		return model.NewValidationFailure(op, "nombreUsuario")
	}
	return nil
}

// query はクエリパラメータを生成する。
// 電話番号は入力どおりに送る（先頭の0を落とさない）。未入力の場合のみ"0"を送る。
func (in UserInput) query() url.Values {
	phone := strings.TrimSpace(in.Phone)
	if phone == "" {
		phone = "0"
	}
	q := url.Values{}
	q.Set("nombre", in.Name)
	q.Set("telefono", phone)
	q.Set("nombreusuario", in.Username)
	q.Set("password", in.Password)
	return q
}

// ImageFile はアップロードする画像ファイル。
type ImageFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PublicationInput は記事作成・更新のフォーム値。
// Imageがnilの場合は画像パートを送らず、バックエンド側の既存画像が維持される。
type PublicationInput struct {
	Title       string
	Description string
	Date        string // YYYY-MM-DD
	CategoryID  int
	UserID      int
	Image       *ImageFile
}

// Validate は必須項目を検証する。
func (in PublicationInput) Validate(op string) error {
	if strings.TrimSpace(in.Title) == "" {
		return model.NewValidationFailure(op, "titulo")
	}
	if in.CategoryID == 0 {
		return model.NewValidationFailure(op, "idcategoria")
	}
	return nil
}

// multipart はmultipart/form-dataのボディとContent-Typeを生成する。
func (in PublicationInput) multipart() (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	fields := []struct{ name, value string }{
		{"Titulo", in.Title},
		{"Descripcion", in.Description},
		{"Fecha", in.Date},
		{"idcategoria", strconv.Itoa(in.CategoryID)},
	}
	if in.UserID != 0 {
		fields = append(fields, struct{ name, value string }{"idusuario", strconv.Itoa(in.UserID)})
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if in.Image != nil && len(in.Image.Data) > 0 {
		contentType := in.Image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="Imagen"; filename=%q`, in.Image.Filename))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(in.Image.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
