// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"fmt"
	"net/http"

	"github.com/hitoshi/periodico/internal/model"
)

// ErrorRenderer はエラーページを描画する関数。
// ハンドラー層がテンプレートを使う実装を注入し、未設定の場合はWritePlainErrorを使う。
type ErrorRenderer func(w http.ResponseWriter, r *http.Request, statusCode int, apiErr *model.APIError)

// WritePlainError はテキスト形式のエラーレスポンスを書き込む。
func WritePlainError(w http.ResponseWriter, _ *http.Request, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, "%s\n%s\n", apiErr.Message, apiErr.Action)
}

// NewInternalError は内部エラーのAPIErrorを返す。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *model.APIError {
	return &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "Ocurrió un error interno",
		Category: "system",
		Action:   "Intenta nuevamente en unos momentos.",
	}
}

// NewForbiddenError はCSRF検証失敗時のAPIErrorを返す。
func NewForbiddenError() *model.APIError {
	return &model.APIError{
		Code:     "CSRF_FAILED",
		Message:  "La sesión del formulario expiró",
		Category: "validation",
		Action:   "Recarga la página y vuelve a enviar el formulario.",
	}
}

// NewPayloadTooLargeError はリクエストボディが上限を超えた場合のAPIErrorを返す。
func NewPayloadTooLargeError() *model.APIError {
	return &model.APIError{
		Code:     "PAYLOAD_TOO_LARGE",
		Message:  "El archivo enviado es demasiado grande",
		Category: "validation",
		Action:   "Selecciona una imagen de hasta 8 MB.",
	}
}

func renderOrPlain(render ErrorRenderer) ErrorRenderer {
	if render == nil {
		return WritePlainError
	}
	return render
}
