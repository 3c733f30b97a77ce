package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, backend, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrCodeBackendRejected    = "BACKEND_REJECTED"
	ErrCodeUnexpectedResponse = "UNEXPECTED_RESPONSE"
	ErrCodeRequiredField      = "REQUIRED_FIELD"
	ErrCodePublicationMissing = "PUBLICATION_NOT_FOUND"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
	ErrCodeTooManyAttempts    = "TOO_MANY_ATTEMPTS"
)

// FailureKind はバックエンド呼び出し失敗の分類。
type FailureKind string

const (
	// KindNetwork はリクエストが完了しなかったことを示す。
	KindNetwork FailureKind = "network"
	// KindHTTP はバックエンドが2xx以外を返したことを示す。
	KindHTTP FailureKind = "not-ok"
	// KindParse は応答の形が想定と異なることを示す。
	KindParse FailureKind = "parse"
	// KindValidation はクライアント側の必須項目チェックに失敗したことを示す。
	KindValidation FailureKind = "validation"
)

// FetchFailure はバックエンド呼び出しの失敗を表す。
// backendパッケージのすべての操作はこの型のエラーのみを返す。
type FetchFailure struct {
	Kind   FailureKind
	Op     string // 操作名（例: "categories.list"）
	Status int    // KindHTTPの場合のHTTPステータス
	Field  string // KindValidationの場合の不足項目
	Err    error
}

// Error はerrorインターフェースを実装する。
func (f *FetchFailure) Error() string {
	switch f.Kind {
	case KindHTTP:
		return fmt.Sprintf("%s: backend returned status %d", f.Op, f.Status)
	case KindValidation:
		return fmt.Sprintf("%s: required field %q is empty", f.Op, f.Field)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %s failure: %v", f.Op, f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s failure", f.Op, f.Kind)
}

// Unwrap は原因エラーを返す。
func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// AsFetchFailure はerrからFetchFailureを取り出す。
func AsFetchFailure(err error) (*FetchFailure, bool) {
	var ff *FetchFailure
	if errors.As(err, &ff) {
		return ff, true
	}
	return nil, false
}

// IsStatus はerrが指定ステータスのKindHTTP失敗かどうかを判定する。
func IsStatus(err error, status int) bool {
	ff, ok := AsFetchFailure(err)
	return ok && ff.Kind == KindHTTP && ff.Status == status
}

// NewValidationFailure は必須項目不足の失敗を生成する。
func NewValidationFailure(op, field string) *FetchFailure {
	return &FetchFailure{Kind: KindValidation, Op: op, Field: field}
}

// NewBackendUnavailableError はバックエンドに接続できない場合のエラーを生成する。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "No se pudo conectar con el servidor",
		Category: "backend",
		Action:   "Intenta nuevamente en unos momentos.",
	}
}

// NewBackendRejectedError はバックエンドが要求を拒否した場合のエラーを生成する。
func NewBackendRejectedError(status int) *APIError {
	return &APIError{
		Code:     ErrCodeBackendRejected,
		Message:  fmt.Sprintf("El servidor rechazó la operación (estado %d)", status),
		Category: "backend",
		Action:   "Revisa los datos e intenta nuevamente.",
	}
}

// NewUnexpectedResponseError はバックエンド応答の形が想定外の場合のエラーを生成する。
func NewUnexpectedResponseError() *APIError {
	return &APIError{
		Code:     ErrCodeUnexpectedResponse,
		Message:  "La respuesta del servidor no tiene el formato esperado",
		Category: "backend",
		Action:   "Recarga la página.",
	}
}

// NewRequiredFieldError は必須項目未入力のエラーを生成する。
func NewRequiredFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeRequiredField,
		Message:  fmt.Sprintf("El campo %s es obligatorio", field),
		Category: "validation",
		Action:   "Por favor completa los campos requeridos.",
	}
}

// NewPublicationNotFoundError は記事を取得できない場合のエラーを生成する。
func NewPublicationNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodePublicationMissing,
		Message:  "No se pudo cargar la noticia",
		Category: "backend",
		Action:   "Vuelve al inicio y selecciona otra noticia.",
	}
}

// NewNotFoundError は存在しないページへのアクセス時のエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Página no encontrada",
		Category: "system",
		Action:   "Vuelve al inicio.",
	}
}

// NewAccessDeniedError は未ログインで管理画面にアクセスした場合のエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "Debe iniciar sesión para acceder al panel",
		Category: "auth",
		Action:   "Inicia sesión como administrador.",
	}
}

// NewTooManyAttemptsError はログイン試行回数超過のエラーを生成する。
func NewTooManyAttemptsError() *APIError {
	return &APIError{
		Code:     ErrCodeTooManyAttempts,
		Message:  "Demasiados intentos de inicio de sesión",
		Category: "auth",
		Action:   "Espera un minuto antes de volver a intentarlo.",
	}
}

// ToAPIError はバックエンド呼び出しの失敗をユーザー向けのAPIErrorに変換する。
// FetchFailure以外のエラーはバックエンド接続失敗として扱う。
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	ff, ok := AsFetchFailure(err)
	if !ok {
		return NewBackendUnavailableError()
	}
	switch ff.Kind {
	case KindHTTP:
		return NewBackendRejectedError(ff.Status)
	case KindParse:
		return NewUnexpectedResponseError()
	case KindValidation:
		return NewRequiredFieldError(ff.Field)
	default:
		return NewBackendUnavailableError()
	}
}
