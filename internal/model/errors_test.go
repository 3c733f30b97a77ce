package model

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFetchFailure_ErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		ff   *FetchFailure
		want string
	}{
		{"http", &FetchFailure{Kind: KindHTTP, Op: "categories.list", Status: 500}, "categories.list: backend returned status 500"},
		{"validation", NewValidationFailure("users.create", "nombre"), `users.create: required field "nombre" is empty`},
		{"network", &FetchFailure{Kind: KindNetwork, Op: "publications.get", Err: errors.New("dial tcp")}, "publications.get: network failure: dial tcp"},
		{"parse without cause", &FetchFailure{Kind: KindParse, Op: "users.list"}, "users.list: parse failure"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ff.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAsFetchFailure_UnwrapsWrappedErrors(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := fmt.Errorf("loading feed: %w", &FetchFailure{Kind: KindNetwork, Op: "publications.list", Err: cause})

	ff, ok := AsFetchFailure(wrapped)
	if !ok {
		t.Fatal("AsFetchFailure は FetchFailure を取り出せるべき")
	}
	if ff.Kind != KindNetwork {
		t.Errorf("Kind = %q, want %q", ff.Kind, KindNetwork)
	}
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is は原因エラーまで辿れるべき")
	}
}

func TestIsStatus(t *testing.T) {
	err := &FetchFailure{Kind: KindHTTP, Op: "users.login", Status: http.StatusUnauthorized}
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Error("IsStatus(401) = false, want true")
	}
	if IsStatus(err, http.StatusNotFound) {
		t.Error("IsStatus(404) = true, want false")
	}
	if IsStatus(errors.New("plain"), http.StatusUnauthorized) {
		t.Error("FetchFailure以外のエラーはfalseであるべき")
	}
}

func TestToAPIError_MapsKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"http", &FetchFailure{Kind: KindHTTP, Status: 400}, ErrCodeBackendRejected},
		{"parse", &FetchFailure{Kind: KindParse}, ErrCodeUnexpectedResponse},
		{"validation", NewValidationFailure("op", "titulo"), ErrCodeRequiredField},
		{"network", &FetchFailure{Kind: KindNetwork}, ErrCodeBackendUnavailable},
		{"plain", errors.New("boom"), ErrCodeBackendUnavailable},
		{"api error passthrough", NewAccessDeniedError(), ErrCodeAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToAPIError(tt.err).Code; got != tt.code {
				t.Errorf("Code = %q, want %q", got, tt.code)
			}
		})
	}
}
