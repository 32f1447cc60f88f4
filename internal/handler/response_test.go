package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/binaahub/binna/internal/middleware"
	"github.com/binaahub/binna/internal/model"
)

func TestMapAPIErrorToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *model.APIError
		want int
	}{
		{model.NewInvalidCredentialsError(), http.StatusUnauthorized},
		{model.NewUnauthorizedError(), http.StatusUnauthorized},
		{model.NewOAuthFailedError(), http.StatusUnauthorized},
		{model.NewForbiddenError(), http.StatusForbidden},
		{model.NewInvalidSignatureError(), http.StatusForbidden},
		{model.NewInvalidRequestError("x"), http.StatusBadRequest},
		{model.NewValidationError("f", "r"), http.StatusBadRequest},
		{model.NewUserNotFoundError(), http.StatusNotFound},
		{model.NewOrderNotFoundError(), http.StatusNotFound},
		{model.NewInvoiceNotFoundError(), http.StatusNotFound},
		{model.NewCustomerNotFoundError(), http.StatusNotFound},
		{model.NewEmailExistsError(), http.StatusConflict},
		{model.NewInvoiceAlreadyPaidError(), http.StatusConflict},
		{model.NewPaymentGatewayError(), http.StatusBadGateway},
		{model.NewServiceUnavailableError("medusa"), http.StatusServiceUnavailable},
		{&model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := mapAPIErrorToHTTPStatus(tt.err); got != tt.want {
				t.Errorf("mapAPIErrorToHTTPStatus(%s) = %d, want %d", tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestHandleServiceError_WrappedAPIError(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, fmt.Errorf("注文の取得に失敗しました: %w", model.NewOrderNotFoundError()))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeOrderNotFound {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeOrderNotFound)
	}
}

func TestHandleServiceError_PlainErrorHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	handleServiceError(w, errors.New("pq: relation \"orders\" does not exist"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	body := decodeErrorBody(t, w)
	if body.Code != middleware.ErrInternalCode {
		t.Errorf("code = %q, want %q", body.Code, middleware.ErrInternalCode)
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", defaultPageSize, 0},
		{"?limit=10&offset=5", 10, 5},
		{"?limit=1000", maxPageSize, 0},
		{"?limit=-1&offset=-3", defaultPageSize, 0},
		{"?limit=abc", defaultPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			limit, offset := pagination(httptest.NewRequest(http.MethodGet, "/api/orders"+tt.query, nil))
			if limit != tt.wantLimit || offset != tt.wantOffset {
				t.Errorf("pagination(%q) = %d, %d, want %d, %d", tt.query, limit, offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
