// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/binaahub/binna/internal/middleware"
	"github.com/binaahub/binna/internal/model"
)

const (
	// requestTimeout はハンドラーからサービス層を呼ぶ際の上限時間。
	requestTimeout = 10 * time.Second

	defaultPageSize = 20
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

// withTimeout はリクエストコンテキストにrequestTimeoutを設定する。
func withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをデコードする。未知のフィールドは拒否する。
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("تعذر قراءة جسم الطلب"))
		return false
	}
	return true
}

// pagination はlimitとoffsetのクエリパラメータを読み取る。不正な値は既定値に置き換える。
func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// verifiedIdentity はRequireVerified配下で主体を取り出す。
// ミドルウェアの設定漏れに備え、検証済みでなければ401を書き込んでfalseを返す。
func verifiedIdentity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	id := middleware.IdentityFromContext(r.Context())
	if !id.Verified() || id.UserID == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return id, false
	}
	return id, true
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized, model.ErrCodeOAuthFailed:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeInvalidSignature:
		return http.StatusForbidden
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case model.ErrCodeUserNotFound, model.ErrCodeStoreNotFound, model.ErrCodeProductNotFound,
		model.ErrCodeOrderNotFound, model.ErrCodeInvoiceNotFound, model.ErrCodeProjectNotFound,
		model.ErrCodeWarrantyNotFound, model.ErrCodeCustomerNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmailExists, model.ErrCodeInvoiceAlreadyPaid:
		return http.StatusConflict
	case model.ErrCodePaymentGateway:
		return http.StatusBadGateway
	case model.ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
