// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/binaahub/binna/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに主体を格納するためのキー。
var identityContextKey = contextKey("identity")

// IdentityResolver はリクエストの主体を解決する。
type IdentityResolver interface {
	Resolve(r *http.Request) model.Identity
}

// NewIdentityMiddleware はリクエストごとに一度だけ主体を解決し、コンテキストに注入する。
// 認証の要否は後段のRouteGuardやRequireVerifiedが判断する。
func NewIdentityMiddleware(resolver IdentityResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := resolver.Resolve(r)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// IdentityFromContext はコンテキストの主体を返す。未設定の場合はIdentityNoneを返す。
func IdentityFromContext(ctx context.Context) model.Identity {
	id, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok {
		return model.Identity{Kind: model.IdentityNone}
	}
	return id
}

// ContextWithIdentity はコンテキストに主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// UserIDFromContext は検証済みの主体のユーザーIDを返す。
// Weakな主体はデータアクセスに使えないためエラーとする。
func UserIDFromContext(ctx context.Context) (string, error) {
	id := IdentityFromContext(ctx)
	if !id.Verified() || id.UserID == "" {
		return "", fmt.Errorf("verified user not found in context")
	}
	return id.UserID, nil
}

// RequireVerified は検証済みの主体のみを通過させるAPI用ミドルウェア。
// Weak・Noneの場合は401を返す。
func RequireVerified() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IdentityFromContext(r.Context()).Verified() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAccountType は指定したアカウント種別の検証済み主体のみを通過させる。
// RequireVerifiedの後に配置する。
func RequireAccountType(types ...model.AccountType) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			if !id.Verified() {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			for _, t := range types {
				if id.AccountType == t {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		})
	}
}
