package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/binaahub/binna/internal/auth"
	"github.com/binaahub/binna/internal/model"
)

// TokenVerifier はアクセストークンとセッションを検証する。
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*auth.Claims, error)
}

// ProfileLoader はユーザーIDでプロフィールを取得する。見つからない場合はnilを返す。
type ProfileLoader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Resolver はリクエストの主体を2つの情報源から解決する。
//
// 1. アクセストークン（Cookieまたは Authorization: Bearer）。サーバー側で検証できればVerified。
// 2. temp_auth_user Cookie。検証できないためWeak。
//
// トークンが提示されたが検証処理自体が失敗した場合（DB障害など）はNoneを返し、
// フォールバックCookieには頼らない。
type Resolver struct {
	verifier TokenVerifier
	profiles ProfileLoader
	cache    ProfileCache
}

// NewResolver はResolverを生成する。cacheがnilの場合は毎回プロフィールを読み込む。
func NewResolver(verifier TokenVerifier, profiles ProfileLoader, cache ProfileCache) *Resolver {
	return &Resolver{verifier: verifier, profiles: profiles, cache: cache}
}

// Resolve はリクエストの主体を返す。
func (r *Resolver) Resolve(req *http.Request) model.Identity {
	ctx := req.Context()

	if token := AccessTokenFrom(req); token != "" {
		id, err := r.verify(ctx, token)
		switch {
		case err == nil:
			if fb, ok := DecodeFallbackCookie(req); ok && (fb.AccountType != id.AccountType || fb.ID != id.UserID) {
				slog.Warn("fallback cookie disagrees with verified session",
					slog.String("user_id", id.UserID),
					slog.String("account_type", string(id.AccountType)),
					slog.String("fallback_account_type", string(fb.AccountType)),
				)
			}
			return id
		case errors.Is(err, auth.ErrInvalidToken):
			slog.Debug("access token rejected", slog.String("error", err.Error()))
		default:
			slog.Error("failed to resolve session", slog.String("error", err.Error()))
			return model.Identity{Kind: model.IdentityNone}
		}
	}

	if fb, ok := DecodeFallbackCookie(req); ok {
		return model.Identity{
			Kind:        model.IdentityWeak,
			UserID:      fb.ID,
			Email:       fb.Email,
			AccountType: fb.AccountType,
			Name:        fb.Name,
		}
	}
	return model.Identity{Kind: model.IdentityNone}
}

// Forget はプロフィールのキャッシュを破棄する。プロフィール更新後に呼び出す。
func (r *Resolver) Forget(ctx context.Context, userID string) {
	if r.cache != nil {
		r.cache.Delete(ctx, userID)
	}
}

func (r *Resolver) verify(ctx context.Context, token string) (model.Identity, error) {
	claims, err := r.verifier.VerifyAccessToken(ctx, token)
	if err != nil {
		return model.Identity{}, err
	}

	user, err := r.loadProfile(ctx, claims.Subject)
	if err != nil {
		return model.Identity{}, err
	}
	if user == nil {
		return model.Identity{}, fmt.Errorf("%w: profile not found", auth.ErrInvalidToken)
	}

	return model.Identity{
		Kind:        model.IdentityVerified,
		UserID:      user.ID,
		Email:       user.Email,
		AccountType: user.AccountType,
		Name:        user.Name,
		SessionID:   claims.SessionID,
	}, nil
}

func (r *Resolver) loadProfile(ctx context.Context, userID string) (*model.User, error) {
	if r.cache != nil {
		if u, ok := r.cache.Get(ctx, userID); ok {
			return u, nil
		}
	}

	u, err := r.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if u != nil && r.cache != nil {
		r.cache.Set(ctx, u)
	}
	return u, nil
}

// AccessTokenFrom はAuthorizationヘッダー、なければCookieからアクセストークンを取り出す。
func AccessTokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(AccessCookieName); err == nil {
		return c.Value
	}
	return ""
}

// RefreshTokenFrom はCookieからリフレッシュトークンを取り出す。
func RefreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookieName); err == nil {
		return c.Value
	}
	return ""
}
