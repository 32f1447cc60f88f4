// Package identity はリクエストの主体をCookieとアクセストークンから解決する。
package identity

import (
	"net/http"
	"time"
)

// Cookie名
const (
	AccessCookieName        = "binna-access-token"
	RefreshCookieName       = "binna-refresh-token"
	SessionActiveCookieName = "auth_session_active"
	FallbackCookieName      = "temp_auth_user"
)

const (
	// FallbackMaxAge はフォールバックCookieの有効期間（秒）。
	FallbackMaxAge = 24 * 60 * 60
	// SessionActiveMaxAge はクライアント向けログイン状態マーカーの有効期間（秒）。
	SessionActiveMaxAge = 24 * 60 * 60
	refreshCookiePath   = "/api/auth"
)

// CookieOptions はCookie発行時の共通属性。
type CookieOptions struct {
	Secure bool
	Domain string
}

// AccessCookie はアクセストークンを保持するHttpOnly Cookieを生成する。
func (o CookieOptions) AccessCookie(token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     AccessCookieName,
		Value:    token,
		Path:     "/",
		Domain:   o.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// RefreshCookie はリフレッシュトークンを保持するHttpOnly Cookieを生成する。
// 送信先は認証APIに限定する。
func (o CookieOptions) RefreshCookie(token string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		Domain:   o.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionActiveCookie はクライアント側のログイン判定用マーカーを生成する。
func (o CookieOptions) SessionActiveCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionActiveCookieName,
		Value:    "true",
		Path:     "/",
		Domain:   o.Domain,
		MaxAge:   SessionActiveMaxAge,
		HttpOnly: false,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookies はログアウト時に全認証Cookieを削除するCookieを返す。
func (o CookieOptions) ClearCookies() []*http.Cookie {
	expire := func(name, path string, httpOnly bool) *http.Cookie {
		return &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Domain:   o.Domain,
			MaxAge:   -1,
			HttpOnly: httpOnly,
			Secure:   o.Secure,
			SameSite: http.SameSiteLaxMode,
		}
	}
	return []*http.Cookie{
		expire(AccessCookieName, "/", true),
		expire(RefreshCookieName, refreshCookiePath, true),
		expire(SessionActiveCookieName, "/", false),
		ClearFallbackCookie(o),
	}
}
