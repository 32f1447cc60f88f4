package identity

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/binaahub/binna/internal/model"
)

// EncodeFallbackCookie はフォールバック用のユーザー情報をクライアントから読めるCookieにする。
// この値は画面の振り分けにのみ使い、サーバー側の認可には使わない。
func EncodeFallbackCookie(u model.FallbackUser, opts CookieOptions) *http.Cookie {
	// 文字列フィールドのみのため失敗しない
	b, _ := json.Marshal(u)
	return &http.Cookie{
		Name:     FallbackCookieName,
		Value:    url.QueryEscape(string(b)),
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   FallbackMaxAge,
		HttpOnly: false,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// DecodeFallbackCookie はリクエストのフォールバックCookieを読み取る。
// Cookieがない、JSONとして不正、必須項目の欠落、未知のアカウント種別の場合はfalseを返す。
func DecodeFallbackCookie(r *http.Request) (*model.FallbackUser, bool) {
	c, err := r.Cookie(FallbackCookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return ParseFallbackValue(c.Value)
}

// ParseFallbackValue はCookie値を検証してFallbackUserに変換する。
func ParseFallbackValue(value string) (*model.FallbackUser, bool) {
	raw, err := url.QueryUnescape(value)
	if err != nil {
		return nil, false
	}

	var u model.FallbackUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, false
	}

	u.ID = strings.TrimSpace(u.ID)
	u.Email = strings.TrimSpace(u.Email)
	if u.ID == "" || u.Email == "" {
		return nil, false
	}
	t, ok := model.ParseAccountType(string(u.AccountType))
	if !ok {
		return nil, false
	}
	u.AccountType = t
	return &u, true
}

// ClearFallbackCookie はフォールバックCookieを削除するCookieを返す。
func ClearFallbackCookie(opts CookieOptions) *http.Cookie {
	return &http.Cookie{
		Name:     FallbackCookieName,
		Value:    "",
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   -1,
		HttpOnly: false,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
