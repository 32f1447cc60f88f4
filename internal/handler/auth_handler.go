package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/binaahub/binna/internal/auth"
	"github.com/binaahub/binna/internal/identity"
	"github.com/binaahub/binna/internal/middleware"
	"github.com/binaahub/binna/internal/model"
)

const oauthStateCookie = "oauth_state"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Signup(ctx context.Context, in auth.SignupInput) (*auth.LoginResult, error)
	EstablishSession(ctx context.Context, accessToken, refreshToken string) (*auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.LoginResult, error)
	LogoutTokens(ctx context.Context, accessToken, refreshToken string) error
	GetCurrentUser(ctx context.Context, userID string) (*model.User, error)
	OAuthEnabled() bool
	GetLoginURL(state string) string
	LoginWithOAuth(ctx context.Context, code string) (*auth.LoginResult, error)
}

// LoginObserver はログイン試行の結果を受け取る。
type LoginObserver interface {
	RecordLogin(method, result string)
}

// ProfileForgetter はログアウト時にキャッシュ済みのプロフィールを破棄する。
type ProfileForgetter interface {
	Forget(ctx context.Context, userID string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL         string
	Cookies         identity.CookieOptions
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// AuthHandler はログイン・セッション確立・ログアウトのHTTPハンドラー。
// 成功時のみ認証Cookieを発行し、失敗時はCookieを一切書き込まない。
type AuthHandler struct {
	service  AuthServiceInterface
	config   AuthHandlerConfig
	observer LoginObserver
	profiles ProfileForgetter
}

// NewAuthHandler はAuthHandlerを生成する。observerとprofilesはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, observer LoginObserver, profiles ProfileForgetter) *AuthHandler {
	return &AuthHandler{
		service:  service,
		config:   config,
		observer: observer,
		profiles: profiles,
	}
}

// --- リクエスト・レスポンス型 ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	AccountType string `json:"account_type"`
}

type establishSessionRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Phone       string `json:"phone,omitempty"`
	AccountType string `json:"account_type"`
}

type sessionResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type authSuccessResponse struct {
	Success    bool             `json:"success"`
	User       userResponse     `json:"user"`
	RedirectTo string           `json:"redirectTo"`
	Session    *sessionResponse `json:"session,omitempty"`
}

type authErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		Phone:       u.Phone,
		AccountType: string(u.AccountType),
	}
}

// --- ハンドラー ---

// Login はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, false)
}

// LoginDB は旧クライアント向けのログイン。Cookieに加えてトークンの組を本文でも返す。
// Cookieが伝播しなかったクライアントはこの値をestablish-sessionに送り直す。
// POST /api/auth/login-db
func (h *AuthHandler) LoginDB(w http.ResponseWriter, r *http.Request) {
	h.login(w, r, true)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, includeTokens bool) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.recordLogin("password", "failure")
		h.writeAuthError(w, err)
		return
	}
	h.recordLogin("password", "success")
	h.writeSession(w, http.StatusOK, res, includeTokens)
}

// Signup はアカウントを作成する。自動確認が無効な場合はCookieを発行せずログイン画面へ誘導する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := h.service.Signup(ctx, auth.SignupInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		Phone:       req.Phone,
		AccountType: req.AccountType,
	})
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	if res.Tokens == nil {
		writeJSON(w, http.StatusCreated, authSuccessResponse{
			Success:    true,
			User:       toUserResponse(res.User),
			RedirectTo: res.RedirectTo,
		})
		return
	}
	h.writeSession(w, http.StatusCreated, res, false)
}

// EstablishSession はクライアントが保持するトークンの組からセッションを確立し直し、Cookieを再発行する。
// POSTは本文のトークンを、GETはCookieのトークンを使う。
// POST|GET /api/auth/establish-session
func (h *AuthHandler) EstablishSession(w http.ResponseWriter, r *http.Request) {
	var req establishSessionRequest
	if r.Method == http.MethodPost {
		if !decodeJSON(w, r, &req) {
			return
		}
	} else {
		req.AccessToken = identity.AccessTokenFrom(r)
		req.RefreshToken = identity.RefreshTokenFrom(r)
	}
	if req.AccessToken == "" && req.RefreshToken == "" {
		h.writeAuthError(w, model.NewUnauthorizedError())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := h.service.EstablishSession(ctx, req.AccessToken, req.RefreshToken)
	if err != nil {
		h.recordLogin("establish", "failure")
		h.writeAuthError(w, err)
		return
	}
	h.recordLogin("establish", "success")
	h.writeSession(w, http.StatusOK, res, false)
}

// Refresh はリフレッシュトークンCookieをローテーションする。
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := identity.RefreshTokenFrom(r)
	if refresh == "" {
		h.writeAuthError(w, model.NewUnauthorizedError())
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := h.service.Refresh(ctx, refresh)
	if err != nil {
		h.recordLogin("refresh", "failure")
		h.writeAuthError(w, err)
		return
	}
	h.recordLogin("refresh", "success")
	h.writeSession(w, http.StatusOK, res, false)
}

// Logout はセッションを失効させ、全認証Cookieを削除する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r)
	defer cancel()

	if err := h.service.LogoutTokens(ctx, identity.AccessTokenFrom(r), identity.RefreshTokenFrom(r)); err != nil {
		// 失効に失敗してもCookieは削除する
		slog.Error("failed to logout", slog.String("error", err.Error()))
	}
	if id := middleware.IdentityFromContext(r.Context()); id.Verified() && h.profiles != nil {
		h.profiles.Forget(ctx, id.UserID)
	}

	for _, c := range h.config.Cookies.ClearCookies() {
		http.SetCookie(w, c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "redirectTo": "/login"})
}

// Me は現在の主体を返す。フォールバックCookieのみの場合はverified=falseで識別情報だけを返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	switch id.Kind {
	case model.IdentityVerified:
		ctx, cancel := withTimeout(r)
		defer cancel()

		user, err := h.service.GetCurrentUser(ctx, id.UserID)
		if err != nil {
			h.writeAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"verified": true,
			"user":     toUserResponse(user),
		})
	case model.IdentityWeak:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"verified": false,
			"user": userResponse{
				ID:          id.UserID,
				Email:       id.Email,
				Name:        id.Name,
				AccountType: string(id.AccountType),
			},
		})
	default:
		h.writeAuthError(w, model.NewUnauthorizedError())
	}
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /api/auth/google/login
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		h.writeAuthError(w, model.NewServiceUnavailableError("oauth"))
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback はOAuthコールバックを処理し、ダッシュボードへリダイレクトする。
// GET /api/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/api/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	res, err := h.service.LoginWithOAuth(ctx, code)
	if err != nil {
		h.recordLogin("oauth", "failure")
		slog.Warn("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.config.BaseURL+"/login?error=oauth", http.StatusSeeOther)
		return
	}
	h.recordLogin("oauth", "success")

	h.setSessionCookies(w, res)
	http.Redirect(w, r, h.config.BaseURL+res.RedirectTo, http.StatusSeeOther)
}

// --- ヘルパー ---

func (h *AuthHandler) recordLogin(method, result string) {
	if h.observer != nil {
		h.observer.RecordLogin(method, result)
	}
}

// setSessionCookies はアクセストークン、リフレッシュトークン、ログイン状態マーカー、フォールバックCookieを書き込む。
func (h *AuthHandler) setSessionCookies(w http.ResponseWriter, res *auth.LoginResult) {
	opts := h.config.Cookies
	http.SetCookie(w, opts.AccessCookie(res.Tokens.AccessToken, h.config.AccessTokenTTL))
	if res.Tokens.RefreshToken != "" {
		http.SetCookie(w, opts.RefreshCookie(res.Tokens.RefreshToken, h.config.RefreshTokenTTL))
	}
	http.SetCookie(w, opts.SessionActiveCookie())
	http.SetCookie(w, identity.EncodeFallbackCookie(model.FallbackUserFrom(res.User), opts))
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, statusCode int, res *auth.LoginResult, includeTokens bool) {
	h.setSessionCookies(w, res)

	body := authSuccessResponse{
		Success:    true,
		User:       toUserResponse(res.User),
		RedirectTo: res.RedirectTo,
	}
	if includeTokens {
		body.Session = &sessionResponse{
			AccessToken:  res.Tokens.AccessToken,
			RefreshToken: res.Tokens.RefreshToken,
			ExpiresAt:    res.Tokens.ExpiresAt,
		}
	}
	writeJSON(w, statusCode, body)
}

// writeAuthError は認証APIのエラー形式 {success:false, error, code} で書き込む。
func (h *AuthHandler) writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("auth request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, authErrorResponse{
			Error: "حدث خطأ داخلي",
			Code:  middleware.ErrInternalCode,
		})
		return
	}
	writeJSON(w, mapAPIErrorToHTTPStatus(apiErr), authErrorResponse{
		Error: apiErr.Message,
		Code:  apiErr.Code,
	})
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
