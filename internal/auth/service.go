// Package auth はログイン、サインアップ、セッションの発行・照合・失効を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	RefreshTokenTTL time.Duration
	// AutoConfirm がtrueの場合、サインアップ直後のメールアドレスを確認済みとする。
	AutoConfirm bool
}

// LoginResult はセッション確立に成功した結果を表す。
type LoginResult struct {
	User       *model.User
	Tokens     *model.TokenPair
	RedirectTo string
}

// SignupInput はサインアップの入力値。
type SignupInput struct {
	Email       string
	Password    string
	Name        string
	Phone       string
	AccountType string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	authRepo    repository.AuthUserRepository
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokens      *TokenIssuer
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。oauthがnilの場合はOAuthログインを受け付けない。
func NewService(
	oauth OAuthProvider,
	authRepo repository.AuthUserRepository,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokens *TokenIssuer,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		authRepo:    authRepo,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		config:      config,
		now:         time.Now,
	}
}

// RedirectPathFor はログイン後に遷移するダッシュボードのパスを返す。
func RedirectPathFor(t model.AccountType) string {
	return t.DashboardPath()
}

// NormalizeEmail はメールアドレスを比較用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login はメールアドレスとパスワードで認証し、セッションを発行する。
// アカウント不在・パスワード不一致・未確認メールはすべて同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidRequestError("email and password are required")
	}

	au, err := s.authRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find auth user: %w", err)
	}
	if au == nil {
		burnPasswordCheck(password)
		return nil, model.NewInvalidCredentialsError()
	}
	if au.PasswordHash == "" {
		// OAuthのみのアカウント
		burnPasswordCheck(password)
		return nil, model.NewInvalidCredentialsError()
	}
	if !CheckPassword(au.PasswordHash, password) {
		return nil, model.NewInvalidCredentialsError()
	}
	if !au.Confirmed() {
		slog.Info("login rejected for unconfirmed email", slog.String("user_id", au.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.loadProfile(ctx, au.ID)
	if err != nil {
		return nil, err
	}

	result, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("account_type", string(user.AccountType)),
	)
	return result, nil
}

// Signup は認証ユーザーとプロフィールを作成する。
// 自動確認が有効な場合はそのままセッションを発行し、無効な場合はTokensがnilの結果を返す。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*LoginResult, error) {
	email := NormalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, model.NewValidationError("email", "صيغة البريد الإلكتروني غير صحيحة")
	}
	if len(in.Password) < MinPasswordLength {
		return nil, model.NewValidationError("password", fmt.Sprintf("الحد الأدنى %d أحرف", MinPasswordLength))
	}
	accountType := model.AccountTypeUser
	if in.AccountType != "" {
		t, ok := model.ParseAccountType(in.AccountType)
		if !ok || t == model.AccountTypeAdmin {
			return nil, model.NewValidationError("account_type", "نوع الحساب غير مدعوم")
		}
		accountType = t
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	id := uuid.New().String()
	au := &model.AuthUser{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Provider:     "email",
		CreatedAt:    now,
	}
	if s.config.AutoConfirm {
		au.EmailConfirmedAt = &now
	}
	user := &model.User{
		ID:          id,
		Email:       email,
		AccountType: accountType,
		Name:        strings.TrimSpace(in.Name),
		Phone:       strings.TrimSpace(in.Phone),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.authRepo.CreateAccount(ctx, au, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, model.NewEmailExistsError()
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("user signed up",
		slog.String("user_id", id),
		slog.String("account_type", string(accountType)),
	)

	if !au.Confirmed() {
		return &LoginResult{User: user, RedirectTo: "/login"}, nil
	}
	return s.startSession(ctx, user)
}

// OAuthEnabled はOAuthログインが構成されているかを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// LoginWithOAuth はOAuthコールバックを処理し、セッションを発行する。
// 未登録ユーザーは一般ユーザーとして作成し、同じメールアドレスの既存アカウントにはIdPを紐付ける。
func (s *Service) LoginWithOAuth(ctx context.Context, code string) (*LoginResult, error) {
	if s.oauth == nil {
		return nil, model.NewServiceUnavailableError("oauth")
	}

	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		slog.Warn("oauth code exchange failed", slog.String("error", err.Error()))
		return nil, model.NewOAuthFailedError()
	}

	au, err := s.authRepo.FindByProvider(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find auth user by provider: %w", err)
	}

	if au == nil {
		email := NormalizeEmail(info.Email)
		existing, err := s.authRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to find auth user by email: %w", err)
		}

		switch {
		case existing != nil && info.EmailVerified:
			if err := s.authRepo.LinkProvider(ctx, existing.ID, info.Provider, info.ProviderUserID); err != nil {
				return nil, fmt.Errorf("failed to link provider: %w", err)
			}
			au = existing
		case existing != nil:
			// 未確認のメールアドレスで既存アカウントを乗っ取らせない
			return nil, model.NewOAuthFailedError()
		default:
			au, err = s.createOAuthAccount(ctx, info, email)
			if err != nil {
				return nil, err
			}
		}
	}

	user, err := s.loadProfile(ctx, au.ID)
	if err != nil {
		return nil, err
	}
	return s.startSession(ctx, user)
}

func (s *Service) createOAuthAccount(ctx context.Context, info *OAuthUserInfo, email string) (*model.AuthUser, error) {
	now := s.now()
	id := uuid.New().String()
	au := &model.AuthUser{
		ID:               id,
		Email:            email,
		EmailConfirmedAt: &now,
		Provider:         info.Provider,
		ProviderUserID:   info.ProviderUserID,
		CreatedAt:        now,
	}
	user := &model.User{
		ID:          id,
		Email:       email,
		AccountType: model.AccountTypeUser,
		Name:        info.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.authRepo.CreateAccount(ctx, au, user); err != nil {
		return nil, fmt.Errorf("failed to create oauth account: %w", err)
	}
	slog.Info("new user created",
		slog.String("user_id", id),
		slog.String("provider", info.Provider),
	)
	return au, nil
}

// EstablishSession はクライアントが保持するトークンの組からサーバー側セッションを確立し直す。
// アクセストークンが有効ならそのまま、無効でもリフレッシュトークンが有効ならローテーションして返す。
func (s *Service) EstablishSession(ctx context.Context, accessToken, refreshToken string) (*LoginResult, error) {
	if accessToken != "" {
		claims, err := s.VerifyAccessToken(ctx, accessToken)
		if err == nil {
			user, err := s.loadProfile(ctx, claims.Subject)
			if err != nil {
				return nil, err
			}
			return &LoginResult{
				User: user,
				Tokens: &model.TokenPair{
					AccessToken:  accessToken,
					RefreshToken: s.sessionRefreshToken(ctx, claims.SessionID, refreshToken),
					ExpiresAt:    claims.ExpiresAt.Time,
					SessionID:    claims.SessionID,
					UserID:       user.ID,
				},
				RedirectTo: RedirectPathFor(user.AccountType),
			}, nil
		}
		slog.Debug("access token rejected, trying refresh", slog.String("error", err.Error()))
	}

	if refreshToken == "" {
		return nil, model.NewUnauthorizedError()
	}
	return s.Refresh(ctx, refreshToken)
}

// sessionRefreshToken はリフレッシュトークンが指定セッションのものである場合だけそれを返す。
// 別セッションのものや失効済みのものは空文字にし、クッキーへ書き戻さない。
func (s *Service) sessionRefreshToken(ctx context.Context, sessionID, refreshToken string) string {
	if refreshToken == "" {
		return ""
	}
	session, err := s.sessionRepo.FindByRefreshTokenHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		slog.Warn("failed to look up refresh token session", slog.String("error", err.Error()))
		return ""
	}
	if session == nil || session.ID != sessionID || !session.Active(s.now()) {
		return ""
	}
	return refreshToken
}

// Refresh はリフレッシュトークンをローテーションし、新しいトークンの組を発行する。
// 使用済みのリフレッシュトークンは以後受け付けない。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	oldHash := hashRefreshToken(refreshToken)
	session, err := s.sessionRepo.FindByRefreshTokenHash(ctx, oldHash)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || !session.Active(s.now()) {
		return nil, model.NewUnauthorizedError()
	}

	user, err := s.loadProfile(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	newRefresh, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	expiresAt := s.now().Add(s.config.RefreshTokenTTL)
	if err := s.sessionRepo.RotateRefreshToken(ctx, session.ID, oldHash, hashRefreshToken(newRefresh), expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUnauthorizedError()
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	access, accessExp, err := s.tokens.Issue(user, session.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User: user,
		Tokens: &model.TokenPair{
			AccessToken:  access,
			RefreshToken: newRefresh,
			ExpiresAt:    accessExp,
			SessionID:    session.ID,
			UserID:       user.ID,
		},
		RedirectTo: RedirectPathFor(user.AccountType),
	}, nil
}

// VerifyAccessToken はアクセストークンの署名と期限を検証し、
// 対応するセッションが失効していないことを確認する。
func (s *Service) VerifyAccessToken(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.UserID != claims.Subject || !session.Active(s.now()) {
		return nil, fmt.Errorf("%w: session inactive", ErrInvalidToken)
	}
	return claims, nil
}

// Logout はセッションを失効させる。セッションIDが空の場合は何もしない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessionRepo.Revoke(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// LogoutTokens はクライアントが保持するトークンからセッションを特定して失効させる。
// アクセストークンが期限切れでも署名が正しければセッションIDを使い、
// それもなければリフレッシュトークンから探す。どちらでも特定できない場合は何もしない。
func (s *Service) LogoutTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if sid, ok := s.tokens.SessionIDOf(accessToken); ok {
			return s.Logout(ctx, sid)
		}
	}
	if refreshToken == "" {
		return nil
	}
	session, err := s.sessionRepo.FindByRefreshTokenHash(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil
	}
	return s.Logout(ctx, session.ID)
}

// GetCurrentUser はユーザーIDからプロフィールを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	return s.loadProfile(ctx, userID)
}

func (s *Service) loadProfile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.Error("profile row missing for auth user", slog.String("user_id", userID))
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// startSession はセッション行を作成し、アクセストークンとリフレッシュトークンを発行する。
func (s *Service) startSession(ctx context.Context, user *model.User) (*LoginResult, error) {
	refresh, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		RefreshTokenHash: hashRefreshToken(refresh),
		ExpiresAt:        now.Add(s.config.RefreshTokenTTL),
		CreatedAt:        now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	access, accessExp, err := s.tokens.Issue(user, session.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User: user,
		Tokens: &model.TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    accessExp,
			SessionID:    session.ID,
			UserID:       user.ID,
		},
		RedirectTo: RedirectPathFor(user.AccountType),
	}, nil
}
