// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// AccountType はユーザーのアカウント種別を表す。
// ルーティングと画面の出し分けはこの値で決まる。
type AccountType string

const (
	AccountTypeUser       AccountType = "user"
	AccountTypeStore      AccountType = "store"
	AccountTypeEngineer   AccountType = "engineer"
	AccountTypeConsultant AccountType = "consultant"
	AccountTypeAdmin      AccountType = "admin"
)

// AllAccountTypes は定義済みのアカウント種別の一覧。
var AllAccountTypes = []AccountType{
	AccountTypeUser,
	AccountTypeStore,
	AccountTypeEngineer,
	AccountTypeConsultant,
	AccountTypeAdmin,
}

// ParseAccountType は文字列をAccountTypeに変換する。
// 前後の空白と大文字小文字は無視する。未知の値の場合はfalseを返す。
func ParseAccountType(s string) (AccountType, bool) {
	t := AccountType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t, true
	}
	return "", false
}

// Valid は定義済みのアカウント種別かどうかを返す。
func (t AccountType) Valid() bool {
	for _, v := range AllAccountTypes {
		if t == v {
			return true
		}
	}
	return false
}

// DashboardPath はアカウント種別ごとのダッシュボードのパスを返す。
// 不明な種別は一般ユーザーのダッシュボードとして扱う。
func (t AccountType) DashboardPath() string {
	switch t {
	case AccountTypeStore:
		return "/store/dashboard"
	case AccountTypeEngineer:
		return "/engineer/dashboard"
	case AccountTypeConsultant:
		return "/consultant/dashboard"
	case AccountTypeAdmin:
		return "/admin/dashboard"
	default:
		return "/user/dashboard"
	}
}

// User はusersテーブルのプロフィールを表す。IDは認証ユーザーのIDと一致する。
type User struct {
	ID          string
	Email       string
	AccountType AccountType
	Name        string
	Phone       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuthUser は認証情報ストア（auth_users）の行を表す。
// OAuthのみで登録したユーザーはPasswordHashが空になる。
type AuthUser struct {
	ID               string
	Email            string
	PasswordHash     string
	EmailConfirmedAt *time.Time
	Provider         string
	ProviderUserID   string
	CreatedAt        time.Time
}

// Confirmed はメールアドレスが確認済みかどうかを返す。
func (u *AuthUser) Confirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Session はサーバー側で管理するログインセッションを表す。
// リフレッシュトークンはSHA-256ハッシュのみを保存する。
type Session struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	ExpiresAt        time.Time
	CreatedAt        time.Time
	RevokedAt        *time.Time
}

// Active はセッションが失効しておらず期限内かどうかを返す。
func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// TokenPair はクライアントに渡すアクセストークンとリフレッシュトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	SessionID    string
	UserID       string
}
