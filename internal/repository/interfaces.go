// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/binaahub/binna/internal/model"
)

// ErrEmailExists は同じメールアドレスの認証ユーザーが既に存在する場合に返す。
var ErrEmailExists = errors.New("email already exists")

// ErrNotFound は更新対象の行が存在しない場合に返す。
// 取得系のメソッドは見つからない場合にnil,nilを返す。
var ErrNotFound = errors.New("not found")

// AuthUserRepository は認証情報ストアの永続化インターフェース。
type AuthUserRepository interface {
	// FindByEmail はメールアドレスで認証ユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.AuthUser, error)

	// FindByProvider は外部IdPの識別子で認証ユーザーを取得する。見つからない場合はnilを返す。
	FindByProvider(ctx context.Context, provider, providerUserID string) (*model.AuthUser, error)

	// CreateAccount は認証ユーザーとプロフィールを同一トランザクションで作成する。
	// メールアドレスが重複している場合はErrEmailExistsを返す。
	CreateAccount(ctx context.Context, authUser *model.AuthUser, profile *model.User) error

	// LinkProvider は既存の認証ユーザーに外部IdPの識別子を紐付ける。
	LinkProvider(ctx context.Context, id, provider, providerUserID string) error
}

// UserRepository はプロフィール（usersテーブル）の永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CountByAccountType はアカウント種別ごとのユーザー数を返す。
	CountByAccountType(ctx context.Context) (map[model.AccountType]int, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。失効・期限切れでも返すため、呼び出し側でActiveを確認する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// FindByRefreshTokenHash はリフレッシュトークンのハッシュでセッションを取得する。見つからない場合はnilを返す。
	FindByRefreshTokenHash(ctx context.Context, hash string) (*model.Session, error)
	// RotateRefreshToken はoldHashと一致する有効なセッションのリフレッシュトークンを差し替える。
	// 一致する行がない場合（既にローテーション済み等）はErrNotFoundを返す。
	RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error
	// Revoke はセッションを失効させる。
	Revoke(ctx context.Context, id string) error
}

// StoreRepository は店舗と店舗商品の永続化インターフェース。
type StoreRepository interface {
	// FindByID は指定IDの店舗を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Store, error)
	// FindByOwnerID はオーナーのユーザーIDで店舗を取得する。見つからない場合はnilを返す。
	FindByOwnerID(ctx context.Context, ownerID string) (*model.Store, error)
	// Create は店舗を作成する。
	Create(ctx context.Context, store *model.Store) error

	// ListProducts は店舗の商品一覧を返す。
	ListProducts(ctx context.Context, storeID string) ([]*model.StoreProduct, error)
	// ListActiveProducts は公開中の全店舗の商品を新しい順に返す。queryが空でなければ名前で絞り込む。
	ListActiveProducts(ctx context.Context, query string, limit, offset int) ([]*model.StoreProduct, error)
	// FindProduct は店舗商品を取得する。見つからない場合はnilを返す。
	FindProduct(ctx context.Context, id string) (*model.StoreProduct, error)
	// CreateProduct は店舗商品を作成する。
	CreateProduct(ctx context.Context, p *model.StoreProduct) error
	// UpdateProduct は店舗商品を更新する。行がない場合はErrNotFoundを返す。
	UpdateProduct(ctx context.Context, p *model.StoreProduct) error
	// CountProducts は店舗の商品数を返す。
	CountProducts(ctx context.Context, storeID string) (int, error)
}

// OrderRepository は注文の永続化インターフェース。
type OrderRepository interface {
	// CreateWithItems は注文ヘッダと全明細を同一トランザクションで作成する。
	// いずれかの挿入に失敗した場合は何も残さない。
	CreateWithItems(ctx context.Context, order *model.Order) error
	// FindByID は明細付きで注文を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Order, error)
	// ListByUser は利用者の注文を新しい順に返す（明細なし）。
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Order, error)
	// ListByStore は店舗宛ての注文を新しい順に返す（明細なし）。
	ListByStore(ctx context.Context, storeID string, limit, offset int) ([]*model.Order, error)
	// UpdateStatus は店舗の注文状態を更新する。行がない場合はErrNotFoundを返す。
	UpdateStatus(ctx context.Context, id, storeID string, status model.OrderStatus) error
	// CountByUser は利用者の注文数を返す。
	CountByUser(ctx context.Context, userID string) (int, error)
	// CountAll は全注文数を返す。
	CountAll(ctx context.Context) (int, error)
	// SalesReport は店舗の日別売上を返す。
	SalesReport(ctx context.Context, storeID string, from, to time.Time) ([]model.SalesReportRow, error)
}

// InvoiceRepository は請求書の永続化インターフェース。
type InvoiceRepository interface {
	// Create は請求書を作成する。
	Create(ctx context.Context, inv *model.Invoice) error
	// FindByID は請求書を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Invoice, error)
	// ListByStore は店舗の請求書を新しい順に返す。
	ListByStore(ctx context.Context, storeID string, limit, offset int) ([]*model.Invoice, error)
	// CountUnpaidByStore は店舗の未払い請求書の件数を返す。
	CountUnpaidByStore(ctx context.Context, storeID string) (int, error)
	// ListAwaitingPayment はゲートウェイ側で支払待ちのまま、beforeより前に更新された請求書を古い順に返す。
	ListAwaitingPayment(ctx context.Context, before time.Time, limit int) ([]*model.Invoice, error)
	// ApplyPaymentResult は決済結果を請求書に反映し、通知を同一トランザクションで作成する。
	// 既に支払済みの請求書は変更せず、changed=falseを返す。
	ApplyPaymentResult(ctx context.Context, id string, result PaymentResult, notification *model.Notification) (changed bool, err error)
}

// PaymentResult は決済ゲートウェイから得た請求書の状態。
type PaymentResult struct {
	Status           model.InvoiceStatus
	GatewayInvoiceID string
	GatewayPaymentID string
	At               time.Time
}

// ProjectRepository は建設プロジェクトの永続化インターフェース。
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	// FindByID はプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)
	// ListByOwner はオーナーのプロジェクトを新しい順に返す。
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.Project, error)
	// ListByAssignee は担当者（エンジニア・コンサルタント）のプロジェクトを返す。
	ListByAssignee(ctx context.Context, assigneeID string, limit, offset int) ([]*model.Project, error)
	// Update はプロジェクトを更新する。行がない場合はErrNotFoundを返す。
	Update(ctx context.Context, p *model.Project) error
	// CountAll は全プロジェクト数を返す。
	CountAll(ctx context.Context) (int, error)
}

// WarrantyRepository は保証の永続化インターフェース。
type WarrantyRepository interface {
	Create(ctx context.Context, w *model.Warranty) error
	// FindByID は保証を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Warranty, error)
	// ListByUser は利用者の保証を終了日の近い順に返す。
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Warranty, error)
}

// NotificationRepository は通知の永続化インターフェース。
type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	// ListByUser は利用者の通知を新しい順に返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
