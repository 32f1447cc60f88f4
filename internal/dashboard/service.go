// Package dashboard はアカウント種別ごとのダッシュボードの表示データを組み立てる。
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
)

// recentLimit はダッシュボードに表示する直近の件数。
const recentLimit = 5

// WarrantyView は保証と導出済みの状態。
type WarrantyView struct {
	*model.Warranty
	Status model.WarrantyStatus
}

// UserDashboard は一般ユーザーのダッシュボード。
// Verified=falseの場合は本人確認前の枠だけを返し、データは含まない。
type UserDashboard struct {
	Verified      bool
	Identity      model.Identity
	OrderCount    int
	RecentOrders  []*model.Order
	Projects      []*model.Project
	Warranties    []WarrantyView
	ExpiringCount int
}

// StoreDashboard は出店者のダッシュボード。Storeがnilの場合は店舗未作成。
type StoreDashboard struct {
	Store          *model.Store
	ProductCount   int
	RecentOrders   []*model.Order
	UnpaidInvoices int
}

// ProfessionalDashboard はエンジニア・コンサルタントのダッシュボード。
type ProfessionalDashboard struct {
	AccountType      model.AccountType
	AssignedProjects []*model.Project
	InProgress       int
}

// AdminDashboard はプラットフォーム全体の集計。
type AdminDashboard struct {
	UsersByAccountType map[model.AccountType]int
	TotalUsers         int
	TotalOrders        int
	TotalProjects      int
}

// Service はダッシュボードのサービス層。
type Service struct {
	users      repository.UserRepository
	orders     repository.OrderRepository
	stores     repository.StoreRepository
	invoices   repository.InvoiceRepository
	projects   repository.ProjectRepository
	warranties repository.WarrantyRepository
	now        func() time.Time
}

// Repositories はServiceが参照するリポジトリの集合。
type Repositories struct {
	Users      repository.UserRepository
	Orders     repository.OrderRepository
	Stores     repository.StoreRepository
	Invoices   repository.InvoiceRepository
	Projects   repository.ProjectRepository
	Warranties repository.WarrantyRepository
}

// NewService はServiceを生成する。
func NewService(repos Repositories) *Service {
	return &Service{
		users:      repos.Users,
		orders:     repos.Orders,
		stores:     repos.Stores,
		invoices:   repos.Invoices,
		projects:   repos.Projects,
		warranties: repos.Warranties,
		now:        time.Now,
	}
}

// User は一般ユーザーのダッシュボードを返す。
// 弱い識別情報（フォールバックCookieのみ）の場合はデータベースを参照しない。
func (s *Service) User(ctx context.Context, id model.Identity) (*UserDashboard, error) {
	d := &UserDashboard{Identity: id, Verified: id.Verified()}
	if !id.Verified() {
		return d, nil
	}

	count, err := s.orders.CountByUser(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("注文数の取得に失敗しました: %w", err)
	}
	d.OrderCount = count

	if d.RecentOrders, err = s.orders.ListByUser(ctx, id.UserID, recentLimit, 0); err != nil {
		return nil, fmt.Errorf("直近の注文の取得に失敗しました: %w", err)
	}
	if d.Projects, err = s.projects.ListByOwner(ctx, id.UserID, recentLimit, 0); err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}

	warranties, err := s.warranties.ListByUser(ctx, id.UserID, recentLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("保証の取得に失敗しました: %w", err)
	}
	now := s.now()
	d.Warranties = make([]WarrantyView, 0, len(warranties))
	for _, w := range warranties {
		status := w.StatusAt(now)
		if status == model.WarrantyStatusExpiring {
			d.ExpiringCount++
		}
		d.Warranties = append(d.Warranties, WarrantyView{Warranty: w, Status: status})
	}
	return d, nil
}

// Store は出店者のダッシュボードを返す。
func (s *Service) Store(ctx context.Context, ownerID string) (*StoreDashboard, error) {
	store, err := s.stores.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	d := &StoreDashboard{Store: store}
	if store == nil {
		return d, nil
	}

	if d.ProductCount, err = s.stores.CountProducts(ctx, store.ID); err != nil {
		return nil, fmt.Errorf("商品数の取得に失敗しました: %w", err)
	}
	if d.RecentOrders, err = s.orders.ListByStore(ctx, store.ID, recentLimit, 0); err != nil {
		return nil, fmt.Errorf("店舗の注文の取得に失敗しました: %w", err)
	}
	if d.UnpaidInvoices, err = s.invoices.CountUnpaidByStore(ctx, store.ID); err != nil {
		return nil, fmt.Errorf("未払い請求書数の取得に失敗しました: %w", err)
	}
	return d, nil
}

// Professional はエンジニア・コンサルタントの担当プロジェクトを返す。
func (s *Service) Professional(ctx context.Context, id model.Identity) (*ProfessionalDashboard, error) {
	projects, err := s.projects.ListByAssignee(ctx, id.UserID, 50, 0)
	if err != nil {
		return nil, fmt.Errorf("担当プロジェクトの取得に失敗しました: %w", err)
	}
	d := &ProfessionalDashboard{AccountType: id.AccountType, AssignedProjects: projects}
	for _, p := range projects {
		if p.Status == model.ProjectStatusInProgress {
			d.InProgress++
		}
	}
	return d, nil
}

// Admin はプラットフォーム全体の集計を返す。
func (s *Service) Admin(ctx context.Context) (*AdminDashboard, error) {
	byType, err := s.users.CountByAccountType(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー数の集計に失敗しました: %w", err)
	}
	d := &AdminDashboard{UsersByAccountType: byType}
	for _, n := range byType {
		d.TotalUsers += n
	}
	if d.TotalOrders, err = s.orders.CountAll(ctx); err != nil {
		return nil, fmt.Errorf("注文数の集計に失敗しました: %w", err)
	}
	if d.TotalProjects, err = s.projects.CountAll(ctx); err != nil {
		return nil, fmt.Errorf("プロジェクト数の集計に失敗しました: %w", err)
	}
	return d, nil
}
