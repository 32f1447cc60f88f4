// Package store は出店者の店舗情報と商品管理、公開マーケットプレイスの一覧を提供する。
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
)

const (
	maxNameLength     = 255
	maxCategoryLength = 100
)

// Sanitizer は商品説明などの利用者入力を無害化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
	PlainText(raw string) string
}

// URLValidator はWebhook URLが外部に到達可能な安全なURLかを検証する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// StoreInput は店舗の作成・更新の入力値。
type StoreInput struct {
	Name       string
	WebhookURL string
}

// ProductInput は商品作成の入力値。金額はハララ単位。
type ProductInput struct {
	Name        string
	Description string
	Price       int64
	Stock       int
	Category    string
}

// ProductPatch は商品更新の入力値。nilのフィールドは変更しない。
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *int64
	Stock       *int
	Category    *string
	Active      *bool
}

// Service は店舗のサービス層。
type Service struct {
	stores    repository.StoreRepository
	sanitizer Sanitizer
	urls      URLValidator
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(stores repository.StoreRepository, sanitizer Sanitizer, urls URLValidator) *Service {
	return &Service{
		stores:    stores,
		sanitizer: sanitizer,
		urls:      urls,
		now:       time.Now,
	}
}

// MyStore はオーナーの店舗を返す。未作成の場合はSTORE_NOT_FOUND。
func (s *Service) MyStore(ctx context.Context, ownerID string) (*model.Store, error) {
	st, err := s.stores.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if st == nil {
		return nil, model.NewStoreNotFoundError()
	}
	return st, nil
}

// CreateStore はオーナーの店舗を作成する。1オーナーにつき1店舗。
func (s *Service) CreateStore(ctx context.Context, ownerID string, in StoreInput) (*model.Store, error) {
	name := s.sanitizer.PlainText(in.Name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, model.NewValidationError("name", "اسم المتجر مطلوب")
	}
	webhook := strings.TrimSpace(in.WebhookURL)
	if webhook != "" && s.urls != nil {
		if err := s.urls.ValidateURL(webhook); err != nil {
			return nil, model.NewValidationError("webhook_url", "رابط غير مسموح")
		}
	}

	existing, err := s.stores.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("店舗の取得に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	now := s.now()
	st := &model.Store{
		ID:         uuid.New().String(),
		OwnerID:    ownerID,
		Name:       name,
		WebhookURL: webhook,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.stores.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("店舗の作成に失敗しました: %w", err)
	}
	return st, nil
}

// ListProducts はオーナーの店舗の商品一覧を返す。
func (s *Service) ListProducts(ctx context.Context, ownerID string) ([]*model.StoreProduct, error) {
	st, err := s.MyStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	products, err := s.stores.ListProducts(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return products, nil
}

// CreateProduct はオーナーの店舗に商品を追加する。説明文は許可されたHTMLのみ残す。
func (s *Service) CreateProduct(ctx context.Context, ownerID string, in ProductInput) (*model.StoreProduct, error) {
	st, err := s.MyStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &model.StoreProduct{
		ID:          uuid.New().String(),
		StoreID:     st.ID,
		Name:        s.sanitizer.PlainText(in.Name),
		Description: s.sanitizer.Sanitize(in.Description),
		Price:       in.Price,
		Stock:       in.Stock,
		Category:    s.sanitizer.PlainText(in.Category),
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.stores.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("商品の作成に失敗しました: %w", err)
	}
	return p, nil
}

// UpdateProduct はオーナーの店舗の商品を部分更新する。
func (s *Service) UpdateProduct(ctx context.Context, ownerID, productID string, patch ProductPatch) (*model.StoreProduct, error) {
	st, err := s.MyStore(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(productID); err != nil {
		return nil, model.NewProductNotFoundError()
	}

	p, err := s.stores.FindProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("商品の取得に失敗しました: %w", err)
	}
	if p == nil || p.StoreID != st.ID {
		return nil, model.NewProductNotFoundError()
	}

	if patch.Name != nil {
		p.Name = s.sanitizer.PlainText(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = s.sanitizer.Sanitize(*patch.Description)
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Category != nil {
		p.Category = s.sanitizer.PlainText(*patch.Category)
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.stores.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProductNotFoundError()
		}
		return nil, fmt.Errorf("商品の更新に失敗しました: %w", err)
	}
	return p, nil
}

// Marketplace は公開中の商品一覧を返す。認証不要。
func (s *Service) Marketplace(ctx context.Context, query string, limit, offset int) ([]*model.StoreProduct, error) {
	products, err := s.stores.ListActiveProducts(ctx, s.sanitizer.PlainText(query), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("マーケットプレイスの取得に失敗しました: %w", err)
	}
	return products, nil
}

func validateProduct(p *model.StoreProduct) error {
	switch {
	case p.Name == "" || utf8.RuneCountInString(p.Name) > maxNameLength:
		return model.NewValidationError("name", "اسم المنتج مطلوب")
	case p.Price < 0:
		return model.NewValidationError("price", "لا يمكن أن يكون السعر سالباً")
	case p.Stock < 0:
		return model.NewValidationError("stock", "لا يمكن أن يكون المخزون سالباً")
	case utf8.RuneCountInString(p.Category) > maxCategoryLength:
		return model.NewValidationError("category", "التصنيف طويل جداً")
	}
	return nil
}
