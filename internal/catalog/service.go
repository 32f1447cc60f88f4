// Package catalog はMedusaのコマーステーブル（商品、顧客、カート）を管理者と購入者に提供する。
// Medusaのデータベースが構成されていない場合、全ての操作はSERVICE_UNAVAILABLEを返す。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
)

// Medusaのproduct.statusの値
var productStatuses = map[string]bool{
	"draft":     true,
	"proposed":  true,
	"published": true,
	"rejected":  true,
}

// Sanitizer は利用者入力を無害化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
	PlainText(raw string) string
}

// ProductInput は商品作成の入力値。Handleが空の場合はTitleから生成する。
type ProductInput struct {
	Title       string
	Handle      string
	Description string
	Status      string
	Thumbnail   string
}

// ProductPatch は商品更新の入力値。nilのフィールドは変更しない。
type ProductPatch struct {
	Title       *string
	Handle      *string
	Description *string
	Status      *string
	Thumbnail   *string
}

// CustomerInput は顧客作成の入力値。
type CustomerInput struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// CustomerPatch は顧客更新の入力値。
type CustomerPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
}

// CartItemInput はカート明細追加の入力値。金額はハララ単位。
type CartItemInput struct {
	ProductID string
	Quantity  int
	UnitPrice int64
}

// Service はMedusaテーブルのサービス層。
type Service struct {
	repo      repository.MedusaRepository
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceを生成する。repoがnilの場合は未構成として扱う。
func NewService(repo repository.MedusaRepository, sanitizer Sanitizer) *Service {
	return &Service{repo: repo, sanitizer: sanitizer, now: time.Now}
}

// Enabled はMedusaのデータベースが構成されているかを返す。
func (s *Service) Enabled() bool {
	return s.repo != nil
}

func (s *Service) ready() error {
	if s.repo == nil {
		return model.NewServiceUnavailableError("medusa")
	}
	return nil
}

// --- 商品 ---

// ListProducts は商品一覧を返す。
func (s *Service) ListProducts(ctx context.Context, query string, limit, offset int) ([]*model.MedusaProduct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, s.sanitizer.PlainText(query), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("Medusa商品一覧の取得に失敗しました: %w", err)
	}
	return products, nil
}

// CreateProduct は商品を作成する。
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (*model.MedusaProduct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	now := s.now()
	p := &model.MedusaProduct{
		ID:          repository.NewMedusaID("prod"),
		Title:       s.sanitizer.PlainText(in.Title),
		Handle:      strings.TrimSpace(in.Handle),
		Description: s.sanitizer.Sanitize(in.Description),
		Status:      strings.TrimSpace(in.Status),
		Thumbnail:   strings.TrimSpace(in.Thumbnail),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Handle == "" {
		p.Handle = Slugify(p.Title)
	}
	if p.Status == "" {
		p.Status = "draft"
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("Medusa商品の作成に失敗しました: %w", err)
	}
	return p, nil
}

// UpdateProduct は商品を部分更新する。
func (s *Service) UpdateProduct(ctx context.Context, id string, patch ProductPatch) (*model.MedusaProduct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	p, err := s.repo.FindProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Medusa商品の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewProductNotFoundError()
	}

	if patch.Title != nil {
		p.Title = s.sanitizer.PlainText(*patch.Title)
	}
	if patch.Handle != nil {
		p.Handle = strings.TrimSpace(*patch.Handle)
	}
	if patch.Description != nil {
		p.Description = s.sanitizer.Sanitize(*patch.Description)
	}
	if patch.Status != nil {
		p.Status = strings.TrimSpace(*patch.Status)
	}
	if patch.Thumbnail != nil {
		p.Thumbnail = strings.TrimSpace(*patch.Thumbnail)
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProductNotFoundError()
		}
		return nil, fmt.Errorf("Medusa商品の更新に失敗しました: %w", err)
	}
	return p, nil
}

func validateProduct(p *model.MedusaProduct) error {
	switch {
	case p.Title == "":
		return model.NewValidationError("title", "مطلوب")
	case p.Handle == "" || p.Handle != Slugify(p.Handle):
		return model.NewValidationError("handle", "أحرف صغيرة وأرقام وشرطات فقط")
	case !productStatuses[p.Status]:
		return model.NewValidationError("status", "حالة غير معروفة")
	case p.Thumbnail != "" && !strings.HasPrefix(p.Thumbnail, "https://"):
		return model.NewValidationError("thumbnail", "يجب أن يبدأ الرابط بـ https://")
	}
	return nil
}

// Slugify はタイトルからMedusaのhandleを生成する。
// 文字と数字を小文字で残し、それ以外の連続は1つのハイフンにまとめる。
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// --- 顧客 ---

// ListCustomers は顧客一覧を返す。
func (s *Service) ListCustomers(ctx context.Context, limit, offset int) ([]*model.MedusaCustomer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	customers, err := s.repo.ListCustomers(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("Medusa顧客一覧の取得に失敗しました: %w", err)
	}
	return customers, nil
}

// CreateCustomer は顧客を作成する。
func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (*model.MedusaCustomer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	now := s.now()
	c := &model.MedusaCustomer{
		ID:        repository.NewMedusaID("cus"),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName: s.sanitizer.PlainText(in.FirstName),
		LastName:  s.sanitizer.PlainText(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validateCustomer(c); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		return nil, fmt.Errorf("Medusa顧客の作成に失敗しました: %w", err)
	}
	return c, nil
}

// UpdateCustomer は顧客を部分更新する。
func (s *Service) UpdateCustomer(ctx context.Context, id string, patch CustomerPatch) (*model.MedusaCustomer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	c, err := s.repo.FindCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Medusa顧客の取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCustomerNotFoundError()
	}

	if patch.Email != nil {
		c.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
	}
	if patch.FirstName != nil {
		c.FirstName = s.sanitizer.PlainText(*patch.FirstName)
	}
	if patch.LastName != nil {
		c.LastName = s.sanitizer.PlainText(*patch.LastName)
	}
	if patch.Phone != nil {
		c.Phone = strings.TrimSpace(*patch.Phone)
	}
	if err := validateCustomer(c); err != nil {
		return nil, err
	}
	c.UpdatedAt = s.now()

	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewCustomerNotFoundError()
		}
		return nil, fmt.Errorf("Medusa顧客の更新に失敗しました: %w", err)
	}
	return c, nil
}

func validateCustomer(c *model.MedusaCustomer) error {
	if _, err := mail.ParseAddress(c.Email); err != nil || c.Email == "" {
		return model.NewValidationError("email", "صيغة البريد الإلكتروني غير صحيحة")
	}
	return nil
}

// --- カート ---

// GetCart は利用者の未完了カートを返す。カートがない場合は空のカートを返す。
func (s *Service) GetCart(ctx context.Context, email string) (*model.Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	cart, err := s.repo.FindOpenCart(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("カートの取得に失敗しました: %w", err)
	}
	if cart == nil {
		return &model.Cart{Email: email}, nil
	}
	return cart, nil
}

// AddCartItem は商品をカートに追加する。カートがなければ同じトランザクションで作成される。
func (s *Service) AddCartItem(ctx context.Context, email string, in CartItemInput) (*model.Cart, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(in.ProductID) == "":
		return nil, model.NewValidationError("product_id", "مطلوب")
	case in.Quantity < 1 || in.Quantity > 1000:
		return nil, model.NewValidationError("quantity", "يجب أن تكون الكمية بين 1 و 1000")
	case in.UnitPrice < 0:
		return nil, model.NewValidationError("unit_price", "لا يمكن أن يكون السعر سالباً")
	}

	product, err := s.repo.FindProduct(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("Medusa商品の取得に失敗しました: %w", err)
	}
	if product == nil || product.Status != "published" {
		return nil, model.NewProductNotFoundError()
	}

	item := &model.LineItem{
		ID:        repository.NewMedusaID("item"),
		ProductID: product.ID,
		Title:     product.Title,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		CreatedAt: s.now(),
	}
	cart, err := s.repo.AddLineItem(ctx, email, item)
	if err != nil {
		return nil, fmt.Errorf("カートへの追加に失敗しました: %w", err)
	}
	return cart, nil
}
