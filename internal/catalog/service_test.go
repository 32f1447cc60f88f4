package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
	"github.com/binaahub/binna/internal/security"
)

type mockMedusaRepo struct {
	products  map[string]*model.MedusaProduct
	customers map[string]*model.MedusaCustomer
	carts     map[string]*model.Cart
}

func newMockMedusaRepo() *mockMedusaRepo {
	return &mockMedusaRepo{
		products:  map[string]*model.MedusaProduct{},
		customers: map[string]*model.MedusaCustomer{},
		carts:     map[string]*model.Cart{},
	}
}

func (m *mockMedusaRepo) ListProducts(ctx context.Context, q string, limit, offset int) ([]*model.MedusaProduct, error) {
	var out []*model.MedusaProduct
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}
func (m *mockMedusaRepo) FindProduct(ctx context.Context, id string) (*model.MedusaProduct, error) {
	return m.products[id], nil
}
func (m *mockMedusaRepo) CreateProduct(ctx context.Context, p *model.MedusaProduct) error {
	m.products[p.ID] = p
	return nil
}
func (m *mockMedusaRepo) UpdateProduct(ctx context.Context, p *model.MedusaProduct) error {
	if _, ok := m.products[p.ID]; !ok {
		return repository.ErrNotFound
	}
	m.products[p.ID] = p
	return nil
}
func (m *mockMedusaRepo) ListCustomers(ctx context.Context, limit, offset int) ([]*model.MedusaCustomer, error) {
	return nil, nil
}
func (m *mockMedusaRepo) FindCustomer(ctx context.Context, id string) (*model.MedusaCustomer, error) {
	return m.customers[id], nil
}
func (m *mockMedusaRepo) CreateCustomer(ctx context.Context, c *model.MedusaCustomer) error {
	m.customers[c.ID] = c
	return nil
}
func (m *mockMedusaRepo) UpdateCustomer(ctx context.Context, c *model.MedusaCustomer) error {
	m.customers[c.ID] = c
	return nil
}
func (m *mockMedusaRepo) FindOpenCart(ctx context.Context, email string) (*model.Cart, error) {
	return m.carts[email], nil
}
func (m *mockMedusaRepo) AddLineItem(ctx context.Context, email string, item *model.LineItem) (*model.Cart, error) {
	cart, ok := m.carts[email]
	if !ok {
		cart = &model.Cart{ID: repository.NewMedusaID("cart"), Email: email}
		m.carts[email] = cart
	}
	item.CartID = cart.ID
	cart.Items = append(cart.Items, *item)
	return cart, nil
}

var _ repository.MedusaRepository = (*mockMedusaRepo)(nil)

func newTestService() (*Service, *mockMedusaRepo) {
	repo := newMockMedusaRepo()
	return NewService(repo, security.NewContentSanitizer()), repo
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
	}
	if apiErr.Code != code {
		t.Errorf("code = %q, want %q", apiErr.Code, code)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Portland Cement 50kg": "portland-cement-50kg",
		"  --Steel   Rebar!! ": "steel-rebar",
		"أسمنت أبيض":           "أسمنت-أبيض",
		"":                     "",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDisabledService(t *testing.T) {
	svc := NewService(nil, security.NewContentSanitizer())
	if svc.Enabled() {
		t.Error("Enabled() = true for nil repo")
	}
	_, err := svc.ListProducts(context.Background(), "", 20, 0)
	assertAPIErrorCode(t, err, model.ErrCodeServiceUnavailable)
	_, err = svc.GetCart(context.Background(), "a@example.com")
	assertAPIErrorCode(t, err, model.ErrCodeServiceUnavailable)
}

func TestCreateProduct(t *testing.T) {
	svc, repo := newTestService()

	p, err := svc.CreateProduct(context.Background(), ProductInput{Title: "Portland Cement", Description: "<p>ok</p><img src=x onerror=alert(1)>"})
	if err != nil {
		t.Fatalf("CreateProduct returned error: %v", err)
	}
	if !strings.HasPrefix(p.ID, "prod_") || p.Handle != "portland-cement" || p.Status != "draft" {
		t.Errorf("unexpected product: %+v", p)
	}
	if strings.Contains(p.Description, "onerror") {
		t.Errorf("Description not sanitized: %q", p.Description)
	}
	if repo.products[p.ID] == nil {
		t.Error("product not stored")
	}

	tests := []struct {
		name string
		in   ProductInput
	}{
		{"missing title", ProductInput{Title: " "}},
		{"bad handle", ProductInput{Title: "x", Handle: "Has Spaces"}},
		{"bad status", ProductInput{Title: "x", Status: "live"}},
		{"http thumbnail", ProductInput{Title: "x", Thumbnail: "http://cdn.example.com/a.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateProduct(context.Background(), tt.in)
			assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)
		})
	}
}

func TestUpdateProduct(t *testing.T) {
	svc, _ := newTestService()
	p, err := svc.CreateProduct(context.Background(), ProductInput{Title: "Rebar"})
	if err != nil {
		t.Fatal(err)
	}

	status := "published"
	updated, err := svc.UpdateProduct(context.Background(), p.ID, ProductPatch{Status: &status})
	if err != nil || updated.Status != "published" {
		t.Errorf("UpdateProduct = %+v, %v", updated, err)
	}

	_, err = svc.UpdateProduct(context.Background(), "prod_missing", ProductPatch{Status: &status})
	assertAPIErrorCode(t, err, model.ErrCodeProductNotFound)
}

func TestCustomers(t *testing.T) {
	svc, _ := newTestService()

	c, err := svc.CreateCustomer(context.Background(), CustomerInput{Email: " Buyer@Example.com ", FirstName: "سارة"})
	if err != nil {
		t.Fatalf("CreateCustomer returned error: %v", err)
	}
	if c.Email != "buyer@example.com" || !strings.HasPrefix(c.ID, "cus_") {
		t.Errorf("unexpected customer: %+v", c)
	}

	_, err = svc.CreateCustomer(context.Background(), CustomerInput{Email: "not-an-email"})
	assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)

	last := "العتيبي"
	got, err := svc.UpdateCustomer(context.Background(), c.ID, CustomerPatch{LastName: &last})
	if err != nil || got.LastName != last {
		t.Errorf("UpdateCustomer = %+v, %v", got, err)
	}

	_, err = svc.UpdateCustomer(context.Background(), "cus_missing", CustomerPatch{LastName: &last})
	assertAPIErrorCode(t, err, model.ErrCodeCustomerNotFound)
}

func TestCart(t *testing.T) {
	svc, repo := newTestService()
	repo.products["prod_1"] = &model.MedusaProduct{ID: "prod_1", Title: "Cement", Status: "published"}
	repo.products["prod_2"] = &model.MedusaProduct{ID: "prod_2", Title: "Draft", Status: "draft"}

	empty, err := svc.GetCart(context.Background(), "u@example.com")
	if err != nil || len(empty.Items) != 0 {
		t.Fatalf("GetCart = %+v, %v", empty, err)
	}

	cart, err := svc.AddCartItem(context.Background(), "u@example.com", CartItemInput{ProductID: "prod_1", Quantity: 2, UnitPrice: 2500})
	if err != nil {
		t.Fatalf("AddCartItem returned error: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Title != "Cement" || cart.Total() != 5000 {
		t.Errorf("cart = %+v", cart)
	}

	_, err = svc.AddCartItem(context.Background(), "u@example.com", CartItemInput{ProductID: "prod_2", Quantity: 1})
	assertAPIErrorCode(t, err, model.ErrCodeProductNotFound)

	_, err = svc.AddCartItem(context.Background(), "u@example.com", CartItemInput{ProductID: "prod_1", Quantity: 0})
	assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)
}
