package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/binaahub/binna/internal/model"
)

// MedusaRepository はMedusaのコマーステーブル（product, customer, cart, line_item）への
// 読み書きインターフェース。取得系は見つからない場合にnilを返す。
type MedusaRepository interface {
	ListProducts(ctx context.Context, query string, limit, offset int) ([]*model.MedusaProduct, error)
	FindProduct(ctx context.Context, id string) (*model.MedusaProduct, error)
	CreateProduct(ctx context.Context, p *model.MedusaProduct) error
	UpdateProduct(ctx context.Context, p *model.MedusaProduct) error

	ListCustomers(ctx context.Context, limit, offset int) ([]*model.MedusaCustomer, error)
	FindCustomer(ctx context.Context, id string) (*model.MedusaCustomer, error)
	CreateCustomer(ctx context.Context, c *model.MedusaCustomer) error
	UpdateCustomer(ctx context.Context, c *model.MedusaCustomer) error

	// FindOpenCart はメールアドレスに紐づく未完了カートを明細付きで返す。
	FindOpenCart(ctx context.Context, email string) (*model.Cart, error)
	// AddLineItem は未完了カートがなければ作成し、明細を追加する。カート作成と明細追加は同一トランザクション。
	AddLineItem(ctx context.Context, email string, item *model.LineItem) (*model.Cart, error)
}

// NewMedusaID はMedusa形式のプレフィックス付きIDを生成する（例: prod_0F3A...）。
func NewMedusaID(prefix string) string {
	return prefix + "_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// PgxMedusaRepo はpgxpoolを使用したMedusaリポジトリ。
type PgxMedusaRepo struct {
	pool *pgxpool.Pool
}

// NewPgxMedusaRepo はPgxMedusaRepoを生成する。
func NewPgxMedusaRepo(pool *pgxpool.Pool) *PgxMedusaRepo {
	return &PgxMedusaRepo{pool: pool}
}

const medusaProductColumns = `id, title, handle, COALESCE(description, ''), status, COALESCE(thumbnail, ''), created_at, updated_at`

func scanMedusaProduct(row pgx.Row) (*model.MedusaProduct, error) {
	p := &model.MedusaProduct{}
	if err := row.Scan(&p.ID, &p.Title, &p.Handle, &p.Description, &p.Status, &p.Thumbnail, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProducts は削除されていない商品を新しい順に返す。
func (r *PgxMedusaRepo) ListProducts(ctx context.Context, query string, limit, offset int) ([]*model.MedusaProduct, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.pool.Query(ctx,
		`SELECT `+medusaProductColumns+` FROM product
		 WHERE deleted_at IS NULL AND ($1 = '' OR title ILIKE '%' || $1 || '%')
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		query, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list medusa products: %w", err)
	}
	defer rows.Close()

	var products []*model.MedusaProduct
	for rows.Next() {
		p, err := scanMedusaProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medusa product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medusa products: %w", err)
	}
	return products, nil
}

// FindProduct は商品を取得する。
func (r *PgxMedusaRepo) FindProduct(ctx context.Context, id string) (*model.MedusaProduct, error) {
	p, err := scanMedusaProduct(r.pool.QueryRow(ctx,
		`SELECT `+medusaProductColumns+` FROM product WHERE id = $1 AND deleted_at IS NULL`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find medusa product: %w", err)
	}
	return p, nil
}

// CreateProduct は商品を作成する。
func (r *PgxMedusaRepo) CreateProduct(ctx context.Context, p *model.MedusaProduct) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO product (id, title, handle, description, status, thumbnail, is_giftcard, discountable, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), FALSE, TRUE, $7, $8)`,
		p.ID, p.Title, p.Handle, p.Description, p.Status, p.Thumbnail, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medusa product: %w", err)
	}
	return nil
}

// UpdateProduct は商品を更新する。行がない場合はErrNotFoundを返す。
func (r *PgxMedusaRepo) UpdateProduct(ctx context.Context, p *model.MedusaProduct) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE product
		 SET title = $2, handle = $3, description = $4, status = $5, thumbnail = NULLIF($6, ''), updated_at = $7
		 WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.Title, p.Handle, p.Description, p.Status, p.Thumbnail, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update medusa product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const medusaCustomerColumns = `id, email, COALESCE(first_name, ''), COALESCE(last_name, ''), COALESCE(phone, ''), created_at, updated_at`

func scanMedusaCustomer(row pgx.Row) (*model.MedusaCustomer, error) {
	c := &model.MedusaCustomer{}
	if err := row.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCustomers は削除されていない顧客を新しい順に返す。
func (r *PgxMedusaRepo) ListCustomers(ctx context.Context, limit, offset int) ([]*model.MedusaCustomer, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.pool.Query(ctx,
		`SELECT `+medusaCustomerColumns+` FROM customer WHERE deleted_at IS NULL ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list medusa customers: %w", err)
	}
	defer rows.Close()

	var customers []*model.MedusaCustomer
	for rows.Next() {
		c, err := scanMedusaCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medusa customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medusa customers: %w", err)
	}
	return customers, nil
}

// FindCustomer は顧客を取得する。
func (r *PgxMedusaRepo) FindCustomer(ctx context.Context, id string) (*model.MedusaCustomer, error) {
	c, err := scanMedusaCustomer(r.pool.QueryRow(ctx,
		`SELECT `+medusaCustomerColumns+` FROM customer WHERE id = $1 AND deleted_at IS NULL`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find medusa customer: %w", err)
	}
	return c, nil
}

// CreateCustomer は顧客を作成する。
func (r *PgxMedusaRepo) CreateCustomer(ctx context.Context, c *model.MedusaCustomer) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO customer (id, email, first_name, last_name, phone, has_account, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), FALSE, $6, $7)`,
		c.ID, c.Email, c.FirstName, c.LastName, c.Phone, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medusa customer: %w", err)
	}
	return nil
}

// UpdateCustomer は顧客を更新する。行がない場合はErrNotFoundを返す。
func (r *PgxMedusaRepo) UpdateCustomer(ctx context.Context, c *model.MedusaCustomer) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE customer SET email = $2, first_name = $3, last_name = $4, phone = NULLIF($5, ''), updated_at = $6
		 WHERE id = $1 AND deleted_at IS NULL`,
		c.ID, c.Email, c.FirstName, c.LastName, c.Phone, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update medusa customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findOpenCart(ctx context.Context, q pgxQuerier, email string) (*model.Cart, error) {
	cart := &model.Cart{}
	err := q.QueryRow(ctx,
		`SELECT id, COALESCE(customer_id, ''), COALESCE(email, ''), created_at, updated_at
		 FROM cart WHERE email = $1 AND completed_at IS NULL AND deleted_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`,
		email,
	).Scan(&cart.ID, &cart.CustomerID, &cart.Email, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT id, cart_id, COALESCE(product_id, ''), title, quantity, unit_price, created_at
		 FROM line_item WHERE cart_id = $1 ORDER BY created_at`,
		cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.LineItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Title, &it.Quantity, &it.UnitPrice, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		cart.Items = append(cart.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate line items: %w", err)
	}
	return cart, nil
}

// FindOpenCart はメールアドレスに紐づく未完了カートを明細付きで返す。
func (r *PgxMedusaRepo) FindOpenCart(ctx context.Context, email string) (*model.Cart, error) {
	return findOpenCart(ctx, r.pool, email)
}

// AddLineItem は未完了カートがなければ作成し、明細を追加する。
func (r *PgxMedusaRepo) AddLineItem(ctx context.Context, email string, item *model.LineItem) (*model.Cart, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cart, err := findOpenCart(ctx, tx, email)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if cart == nil {
		cart = &model.Cart{ID: NewMedusaID("cart"), Email: email, CreatedAt: now, UpdatedAt: now}
		if _, err := tx.Exec(ctx,
			`INSERT INTO cart (id, email, type, created_at, updated_at) VALUES ($1, $2, 'default', $3, $4)`,
			cart.ID, cart.Email, cart.CreatedAt, cart.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to create cart: %w", err)
		}
	}

	item.CartID = cart.ID
	if _, err := tx.Exec(ctx,
		`INSERT INTO line_item (id, cart_id, product_id, title, quantity, unit_price, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		item.ID, item.CartID, item.ProductID, item.Title, item.Quantity, item.UnitPrice, item.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert line item: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE cart SET updated_at = $2 WHERE id = $1`, cart.ID, now); err != nil {
		return nil, fmt.Errorf("failed to touch cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	cart.Items = append(cart.Items, *item)
	cart.UpdatedAt = now
	return cart, nil
}

// compile-time interface check
var _ MedusaRepository = (*PgxMedusaRepo)(nil)
