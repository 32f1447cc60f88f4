package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/binaahub/binna/internal/model"
)

// PostgresStoreRepo はPostgreSQLを使用した店舗・店舗商品リポジトリ。
type PostgresStoreRepo struct {
	db *sql.DB
}

// NewPostgresStoreRepo はPostgresStoreRepoを生成する。
func NewPostgresStoreRepo(db *sql.DB) *PostgresStoreRepo {
	return &PostgresStoreRepo{db: db}
}

func (r *PostgresStoreRepo) findStore(ctx context.Context, where, arg string) (*model.Store, error) {
	s := &model.Store{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, webhook_url, created_at, updated_at FROM stores WHERE `+where,
		arg,
	).Scan(&s.ID, &s.OwnerID, &s.Name, &s.WebhookURL, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find store: %w", err)
	}
	return s, nil
}

// FindByID は指定IDの店舗を取得する。見つからない場合はnilを返す。
func (r *PostgresStoreRepo) FindByID(ctx context.Context, id string) (*model.Store, error) {
	return r.findStore(ctx, "id = $1", id)
}

// FindByOwnerID はオーナーのユーザーIDで店舗を取得する。見つからない場合はnilを返す。
func (r *PostgresStoreRepo) FindByOwnerID(ctx context.Context, ownerID string) (*model.Store, error) {
	return r.findStore(ctx, "owner_id = $1", ownerID)
}

// Create は店舗を作成する。
func (r *PostgresStoreRepo) Create(ctx context.Context, s *model.Store) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stores (id, owner_id, name, webhook_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.OwnerID, s.Name, s.WebhookURL, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	return nil
}

const storeProductColumns = `id, store_id, name, description, price, stock, category, active, created_at, updated_at`

func scanStoreProducts(rows *sql.Rows) ([]*model.StoreProduct, error) {
	defer rows.Close()

	var products []*model.StoreProduct
	for rows.Next() {
		p := &model.StoreProduct{}
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan store product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate store products: %w", err)
	}
	return products, nil
}

// ListProducts は店舗の商品一覧を返す。
func (r *PostgresStoreRepo) ListProducts(ctx context.Context, storeID string) ([]*model.StoreProduct, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storeProductColumns+` FROM store_products WHERE store_id = $1 ORDER BY created_at DESC`,
		storeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list store products: %w", err)
	}
	return scanStoreProducts(rows)
}

// ListActiveProducts は公開中の商品を新しい順に返す。
func (r *PostgresStoreRepo) ListActiveProducts(ctx context.Context, query string, limit, offset int) ([]*model.StoreProduct, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+storeProductColumns+` FROM store_products
		 WHERE active = TRUE AND ($1 = '' OR name ILIKE '%' || $1 || '%')
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		query, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active products: %w", err)
	}
	return scanStoreProducts(rows)
}

// FindProduct は店舗商品を取得する。見つからない場合はnilを返す。
func (r *PostgresStoreRepo) FindProduct(ctx context.Context, id string) (*model.StoreProduct, error) {
	p := &model.StoreProduct{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+storeProductColumns+` FROM store_products WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Category, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find store product: %w", err)
	}
	return p, nil
}

// CreateProduct は店舗商品を作成する。
func (r *PostgresStoreRepo) CreateProduct(ctx context.Context, p *model.StoreProduct) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO store_products (`+storeProductColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.StoreID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create store product: %w", err)
	}
	return nil
}

// UpdateProduct は店舗商品を更新する。店舗IDが一致しない場合もErrNotFoundとなる。
func (r *PostgresStoreRepo) UpdateProduct(ctx context.Context, p *model.StoreProduct) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE store_products
		 SET name = $3, description = $4, price = $5, stock = $6, category = $7, active = $8, updated_at = $9
		 WHERE id = $1 AND store_id = $2`,
		p.ID, p.StoreID, p.Name, p.Description, p.Price, p.Stock, p.Category, p.Active, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update store product: %w", err)
	}
	return expectOneRow(result)
}

// CountProducts は店舗の商品数を返す。
func (r *PostgresStoreRepo) CountProducts(ctx context.Context, storeID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM store_products WHERE store_id = $1`,
		storeID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count store products: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ StoreRepository = (*PostgresStoreRepo)(nil)
