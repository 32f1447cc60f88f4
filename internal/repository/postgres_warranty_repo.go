package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/binaahub/binna/internal/model"
)

// PostgresWarrantyRepo はPostgreSQLを使用した保証リポジトリ。
type PostgresWarrantyRepo struct {
	db *sql.DB
}

// NewPostgresWarrantyRepo はPostgresWarrantyRepoを生成する。
func NewPostgresWarrantyRepo(db *sql.DB) *PostgresWarrantyRepo {
	return &PostgresWarrantyRepo{db: db}
}

const warrantyColumns = `id, user_id, COALESCE(order_id::text, ''), product_name, serial_number, provider, start_date, end_date, created_at`

func scanWarranty(row interface{ Scan(...any) error }) (*model.Warranty, error) {
	w := &model.Warranty{}
	if err := row.Scan(&w.ID, &w.UserID, &w.OrderID, &w.ProductName, &w.SerialNumber, &w.Provider, &w.StartDate, &w.EndDate, &w.CreatedAt); err != nil {
		return nil, err
	}
	return w, nil
}

// Create は保証を作成する。
func (r *PostgresWarrantyRepo) Create(ctx context.Context, w *model.Warranty) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO warranties (id, user_id, order_id, product_name, serial_number, provider, start_date, end_date, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		w.ID, w.UserID, nullableUUID(w.OrderID), w.ProductName, w.SerialNumber, w.Provider, w.StartDate, w.EndDate, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create warranty: %w", err)
	}
	return nil
}

// FindByID は保証を取得する。見つからない場合はnilを返す。
func (r *PostgresWarrantyRepo) FindByID(ctx context.Context, id string) (*model.Warranty, error) {
	w, err := scanWarranty(r.db.QueryRowContext(ctx,
		`SELECT `+warrantyColumns+` FROM warranties WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find warranty: %w", err)
	}
	return w, nil
}

// ListByUser は利用者の保証を終了日の近い順に返す。
func (r *PostgresWarrantyRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Warranty, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+warrantyColumns+` FROM warranties WHERE user_id = $1 ORDER BY end_date ASC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list warranties: %w", err)
	}
	defer rows.Close()

	var list []*model.Warranty
	for rows.Next() {
		w, err := scanWarranty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan warranty: %w", err)
		}
		list = append(list, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate warranties: %w", err)
	}
	return list, nil
}

// compile-time interface check
var _ WarrantyRepository = (*PostgresWarrantyRepo)(nil)
