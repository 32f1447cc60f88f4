package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/binaahub/binna/internal/model"
)

// PostgresOrderRepo はPostgreSQLを使用した注文リポジトリ。
type PostgresOrderRepo struct {
	db *sql.DB
}

// NewPostgresOrderRepo はPostgresOrderRepoを生成する。
func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo {
	return &PostgresOrderRepo{db: db}
}

// CreateWithItems は注文ヘッダと全明細を同一トランザクションで作成する。
func (r *PostgresOrderRepo) CreateWithItems(ctx context.Context, order *model.Order) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, user_id, store_id, status, total_amount, currency, shipping_address, notes, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			order.ID, order.UserID, order.StoreID, string(order.Status), order.TotalAmount, order.Currency,
			order.ShippingAddress, order.Notes, order.CreatedAt, order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
		)
		if err != nil {
			return fmt.Errorf("failed to prepare order item insert: %w", err)
		}
		defer stmt.Close()

		for i, item := range order.Items {
			if _, err := stmt.ExecContext(ctx, item.ID, order.ID, item.ProductID, item.Name, item.Quantity, item.UnitPrice); err != nil {
				return fmt.Errorf("failed to insert order item %d: %w", i, err)
			}
		}
		return nil
	})
}

const orderColumns = `id, user_id, store_id, status, total_amount, currency, shipping_address, notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	o := &model.Order{}
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &o.StoreID, &status, &o.TotalAmount, &o.Currency,
		&o.ShippingAddress, &o.Notes, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return o, nil
}

// FindByID は明細付きで注文を取得する。見つからない場合はnilを返す。
func (r *PostgresOrderRepo) FindByID(ctx context.Context, id string) (*model.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, order_id, product_id, name, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY name`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return o, nil
}

func (r *PostgresOrderRepo) list(ctx context.Context, column, id string, limit, offset int) ([]*model.Order, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE `+column+` = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		id, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// ListByUser は利用者の注文を新しい順に返す。
func (r *PostgresOrderRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*model.Order, error) {
	return r.list(ctx, "user_id", userID, limit, offset)
}

// ListByStore は店舗宛ての注文を新しい順に返す。
func (r *PostgresOrderRepo) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]*model.Order, error) {
	return r.list(ctx, "store_id", storeID, limit, offset)
}

// UpdateStatus は店舗の注文状態を更新する。
func (r *PostgresOrderRepo) UpdateStatus(ctx context.Context, id, storeID string, status model.OrderStatus) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND store_id = $2`,
		id, storeID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return expectOneRow(result)
}

// CountByUser は利用者の注文数を返す。
func (r *PostgresOrderRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count user orders: %w", err)
	}
	return n, nil
}

// CountAll は全注文数を返す。
func (r *PostgresOrderRepo) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

// SalesReport は店舗の日別売上を返す。キャンセルされた注文は含めない。
func (r *PostgresOrderRepo) SalesReport(ctx context.Context, storeID string, from, to time.Time) ([]model.SalesReportRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date_trunc('day', o.created_at) AS day,
		        count(*),
		        COALESCE(sum(o.total_amount), 0),
		        COALESCE(sum(p.paid), 0)
		 FROM orders o
		 LEFT JOIN (
		     SELECT order_id, sum(amount) AS paid FROM invoices WHERE status = 'paid' GROUP BY order_id
		 ) p ON p.order_id = o.id
		 WHERE o.store_id = $1 AND o.status <> 'cancelled' AND o.created_at >= $2 AND o.created_at < $3
		 GROUP BY day
		 ORDER BY day`,
		storeID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales report: %w", err)
	}
	defer rows.Close()

	var report []model.SalesReportRow
	for rows.Next() {
		var row model.SalesReportRow
		if err := rows.Scan(&row.Day, &row.OrderCount, &row.GrossAmount, &row.PaidAmount); err != nil {
			return nil, fmt.Errorf("failed to scan sales report row: %w", err)
		}
		report = append(report, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sales report: %w", err)
	}
	return report, nil
}

// compile-time interface check
var _ OrderRepository = (*PostgresOrderRepo)(nil)
