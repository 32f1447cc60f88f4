package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/binaahub/binna/internal/model"
)

// PostgresInvoiceRepo はPostgreSQLを使用した請求書リポジトリ。
type PostgresInvoiceRepo struct {
	db *sql.DB
}

// NewPostgresInvoiceRepo はPostgresInvoiceRepoを生成する。
func NewPostgresInvoiceRepo(db *sql.DB) *PostgresInvoiceRepo {
	return &PostgresInvoiceRepo{db: db}
}

const invoiceColumns = `id, store_id, COALESCE(order_id::text, ''), user_id, amount, currency, status,
	gateway_invoice_id, gateway_payment_id, paid_at, created_at, updated_at`

func scanInvoice(row interface{ Scan(...any) error }) (*model.Invoice, error) {
	inv := &model.Invoice{}
	var status string
	var paidAt sql.NullTime
	if err := row.Scan(&inv.ID, &inv.StoreID, &inv.OrderID, &inv.UserID, &inv.Amount, &inv.Currency, &status,
		&inv.GatewayInvoiceID, &inv.GatewayPaymentID, &paidAt, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	inv.Status = model.InvoiceStatus(status)
	if paidAt.Valid {
		t := paidAt.Time
		inv.PaidAt = &t
	}
	return inv, nil
}

// Create は請求書を作成する。
func (r *PostgresInvoiceRepo) Create(ctx context.Context, inv *model.Invoice) error {
	var orderID sql.NullString
	if inv.OrderID != "" {
		orderID = sql.NullString{String: inv.OrderID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO invoices (id, store_id, order_id, user_id, amount, currency, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inv.ID, inv.StoreID, orderID, inv.UserID, inv.Amount, inv.Currency, string(inv.Status), inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// FindByID は請求書を取得する。見つからない場合はnilを返す。
func (r *PostgresInvoiceRepo) FindByID(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	return inv, nil
}

// ListByStore は店舗の請求書を新しい順に返す。
func (r *PostgresInvoiceRepo) ListByStore(ctx context.Context, storeID string, limit, offset int) ([]*model.Invoice, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE store_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		storeID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	return invoices, nil
}

// CountUnpaidByStore は店舗の未払い請求書の件数を返す。
func (r *PostgresInvoiceRepo) CountUnpaidByStore(ctx context.Context, storeID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM invoices WHERE store_id = $1 AND status <> 'paid'`,
		storeID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count unpaid invoices: %w", err)
	}
	return n, nil
}

// ListAwaitingPayment は支払リンク発行済みでpendingのまま残っている請求書を返す。
func (r *PostgresInvoiceRepo) ListAwaitingPayment(ctx context.Context, before time.Time, limit int) ([]*model.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+`
		 FROM invoices
		 WHERE status = 'pending' AND gateway_invoice_id <> '' AND updated_at < $1
		 ORDER BY updated_at
		 LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list awaiting invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*model.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	return invoices, nil
}

// ApplyPaymentResult は決済結果を請求書に反映し、通知を同一トランザクションで作成する。
// 行ロックを取ってから状態を確認するため、同じ請求書への同時コールバックでも支払済みは1回だけ記録される。
func (r *PostgresInvoiceRepo) ApplyPaymentResult(ctx context.Context, id string, result PaymentResult, notification *model.Notification) (bool, error) {
	changed := false
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM invoices WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock invoice: %w", err)
		}

		if model.InvoiceStatus(current) == model.InvoiceStatusPaid || model.InvoiceStatus(current) == result.Status {
			return nil
		}

		var paidAt sql.NullTime
		if result.Status == model.InvoiceStatusPaid {
			paidAt = sql.NullTime{Time: result.At, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE invoices
			 SET status = $2, gateway_invoice_id = $3, gateway_payment_id = $4, paid_at = $5, updated_at = $6
			 WHERE id = $1`,
			id, string(result.Status), result.GatewayInvoiceID, result.GatewayPaymentID, paidAt, result.At,
		)
		if err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		if notification != nil {
			if err := insertNotification(ctx, tx, notification); err != nil {
				return err
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// compile-time interface check
var _ InvoiceRepository = (*PostgresInvoiceRepo)(nil)
