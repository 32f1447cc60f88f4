package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/binaahub/binna/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var accountType string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, account_type, name, phone, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &accountType, &user.Name, &user.Phone, &user.CreatedAt, &user.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.AccountType = model.AccountType(accountType)
	return user, nil
}

// CountByAccountType はアカウント種別ごとのユーザー数を返す。
func (r *PostgresUserRepo) CountByAccountType(ctx context.Context) (map[model.AccountType]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT account_type, count(*) FROM users GROUP BY account_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.AccountType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("failed to scan user count: %w", err)
		}
		counts[model.AccountType(t)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user counts: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
