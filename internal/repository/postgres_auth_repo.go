package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/binaahub/binna/internal/model"
)

// PostgresAuthUserRepo はPostgreSQLを使用した認証情報ストア。
type PostgresAuthUserRepo struct {
	db *sql.DB
}

// NewPostgresAuthUserRepo はPostgresAuthUserRepoを生成する。
func NewPostgresAuthUserRepo(db *sql.DB) *PostgresAuthUserRepo {
	return &PostgresAuthUserRepo{db: db}
}

const authUserColumns = `id, email, COALESCE(password_hash, ''), email_confirmed_at, provider, COALESCE(provider_user_id, ''), created_at`

func scanAuthUser(row interface{ Scan(...any) error }) (*model.AuthUser, error) {
	u := &model.AuthUser{}
	var confirmed sql.NullTime
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &confirmed, &u.Provider, &u.ProviderUserID, &u.CreatedAt); err != nil {
		return nil, err
	}
	if confirmed.Valid {
		t := confirmed.Time
		u.EmailConfirmedAt = &t
	}
	return u, nil
}

// FindByEmail はメールアドレスで認証ユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresAuthUserRepo) FindByEmail(ctx context.Context, email string) (*model.AuthUser, error) {
	u, err := scanAuthUser(r.db.QueryRowContext(ctx,
		`SELECT `+authUserColumns+` FROM auth_users WHERE email = $1`,
		email,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auth user by email: %w", err)
	}
	return u, nil
}

// FindByProvider は外部IdPの識別子で認証ユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresAuthUserRepo) FindByProvider(ctx context.Context, provider, providerUserID string) (*model.AuthUser, error) {
	u, err := scanAuthUser(r.db.QueryRowContext(ctx,
		`SELECT `+authUserColumns+` FROM auth_users WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find auth user by provider: %w", err)
	}
	return u, nil
}

// CreateAccount は認証ユーザーとプロフィールを同一トランザクションで作成する。
func (r *PostgresAuthUserRepo) CreateAccount(ctx context.Context, authUser *model.AuthUser, profile *model.User) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		var hash, providerUserID sql.NullString
		if authUser.PasswordHash != "" {
			hash = sql.NullString{String: authUser.PasswordHash, Valid: true}
		}
		if authUser.ProviderUserID != "" {
			providerUserID = sql.NullString{String: authUser.ProviderUserID, Valid: true}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO auth_users (id, email, password_hash, email_confirmed_at, provider, provider_user_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			authUser.ID, authUser.Email, hash, authUser.EmailConfirmedAt, authUser.Provider, providerUserID, authUser.CreatedAt,
		)
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		if err != nil {
			return fmt.Errorf("failed to insert auth user: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, email, account_type, name, phone, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			profile.ID, profile.Email, string(profile.AccountType), profile.Name, profile.Phone, profile.CreatedAt, profile.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user profile: %w", err)
		}
		return nil
	})
}

// LinkProvider は既存の認証ユーザーに外部IdPの識別子を紐付け、メールアドレスを確認済みにする。
func (r *PostgresAuthUserRepo) LinkProvider(ctx context.Context, id, provider, providerUserID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE auth_users
		 SET provider = $2, provider_user_id = $3, email_confirmed_at = COALESCE(email_confirmed_at, now())
		 WHERE id = $1`,
		id, provider, providerUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to link provider: %w", err)
	}
	return expectOneRow(result)
}

// compile-time interface check
var _ AuthUserRepository = (*PostgresAuthUserRepo)(nil)
