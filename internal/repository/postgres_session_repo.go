package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/binaahub/binna/internal/model"
)

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションを作成する。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, refresh_token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.RefreshTokenHash, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *PostgresSessionRepo) findOne(ctx context.Context, where string, arg any) (*model.Session, error) {
	session := &model.Session{}
	var revoked sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, refresh_token_hash, expires_at, created_at, revoked_at
		 FROM sessions WHERE `+where,
		arg,
	).Scan(&session.ID, &session.UserID, &session.RefreshTokenHash, &session.ExpiresAt, &session.CreatedAt, &revoked)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if revoked.Valid {
		t := revoked.Time
		session.RevokedAt = &t
	}
	return session, nil
}

// FindByID は指定IDのセッションを取得する。見つからない場合はnilを返す。
func (r *PostgresSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindByRefreshTokenHash はリフレッシュトークンのハッシュでセッションを取得する。
func (r *PostgresSessionRepo) FindByRefreshTokenHash(ctx context.Context, hash string) (*model.Session, error) {
	return r.findOne(ctx, "refresh_token_hash = $1", hash)
}

// RotateRefreshToken はリフレッシュトークンを差し替え、有効期限を延長する。
// 古いハッシュとの比較を条件に含めるため、同じトークンでの同時リフレッシュは1件だけが成功する。
func (r *PostgresSessionRepo) RotateRefreshToken(ctx context.Context, id, oldHash, newHash string, expiresAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sessions
		 SET refresh_token_hash = $3, expires_at = $4
		 WHERE id = $1 AND refresh_token_hash = $2 AND revoked_at IS NULL AND expires_at > now()`,
		id, oldHash, newHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return expectOneRow(result)
}

// Revoke はセッションを失効させる。既に失効済みの場合も成功とする。
func (r *PostgresSessionRepo) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, now()) WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
