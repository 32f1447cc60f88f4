package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/binaahub/binna/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

const projectColumns = `id, owner_id, COALESCE(assignee_id::text, ''), name, description, location, budget, status, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	p := &model.Project{}
	var status string
	if err := row.Scan(&p.ID, &p.OwnerID, &p.AssigneeID, &p.Name, &p.Description, &p.Location, &p.Budget, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = model.ProjectStatus(status)
	return p, nil
}

func nullableUUID(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Create はプロジェクトを作成する。
func (r *PostgresProjectRepo) Create(ctx context.Context, p *model.Project) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO projects (id, owner_id, assignee_id, name, description, location, budget, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.OwnerID, nullableUUID(p.AssigneeID), p.Name, p.Description, p.Location, p.Budget, string(p.Status), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

// FindByID はプロジェクトを取得する。見つからない場合はnilを返す。
func (r *PostgresProjectRepo) FindByID(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`,
		id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return p, nil
}

func (r *PostgresProjectRepo) list(ctx context.Context, column, id string, limit, offset int) ([]*model.Project, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE `+column+` = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		id, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return projects, nil
}

// ListByOwner はオーナーのプロジェクトを新しい順に返す。
func (r *PostgresProjectRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*model.Project, error) {
	return r.list(ctx, "owner_id", ownerID, limit, offset)
}

// ListByAssignee は担当者のプロジェクトを新しい順に返す。
func (r *PostgresProjectRepo) ListByAssignee(ctx context.Context, assigneeID string, limit, offset int) ([]*model.Project, error) {
	return r.list(ctx, "assignee_id", assigneeID, limit, offset)
}

// Update はプロジェクトを更新する。
func (r *PostgresProjectRepo) Update(ctx context.Context, p *model.Project) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE projects
		 SET assignee_id = $3, name = $4, description = $5, location = $6, budget = $7, status = $8, updated_at = $9
		 WHERE id = $1 AND owner_id = $2`,
		p.ID, p.OwnerID, nullableUUID(p.AssigneeID), p.Name, p.Description, p.Location, p.Budget, string(p.Status), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return expectOneRow(result)
}

// CountAll は全プロジェクト数を返す。
func (r *PostgresProjectRepo) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM projects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
