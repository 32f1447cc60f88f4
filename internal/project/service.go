// Package project は建設プロジェクトの管理ロジックを提供する。
package project

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/repository"
)

// Sanitizer は説明文と名称の利用者入力を無害化する。
type Sanitizer interface {
	Sanitize(rawHTML string) string
	PlainText(raw string) string
}

// CreateInput はプロジェクト作成の入力値。
type CreateInput struct {
	Name        string
	Description string
	Location    string
	Budget      int64
	AssigneeID  string
}

// Patch はプロジェクト更新の入力値。nilのフィールドは変更しない。
type Patch struct {
	Name        *string
	Description *string
	Location    *string
	Budget      *int64
	Status      *model.ProjectStatus
	AssigneeID  *string
}

// Service はプロジェクトのサービス層。
type Service struct {
	projects  repository.ProjectRepository
	users     repository.UserRepository
	sanitizer Sanitizer
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(projects repository.ProjectRepository, users repository.UserRepository, sanitizer Sanitizer) *Service {
	return &Service{projects: projects, users: users, sanitizer: sanitizer, now: time.Now}
}

// List は利用者が所有するプロジェクトを返す。エンジニア・コンサルタントは担当プロジェクトを返す。
func (s *Service) List(ctx context.Context, id model.Identity, limit, offset int) ([]*model.Project, error) {
	var (
		projects []*model.Project
		err      error
	)
	switch id.AccountType {
	case model.AccountTypeEngineer, model.AccountTypeConsultant:
		projects, err = s.projects.ListByAssignee(ctx, id.UserID, limit, offset)
	default:
		projects, err = s.projects.ListByOwner(ctx, id.UserID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("プロジェクト一覧の取得に失敗しました: %w", err)
	}
	return projects, nil
}

// Create はプロジェクトを作成する。状態はplanningから始まる。
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*model.Project, error) {
	now := s.now()
	p := &model.Project{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        s.sanitizer.PlainText(in.Name),
		Description: s.sanitizer.Sanitize(in.Description),
		Location:    s.sanitizer.PlainText(in.Location),
		Budget:      in.Budget,
		Status:      model.ProjectStatusPlanning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.AssigneeID != "" {
		if err := s.checkAssignee(ctx, in.AssigneeID); err != nil {
			return nil, err
		}
		p.AssigneeID = in.AssigneeID
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("プロジェクトの作成に失敗しました: %w", err)
	}
	return p, nil
}

// Get はオーナーまたは担当者にのみプロジェクトを返す。
func (s *Service) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, model.NewProjectNotFoundError()
	}
	p, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("プロジェクトの取得に失敗しました: %w", err)
	}
	if p == nil || (p.OwnerID != userID && p.AssigneeID != userID) {
		return nil, model.NewProjectNotFoundError()
	}
	return p, nil
}

// Update はプロジェクトを更新する。オーナーは全項目、担当者は状態のみ変更できる。
func (s *Service) Update(ctx context.Context, userID, projectID string, patch Patch) (*model.Project, error) {
	p, err := s.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if p.OwnerID != userID {
		if patch.Name != nil || patch.Description != nil || patch.Location != nil || patch.Budget != nil || patch.AssigneeID != nil {
			return nil, model.NewForbiddenError()
		}
	}

	if patch.Name != nil {
		p.Name = s.sanitizer.PlainText(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = s.sanitizer.Sanitize(*patch.Description)
	}
	if patch.Location != nil {
		p.Location = s.sanitizer.PlainText(*patch.Location)
	}
	if patch.Budget != nil {
		p.Budget = *patch.Budget
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.AssigneeID != nil {
		if *patch.AssigneeID != "" {
			if err := s.checkAssignee(ctx, *patch.AssigneeID); err != nil {
				return nil, err
			}
		}
		p.AssigneeID = *patch.AssigneeID
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now()

	if err := s.projects.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewProjectNotFoundError()
		}
		return nil, fmt.Errorf("プロジェクトの更新に失敗しました: %w", err)
	}
	return p, nil
}

// checkAssignee は担当者がエンジニアまたはコンサルタントであることを確認する。
func (s *Service) checkAssignee(ctx context.Context, assigneeID string) error {
	if _, err := uuid.Parse(assigneeID); err != nil {
		return model.NewValidationError("assignee_id", "معرّف غير صالح")
	}
	u, err := s.users.FindByID(ctx, assigneeID)
	if err != nil {
		return fmt.Errorf("担当者の取得に失敗しました: %w", err)
	}
	if u == nil || (u.AccountType != model.AccountTypeEngineer && u.AccountType != model.AccountTypeConsultant) {
		return model.NewValidationError("assignee_id", "يجب أن يكون مهندساً أو مستشاراً")
	}
	return nil
}

func validate(p *model.Project) error {
	switch {
	case p.Name == "" || utf8.RuneCountInString(p.Name) > 255:
		return model.NewValidationError("name", "اسم المشروع مطلوب")
	case p.Budget < 0:
		return model.NewValidationError("budget", "لا يمكن أن تكون الميزانية سالبة")
	case !p.Status.Valid():
		return model.NewValidationError("status", "حالة غير معروفة")
	}
	return nil
}
