package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/binaahub/binna/internal/model"
	"github.com/binaahub/binna/internal/project"
	"github.com/binaahub/binna/internal/warranty"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	List(ctx context.Context, id model.Identity, limit, offset int) ([]*model.Project, error)
	Create(ctx context.Context, ownerID string, in project.CreateInput) (*model.Project, error)
	Get(ctx context.Context, userID, projectID string) (*model.Project, error)
	Update(ctx context.Context, userID, projectID string, patch project.Patch) (*model.Project, error)
}

// WarrantyServiceInterface は保証ハンドラーが必要とするサービスインターフェース。
type WarrantyServiceInterface interface {
	List(ctx context.Context, userID string, limit, offset int) ([]warranty.View, error)
	Get(ctx context.Context, userID, warrantyID string) (*warranty.View, error)
	Create(ctx context.Context, userID string, in warranty.CreateInput) (*warranty.View, error)
}

// ProjectHandler は建設プロジェクトと保証のHTTPハンドラー。
type ProjectHandler struct {
	projects   ProjectServiceInterface
	warranties WarrantyServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(projects ProjectServiceInterface, warranties WarrantyServiceInterface) *ProjectHandler {
	return &ProjectHandler{projects: projects, warranties: warranties}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Budget      int64  `json:"budget"`
	AssigneeID  string `json:"assignee_id"`
}

type projectPatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Budget      *int64  `json:"budget"`
	Status      *string `json:"status"`
	AssigneeID  *string `json:"assignee_id"`
}

type projectResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Budget      int64     `json:"budget"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type createWarrantyRequest struct {
	OrderID      string `json:"order_id"`
	ProductName  string `json:"product_name"`
	SerialNumber string `json:"serial_number"`
	Provider     string `json:"provider"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
}

type warrantyResponse struct {
	ID            string `json:"id"`
	OrderID       string `json:"order_id,omitempty"`
	ProductName   string `json:"product_name"`
	SerialNumber  string `json:"serial_number,omitempty"`
	Provider      string `json:"provider,omitempty"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	Status        string `json:"status"`
	DaysRemaining int    `json:"days_remaining"`
}

func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		AssigneeID:  p.AssigneeID,
		Name:        p.Name,
		Description: p.Description,
		Location:    p.Location,
		Budget:      p.Budget,
		Status:      string(p.Status),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toProjectResponses(projects []*model.Project) []projectResponse {
	out := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProjectResponse(p))
	}
	return out
}

func toWarrantyResponse(v warranty.View) warrantyResponse {
	return warrantyResponse{
		ID:            v.ID,
		OrderID:       v.OrderID,
		ProductName:   v.ProductName,
		SerialNumber:  v.SerialNumber,
		Provider:      v.Provider,
		StartDate:     v.StartDate.Format(time.DateOnly),
		EndDate:       v.EndDate.Format(time.DateOnly),
		Status:        string(v.Status),
		DaysRemaining: v.DaysRemaining,
	}
}

// ListProjects はプロジェクト一覧を返す。担当者の場合は担当プロジェクトを返す。
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	projects, err := h.projects.List(ctx, id, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": toProjectResponses(projects), "limit": limit, "offset": offset})
}

// CreateProject はプロジェクトを作成する。
// POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	p, err := h.projects.Create(ctx, id.UserID, project.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Budget:      req.Budget,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

// GetProject はプロジェクト詳細を返す。
// GET /api/projects/{id}
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	p, err := h.projects.Get(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// UpdateProject はプロジェクトを部分更新する。
// PATCH /api/projects/{id}
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req projectPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch := project.Patch{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Budget:      req.Budget,
		AssigneeID:  req.AssigneeID,
	}
	if req.Status != nil {
		status := model.ProjectStatus(*req.Status)
		patch.Status = &status
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	p, err := h.projects.Update(ctx, id.UserID, chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// ListWarranties は保証一覧を終了日の近い順に返す。
// GET /api/warranties
func (h *ProjectHandler) ListWarranties(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	ctx, cancel := withTimeout(r)
	defer cancel()

	views, err := h.warranties.List(ctx, id.UserID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	out := make([]warrantyResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toWarrantyResponse(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"warranties": out, "limit": limit, "offset": offset})
}

// CreateWarranty は保証を登録する。
// POST /api/warranties
func (h *ProjectHandler) CreateWarranty(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	var req createWarrantyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	v, err := h.warranties.Create(ctx, id.UserID, warranty.CreateInput{
		OrderID:      req.OrderID,
		ProductName:  req.ProductName,
		SerialNumber: req.SerialNumber,
		Provider:     req.Provider,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWarrantyResponse(*v))
}

// GetWarranty は保証詳細を返す。
// GET /api/warranties/{id}
func (h *ProjectHandler) GetWarranty(w http.ResponseWriter, r *http.Request) {
	id, ok := verifiedIdentity(w, r)
	if !ok {
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	v, err := h.warranties.Get(ctx, id.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWarrantyResponse(*v))
}
