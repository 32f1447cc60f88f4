package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/binaahub/binna/internal/dashboard"
	"github.com/binaahub/binna/internal/middleware"
	"github.com/binaahub/binna/internal/model"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	User(ctx context.Context, id model.Identity) (*dashboard.UserDashboard, error)
	Store(ctx context.Context, ownerID string) (*dashboard.StoreDashboard, error)
	Professional(ctx context.Context, id model.Identity) (*dashboard.ProfessionalDashboard, error)
	Admin(ctx context.Context) (*dashboard.AdminDashboard, error)
}

// DashboardHandler はRouteGuard配下のダッシュボード画面のデータを返す。
// フォールバックCookieのみの主体には識別情報の枠だけを返し、データは読まない。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

type identityResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
}

func toIdentityResponse(id model.Identity) identityResponse {
	return identityResponse{
		UserID:      id.UserID,
		Email:       id.Email,
		Name:        id.Name,
		AccountType: string(id.AccountType),
	}
}

// weakShell は本人確認前の画面用レスポンスを書き込む。
// クライアントはverified=falseを見てestablish-sessionを試みる。
func weakShell(w http.ResponseWriter, id model.Identity) {
	writeJSON(w, http.StatusOK, map[string]any{
		"verified": false,
		"identity": toIdentityResponse(id),
	})
}

// User は一般ユーザーのダッシュボードを返す。
// GET /user/dashboard
func (h *DashboardHandler) User(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())

	ctx, cancel := withTimeout(r)
	defer cancel()

	d, err := h.service.User(ctx, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !d.Verified {
		weakShell(w, id)
		return
	}

	warranties := make([]map[string]any, 0, len(d.Warranties))
	for _, wv := range d.Warranties {
		warranties = append(warranties, map[string]any{
			"id":           wv.ID,
			"product_name": wv.ProductName,
			"end_date":     wv.EndDate.Format(time.DateOnly),
			"status":       string(wv.Status),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verified":       true,
		"identity":       toIdentityResponse(id),
		"order_count":    d.OrderCount,
		"recent_orders":  toOrderResponses(d.RecentOrders),
		"projects":       toProjectResponses(d.Projects),
		"warranties":     warranties,
		"expiring_count": d.ExpiringCount,
	})
}

// Store は出店者のダッシュボードを返す。
// GET /store/dashboard
func (h *DashboardHandler) Store(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if !id.Verified() {
		weakShell(w, id)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	d, err := h.service.Store(ctx, id.UserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	body := map[string]any{
		"verified":        true,
		"identity":        toIdentityResponse(id),
		"store":           nil,
		"product_count":   d.ProductCount,
		"recent_orders":   toOrderResponses(d.RecentOrders),
		"unpaid_invoices": d.UnpaidInvoices,
	}
	if d.Store != nil {
		body["store"] = toStoreResponse(d.Store)
	}
	writeJSON(w, http.StatusOK, body)
}

// Professional はエンジニア・コンサルタントのダッシュボードを返す。
// GET /engineer/dashboard, GET /consultant/dashboard
func (h *DashboardHandler) Professional(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if !id.Verified() {
		weakShell(w, id)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	d, err := h.service.Professional(ctx, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verified":          true,
		"identity":          toIdentityResponse(id),
		"assigned_projects": toProjectResponses(d.AssignedProjects),
		"in_progress":       d.InProgress,
	})
}

// Admin はプラットフォーム全体の集計を返す。
// GET /admin/dashboard
func (h *DashboardHandler) Admin(w http.ResponseWriter, r *http.Request) {
	id := middleware.IdentityFromContext(r.Context())
	if !id.Verified() {
		weakShell(w, id)
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()

	d, err := h.service.Admin(ctx)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	byType := make(map[string]int, len(d.UsersByAccountType))
	for t, n := range d.UsersByAccountType {
		byType[string(t)] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verified":       true,
		"identity":       toIdentityResponse(id),
		"users_by_type":  byType,
		"total_users":    d.TotalUsers,
		"total_orders":   d.TotalOrders,
		"total_projects": d.TotalProjects,
	})
}
