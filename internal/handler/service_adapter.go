package handler

import (
	"github.com/binaahub/binna/internal/auth"
	"github.com/binaahub/binna/internal/catalog"
	"github.com/binaahub/binna/internal/dashboard"
	"github.com/binaahub/binna/internal/erp"
	"github.com/binaahub/binna/internal/identity"
	"github.com/binaahub/binna/internal/metrics"
	"github.com/binaahub/binna/internal/notify"
	"github.com/binaahub/binna/internal/order"
	"github.com/binaahub/binna/internal/payment"
	"github.com/binaahub/binna/internal/project"
	"github.com/binaahub/binna/internal/store"
	"github.com/binaahub/binna/internal/warranty"
)

// ドメインサービスはハンドラーのインターフェースをそのまま満たすため、アダプタを挟まない。
// レスポンス型への変換は各ハンドラーのto*Response関数が担う。

// --- compile-time interface checks ---

var (
	_ AuthServiceInterface         = (*auth.Service)(nil)
	_ OrderServiceInterface        = (*order.Service)(nil)
	_ StoreServiceInterface        = (*store.Service)(nil)
	_ ProjectServiceInterface      = (*project.Service)(nil)
	_ WarrantyServiceInterface     = (*warranty.Service)(nil)
	_ ERPServiceInterface          = (*erp.Service)(nil)
	_ PaymentServiceInterface      = (*payment.Service)(nil)
	_ CatalogServiceInterface      = (*catalog.Service)(nil)
	_ DashboardServiceInterface    = (*dashboard.Service)(nil)
	_ NotificationServiceInterface = (*notify.Service)(nil)

	_ Observer         = (*metrics.Collector)(nil)
	_ ProfileForgetter = (*identity.Resolver)(nil)
)
