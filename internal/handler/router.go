package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/binaahub/binna/internal/middleware"
	"github.com/binaahub/binna/internal/model"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// Observer はHTTP層が記録するメトリクスの集合。*metrics.Collectorが満たす。
type Observer interface {
	middleware.StatusObserver
	middleware.GuardObserver
	LoginObserver
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Resolver          middleware.IdentityResolver
	Observer          Observer
	CORSAllowedOrigin string
	HSTS              bool
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	HealthChecker     HealthChecker
	MetricsHandler    http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
	Profiles    ProfileForgetter

	// 機能
	OrderService        OrderServiceInterface
	StoreService        StoreServiceInterface
	ProjectService      ProjectServiceInterface
	WarrantyService     WarrantyServiceInterface
	ERPService          ERPServiceInterface
	PaymentService      PaymentServiceInterface
	CatalogService      CatalogServiceInterface
	DashboardService    DashboardServiceInterface
	NotificationService NotificationServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// 全ルート共通のミドルウェアの実行順序:
//
//	RealIP → Recovery → Identity → Logging → SecurityHeaders → CORS
//
// /api 配下はCSRFとレート制限を通り、データを読み書きするルートはさらにRequireVerifiedを通る。
// 画面ルート（/user, /store, /engineer, /consultant, /admin）はRouteGuardを通る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewIdentityMiddleware(deps.Resolver))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Observer))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, deps.Observer, deps.Profiles)
	orderHandler := NewOrderHandler(deps.OrderService)
	storeHandler := NewStoreHandler(deps.StoreService)
	projectHandler := NewProjectHandler(deps.ProjectService, deps.WarrantyService)
	erpHandler := NewERPHandler(deps.ERPService)
	paymentHandler := NewPaymentHandler(deps.PaymentService)
	catalogHandler := NewCatalogHandler(deps.CatalogService)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)
	notificationHandler := NewNotificationHandler(deps.NotificationService)

	// --- 運用エンドポイント ---
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// 認証（公開）
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.LoginMiddleware())
				r.Post("/login", authHandler.Login)
				r.Post("/login-db", authHandler.LoginDB)
				r.Post("/signup", authHandler.Signup)
			})
			r.Get("/establish-session", authHandler.EstablishSession)
			r.Post("/establish-session", authHandler.EstablishSession)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Get("/google/login", authHandler.GoogleLogin)
			r.Get("/google/callback", authHandler.GoogleCallback)
		})

		// 決済ゲートウェイからのコールバック（公開。状態はゲートウェイへの照会か署名で確認する）
		r.Get("/fatoorah/callback", paymentHandler.Redirect)
		r.Post("/fatoorah/callback", paymentHandler.Webhook)

		// マーケットプレイス（公開）
		r.Get("/marketplace/products", storeHandler.Marketplace)

		// --- 検証済みの主体のみ ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireVerified())

			r.Get("/notifications", notificationHandler.List)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orderHandler.List)
				r.Post("/create", orderHandler.Create)
				r.Get("/{id}", orderHandler.Get)
			})
			r.Post("/invoices/{id}/pay", paymentHandler.Pay)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.ListProjects)
				r.Post("/", projectHandler.CreateProject)
				r.Get("/{id}", projectHandler.GetProject)
				r.Patch("/{id}", projectHandler.UpdateProject)
			})
			r.Route("/warranties", func(r chi.Router) {
				r.Get("/", projectHandler.ListWarranties)
				r.Post("/", projectHandler.CreateWarranty)
				r.Get("/{id}", projectHandler.GetWarranty)
			})

			r.Get("/cart", catalogHandler.GetCart)
			r.Post("/cart/items", catalogHandler.AddCartItem)

			// 出店者
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAccountType(model.AccountTypeStore))

				r.Get("/store", storeHandler.GetStore)
				r.Post("/store", storeHandler.CreateStore)
				r.Get("/store/products", storeHandler.ListProducts)
				r.Post("/store/products", storeHandler.CreateProduct)
				r.Patch("/store/products/{id}", storeHandler.UpdateProduct)
				r.Get("/store/orders", orderHandler.ListForStore)
				r.Patch("/store/orders/{id}/status", orderHandler.UpdateStatus)

				r.Route("/erp", func(r chi.Router) {
					r.Get("/invoices", erpHandler.ListInvoices)
					r.Post("/invoices", erpHandler.CreateInvoice)
					r.Get("/invoices/{id}", erpHandler.GetInvoice)
					r.Get("/reports/sales", erpHandler.SalesReport)
					r.Get("/reports/inventory", erpHandler.InventoryReport)
				})
			})

			// 管理者（Medusaテーブル）
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAccountType(model.AccountTypeAdmin))

				r.Get("/products", catalogHandler.ListProducts)
				r.Post("/products", catalogHandler.CreateProduct)
				r.Patch("/products/{id}", catalogHandler.UpdateProduct)
				r.Get("/customers", catalogHandler.ListCustomers)
				r.Post("/customers", catalogHandler.CreateCustomer)
				r.Patch("/customers/{id}", catalogHandler.UpdateCustomer)
			})
		})
	})

	// --- 画面ルート ---
	// プレフィックスごとにサブルーターを作り、未定義のパスでもガードを通してから404にする。
	guard := middleware.NewRouteGuard(middleware.GuardConfig{Observer: deps.Observer})
	pages := []struct {
		prefix    string
		dashboard http.HandlerFunc
	}{
		{"/user", dashboardHandler.User},
		{"/store", dashboardHandler.Store},
		{"/engineer", dashboardHandler.Professional},
		{"/consultant", dashboardHandler.Professional},
		{"/admin", dashboardHandler.Admin},
	}
	for _, p := range pages {
		r.Route(p.prefix, func(r chi.Router) {
			r.Use(guard)
			r.Get("/dashboard", p.dashboard)
			r.NotFound(http.NotFound)
		})
	}

	return r
}

// healthHandler はデータベースへの疎通を確認する。checkerがnilの場合は常にokを返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
