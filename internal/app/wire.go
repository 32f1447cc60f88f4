package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/binaahub/binna/internal/auth"
	"github.com/binaahub/binna/internal/catalog"
	"github.com/binaahub/binna/internal/config"
	"github.com/binaahub/binna/internal/dashboard"
	"github.com/binaahub/binna/internal/database"
	"github.com/binaahub/binna/internal/erp"
	"github.com/binaahub/binna/internal/handler"
	"github.com/binaahub/binna/internal/identity"
	"github.com/binaahub/binna/internal/metrics"
	"github.com/binaahub/binna/internal/middleware"
	"github.com/binaahub/binna/internal/notify"
	"github.com/binaahub/binna/internal/order"
	"github.com/binaahub/binna/internal/payment"
	"github.com/binaahub/binna/internal/project"
	"github.com/binaahub/binna/internal/repository"
	"github.com/binaahub/binna/internal/security"
	"github.com/binaahub/binna/internal/store"
	"github.com/binaahub/binna/internal/warranty"
)

// infra はプロセスが保持する外部接続。
// DB以外は任意で、未設定の場合はnil（PublisherはNopPublisher）になる。
type infra struct {
	db        *sql.DB
	medusa    *pgxpool.Pool
	redis     *redis.Client
	publisher notify.Publisher
}

// openInfra は設定に従って外部接続を開く。
// アプリケーションDBとMedusa DBは疎通まで確認し、失敗した場合はエラーを返す。
// RedisとRabbitMQは縮退運転が可能なため、接続できなくても警告のみで続行する。
func openInfra(ctx context.Context, cfg *config.Config) (*infra, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	inf := &infra{db: db, publisher: notify.NopPublisher{}}

	if cfg.MedusaDatabaseURL != "" {
		pool, err := database.OpenMedusaPool(ctx, cfg.MedusaDatabaseURL)
		if err != nil {
			inf.Close()
			return nil, err
		}
		if err := pool.Ping(pingCtx); err != nil {
			pool.Close()
			inf.Close()
			return nil, fmt.Errorf("failed to connect to medusa database: %w", err)
		}
		inf.medusa = pool
		slog.Info("medusa database connection established")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			inf.Close()
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		inf.redis = redis.NewClient(opts)
		if err := inf.redis.Ping(pingCtx).Err(); err != nil {
			slog.Warn("redis is unreachable, profile cache will miss until it recovers",
				slog.String("error", err.Error()),
			)
		}
	}

	if cfg.AMQPURL != "" {
		pub, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			slog.Warn("amqp broker is unreachable, domain events are disabled",
				slog.String("error", err.Error()),
			)
		} else {
			inf.publisher = pub
		}
	}

	return inf, nil
}

// Close は開いている接続をすべて閉じる。
func (i *infra) Close() {
	if i.publisher != nil {
		if err := i.publisher.Close(); err != nil {
			slog.Warn("failed to close amqp publisher", slog.String("error", err.Error()))
		}
	}
	if i.redis != nil {
		i.redis.Close()
	}
	if i.medusa != nil {
		i.medusa.Close()
	}
	if i.db != nil {
		i.db.Close()
	}
}

// services は全ドメインサービスとそれらが共有する部品。
type services struct {
	collector *metrics.Collector
	resolver  *identity.Resolver

	auth         *auth.Service
	order        *order.Service
	store        *store.Service
	project      *project.Service
	warranty     *warranty.Service
	erp          *erp.Service
	payment      *payment.Service
	catalog      *catalog.Service
	dashboard    *dashboard.Service
	notification *notify.Service
}

// newServices はリポジトリとドメインサービスを組み立てる。接続は行わない。
func newServices(ctx context.Context, cfg *config.Config, inf *infra, reg prometheus.Registerer) *services {
	collector := metrics.NewCollector(reg)

	// 1. リポジトリ
	authRepo := repository.NewPostgresAuthUserRepo(inf.db)
	userRepo := repository.NewPostgresUserRepo(inf.db)
	sessionRepo := repository.NewPostgresSessionRepo(inf.db)
	storeRepo := repository.NewPostgresStoreRepo(inf.db)
	orderRepo := repository.NewPostgresOrderRepo(inf.db)
	invoiceRepo := repository.NewPostgresInvoiceRepo(inf.db)
	projectRepo := repository.NewPostgresProjectRepo(inf.db)
	warrantyRepo := repository.NewPostgresWarrantyRepo(inf.db)
	notificationRepo := repository.NewPostgresNotificationRepo(inf.db)

	var medusaRepo repository.MedusaRepository
	if inf.medusa != nil {
		medusaRepo = repository.NewPgxMedusaRepo(inf.medusa)
	}

	// 2. セキュリティ
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 3. 認証
	var oauthProvider auth.OAuthProvider
	if cfg.GoogleOAuthEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(ctx, auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}
	authService := auth.NewService(
		oauthProvider, authRepo, userRepo, sessionRepo,
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL),
		auth.ServiceConfig{RefreshTokenTTL: cfg.RefreshTokenTTL, AutoConfirm: cfg.AutoConfirm},
	)

	var profileCache identity.ProfileCache
	if inf.redis != nil {
		profileCache = identity.NewRedisProfileCache(inf.redis, cfg.ProfileCacheTTL)
	}
	resolver := identity.NewResolver(authService, userRepo, profileCache)

	// 4. 通知・イベント
	webhooks := notify.NewWebhookSender(ssrfGuard.NewSafeClient(cfg.WebhookTimeout), ssrfGuard)
	notifier := notify.NewService(notificationRepo, inf.publisher, webhooks, collector)

	// 5. 決済
	var gateway payment.Gateway
	if cfg.FatoorahAPIKey != "" {
		gateway = payment.NewClient(ssrfGuard.NewSafeClient(cfg.FatoorahTimeout), slog.Default(), cfg.FatoorahBaseURL, cfg.FatoorahAPIKey)
	}
	paymentService := payment.NewService(invoiceRepo, storeRepo, userRepo, gateway, notifier, collector, payment.Config{
		WebhookSecret: cfg.FatoorahWebhookSecret,
		BaseURL:       cfg.BaseURL,
	})

	dashboardService := dashboard.NewService(dashboard.Repositories{
		Users:      userRepo,
		Orders:     orderRepo,
		Stores:     storeRepo,
		Invoices:   invoiceRepo,
		Projects:   projectRepo,
		Warranties: warrantyRepo,
	})

	return &services{
		collector: collector,
		resolver:  resolver,

		auth:         authService,
		order:        order.NewService(orderRepo, storeRepo, notifier, sanitizer, collector),
		store:        store.NewService(storeRepo, sanitizer, ssrfGuard),
		project:      project.NewService(projectRepo, userRepo, sanitizer),
		warranty:     warranty.NewService(warrantyRepo, sanitizer),
		erp:          erp.NewService(orderRepo, invoiceRepo, storeRepo),
		payment:      paymentService,
		catalog:      catalog.NewService(medusaRepo, sanitizer),
		dashboard:    dashboardService,
		notification: notifier,
	}
}

// newRouterDeps はHTTPルーターの依存関係を組み立てる。
func newRouterDeps(cfg *config.Config, db *sql.DB, svc *services, gatherer prometheus.Gatherer, rl *middleware.RateLimiter) *handler.RouterDeps {
	cookies := identity.CookieOptions{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain}

	return &handler.RouterDeps{
		Logger:            slog.Default(),
		Resolver:          svc.resolver,
		Observer:          svc.collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              cfg.IsProduction(),
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			ExemptPaths:  []string{"/api/fatoorah/callback"},
		},
		RateLimiter:    rl,
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(gatherer),

		AuthService: svc.auth,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:         cfg.BaseURL,
			Cookies:         cookies,
			AccessTokenTTL:  cfg.AccessTokenTTL,
			RefreshTokenTTL: cfg.RefreshTokenTTL,
		},
		Profiles: svc.resolver,

		OrderService:        svc.order,
		StoreService:        svc.store,
		ProjectService:      svc.project,
		WarrantyService:     svc.warranty,
		ERPService:          svc.erp,
		PaymentService:      svc.payment,
		CatalogService:      svc.catalog,
		DashboardService:    svc.dashboard,
		NotificationService: svc.notification,
	}
}

// newHTTPServer はタイムアウトを設定したhttp.Serverを生成する。
// 書き込みタイムアウトはハンドラーのタイムアウトより長くとる。
func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
