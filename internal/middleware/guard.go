package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/binaahub/binna/internal/model"
)

// GuardObserver はRouteGuardの判定結果を受け取る。メトリクス収集に使う。
type GuardObserver interface {
	RecordGuardDecision(decision string)
}

// GuardConfig はRouteGuardの設定。
type GuardConfig struct {
	// LoginPath は未認証時のリダイレクト先。空の場合は/login。
	LoginPath string
	Observer  GuardObserver
}

// 判定結果
const (
	GuardAllow         = "allow"
	GuardRedirectLogin = "redirect_login"
	GuardRedirectHome  = "redirect_dashboard"
)

// protectedPrefix は保護対象のパスと、アクセスを許可するアカウント種別の組。
type protectedPrefix struct {
	prefix  string
	allowed []model.AccountType
}

var protectedPrefixes = []protectedPrefix{
	{"/user", []model.AccountType{model.AccountTypeUser, model.AccountTypeEngineer, model.AccountTypeConsultant}},
	{"/store", []model.AccountType{model.AccountTypeStore}},
	{"/engineer", []model.AccountType{model.AccountTypeEngineer}},
	{"/consultant", []model.AccountType{model.AccountTypeConsultant}},
	{"/admin", []model.AccountType{model.AccountTypeAdmin}},
}

// GuardDecision はRouteGuardの判定結果。
type GuardDecision struct {
	Decision string
	Location string
}

// Decide はパスと主体からアクセス可否とリダイレクト先を決める。
// 保護対象外のパスは誰でも通過できる。
func Decide(id model.Identity, path, loginPath string) GuardDecision {
	rule, protected := matchProtected(path)
	if !protected {
		return GuardDecision{Decision: GuardAllow}
	}

	if !id.Authenticated() {
		return GuardDecision{
			Decision: GuardRedirectLogin,
			Location: loginPath + "?redirect=" + url.QueryEscape(path),
		}
	}

	for _, t := range rule.allowed {
		if id.AccountType == t {
			return GuardDecision{Decision: GuardAllow}
		}
	}
	return GuardDecision{
		Decision: GuardRedirectHome,
		Location: id.AccountType.DashboardPath(),
	}
}

func matchProtected(path string) (protectedPrefix, bool) {
	for _, p := range protectedPrefixes {
		if path == p.prefix || strings.HasPrefix(path, p.prefix+"/") {
			return p, true
		}
	}
	return protectedPrefix{}, false
}

// NewRouteGuard は画面ルート用のガードを返す。
// 未認証の場合はログイン画面へ、アカウント種別に合わないパスの場合は自分のダッシュボードへ303で転送する。
// NewIdentityMiddlewareの後に配置する。
func NewRouteGuard(config GuardConfig) func(next http.Handler) http.Handler {
	loginPath := config.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromContext(r.Context())
			d := Decide(id, r.URL.Path, loginPath)
			if config.Observer != nil {
				config.Observer.RecordGuardDecision(d.Decision)
			}

			if d.Decision == GuardAllow {
				next.ServeHTTP(w, r)
				return
			}

			slog.Info("route guard redirect",
				slog.String("path", r.URL.Path),
				slog.String("identity", id.Kind.String()),
				slog.String("account_type", string(id.AccountType)),
				slog.String("location", d.Location),
			)
			http.Redirect(w, r, d.Location, http.StatusSeeOther)
		})
	}
}
