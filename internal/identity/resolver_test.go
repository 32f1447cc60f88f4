package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/binaahub/binna/internal/auth"
	"github.com/binaahub/binna/internal/model"
)

type mockVerifier struct {
	verifyFn func(ctx context.Context, token string) (*auth.Claims, error)
}

func (m *mockVerifier) VerifyAccessToken(ctx context.Context, token string) (*auth.Claims, error) {
	return m.verifyFn(ctx, token)
}

type mockProfiles struct {
	calls    int
	findByID func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockProfiles) FindByID(ctx context.Context, id string) (*model.User, error) {
	m.calls++
	return m.findByID(ctx, id)
}

func validVerifier(userID string) *mockVerifier {
	return &mockVerifier{verifyFn: func(_ context.Context, token string) (*auth.Claims, error) {
		if token != "good-token" {
			return nil, auth.ErrInvalidToken
		}
		c := &auth.Claims{SessionID: "sess-1"}
		c.Subject = userID
		return c, nil
	}}
}

func profilesOf(users ...*model.User) *mockProfiles {
	byID := map[string]*model.User{}
	for _, u := range users {
		byID[u.ID] = u
	}
	return &mockProfiles{findByID: func(_ context.Context, id string) (*model.User, error) {
		return byID[id], nil
	}}
}

func withFallback(req *http.Request, u model.FallbackUser) {
	req.AddCookie(EncodeFallbackCookie(u, CookieOptions{}))
}

var storeUser = &model.User{ID: "u-store", Email: "store@store.com", AccountType: model.AccountTypeStore, Name: "متجر"}

func TestResolve_VerifiedFromCookie(t *testing.T) {
	r := NewResolver(validVerifier("u-store"), profilesOf(storeUser), nil)
	req := httptest.NewRequest(http.MethodGet, "/store/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "good-token"})

	id := r.Resolve(req)
	if id.Kind != model.IdentityVerified {
		t.Fatalf("Kind = %s, want verified", id.Kind)
	}
	if id.AccountType != model.AccountTypeStore || id.SessionID != "sess-1" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestResolve_VerifiedFromBearer(t *testing.T) {
	r := NewResolver(validVerifier("u-store"), profilesOf(storeUser), nil)
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer good-token")

	if id := r.Resolve(req); !id.Verified() {
		t.Errorf("expected verified identity, got %s", id.Kind)
	}
}

func TestResolve_VerifiedWinsOverMismatchedFallback(t *testing.T) {
	r := NewResolver(validVerifier("u-store"), profilesOf(storeUser), nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "good-token"})
	withFallback(req, model.FallbackUser{ID: "u-store", Email: "store@store.com", AccountType: model.AccountTypeUser})

	id := r.Resolve(req)
	if !id.Verified() || id.AccountType != model.AccountTypeStore {
		t.Errorf("verified store identity expected, got %+v", id)
	}
}

func TestResolve_InvalidTokenFallsBackToWeak(t *testing.T) {
	r := NewResolver(validVerifier("u-store"), profilesOf(storeUser), nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "expired-token"})
	withFallback(req, model.FallbackUser{ID: "u-1", Email: "user@user.com", AccountType: model.AccountTypeUser})

	id := r.Resolve(req)
	if id.Kind != model.IdentityWeak {
		t.Fatalf("Kind = %s, want weak", id.Kind)
	}
	if id.AccountType != model.AccountTypeUser {
		t.Errorf("AccountType = %s", id.AccountType)
	}
}

func TestResolve_VerificationFailure_FailsClosed(t *testing.T) {
	verifier := &mockVerifier{verifyFn: func(_ context.Context, _ string) (*auth.Claims, error) {
		return nil, errors.New("failed to find session: connection refused")
	}}
	r := NewResolver(verifier, profilesOf(), nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "good-token"})
	withFallback(req, model.FallbackUser{ID: "u-1", Email: "user@user.com", AccountType: model.AccountTypeUser})

	if id := r.Resolve(req); id.Kind != model.IdentityNone {
		t.Errorf("Kind = %s, want none", id.Kind)
	}
}

func TestResolve_MissingProfile_FallsBack(t *testing.T) {
	r := NewResolver(validVerifier("ghost"), profilesOf(), nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "good-token"})

	if id := r.Resolve(req); id.Kind != model.IdentityNone {
		t.Errorf("Kind = %s, want none", id.Kind)
	}
}

func TestResolve_NothingPresented_None(t *testing.T) {
	r := NewResolver(validVerifier("u-store"), profilesOf(storeUser), nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: FallbackCookieName, Value: "garbage"})

	if id := r.Resolve(req); id.Authenticated() {
		t.Errorf("expected no identity, got %+v", id)
	}
}

func TestResolve_UsesRedisProfileCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	profiles := profilesOf(storeUser)
	r := NewResolver(validVerifier("u-store"), profiles, NewRedisProfileCache(client, 5*time.Minute))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "good-token"})
		if id := r.Resolve(req); !id.Verified() {
			t.Fatalf("request %d: expected verified identity", i)
		}
	}
	if profiles.calls != 1 {
		t.Errorf("profile loaded %d times, want 1", profiles.calls)
	}
	if !mr.Exists(profileKeyPrefix + "u-store") {
		t.Error("profile should be cached in redis")
	}

	r.Forget(context.Background(), "u-store")
	if mr.Exists(profileKeyPrefix + "u-store") {
		t.Error("Forget should delete the cached profile")
	}
}

func TestRedisProfileCache_TTLAndCorruptEntry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := NewRedisProfileCache(client, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, storeUser)
	if got, ok := cache.Get(ctx, storeUser.ID); !ok || got.AccountType != model.AccountTypeStore {
		t.Fatalf("Get = %+v, %v", got, ok)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := cache.Get(ctx, storeUser.ID); ok {
		t.Error("entry should expire after ttl")
	}

	mr.Set(profileKeyPrefix+"broken", "{")
	if _, ok := cache.Get(ctx, "broken"); ok {
		t.Error("corrupt entry should be a miss")
	}
}

func TestRedisProfileCache_RedisDown_IsMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	cache := NewRedisProfileCache(client, time.Minute)
	mr.Close()

	if _, ok := cache.Get(context.Background(), "u-1"); ok {
		t.Error("unavailable redis should be a cache miss")
	}
}

func TestAccessTokenFrom_PrefersHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: "cookie-token"})

	if got := AccessTokenFrom(req); got != "header-token" {
		t.Errorf("AccessTokenFrom = %q", got)
	}
}
