package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/binaahub/binna/internal/model"
)

func TestIdentityMiddleware_InjectsResolvedIdentity(t *testing.T) {
	resolver := &stubResolver{id: verified("u1", model.AccountTypeUser)}

	var got model.Identity
	handler := NewIdentityMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !got.Verified() || got.UserID != "u1" {
		t.Errorf("identity = %+v", got)
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", resolver.calls)
	}
}

func TestIdentityFromContext_DefaultsToNone(t *testing.T) {
	if id := IdentityFromContext(context.Background()); id.Kind != model.IdentityNone {
		t.Errorf("Kind = %s, want none", id.Kind)
	}
}

func TestUserIDFromContext_RejectsWeak(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), weak("u1", model.AccountTypeUser))
	if _, err := UserIDFromContext(ctx); err == nil {
		t.Error("weak identity must not yield a user id")
	}

	ctx = ContextWithIdentity(context.Background(), verified("u1", model.AccountTypeUser))
	if id, err := UserIDFromContext(ctx); err != nil || id != "u1" {
		t.Errorf("UserIDFromContext = %q, %v", id, err)
	}
}

func TestRequireVerified(t *testing.T) {
	tests := []struct {
		name   string
		id     model.Identity
		status int
	}{
		{"verified", verified("u1", model.AccountTypeUser), http.StatusOK},
		{"weak", weak("u1", model.AccountTypeUser), http.StatusUnauthorized},
		{"none", model.Identity{}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireVerified()(okHandler)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, withIdentity(httptest.NewRequest(http.MethodPost, "/api/orders/create", nil), tt.id))

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusUnauthorized {
				var body ErrorResponseBody
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if body.Code != model.ErrCodeUnauthorized {
					t.Errorf("code = %q", body.Code)
				}
			}
		})
	}
}

func TestRequireAccountType(t *testing.T) {
	handler := RequireAccountType(model.AccountTypeStore)(okHandler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, withIdentity(httptest.NewRequest(http.MethodGet, "/api/store/products", nil), verified("s1", model.AccountTypeStore)))
	if w.Code != http.StatusOK {
		t.Errorf("store: status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, withIdentity(httptest.NewRequest(http.MethodGet, "/api/store/products", nil), verified("u1", model.AccountTypeUser)))
	if w.Code != http.StatusForbidden {
		t.Errorf("user: status = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, withIdentity(httptest.NewRequest(http.MethodGet, "/api/store/products", nil), weak("s1", model.AccountTypeStore)))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("weak store: status = %d, want 401", w.Code)
	}
}
