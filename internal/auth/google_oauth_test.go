package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// fakeGoogle はトークンエンドポイントとJWKSを提供するテスト用サーバー。
type fakeGoogle struct {
	server   *httptest.Server
	key      *rsa.PrivateKey
	clientID string
	claims   jwt.MapClaims
	noIDTok  bool
}

func newFakeGoogle(t *testing.T, clientID string) *fakeGoogle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate rsa key: %v", err)
	}
	f := &fakeGoogle{key: key, clientID: clientID}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		resp := map[string]any{
			"access_token": "google-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if !f.noIDTok {
			resp["id_token"] = f.signIDToken(t)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		pub := f.key.PublicKey
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": "test-key",
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		})
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	f.claims = jwt.MapClaims{
		"iss":            f.server.URL,
		"aud":            clientID,
		"sub":            "google-sub-1",
		"email":          "Ahmed@Example.com",
		"email_verified": true,
		"name":           "أحمد",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	return f
}

func (f *fakeGoogle) signIDToken(t *testing.T) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, f.claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(f.key)
	if err != nil {
		t.Fatalf("failed to sign id token: %v", err)
	}
	return signed
}

func (f *fakeGoogle) provider(ctx context.Context) *GoogleOAuthProvider {
	return NewGoogleOAuthProvider(ctx, GoogleOAuthConfig{
		ClientID:     f.clientID,
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/api/auth/google/callback",
		IssuerURL:    f.server.URL,
		AuthURL:      f.server.URL + "/auth",
		TokenURL:     f.server.URL + "/token",
		JWKSURL:      f.server.URL + "/jwks",
	})
}

func TestGoogleOAuthProvider_GetLoginURL_ContainsRequiredParams(t *testing.T) {
	provider := NewGoogleOAuthProvider(context.Background(), GoogleOAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost:8080/api/auth/google/callback",
	})

	raw := provider.GetLoginURL("test-state-value")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid login url %q: %v", raw, err)
	}
	if !strings.HasPrefix(raw, defaultGoogleAuthURL) {
		t.Errorf("login url should start with %s, got %s", defaultGoogleAuthURL, raw)
	}

	q := u.Query()
	if q.Get("client_id") != "test-client-id" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("state") != "test-state-value" {
		t.Errorf("state = %q", q.Get("state"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	for _, scope := range []string{"openid", "email", "profile"} {
		if !strings.Contains(q.Get("scope"), scope) {
			t.Errorf("scope %q should contain %q", q.Get("scope"), scope)
		}
	}
}

func TestGoogleOAuthProvider_ExchangeCode_VerifiesIDToken(t *testing.T) {
	ctx := context.Background()
	fake := newFakeGoogle(t, "client-1")

	info, err := fake.provider(ctx).ExchangeCode(ctx, "good-code")
	if err != nil {
		t.Fatalf("ExchangeCode returned error: %v", err)
	}
	if info.ProviderUserID != "google-sub-1" {
		t.Errorf("ProviderUserID = %q, want %q", info.ProviderUserID, "google-sub-1")
	}
	if info.Email != "Ahmed@Example.com" {
		t.Errorf("Email = %q", info.Email)
	}
	if !info.EmailVerified {
		t.Error("EmailVerified should be true")
	}
	if info.Provider != "google" {
		t.Errorf("Provider = %q, want %q", info.Provider, "google")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_WrongAudience_ReturnsError(t *testing.T) {
	ctx := context.Background()
	fake := newFakeGoogle(t, "client-1")
	fake.claims["aud"] = "someone-else"

	if _, err := fake.provider(ctx).ExchangeCode(ctx, "good-code"); err == nil {
		t.Fatal("expected error for id token issued to another client")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_MissingIDToken_ReturnsError(t *testing.T) {
	ctx := context.Background()
	fake := newFakeGoogle(t, "client-1")
	fake.noIDTok = true

	if _, err := fake.provider(ctx).ExchangeCode(ctx, "good-code"); err == nil {
		t.Fatal("expected error when id_token is absent")
	}
}

func TestGoogleOAuthProvider_ExchangeCode_BadCode_ReturnsError(t *testing.T) {
	ctx := context.Background()
	fake := newFakeGoogle(t, "client-1")

	if _, err := fake.provider(ctx).ExchangeCode(ctx, "bad-code"); err == nil {
		t.Fatal("expected error for rejected authorization code")
	}
}
