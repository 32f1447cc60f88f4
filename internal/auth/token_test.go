package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/binaahub/binna/internal/model"
)

func TestTokenIssuer_IssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	user := &model.User{ID: "u-1", Email: "user@user.com", AccountType: model.AccountTypeEngineer}

	raw, exp, err := issuer.Issue(user, "sess-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Error("expiry should be in the future")
	}

	claims, err := issuer.Parse(raw)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if claims.Subject != "u-1" || claims.SessionID != "sess-1" {
		t.Errorf("unexpected claims: sub=%s sid=%s", claims.Subject, claims.SessionID)
	}
	if claims.AccountType != model.AccountTypeEngineer {
		t.Errorf("AccountType = %s", claims.AccountType)
	}
}

func TestTokenIssuer_Parse_Rejects(t *testing.T) {
	user := &model.User{ID: "u-1", Email: "user@user.com", AccountType: model.AccountTypeUser}
	issuer := NewTokenIssuer(testSecret, time.Hour)

	expired := NewTokenIssuer(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, _, err := expired.Issue(user, "sess-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	otherSecret, _, err := NewTokenIssuer("another-secret", time.Hour).Issue(user, "sess-1")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u-1", "sid": "sess-1", "iss": "binna", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	tests := map[string]string{
		"expired":      expiredToken,
		"wrong secret": otherSecret,
		"alg none":     noneAlg,
		"garbage":      "not.a.jwt",
		"empty":        "",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := issuer.Parse(raw); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestHashRefreshToken_Deterministic(t *testing.T) {
	a, err := generateRefreshToken()
	if err != nil {
		t.Fatalf("generateRefreshToken returned error: %v", err)
	}
	b, _ := generateRefreshToken()
	if a == b {
		t.Error("refresh tokens should be random")
	}
	if hashRefreshToken(a) != hashRefreshToken(a) {
		t.Error("hash should be deterministic")
	}
	if len(hashRefreshToken(a)) != 64 {
		t.Errorf("hash length = %d, want 64", len(hashRefreshToken(a)))
	}
}

func TestPassword_HashAndCheck(t *testing.T) {
	hash, err := HashPassword("123456")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !CheckPassword(hash, "123456") {
		t.Error("correct password should match")
	}
	if CheckPassword(hash, "654321") {
		t.Error("wrong password should not match")
	}
}
