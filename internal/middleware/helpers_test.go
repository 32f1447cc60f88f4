package middleware

import (
	"net/http"

	"github.com/binaahub/binna/internal/model"
)

// withIdentity はリクエストに主体を注入したコピーを返す。
func withIdentity(r *http.Request, id model.Identity) *http.Request {
	return r.WithContext(ContextWithIdentity(r.Context(), id))
}

func verified(userID string, t model.AccountType) model.Identity {
	return model.Identity{Kind: model.IdentityVerified, UserID: userID, AccountType: t, SessionID: "sess-" + userID}
}

func weak(userID string, t model.AccountType) model.Identity {
	return model.Identity{Kind: model.IdentityWeak, UserID: userID, AccountType: t}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type stubResolver struct {
	id    model.Identity
	calls int
}

func (s *stubResolver) Resolve(_ *http.Request) model.Identity {
	s.calls++
	return s.id
}
