package middleware

import (
	"context"
	"net/http"
	"strings"

	goAccounts "github.com/MrEthical07/goAccounts"
)

const (
	HeaderUserID    = "X-User-Id"
	HeaderAuthToken = "X-Auth-Token"
)

// Authenticator resolves a user id and resume token into a user.
type Authenticator interface {
	Authenticate(ctx context.Context, userID, token string) (*goAccounts.User, error)
}

type userContextKey struct{}

// UserFromContext returns the user attached by [RequireUser].
func UserFromContext(ctx context.Context) (*goAccounts.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*goAccounts.User)
	return u, ok && u != nil
}

// RequireUser rejects requests without valid credentials headers and attaches
// the resolved user as the engine actor.
func RequireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				unauthorized(w)
				return
			}

			userID, token, ok := credentials(r)
			if !ok {
				unauthorized(w)
				return
			}

			user, err := auth.Authenticate(r.Context(), userID, token)
			if err != nil || user == nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			ctx = goAccounts.WithActor(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func credentials(r *http.Request) (string, string, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	token := strings.TrimSpace(r.Header.Get(HeaderAuthToken))
	if userID == "" || token == "" {
		return "", "", false
	}
	return userID, token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"success":false,"error":"You must be logged in to do this."}` + "\n"))
}
