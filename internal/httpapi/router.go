package httpapi

import (
	"context"
	"net/http"
	"time"

	goAccounts "github.com/MrEthical07/goAccounts"
	"github.com/MrEthical07/goAccounts/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Accounts is the engine surface the handlers call.
type Accounts interface {
	middleware.Authenticator
	CreateUser(ctx context.Context, opts goAccounts.CreateOptions) (string, error)
	LoginWithPassword(ctx context.Context, username, password string) (*goAccounts.LoginResult, error)
	LoginWithResumeToken(ctx context.Context, token string) (*goAccounts.LoginResult, error)
	SetRoomKeyID(ctx context.Context, roomID, keyID string) error
}

// Deps holds everything the router needs. Metrics may be nil.
type Deps struct {
	Accounts   Accounts
	Metrics    http.Handler
	Log        *zap.Logger
	TrustProxy bool
}

// NewRouter builds the chi router with request id, recovery, access logging
// and client address middleware.
func NewRouter(deps Deps) *chi.Mux {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{accounts: deps.Accounts, log: log}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(accessLog(log))
	r.Use(middleware.ClientIP(deps.TrustProxy))

	r.Get("/healthz", h.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", h.createUser)
		r.Post("/login", h.login)
		r.With(middleware.RequireUser(deps.Accounts)).Post("/e2e.setRoomKeyID", h.setRoomKeyID)
	})

	return r
}

func accessLog(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}
