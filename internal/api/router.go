// Package api exposes the account, movie and chat services over JSON/HTTP.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"movie-recommender/internal/metrics"
)

type Deps struct {
	Accounts Accounts
	Movies   Movies
	Chat     Chat
	// Metrics is optional; without it /metrics is not served.
	Metrics *metrics.Metrics
}

type Options struct {
	CORSOrigins      []string
	LoginRateLimit   int
	LoginRateWindow  time.Duration
	RateLimitEnabled bool
}

// NewRouter builds the HTTP surface.
func NewRouter(d Deps, o Options) (http.Handler, error) {
	if d.Accounts == nil || d.Movies == nil || d.Chat == nil {
		return nil, errors.New("api: accounts, movies and chat services are required")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLog(d.Metrics))
	r.Use(recoverJSON)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: o.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         86400,
	}))
	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/", index)
	r.Get("/health", health)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	ah := authHandlers{accounts: d.Accounts}
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", ah.register)
		r.With(loginLimiter(o)).Post("/login", ah.login)
		r.Get("/verify", ah.verify)
	})

	mh := movieHandlers{movies: d.Movies}
	r.Route("/api/movies", func(r chi.Router) {
		r.Post("/add", mh.add)
		r.Get("/not-watched", mh.list(false))
		r.Get("/watched", mh.list(true))
		r.Get("/{movieID}", mh.get)
		r.Put("/{movieID}/rate", mh.rate)
		r.Delete("/{movieID}", mh.delete)
	})

	ch := chatHandlers{chat: d.Chat}
	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/message", ch.send)
		r.Get("/conversations", ch.list)
		r.Get("/conversation/{convoID}", ch.get)
	})

	return r, nil
}

func loginLimiter(o Options) func(http.Handler) http.Handler {
	if !o.RateLimitEnabled || o.LoginRateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := o.LoginRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(o.LoginRateLimit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(tooManyRequests),
	)
}
