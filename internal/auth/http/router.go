package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/scrum0/scrum0/internal/auth/session"
	"github.com/scrum0/scrum0/internal/auth/store"
	"github.com/scrum0/scrum0/pkg/httpx"
	"github.com/scrum0/scrum0/pkg/slogx"

	_ "github.com/scrum0/scrum0/api/dashboard" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// RouterConfig carries the settings the router needs beyond its
// dependencies.
type RouterConfig struct {
	BuildVersion string

	// AllowedOrigins are the browser origins allowed by CORS and by the
	// events websocket. "*" allows any origin.
	AllowedOrigins []string
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	controller   *session.Controller
	store        store.Store
	origins      []string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
}

func NewRouter(ctrl *session.Controller, st store.Store, cfg RouterConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		Mux:          http.NewServeMux(),
		controller:   ctrl,
		store:        st,
		origins:      cfg.AllowedOrigins,
		buildVersion: cfg.BuildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", slogx.RequestIDHeader},
		ExposedHeaders:   []string{slogx.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.middlewares = []httpx.Middleware{
		c.Handler,
		slogx.HTTPMiddleware(r.logger),
		sessionUser(ctrl),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerEvents()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			scrum0 Dashboard Session API
//	@version		0.1.0
//	@description	Session control for the scrum0 dashboard: sign-up, sign-in, sign-out, profile updates and backend connection health.
//	@description
//	@description	Every mutating endpoint returns the resulting session state. State changes are also pushed over the /v1/auth/events websocket.
//
//	@contact.name	scrum0 Team
//	@contact.url	https://github.com/scrum0/scrum0
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Controller: r.controller}

	r.Mux.Handle("GET /v1/auth/state",
		httpx.Chain(http.HandlerFunc(h.HandleState),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/connection",
		httpx.Chain(http.HandlerFunc(h.HandleConnection),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// Credential submission is limited per IP and email to slow guessing.
	r.Mux.Handle("POST /v1/auth/signin",
		httpx.Chain(http.HandlerFunc(h.HandleSignIn),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("POST /v1/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignUp),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)

	r.Mux.Handle("POST /v1/auth/signout",
		httpx.Chain(http.HandlerFunc(h.HandleSignOut),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("PATCH /v1/auth/profile",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateProfile),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerEvents() {
	h := NewEventsHandler(r.controller, r.origins)
	r.Mux.Handle("GET /v1/auth/events",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Monitoring systems may poll frequently.
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.controller),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

// sessionUser tags the request context and logger with the signed-in user,
// so per-user limits and request logs can see it.
func sessionUser(ctrl *session.Controller) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u := ctrl.State().User; u != nil {
				ctx := httpx.WithUserID(r.Context(), u.ID)
				ctx = slogx.With(ctx, "user_id", u.ID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
