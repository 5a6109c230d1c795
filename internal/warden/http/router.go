package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/warden/internal/warden/identity"
	"github.com/aussiebroadwan/warden/internal/warden/service"
	"github.com/aussiebroadwan/warden/internal/warden/store"
	"github.com/aussiebroadwan/warden/pkg/httpx"
	"github.com/aussiebroadwan/warden/pkg/slogx"

	_ "github.com/aussiebroadwan/warden/api/warden" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	AuthService *service.AuthenticationService
	Resolver    *identity.Resolver

	// TrustedHeaders are the proxy headers believed when keying rate limits.
	TrustedHeaders []string

	// OperatorToken guards the override endpoints. Empty disables them.
	OperatorToken string

	LoginLimit    httpx.RateLimitConfig
	IdentityLimit httpx.RateLimitConfig
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:           http.NewServeMux(),
		buildVersion:  buildVersion,
		startTime:     time.Now(),
		logger:        logger,
		store:         st,
		LoginLimit:    httpx.StrictLimit,
		IdentityLimit: httpx.ModerateLimit,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.SessionMiddleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerIdentity()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Warden Authentication Service API
//	@version		0.1.0
//	@description	Single-account password authentication with brute-force lockout and best-effort client identity resolution.
//	@description
//	@description				Client identity is informational and used for audit only, never for authorization.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/warden
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	OperatorToken
//	@in							header
//	@name						Authorization
//	@description				Operator token from WARDEN_OPERATOR_TOKEN. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) clientKey() httpx.KeyExtractor {
	return httpx.ClientKeyExtractor(r.TrustedHeaders)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{AuthService: r.AuthService, Resolver: r.Resolver}

	// POST /login - strict rate limit by client + username to slow down guessing
	// across accounts and from a single client alike
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(h,
			httpx.RateLimitMiddleware(r.LoginLimit,
				httpx.CompositeKeyExtractor(":", r.clientKey(), httpx.FormFieldKeyExtractor("username")),
			),
		),
	)
}

func (r *Router) registerIdentity() {
	h := &IdentityHandler{Resolver: r.Resolver}
	r.Mux.Handle("POST /v1/identity",
		httpx.Chain(h,
			httpx.RateLimitMiddleware(r.IdentityLimit, r.clientKey()),
		),
	)

	o := &OverrideHandler{Resolver: r.Resolver}
	r.Mux.Handle("PUT /v1/identity/override",
		httpx.Chain(http.HandlerFunc(o.HandleSet),
			httpx.RequireToken(r.OperatorToken),
		),
	)
	r.Mux.Handle("DELETE /v1/identity/override",
		httpx.Chain(http.HandlerFunc(o.HandleClear),
			httpx.RequireToken(r.OperatorToken),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
