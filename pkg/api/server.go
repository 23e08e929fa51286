package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tracklet/tracklet/pkg/accounts"
	"github.com/tracklet/tracklet/pkg/httputil"
	"github.com/tracklet/tracklet/pkg/observability"
	"github.com/tracklet/tracklet/pkg/rbac"
	"github.com/tracklet/tracklet/pkg/session"
)

// actorHeader names the acting user on requests that need one.
const actorHeader = "X-Actor-ID"

// Server routes HTTP requests to the account and authorization services
type Server struct {
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// Options configures the server's middleware
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Tracing wraps the router in otelhttp when true
	Tracing bool
}

// RouteRegistrar is implemented by handler groups
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// NewServer creates the API server and registers all routes
func NewServer(svc *accounts.Service, evaluator *rbac.Evaluator, sessions *session.Manager, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewNopLogger()
	}
	logger := opts.Logger.WithComponent("api")

	s := &Server{
		router: mux.NewRouter(),
		logger: logger,
	}

	for _, group := range []RouteRegistrar{
		NewAuthHandlers(svc, sessions),
		NewUserHandlers(svc, evaluator),
		NewAuthzHandlers(evaluator),
	} {
		group.RegisterRoutes(s.router)
	}

	var handler http.Handler = s.router
	if opts.Tracing {
		handler = otelhttp.NewHandler(handler, "tracklet.api")
	}
	s.handler = httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.MetricsMiddleware(opts.Metrics),
		httputil.RecoveryMiddleware(logger),
	)(handler)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// RegisterRoutes registers additional routes on the underlying router
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.router)
}

// actorID extracts the acting user from the request header
func actorID(r *http.Request) string {
	return r.Header.Get(actorHeader)
}
