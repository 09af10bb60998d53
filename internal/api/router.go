package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/fitlog/internal/auth"
)

// RouterConfig tunes the cross-cutting middleware.
type RouterConfig struct {
	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter builds the HTTP surface: middleware chain, /metrics and the
// handler routes.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.Use(requestContext, recoverer, accessLog)
	if cfg.CORSOrigin != "" {
		r.Use(cors(cfg.CORSOrigin))
	}
	if cfg.RateLimitRPS > 0 {
		r.Use(NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).Limit)
	}
	r.Use(auth.NewMiddleware(h.tokens, skipAuth, authErrorHandler).Wrap)

	r.Handle("/metrics", promhttp.Handler())
	h.RegisterRoutes(r)
	return r
}

func skipAuth(r *http.Request) bool {
	return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
}
