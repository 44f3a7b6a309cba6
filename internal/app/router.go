package app

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/crm-quotes/internal/audit"
	"github.com/noah-isme/crm-quotes/internal/auth"
	"github.com/noah-isme/crm-quotes/internal/catalog"
	"github.com/noah-isme/crm-quotes/internal/common"
	"github.com/noah-isme/crm-quotes/internal/health"
	"github.com/noah-isme/crm-quotes/internal/obs"
	"github.com/noah-isme/crm-quotes/internal/quote"
	"github.com/noah-isme/crm-quotes/internal/ratelimit"
	"github.com/noah-isme/crm-quotes/internal/security"
)

// Deps collects everything the HTTP surface is assembled from. Nil handlers leave their
// routes unmounted.
type Deps struct {
	Logger          zerolog.Logger
	HTTPMetrics     *obs.HTTPMetrics
	MetricsGatherer prometheus.Gatherer
	Tracing         bool
	AllowedOrigins  []string
	Headers         security.Headers
	BodyLimit       security.BodyLimit
	Health          health.Handler
	Catalog         *catalog.Handler
	Quotes          *quote.Handler
	Auth            auth.Middleware
	Idempotency     common.Idem
	PreviewLimit    ratelimit.Handler
	Audit           audit.HTTPRecorder
	Activity        audit.Handler
	Pprof           PprofConfig
}

// PprofConfig guards the profiling endpoints.
type PprofConfig struct {
	Enabled bool
	User    string
	Pass    string
}

// NewRouter builds the API router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.AllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Location", "X-Total-Count", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(d.Headers.Middleware)
	r.Use(d.BodyLimit.Middleware)

	if d.MetricsGatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.MetricsGatherer, promhttp.HandlerOpts{}))
	}
	if d.Pprof.Enabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.Pprof.User, d.Pprof.Pass))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		if d.Catalog != nil {
			d.Catalog.Routes(v)
		}
		if d.Quotes == nil {
			return
		}
		v.With(d.PreviewLimit.Middleware).Post("/quotes/preview", d.Quotes.Preview)
		v.Group(func(q chi.Router) {
			q.Use(d.Auth.RequireAuth)
			q.With(d.Idempotency.Middleware, d.Audit.Middleware(audit.ActionCreate)).Post("/quotes", d.Quotes.Create)
			q.Get("/quotes", d.Quotes.List)
			q.Get("/quotes/{id}", d.Quotes.Get)
			q.With(d.Audit.Middleware(audit.ActionDelete)).Delete("/quotes/{id}", d.Quotes.Delete)
			q.With(d.Audit.Middleware(audit.ActionExport)).Get("/quotes/{id}/export.pdf", d.Quotes.ExportPDF)
			q.With(d.Audit.Middleware(audit.ActionExport)).Get("/quotes/{id}/export.xlsx", d.Quotes.ExportXLSX)
			if d.Activity.Service != nil {
				q.Get("/quotes/{id}/activity", d.Activity.Activity)
			}
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
