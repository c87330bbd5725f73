package server

import (
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xgov/x402/logger"
	"github.com/xgov/x402/metrics"
	"github.com/xgov/x402/pipeline"
)

// Info describes the provider on its discovery endpoints.
type Info struct {
	AgentName         string
	ServiceType       string
	ReputationProgram solana.PublicKey
}

// Route is one entry of the route table. Gated routes run their Operation
// behind the payment gate; the others run Handler directly.
type Route struct {
	Method    string
	Pattern   string
	Gated     bool
	Operation pipeline.Operation
	Handler   http.HandlerFunc
}

// Server is the provider HTTP service.
type Server struct {
	gate *pipeline.Gate
	info Info

	gatherer prometheus.Gatherer
	now      func() time.Time

	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = logger.OrNoop(l)
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Server) {
		s.metrics = metrics.OrNoop(m)
	}
}

// WithGatherer exposes the collectors of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func New(gate *pipeline.Gate, info Info, opts ...Option) *Server {
	s := &Server{
		gate:    gate,
		info:    info,
		now:     time.Now,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes is the full route table. Every route not marked Gated is served
// without payment.
func (s *Server) Routes() []Route {
	routes := []Route{
		{Method: http.MethodGet, Pattern: "/health", Handler: s.handleHealth},
		{Method: http.MethodGet, Pattern: "/info", Handler: s.handleInfo},
		{Method: http.MethodGet, Pattern: "/scrape", Gated: true, Operation: s.scrape},
		{Method: http.MethodPost, Pattern: "/analyze", Gated: true, Operation: s.analyze},
	}
	if s.gatherer != nil {
		routes = append(routes, Route{
			Method:  http.MethodGet,
			Pattern: "/metrics",
			Handler: promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP,
		})
	}
	return routes
}

// Router mounts the route table on a chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)

	for _, route := range s.Routes() {
		h := http.Handler(route.Handler)
		if route.Gated {
			h = s.gate.Handler(route.Operation)
		}
		r.Method(route.Method, route.Pattern, h)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found", "message": "no such endpoint"})
	})
	return r
}

// NewHTTPServer builds an HTTP server for handler.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
