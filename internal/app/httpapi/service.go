package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tacc-cloud/abaco/internal/app/metrics"
	"github.com/tacc-cloud/abaco/internal/app/services/actors"
	"github.com/tacc-cloud/abaco/internal/app/system"
	"github.com/tacc-cloud/abaco/pkg/logger"
)

// Options configures the HTTP service beyond the actors.Service it wraps.
type Options struct {
	Addr           string
	Tokens         []string
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Service exposes the actor-control-plane HTTP API and fits into the
// system manager lifecycle (C6's outer shell, §2 request flow: HTTP ->
// authn context -> C3 check -> C6 -> C7).
type Service struct {
	addr   string
	server *http.Server
	log    *logger.Logger
}

// NewService builds the router (chi, SPEC_FULL.md §B) with the middleware
// stack in the order that matters: request id/recover first (chi's own,
// matching its idiom), then metrics (so every response is counted,
// including ones the auth layer rejects), then auth (populates reqctx),
// then the per-caller rate limiter (keyed on the identity auth attached).
func NewService(actorsSvc *actors.Service, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("http")
	}

	resolver := newIdentityResolver(opts.Tokens, opts.JWTSecret, log)
	limiter := newTokenBucketPerCaller(opts.RateLimitRPS, opts.RateLimitBurst)

	h := &handler{actors: actorsSvc}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(metrics.InstrumentHandler)
	router.Get("/healthz", healthz)
	router.Handle("/metrics", metrics.Handler())

	router.Group(func(r chi.Router) {
		r.Use(authMiddleware(resolver))
		r.Use(limiter.middleware)
		h.mount(r)
	})

	return &Service{
		addr: opts.Addr,
		log:  log,
		server: &http.Server{
			Addr:         opts.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

var _ system.Service = (*Service)(nil)

func (s *Service) Name() string { return "http" }

func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("http server error")
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
