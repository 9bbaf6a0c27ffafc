package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/mapstate/internal/core/config"
	"github.com/mohammed-shakir/mapstate/internal/core/health"
	middleware "github.com/mohammed-shakir/mapstate/internal/core/middleware"
	"github.com/mohammed-shakir/mapstate/internal/core/router"
)

type Options struct {
	API     *router.API
	Metrics http.Handler
	Checks  []health.Check
}

// Handler assembles the middleware chain, probes and state routes. Metrics are
// mounted here only when no separate metrics address is configured.
func Handler(cfg config.Config, logger *slog.Logger, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger, cfg.Session))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(2*time.Second, opts.Checks...))
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" && opts.Metrics != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, opts.Metrics)
	}
	if opts.API != nil {
		opts.API.Mount(r)
	}
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) error {
	servers := []*http.Server{newServer(cfg.Addr, Handler(cfg, logger, opts))}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" && opts.Metrics != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, opts.Metrics)
		servers = append(servers, newServer(cfg.Metrics.Addr, mux))
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			logger.Info("http listen", "addr", srv.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		_ = srv.Shutdown(shutdownCtx)
	}
	return runErr
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
