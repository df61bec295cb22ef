// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package backend serves the snapshot diff API over a Kubernetes cluster.
//
// Namespaces come from the core API, snapshots from the dynamic client and
// artifact blobs from storage. The server is read-only.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/monadic/snapdiff/internal/storage"
	"github.com/monadic/snapdiff/pkg/catalog"
)

// Options configures a Server.
type Options struct {
	Kube    kubernetes.Interface
	Dynamic dynamic.Interface
	Storage storage.Storage
	Catalog *catalog.Catalog

	// AllowedOrigins for CORS; empty allows none.
	AllowedOrigins []string

	Logger   *zap.Logger
	Registry *prometheus.Registry
}

// Server holds the API dependencies.
type Server struct {
	kube     kubernetes.Interface
	dyn      dynamic.Interface
	store    storage.Storage
	catalog  *catalog.Catalog
	origins  []string
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics
}

// New validates opts and returns a Server.
func New(opts Options) (*Server, error) {
	if opts.Kube == nil || opts.Dynamic == nil {
		return nil, errors.New("kubernetes clients are required")
	}
	if opts.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	m, err := newMetrics(opts.Registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return &Server{
		kube:     opts.Kube,
		dyn:      opts.Dynamic,
		store:    opts.Storage,
		catalog:  opts.Catalog,
		origins:  opts.AllowedOrigins,
		logger:   opts.Logger,
		registry: opts.Registry,
		metrics:  m,
	}, nil
}

// Handler returns the routed, instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.observe)
	r.Use(s.recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/", s.listNamespaces)
		r.Route("/{namespace}/{group}/{version}/{kind}", func(r chi.Router) {
			r.Use(s.requireSupportedKind)
			r.Get("/", s.listResources)
			r.Get("/{name}", s.readResource)
			r.Get("/{name}/artifacts", s.listArtifacts)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	})

	return otelhttp.NewHandler(c.Handler(r), "snapdiff",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
	)
}

// ListenAndServe serves until ctx is done, then drains in-flight requests
// for at most grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, grace)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, grace time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", zap.Duration("grace", grace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
