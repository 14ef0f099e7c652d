// Package api exposes stored rows over a small REST surface: rows go in
// and out as JSON objects keyed by schema field name, encoded through
// pkg/codec on the way to the store.
package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/store"
)

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Bind string
	// Schemas maps row kinds to the schema their rows encode under.
	Schemas map[store.RowKind]*codec.Schema
	// Registry receives the metric registrations; nil uses the default.
	Registry prometheus.Registerer
}

// Server serves rows from one RowStore.
type Server struct {
	store   *store.RowStore
	schemas map[store.RowKind]*codec.Schema
	metrics *Metrics
}

// NewServer creates a server over the store.
func NewServer(rs *store.RowStore, config ServerConfig) *Server {
	reg := prometheus.DefaultRegisterer
	if config.Registry != nil {
		reg = config.Registry
	}
	return &Server{
		store:   rs,
		schemas: config.Schemas,
		metrics: NewMetrics(reg),
	}
}

// Router builds the chi router with all routes configured.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.metrics.Instrument("/health", s.handleHealth))
		r.Get("/schemas/{kind}", s.metrics.Instrument("/schemas/{kind}", s.handleSchema))
		r.Post("/rows/{kind}", s.metrics.Instrument("/rows/{kind}", s.handlePutRow))
		r.Get("/rows/{kind}/{id}", s.metrics.Instrument("/rows/{kind}/{id}", s.handleGetRow))
		r.Delete("/rows/{kind}/{id}", s.metrics.Instrument("/rows/{kind}/{id}", s.handleDeleteRow))
	})

	return r
}

// StartServer starts the HTTP server and blocks until it fails.
func StartServer(rs *store.RowStore, config ServerConfig) error {
	server := NewServer(rs, config)
	log.Printf("yggdb api listening on %s", config.Bind)
	if err := http.ListenAndServe(config.Bind, server.Router()); err != nil {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}
