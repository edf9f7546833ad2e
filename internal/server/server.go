// Package server exposes the published artifact, the static UI and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"

	"github.com/galois26/event-ingester/internal/config"
)

type Server struct {
	fs           afero.Fs
	artifactPath string
	fallbackPath string

	router *mux.Router
	server *http.Server
}

// New builds the router. reg may be nil, in which case /metrics is not mounted.
func New(cfg config.ServerConfig, fs afero.Fs, artifactPath string, reg *prometheus.Registry) *Server {
	s := &Server{
		fs:           fs,
		artifactPath: artifactPath,
		fallbackPath: cfg.FallbackPath,
		router:       mux.NewRouter(),
	}

	s.router.HandleFunc("/events.json", s.handleEvents).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if reg != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})).Methods(http.MethodGet)
	}
	if cfg.StaticDir != "" {
		static := http.FileServer(afero.NewHttpFs(fs).Dir(cfg.StaticDir))
		s.router.PathPrefix("/").Handler(static)
	}

	s.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Serve() error                       { return s.server.ListenAndServe() }
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }

// handleEvents serves the artifact as written by the store. Until the first
// cycle succeeds the fallback file stands in for it.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")

	for _, p := range []string{s.artifactPath, s.fallbackPath} {
		if p == "" {
			continue
		}
		b, err := afero.ReadFile(s.fs, p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			log.Printf("[server] read %s: %v", p, err)
			writeError(w, http.StatusInternalServerError, "artifact unreadable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(b)
		}
		return
	}
	writeError(w, http.StatusServiceUnavailable, "no events published yet")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
