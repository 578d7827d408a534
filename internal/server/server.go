// Package server exposes health checks, Prometheus metrics and the vehicle
// state of a running simulation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/agvsim/internal/kpi"
	"github.com/autopeer-io/agvsim/internal/scenario"
	"github.com/autopeer-io/agvsim/internal/telemetry"
	"github.com/autopeer-io/agvsim/pkg/log"
	"github.com/autopeer-io/agvsim/pkg/options"
)

// Sources are the read-only views the server publishes. Nil fields disable
// the matching endpoints.
type Sources struct {
	Status   *telemetry.Latest
	KPI      *kpi.Collector
	Gatherer prometheus.Gatherer
	// Report returns the final report once the run is over.
	Report func() (*scenario.Report, bool)
	// Ready backs /readyz. Nil means always ready.
	Ready func() bool
}

type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

func NewServer(opts *options.HttpOptions, src Sources) *Server {
	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(src),
			ReadHeaderTimeout: opts.Timeout,
		},
		options: opts,
	}
}

// NewRouter builds the HTTP routes for src.
func NewRouter(src Sources) *mux.Router {
	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if src.Ready != nil && !src.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	if src.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(src.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	if src.Status != nil {
		api.HandleFunc("/agvs", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, src.Status.List())
		}).Methods(http.MethodGet)

		api.HandleFunc("/agvs/{id}", func(w http.ResponseWriter, r *http.Request) {
			id := mux.Vars(r)["id"]
			report, ok := src.Status.Get(id)
			if !ok {
				writeError(w, http.StatusNotFound, "unknown agv "+id)
				return
			}
			writeJSON(w, http.StatusOK, report)
		}).Methods(http.MethodGet)
	}
	if src.KPI != nil {
		api.HandleFunc("/kpi", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, src.KPI.All())
		}).Methods(http.MethodGet)
	}
	if src.Report != nil {
		api.HandleFunc("/report", func(w http.ResponseWriter, _ *http.Request) {
			rep, ok := src.Report()
			if !ok {
				writeError(w, http.StatusServiceUnavailable, "simulation still running")
				return
			}
			writeJSON(w, http.StatusOK, rep)
		}).Methods(http.MethodGet)
	}
	return r
}

// Start serves until ctx is done and then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen(s.options.Network, s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log.Info("Starting HTTP Server", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
