// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package statusapi serves a local only, read only HTTP view of the daemon.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amratab/xctool/internal/notifyd"
	"github.com/amratab/xctool/pkg/log"
)

const (
	componentName = "StatusAPI"
	statusAPIPath = "/v1/status"
	namesAPIPath  = "/v1/names"
	metricsPath   = "/metrics"
)

// Source is what the API reports on.
type Source interface {
	Registry() *notifyd.Registry
	Clients() int
}

// Report is the body of the status endpoint.
type Report struct {
	Uptime  string        `json:"uptime"`
	Clients int           `json:"clients"`
	Stats   notifyd.Stats `json:"stats"`
}

type responseError struct {
	Error string `json:"error"`
}

// Server runtime for the status API.
type Server struct {
	host     string
	port     int
	source   Source
	gatherer prometheus.Gatherer
	started  time.Time
	logger   log.Entry
	readyCh  chan struct{}
}

// NewServer creates a status API server bound to localhost:port.
func NewServer(port int, source Source, gatherer prometheus.Gatherer) *Server {
	return &Server{
		host:     "localhost",
		port:     port,
		source:   source,
		gatherer: gatherer,
		started:  time.Now(),
		logger:   log.WithComponent(componentName).WithField("port", port),
		readyCh:  make(chan struct{}),
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.GET(statusAPIPath, s.handleStatus)
	router.GET(namesAPIPath, s.handleNames)
	if s.gatherer != nil {
		router.Handler(http.MethodGet, metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return router
}

// Serve serves requests until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		close(s.readyCh)
		return fmt.Errorf("cannot listen for status API: %w", err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	close(s.readyCh)
	s.logger.Info("Status server started.")

	err = srv.Serve(l)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.WithError(err).Error("trying to serve status")
		return err
	}
	s.logger.Debug("Status server stopped.")
	return nil
}

// WaitUntilReady blocks until the server listens, or failed to.
func (s *Server) WaitUntilReady() {
	<-s.readyCh
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.writeJSON(w, Report{
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Clients: s.source.Clients(),
		Stats:   s.source.Registry().Stats(),
	})
}

func (s *Server) handleNames(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.writeJSON(w, s.source.Registry().Names())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	body, err := json.Marshal(v)
	if err != nil {
		s.logger.WithError(err).Warn("couldn't encode response")
		w.WriteHeader(http.StatusInternalServerError)
		if jerr := json.NewEncoder(w).Encode(responseError{Error: err.Error()}); jerr != nil {
			s.logger.WithError(jerr).Warn("couldn't encode a failed response")
		}
		return
	}
	if _, err := w.Write(body); err != nil {
		s.logger.WithError(err).Debug("cannot write response body")
	}
}
