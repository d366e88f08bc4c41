// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package notifyd implements the notification daemon: clients connect over a
// Unix socket, register for names with a delivery mechanism and post names.
package notifyd

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/tevino/abool"

	"github.com/amratab/xctool/pkg/helpers/recover"
	"github.com/amratab/xctool/pkg/log"
)

var ErrAlreadyRunning = errors.New("another daemon is listening on the socket")

// Options for the daemon server.
type Options struct {
	SocketPath      string
	SocketMode      os.FileMode
	DeliveryTimeout time.Duration
}

// Server accepts client connections and runs one session per connection.
type Server struct {
	opts     Options
	registry *Registry
	metrics  *Metrics
	logger   log.Entry

	running   abool.AtomicBool
	readyCh   chan struct{}
	readyOnce sync.Once
	stopCh    chan struct{}

	mu       sync.Mutex
	listener net.Listener
	sessions map[string]*session
	wg       sync.WaitGroup
}

func NewServer(opts Options, registry *Registry, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Server{
		opts:     opts,
		registry: registry,
		metrics:  metrics,
		logger:   log.WithComponent("Server").WithField("socket", opts.SocketPath),
		readyCh:  make(chan struct{}),
		stopCh:   make(chan struct{}),
		sessions: make(map[string]*session),
	}
}

// Registry the server dispatches to.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Listen creates the Unix socket, replacing a stale socket file left behind
// by a previous daemon.
func (s *Server) Listen() (*net.UnixListener, error) {
	path := s.opts.SocketPath
	if _, err := os.Stat(path); err == nil {
		if conn, dialErr := net.DialTimeout("unix", path, time.Second); dialErr == nil {
			_ = conn.Close()
			return nil, pkgerrors.Wrap(ErrAlreadyRunning, path)
		}
		s.logger.Debug("Removing stale socket.")
		if err := os.Remove(path); err != nil {
			return nil, pkgerrors.Wrap(err, "cannot remove stale socket")
		}
	}

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "cannot listen")
	}
	if s.opts.SocketMode != 0 {
		if err := os.Chmod(path, s.opts.SocketMode); err != nil {
			_ = l.Close()
			return nil, pkgerrors.Wrap(err, "cannot set socket permissions")
		}
	}
	return l, nil
}

// ListenAndServe listens on the configured socket and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is done or Shutdown is called.
func (s *Server) Serve(ctx context.Context, l *net.UnixListener) error {
	if !s.running.SetToIf(false, true) {
		return errors.New("server already running")
	}
	select {
	case <-s.stopCh:
		s.running.UnSet()
		return errors.New("server already shut down")
	default:
	}

	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.stopCh:
		}
	}()

	s.readyOnce.Do(func() { close(s.readyCh) })
	s.logger.Info("Notification server started.")

	for {
		conn, err := l.AcceptUnix()
		if err != nil {
			if !s.running.IsSet() || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				s.logger.Info("Notification server stopped.")
				return nil
			}
			s.logger.WithError(err).Warn("Cannot accept connection.")
			continue
		}
		s.startSession(conn)
	}
}

func (s *Server) startSession(conn *net.UnixConn) {
	sess := newSession(conn, s.registry, s.opts.DeliveryTimeout)

	s.mu.Lock()
	if !s.running.IsSet() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.sessions[sess.id] = sess
	s.wg.Add(1)
	s.mu.Unlock()
	s.metrics.Clients.Inc()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
			s.metrics.Clients.Dec()
		}()
		// a panicking session is torn down, the daemon keeps serving the others
		recover.FuncWithPanicHandler(recover.LogAndContinue, sess.serve)
	}()
}

// WaitUntilReady blocks until the server accepts connections.
func (s *Server) WaitUntilReady() {
	<-s.readyCh
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown stops accepting connections and disconnects every client.
// Registrations of disconnected clients are cancelled.
func (s *Server) Shutdown() {
	if !s.running.SetToIf(true, false) {
		return
	}
	close(s.stopCh)

	s.mu.Lock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.WithError(err).Debug("Cannot close listener.")
		}
	}
	for _, sess := range s.sessions {
		sess.close()
	}
	s.mu.Unlock()
}
