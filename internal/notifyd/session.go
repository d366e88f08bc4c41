// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notifyd

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/amratab/xctool/pkg/log"
	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify/wire"
)

// session serves one client connection. Requests are handled in order,
// writes (responses and events) are serialized.
type session struct {
	id       string
	conn     *net.UnixConn
	reader   *wire.RequestReader
	registry *Registry
	timeout  time.Duration
	logger   log.Entry

	writeMu sync.Mutex
	enc     *wire.Encoder

	// pid from peer credentials, or from hello when those are unavailable
	pid int
}

func newSession(conn *net.UnixConn, registry *Registry, timeout time.Duration) *session {
	id := uuid.New().String()
	s := &session{
		id:       id,
		conn:     conn,
		reader:   wire.NewRequestReader(conn),
		registry: registry,
		timeout:  timeout,
		enc:      wire.NewEncoder(conn),
		logger:   log.WithComponent("Session").WithSession(id),
	}

	pid, err := peerPID(conn)
	if err != nil {
		s.logger.WithError(err).Debug("Cannot read peer credentials.")
	} else {
		s.pid = pid
		s.logger = s.logger.WithField("pid", pid)
	}
	return s
}

// serve handles requests until the client disconnects or the connection is closed.
func (s *session) serve() {
	defer s.teardown()

	s.logger.Debug("Client connected.")
	for {
		req, err := s.reader.Next()
		if err != nil {
			if errors.Is(err, wire.ErrMalformedFrame) {
				s.logger.WithError(err).Warn("Ignoring malformed request.")
				s.respond(wire.Response{Status: wire.StatusInvalidRequest, Error: err.Error()})
				continue
			}
			if err != io.EOF && !errors.Is(err, net.ErrClosed) {
				s.logger.WithError(err).Warn("Cannot read request, closing connection.")
			}
			return
		}

		resp := s.handle(req)
		resp.ID = req.ID
		s.respond(resp)
	}
}

func (s *session) teardown() {
	if err := s.registry.CancelOwner(s.id); err != nil {
		s.logger.WithError(err).Warn("Errors releasing client registrations.")
	}
	s.reader.Close()
	_ = s.conn.Close()
	s.logger.Debug("Client disconnected.")
}

func (s *session) close() {
	_ = s.conn.Close()
}

func (s *session) handle(req wire.Request) wire.Response {
	rlog := s.logger.WithField("op", string(req.Op))
	if req.Name != "" {
		rlog = rlog.WithNotification(string(req.Name))
	}
	rlog.Debug("Request received.")

	var resp wire.Response
	var err error
	switch req.Op {
	case wire.OpHello:
		if s.pid == 0 && req.PID > 0 {
			s.pid = req.PID
		}
	case wire.OpPost:
		_, err = s.registry.Post(req.Name)
	case wire.OpRegister:
		resp.Token, err = s.register(req)
	case wire.OpCancel:
		err = s.registry.Cancel(s.id, req.Token)
	case wire.OpCheck:
		resp.Posted, err = s.registry.Check(s.id, req.Token)
	case wire.OpSuspend:
		err = s.registry.Suspend(s.id, req.Token)
	case wire.OpResume:
		err = s.registry.Resume(s.id, req.Token)
	case wire.OpSetState:
		err = s.registry.SetState(s.id, req.Token, req.State)
	case wire.OpGetState:
		resp.State, err = s.registry.GetState(s.id, req.Token)
	default:
		err = fmt.Errorf("%w: unknown op %q", wire.ErrInvalidRequest, req.Op)
	}

	if err != nil {
		rlog.WithError(err).Debug("Request failed.")
		resp.Status = wire.StatusOf(err)
		resp.Error = err.Error()
	}
	return resp
}

func (s *session) register(req wire.Request) (wire.Token, error) {
	target, err := s.target(req)
	if err != nil {
		return 0, err
	}
	return s.registry.Register(s.id, req.Name, req.Mechanism, target)
}

func (s *session) target(req wire.Request) (Target, error) {
	switch req.Mechanism {
	case notification.FileDescriptor:
		fd, ok := s.reader.TakeFD()
		if !ok {
			return nil, fmt.Errorf("%w: no descriptor received", wire.ErrInvalidFile)
		}
		t, err := newFileTarget(fd, s.timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", wire.ErrInvalidFile, err)
		}
		return t, nil
	case notification.MachPort:
		return portTarget{s: s}, nil
	case notification.Signal:
		if !validSignal(req.Signal) {
			return nil, fmt.Errorf("%w: %d", wire.ErrInvalidSignal, req.Signal)
		}
		if s.pid <= 0 {
			return nil, fmt.Errorf("%w: unknown client process", wire.ErrInvalidRequest)
		}
		return signalTarget{pid: s.pid, sig: syscall.Signal(req.Signal)}, nil
	case notification.Check:
		return checkTarget{}, nil
	}
	return nil, fmt.Errorf("%w: unknown mechanism %d", wire.ErrInvalidRequest, int(req.Mechanism))
}

func (s *session) respond(resp wire.Response) {
	if err := s.write(wire.Frame{Response: resp}); err != nil {
		s.logger.WithError(err).Debug("Cannot write response.")
	}
}

func (s *session) sendEvent(token wire.Token, name notification.Name) error {
	return s.write(wire.Frame{Event: &wire.Event{Token: token, Name: name}})
}

func (s *session) write(frame wire.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.timeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
		defer func() { _ = s.conn.SetWriteDeadline(time.Time{}) }()
	}
	err := s.enc.Encode(frame)
	if err == nil {
		return nil
	}
	// a failed write can leave part of a frame on the stream, nothing written
	// after it could be decoded
	if cErr := s.conn.Close(); cErr == nil {
		s.logger.WithError(err).Warn("Cannot write to client, closing connection.")
	}
	return fmt.Errorf("%w: %v", syscall.EPIPE, err)
}
