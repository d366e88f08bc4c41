// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package notify is the client side of the notification daemon: post names and
// register for them through a file descriptor, a message port, a signal, or
// by polling.
package notify

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"syscall"

	pkgerrors "github.com/pkg/errors"

	"github.com/amratab/xctool/pkg/log"
	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify/wire"
)

// Token identifies a registration.
type Token = wire.Token

var ErrClosed = errors.New("notification client closed")

var clog = log.WithComponent("NotificationClient")

// Client is a connection to the notification daemon. Safe for concurrent use.
type Client struct {
	conn *net.UnixConn
	enc  *wire.Encoder

	portQueueSize int

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*call
	ports   map[Token]*Port
	// events that arrived before the register response naming their token
	early  map[Token][]wire.Event
	nEarly int
	closed bool
	err    error

	done chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithPortQueueSize sets the buffer of ports created by RegisterMachPort.
func WithPortQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.portQueueSize = n
		}
	}
}

// Dial connects to the daemon listening on socketPath.
func Dial(ctx context.Context, socketPath string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "cannot connect to notification daemon at %s", socketPath)
	}

	c := &Client{
		conn:          conn.(*net.UnixConn),
		enc:           wire.NewEncoder(conn),
		portQueueSize: DefaultPortQueueSize,
		pending:       make(map[uint64]*call),
		ports:         make(map[Token]*Port),
		early:         make(map[Token][]wire.Event),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()

	if _, err := c.roundTrip(ctx, wire.Request{Op: wire.OpHello, PID: os.Getpid()}); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Post notifies every consumer registered for name.
func (c *Client) Post(ctx context.Context, name notification.Name) error {
	_, err := c.roundTrip(ctx, wire.Request{Op: wire.OpPost, Name: name})
	return err
}

// RegisterSignal registers for name, delivered by sending sig to this process.
func (c *Client) RegisterSignal(ctx context.Context, name notification.Name, sig syscall.Signal) (Token, error) {
	resp, err := c.roundTrip(ctx, wire.Request{
		Op:        wire.OpRegister,
		Name:      name,
		Mechanism: notification.Signal,
		Signal:    int(sig),
	})
	return resp.Token, err
}

// RegisterCheck registers for name without any delivery, use Check to poll.
func (c *Client) RegisterCheck(ctx context.Context, name notification.Name) (Token, error) {
	resp, err := c.roundTrip(ctx, wire.Request{
		Op:        wire.OpRegister,
		Name:      name,
		Mechanism: notification.Check,
	})
	return resp.Token, err
}

// Check reports whether name was posted since the previous check of token.
// The first check of a token always reports true.
func (c *Client) Check(ctx context.Context, token Token) (bool, error) {
	resp, err := c.roundTrip(ctx, wire.Request{Op: wire.OpCheck, Token: token})
	return resp.Posted, err
}

// Cancel releases a registration.
func (c *Client) Cancel(ctx context.Context, token Token) error {
	_, err := c.roundTrip(ctx, wire.Request{Op: wire.OpCancel, Token: token})
	if err == nil {
		c.mu.Lock()
		delete(c.ports, token)
		c.mu.Unlock()
	}
	return err
}

// Suspend holds deliveries for token, posts meanwhile collapse into one
// delivery on Resume.
func (c *Client) Suspend(ctx context.Context, token Token) error {
	_, err := c.roundTrip(ctx, wire.Request{Op: wire.OpSuspend, Token: token})
	return err
}

func (c *Client) Resume(ctx context.Context, token Token) error {
	_, err := c.roundTrip(ctx, wire.Request{Op: wire.OpResume, Token: token})
	return err
}

// SetState sets the 64 bit state of the name token is registered for.
func (c *Client) SetState(ctx context.Context, token Token, state uint64) error {
	_, err := c.roundTrip(ctx, wire.Request{Op: wire.OpSetState, Token: token, State: state})
	return err
}

// GetState returns the state of the name token is registered for.
func (c *Client) GetState(ctx context.Context, token Token) (uint64, error) {
	resp, err := c.roundTrip(ctx, wire.Request{Op: wire.OpGetState, Token: token})
	return resp.State, err
}

// Close disconnects from the daemon, which cancels every registration of this client.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}

// Done is closed once the connection to the daemon is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// call is a request waiting for its response.
type call struct {
	ch chan wire.Response
	// port to bind to the returned token, before any event for it is read
	port *Port
}

func (c *Client) roundTrip(ctx context.Context, req wire.Request) (wire.Response, error) {
	return c.send(ctx, req, nil, nil)
}

// send writes req, with fd as SCM_RIGHTS when given, and waits for its response.
func (c *Client) send(ctx context.Context, req wire.Request, fd *os.File, port *Port) (wire.Response, error) {
	respCh := make(chan wire.Response, 1)

	c.mu.Lock()
	if c.closed || c.err != nil {
		c.mu.Unlock()
		return wire.Response{}, ErrClosed
	}
	c.nextID++
	req.ID = c.nextID
	c.pending[req.ID] = &call{ch: respCh, port: port}
	c.mu.Unlock()

	var err error
	if fd != nil {
		err = c.enc.EncodeWithRights(req, int(fd.Fd()))
	} else {
		err = c.enc.Encode(req)
	}
	if err != nil {
		c.forget(req.ID)
		return wire.Response{}, err
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return wire.Response{}, ErrClosed
		}
		return resp, resp.Err()
	case <-ctx.Done():
		c.forget(req.ID)
		return wire.Response{}, ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	pc, ok := c.pending[id]
	delete(c.pending, id)
	if ok && pc.port != nil {
		c.releaseEarly(0)
	}
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer close(c.done)

	dec := wire.NewDecoder(c.conn)
	for {
		var frame wire.Frame
		err := dec.Decode(&frame)
		if err != nil {
			c.shutdown(err)
			return
		}

		if frame.Event != nil {
			c.dispatch(*frame.Event)
			continue
		}

		var early []wire.Event
		c.mu.Lock()
		pc, ok := c.pending[frame.ID]
		delete(c.pending, frame.ID)
		if ok && pc.port != nil && frame.Status == wire.StatusOK {
			c.ports[frame.Token] = pc.port
			early = c.early[frame.Token]
		}
		if ok && pc.port != nil {
			c.releaseEarly(frame.Token)
		}
		c.mu.Unlock()
		for _, ev := range early {
			pc.port.deliver(ev)
		}
		if ok {
			pc.ch <- frame.Response
		} else if frame.Status != wire.StatusOK {
			clog.WithField("status", frame.Status.String()).WithField("error", frame.Error).Warn("Unsolicited error from daemon.")
		}
	}
}

func (c *Client) dispatch(ev wire.Event) {
	c.mu.Lock()
	port, ok := c.ports[ev.Token]
	if !ok && c.registering() && c.nEarly < c.portQueueSize {
		c.early[ev.Token] = append(c.early[ev.Token], ev)
		c.nEarly++
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if !ok {
		clog.WithToken(int32(ev.Token)).Debug("Event for unknown token, ignoring.")
		return
	}
	port.deliver(ev)
}

// registering reports whether a port registration awaits its response. Must
// be called with the lock held.
func (c *Client) registering() bool {
	for _, pc := range c.pending {
		if pc.port != nil {
			return true
		}
	}
	return false
}

// releaseEarly forgets the events held for token, and every held event once
// no port registration is pending. Must be called with the lock held.
func (c *Client) releaseEarly(token Token) {
	c.nEarly -= len(c.early[token])
	delete(c.early, token)
	if !c.registering() {
		c.early = make(map[Token][]wire.Event)
		c.nEarly = 0
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed && err != io.EOF {
		clog.WithError(err).Warn("Connection to notification daemon lost.")
	}
	c.err = err
	for id, pc := range c.pending {
		close(pc.ch)
		delete(c.pending, id)
	}
	closed := make(map[*Port]bool)
	for _, port := range c.ports {
		if !closed[port] {
			port.close()
			closed[port] = true
		}
	}
}
