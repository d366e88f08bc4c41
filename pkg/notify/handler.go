// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notify

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/amratab/xctool/pkg/notification"
)

var hlog = clog.WithComponent("NotificationHandler")

var ErrNoHandlers = errors.New("notification handlers not set")

// Registrar is the part of Client the handler needs.
type Registrar interface {
	RegisterMachPort(ctx context.Context, name notification.Name, reuse *Port) (Token, *Port, error)
	Cancel(ctx context.Context, token Token) error
}

// HandlerWithCancellation runs a handler for every delivery of the names it
// was given, all multiplexed on a single port, until Stop or ctx is done.
type HandlerWithCancellation struct {
	ctx      context.Context
	cancel   context.CancelFunc
	client   Registrar
	handlers map[notification.Name]func() error

	mu     sync.Mutex
	tokens []Token
	done   chan struct{}
}

// NewHandlerWithCancellation creates a handler bound to ctx.
func NewHandlerWithCancellation(ctx context.Context, client Registrar) *HandlerWithCancellation {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &HandlerWithCancellation{
		ctx:      ctx,
		cancel:   cancel,
		client:   client,
		handlers: make(map[notification.Name]func() error),
		done:     make(chan struct{}),
	}
}

// RegisterHandler sets the handler for name, replacing any previous one.
// Must be called before Start.
func (h *HandlerWithCancellation) RegisterHandler(name notification.Name, handler func() error) {
	hlog.WithNotification(string(name)).Debug("Registering notification handler.")
	h.handlers[name] = handler
}

// Start registers every name on a shared port and dispatches deliveries in a
// separate goroutine. When Start fails Done is closed right away.
func (h *HandlerWithCancellation) Start() error {
	if len(h.handlers) == 0 {
		h.fail()
		return ErrNoHandlers
	}

	var port *Port
	for name := range h.handlers {
		token, p, err := h.client.RegisterMachPort(h.ctx, name, port)
		if err != nil {
			h.release()
			h.fail()
			return err
		}
		port = p
		h.mu.Lock()
		h.tokens = append(h.tokens, token)
		h.mu.Unlock()
	}

	go h.run(port)
	return nil
}

func (h *HandlerWithCancellation) run(port *Port) {
	defer close(h.done)
	defer h.release()

	for {
		select {
		case <-h.ctx.Done():
			return
		case d, ok := <-port.C:
			if !ok {
				hlog.Warn("Port closed, stopping notification handler.")
				return
			}
			handler := h.handlers[d.Name]
			if handler == nil {
				hlog.WithNotification(string(d.Name)).Warn("No handler found for received notification, ignoring.")
				continue
			}
			if err := handler(); err != nil {
				hlog.WithNotification(string(d.Name)).WithError(err).Error("Handler returned error.")
			}
		}
	}
}

func (h *HandlerWithCancellation) fail() {
	h.cancel()
	close(h.done)
}

// release cancels every registration the handler holds.
func (h *HandlerWithCancellation) release() {
	h.mu.Lock()
	tokens := h.tokens
	h.tokens = nil
	h.mu.Unlock()

	var err error
	for _, token := range tokens {
		// h.ctx may be done already, cancellation must still reach the daemon
		err = multierr.Append(err, h.client.Cancel(context.Background(), token))
	}
	if err != nil {
		hlog.WithError(err).Debug("Cannot cancel every registration.")
	}
}

// Stop the handler. Done is closed once it has finished.
func (h *HandlerWithCancellation) Stop() {
	h.cancel()
}

// Done is closed once the dispatching goroutine has exited and registrations are released.
func (h *HandlerWithCancellation) Done() <-chan struct{} {
	return h.done
}
