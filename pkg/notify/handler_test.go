// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify/wire"
)

var errRegistrar = errors.New("registrar error")

// fakeRegistrar hands out tokens on a single port and records cancellations.
type fakeRegistrar struct {
	mu        sync.Mutex
	port      *Port
	next      Token
	names     map[Token]notification.Name
	cancelled []Token
	failOn    notification.Name
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{port: newPort(8), names: make(map[Token]notification.Name)}
}

func (f *fakeRegistrar) RegisterMachPort(_ context.Context, name notification.Name, _ *Port) (Token, *Port, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name == f.failOn {
		return 0, nil, errRegistrar
	}
	f.next++
	f.names[f.next] = name
	return f.next, f.port, nil
}

func (f *fakeRegistrar) Cancel(_ context.Context, token Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, token)
	return nil
}

func (f *fakeRegistrar) post(name notification.Name) {
	f.mu.Lock()
	var token Token
	for t, n := range f.names {
		if n == name {
			token = t
		}
	}
	f.mu.Unlock()
	f.port.deliver(wire.Event{Token: token, Name: name})
}

func (f *fakeRegistrar) cancelledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancelled)
}

func waitDone(t *testing.T, h *HandlerWithCancellation) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not stop")
	}
}

func TestNewHandlerWithCancellation(t *testing.T) {
	t.Run("with background context", func(t *testing.T) {
		h := NewHandlerWithCancellation(context.Background(), newFakeRegistrar())
		assert.NotNil(t, h.ctx)
		assert.NotNil(t, h.cancel)
		assert.NotNil(t, h.handlers)
	})

	t.Run("with nil context", func(t *testing.T) {
		//nolint:staticcheck
		h := NewHandlerWithCancellation(nil, newFakeRegistrar())
		assert.NotNil(t, h.ctx)
	})
}

func TestHandlerWithCancellation_NoHandlers(t *testing.T) {
	h := NewHandlerWithCancellation(context.Background(), newFakeRegistrar())
	assert.Equal(t, ErrNoHandlers, h.Start())
	waitDone(t, h)
}

func TestHandlerWithCancellation_OverwriteHandler(t *testing.T) {
	h := NewHandlerWithCancellation(context.Background(), newFakeRegistrar())
	h.RegisterHandler(notification.ByMachPort, func() error { return nil })
	h.RegisterHandler(notification.ByMachPort, func() error { return nil })
	assert.Len(t, h.handlers, 1)
}

func TestHandlerWithCancellation_Dispatch(t *testing.T) {
	reg := newFakeRegistrar()
	h := NewHandlerWithCancellation(context.Background(), reg)

	calls := make(chan notification.Name, 4)
	h.RegisterHandler(notification.ByMachPort, func() error {
		calls <- notification.ByMachPort
		return nil
	})
	h.RegisterHandler(notification.Cancel, func() error {
		calls <- notification.Cancel
		return errors.New("handler errors are logged, not fatal")
	})
	require.NoError(t, h.Start())

	reg.post(notification.Cancel)
	reg.post(notification.ByMachPort)
	assert.Equal(t, notification.Cancel, <-calls)
	assert.Equal(t, notification.ByMachPort, <-calls)

	h.Stop()
	waitDone(t, h)
	assert.Equal(t, 2, reg.cancelledCount(), "registrations are released on stop")
}

func TestHandlerWithCancellation_StartFailureReleases(t *testing.T) {
	reg := newFakeRegistrar()
	reg.failOn = notification.Cancel

	h := NewHandlerWithCancellation(context.Background(), reg)
	h.RegisterHandler(notification.ByMachPort, func() error { return nil })
	h.RegisterHandler(notification.BySignal, func() error { return nil })
	h.RegisterHandler(notification.Cancel, func() error { return nil })

	err := h.Start()
	assert.ErrorIs(t, err, errRegistrar)

	reg.mu.Lock()
	registered := len(reg.names)
	reg.mu.Unlock()
	assert.Equal(t, registered, reg.cancelledCount())
	waitDone(t, h)
}

func TestHandlerWithCancellation_ParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandlerWithCancellation(ctx, newFakeRegistrar())
	h.RegisterHandler(notification.ByMachPort, func() error { return nil })
	require.NoError(t, h.Start())

	cancel()
	waitDone(t, h)
}

func TestHandlerWithCancellation_Daemon(t *testing.T) {
	socketPath, srv := startDaemon(t)
	consumer := dial(t, socketPath)
	producer := dial(t, socketPath)
	ctx := testContext(t)

	h := NewHandlerWithCancellation(ctx, consumer)
	received := make(chan struct{}, 1)
	h.RegisterHandler(notification.ByMachPort, func() error {
		received <- struct{}{}
		return nil
	})
	h.RegisterHandler(notification.Cancel, func() error {
		h.Stop()
		return nil
	})
	require.NoError(t, h.Start())

	require.NoError(t, producer.Post(ctx, notification.ByMachPort))
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}

	require.NoError(t, producer.Post(ctx, notification.Cancel))
	waitDone(t, h)
	assert.Zero(t, srv.Registry().Stats().Registrations)
}
