// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notify

import (
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify/wire"
)

func receive(t *testing.T, port *Port) Delivery {
	t.Helper()
	select {
	case d, ok := <-port.C:
		require.True(t, ok, "port closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery received")
	}
	return Delivery{}
}

func assertNothing(t *testing.T, port *Port) {
	t.Helper()
	select {
	case d := <-port.C:
		t.Fatalf("unexpected delivery: %+v", d)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_MachPort(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	socketPath, _ := startDaemon(t)
	consumer := dial(t, socketPath)
	producer := dial(t, socketPath)
	ctx := testContext(t)

	token, port, err := consumer.RegisterMachPort(ctx, notification.ByMachPort, nil)
	require.NoError(t, err)
	require.NotNil(t, port)

	require.NoError(t, producer.Post(ctx, notification.ByMachPort))
	assert.Equal(t, Delivery{Token: token, Name: notification.ByMachPort}, receive(t, port))

	// other names do not reach the port
	require.NoError(t, producer.Post(ctx, notification.BySignal))
	assertNothing(t, port)
}

func TestClient_MachPort_Reuse(t *testing.T) {
	socketPath, _ := startDaemon(t)
	c := dial(t, socketPath)
	ctx := testContext(t)

	t1, port, err := c.RegisterMachPort(ctx, notification.ByMachPort, nil)
	require.NoError(t, err)
	t2, reused, err := c.RegisterMachPort(ctx, notification.Cancel, port)
	require.NoError(t, err)
	assert.Same(t, port, reused)
	assert.NotEqual(t, t1, t2)

	require.NoError(t, c.Post(ctx, notification.Cancel))
	assert.Equal(t, Delivery{Token: t2, Name: notification.Cancel}, receive(t, port))
}

func TestClient_FileDescriptor(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	socketPath, _ := startDaemon(t)
	consumer := dial(t, socketPath)
	producer := dial(t, socketPath)
	ctx := testContext(t)

	token, d, err := consumer.RegisterFileDescriptor(ctx, notification.ByFileDescriptor, nil)
	require.NoError(t, err)
	defer d.Close()

	other, reused, err := consumer.RegisterFileDescriptor(ctx, notification.Cancel, d)
	require.NoError(t, err)
	assert.Same(t, d, reused)

	require.NoError(t, producer.Post(ctx, notification.ByFileDescriptor))
	require.NoError(t, d.File().SetReadDeadline(time.Now().Add(2*time.Second)))
	got, err := d.ReadToken()
	require.NoError(t, err)
	assert.Equal(t, token, got)

	require.NoError(t, producer.Post(ctx, notification.Cancel))
	got, err = d.ReadToken()
	require.NoError(t, err)
	assert.Equal(t, other, got)
}

func TestClient_Signal(t *testing.T) {
	socketPath, _ := startDaemon(t)
	c := dial(t, socketPath)
	ctx := testContext(t)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	_, err := c.RegisterSignal(ctx, notification.BySignal, syscall.SIGUSR1)
	require.NoError(t, err)

	require.NoError(t, c.Post(ctx, notification.BySignal))

	select {
	case sig := <-sigCh:
		assert.Equal(t, syscall.SIGUSR1, sig)
	case <-time.After(2 * time.Second): // signaling on busy nodes takes time
		t.Fatal("signal not received")
	}
}

func TestClient_Signal_Invalid(t *testing.T) {
	socketPath, _ := startDaemon(t)
	c := dial(t, socketPath)

	_, err := c.RegisterSignal(testContext(t), notification.BySignal, syscall.Signal(0))
	assert.ErrorIs(t, err, wire.ErrInvalidSignal)
}

func TestClient_Check(t *testing.T) {
	socketPath, _ := startDaemon(t)
	c := dial(t, socketPath)
	ctx := testContext(t)

	token, err := c.RegisterCheck(ctx, notification.BySignal)
	require.NoError(t, err)

	posted, err := c.Check(ctx, token)
	require.NoError(t, err)
	assert.True(t, posted)

	posted, err = c.Check(ctx, token)
	require.NoError(t, err)
	assert.False(t, posted)

	require.NoError(t, c.Post(ctx, notification.BySignal))
	posted, err = c.Check(ctx, token)
	require.NoError(t, err)
	assert.True(t, posted)
}

func TestClient_Cancel(t *testing.T) {
	socketPath, _ := startDaemon(t)
	c := dial(t, socketPath)
	ctx := testContext(t)

	token, port, err := c.RegisterMachPort(ctx, notification.ByMachPort, nil)
	require.NoError(t, err)
	require.NoError(t, c.Cancel(ctx, token))

	require.NoError(t, c.Post(ctx, notification.ByMachPort))
	assertNothing(t, port)

	assert.ErrorIs(t, c.Cancel(ctx, token), wire.ErrInvalidToken)
	_, err = c.Check(ctx, token)
	assert.ErrorIs(t, err, wire.ErrInvalidToken)
}

func TestClient_TokensBelongToTheirClient(t *testing.T) {
	socketPath, _ := startDaemon(t)
	owner := dial(t, socketPath)
	other := dial(t, socketPath)
	ctx := testContext(t)

	token, err := owner.RegisterCheck(ctx, notification.BySignal)
	require.NoError(t, err)
	assert.ErrorIs(t, other.Cancel(ctx, token), wire.ErrInvalidToken)
}

func TestClient_SuspendResume(t *testing.T) {
	socketPath, _ := startDaemon(t)
	c := dial(t, socketPath)
	ctx := testContext(t)

	token, port, err := c.RegisterMachPort(ctx, notification.ByMachPort, nil)
	require.NoError(t, err)
	require.NoError(t, c.Suspend(ctx, token))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Post(ctx, notification.ByMachPort))
	}
	assertNothing(t, port)

	require.NoError(t, c.Resume(ctx, token))
	assert.Equal(t, token, receive(t, port).Token)
	assertNothing(t, port)
}

func TestClient_State(t *testing.T) {
	socketPath, _ := startDaemon(t)
	writer := dial(t, socketPath)
	reader := dial(t, socketPath)
	ctx := testContext(t)

	wt, err := writer.RegisterCheck(ctx, notification.ByMachPort)
	require.NoError(t, err)
	require.NoError(t, writer.SetState(ctx, wt, 0xdeadbeef))

	rt, err := reader.RegisterCheck(ctx, notification.ByMachPort)
	require.NoError(t, err)
	state, err := reader.GetState(ctx, rt)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xdeadbeef), state)
}

func TestClient_InvalidName(t *testing.T) {
	socketPath, _ := startDaemon(t)
	c := dial(t, socketPath)
	ctx := testContext(t)

	assert.ErrorIs(t, c.Post(ctx, ""), wire.ErrInvalidName)
	_, d, err := c.RegisterFileDescriptor(ctx, "", nil)
	assert.ErrorIs(t, err, wire.ErrInvalidName)
	assert.Nil(t, d)
}

func TestClient_CloseReleasesRegistrations(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	socketPath, srv := startDaemon(t)
	c := dial(t, socketPath)
	ctx := testContext(t)

	_, _, err := c.RegisterMachPort(ctx, notification.ByMachPort, nil)
	require.NoError(t, err)
	_, err = c.RegisterCheck(ctx, notification.Cancel)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Registry().Stats().Registrations)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool {
		return srv.Registry().Stats().Registrations == 0 && srv.Clients() == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, c.Post(ctx, notification.Cancel), ErrClosed)
}

func TestClient_DaemonGone(t *testing.T) {
	socketPath, srv := startDaemon(t)
	c := dial(t, socketPath)
	ctx := testContext(t)

	_, port, err := c.RegisterMachPort(ctx, notification.ByMachPort, nil)
	require.NoError(t, err)

	srv.Shutdown()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the daemon going away")
	}
	_, ok := <-port.C
	assert.False(t, ok, "port is closed with the connection")
	assert.ErrorIs(t, c.Post(ctx, notification.ByMachPort), ErrClosed)
}

// fakeDaemon answers hello, then a register by sending the event for the new
// token ahead of the register response.
func fakeDaemon(t *testing.T, token Token) (string, <-chan error) {
	t.Helper()

	dir, err := os.MkdirTemp("", "notify")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	path := filepath.Join(dir, "fake.sock")

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() {
		defer l.Close()
		conn, err := l.AcceptUnix()
		if err != nil {
			served <- err
			return
		}
		defer conn.Close()

		dec := wire.NewDecoder(conn)
		enc := wire.NewEncoder(conn)
		var hello, register wire.Request
		if err := dec.Decode(&hello); err != nil {
			served <- err
			return
		}
		_ = enc.Encode(wire.Frame{Response: wire.Response{ID: hello.ID}})
		if err := dec.Decode(&register); err != nil {
			served <- err
			return
		}
		_ = enc.Encode(wire.Frame{Event: &wire.Event{Token: token, Name: register.Name}})
		_ = enc.Encode(wire.Frame{Response: wire.Response{ID: register.ID, Token: token}})

		// until the client disconnects
		var req wire.Request
		_ = dec.Decode(&req)
		served <- nil
	}()
	return path, served
}

func TestClient_EventAheadOfRegisterResponse(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	path, served := fakeDaemon(t, 7)
	c := dial(t, path)

	token, port, err := c.RegisterMachPort(testContext(t), notification.ByMachPort, nil)
	require.NoError(t, err)
	assert.Equal(t, Token(7), token)

	d := receive(t, port)
	assert.Equal(t, Token(7), d.Token)
	assert.Equal(t, notification.ByMachPort, d.Name)

	require.NoError(t, c.Close())
	require.NoError(t, <-served)
}
