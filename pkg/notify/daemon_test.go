// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notify

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amratab/xctool/internal/notifyd"
)

// startDaemon runs a notification daemon for the duration of the test.
func startDaemon(t *testing.T) (string, *notifyd.Server) {
	t.Helper()

	// socket paths are length limited, t.TempDir() can be too deep on darwin
	dir, err := os.MkdirTemp("", "notify")
	require.NoError(t, err)
	socketPath := filepath.Join(dir, "d.sock")

	srv := notifyd.NewServer(notifyd.Options{
		SocketPath:      socketPath,
		SocketMode:      0o600,
		DeliveryTimeout: time.Second,
	}, notifyd.NewRegistry(512, 16, nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-errCh)
		_ = os.RemoveAll(dir)
	})

	waitReady(t, srv)
	return socketPath, srv
}

func waitReady(t *testing.T, srv *notifyd.Server) {
	ready := make(chan struct{})
	go func() {
		srv.WaitUntilReady()
		close(ready)
	}()
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon not ready")
	}
}

func dial(t *testing.T, socketPath string) *Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
