// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//go:build !linux && !darwin

package notifyd

import (
	"errors"
	"net"
)

var errNoPeerCredentials = errors.New("peer credentials not supported on this platform")

// peerPID is not available here, sessions rely on the PID sent with hello.
func peerPID(*net.UnixConn) (int, error) {
	return 0, errNoPeerCredentials
}
