// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
//go:build linux || darwin || freebsd

package signals

import (
	"syscall"
)

const (
	// Delivery is the default signal for signal-mechanism registrations.
	Delivery = syscall.SIGUSR1
	// Reload asks the daemon to re-read its configuration file.
	Reload = syscall.SIGHUP
)

var byName = map[string]syscall.Signal{
	"SIGHUP":   syscall.SIGHUP,
	"SIGINT":   syscall.SIGINT,
	"SIGTERM":  syscall.SIGTERM,
	"SIGUSR1":  syscall.SIGUSR1,
	"SIGUSR2":  syscall.SIGUSR2,
	"SIGALRM":  syscall.SIGALRM,
	"SIGWINCH": syscall.SIGWINCH,
}
