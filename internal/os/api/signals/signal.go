// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package signals

import (
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

const (
	// DeliveryStr names the default signal sent to signal-mechanism consumers.
	DeliveryStr = "SIGUSR1"
	// ReloadStr names the signal that makes the daemon reload its configuration.
	ReloadStr = "SIGHUP"
)

// Parse resolves "SIGUSR1", "USR1" or a decimal number into a signal.
func Parse(s string) (syscall.Signal, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("invalid signal number: %d", n)
		}
		return syscall.Signal(n), nil
	}

	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	if sig, ok := byName[name]; ok {
		return sig, nil
	}
	return 0, fmt.Errorf("unknown signal: %q", s)
}
