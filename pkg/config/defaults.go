// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package config

import (
	"path/filepath"
	"time"
)

const (
	envPrefix = "notifyd"

	defaultSocketMode      = 0o666
	defaultStatusPort      = 18003
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultMaxNameLength   = 512
	defaultStateRetention  = 1024
	defaultDeliveryTimeout = time.Second
	defaultVerboseDuration = 5 * time.Minute
)

var (
	defaultSocketPath  = filepath.Join("/var", "run", "notifyd.sock")
	defaultConfigFiles = []string{
		filepath.Join("/etc", "notifyd", "notifyd.yml"),
		filepath.Join("/usr", "local", "etc", "notifyd", "notifyd.yml"),
	}
)
