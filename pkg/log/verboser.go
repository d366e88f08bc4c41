// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package log

import (
	"time"

	"github.com/sirupsen/logrus"
)

var vlog = WithComponent("Verboser")

// DefaultVerboseDuration is how long EnableTemporaryVerbose keeps debug on.
const DefaultVerboseDuration = 5 * time.Minute

// guards against overlapping temporary verbose windows
var sem = make(chan struct{}, 1)

// EnableTemporaryVerbose switches to debug level for d and restores the
// previous level afterwards. Returns false if a window is already open.
func EnableTemporaryVerbose(d time.Duration) bool {
	select {
	case sem <- struct{}{}:
	default:
		vlog.Info("temporary verbose logging already enabled")
		return false
	}

	prevLvl := GetLevel()
	vlog.WithField("duration", d.String()).Info("enabling temporary verbose logging")
	SetLevel(logrus.DebugLevel)

	go func() {
		defer func() { <-sem }()

		time.Sleep(d)
		SetLevel(prevLvl)
		vlog.WithField("level", prevLvl.String()).Info("temporary verbose logging ended, previous level restored")
	}()
	return true
}
