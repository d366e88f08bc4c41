// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package recover

import (
	"os"
	"runtime/debug"

	"github.com/amratab/xctool/internal/os/api"
	"github.com/amratab/xctool/pkg/log"
)

// Type will determine the behaviour of the PanicHandler.
type Type int

const (
	// LogAndFail will cause the main process to exit after the error information is logged.
	LogAndFail Type = iota
	// LogAndContinue will log a message and after that the main process will continue.
	LogAndContinue
)

var exit = os.Exit

// PanicHandler logs a recovered panic with its stack trace. Deferred directly,
// it captures panics from the goroutine it runs on.
func PanicHandler(recoverType Type) {
	r := recover()
	if r == nil {
		return
	}
	handle(recoverType, r)
}

func handle(recoverType Type, r interface{}) {
	logEntry := log.WithComponent("Recover").WithField("stacktrace", string(debug.Stack()))
	if err, ok := r.(error); ok {
		logEntry = logEntry.WithError(err)
	} else {
		logEntry = logEntry.WithField("panic", r)
	}

	if recoverType == LogAndFail {
		logEntry.Error("Unrecoverable panic, exiting.")
		exit(api.ExitCodeError)
		return
	}
	logEntry.Warn("Recovered from panic.")
}

// FuncWithPanicHandler runs function, usually on its own goroutine, under a PanicHandler.
func FuncWithPanicHandler(recoverType Type, function func()) {
	defer func() {
		if r := recover(); r != nil {
			handle(recoverType, r)
		}
	}()

	function()
}
