// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package api

import (
	"errors"
	"fmt"
)

const (
	// ExitCodeSuccess is returned when the process has finished successfully.
	ExitCodeSuccess = 0
	// ExitCodeError is returned when the process has failed.
	ExitCodeError = 1
	// ExitCodeUsage is returned on invalid command line arguments.
	ExitCodeUsage = 2
	// ExitCodeUnavailable is returned when the daemon cannot be reached.
	ExitCodeUnavailable = 69
	// ExitCodeConfig is returned when the configuration cannot be loaded.
	ExitCodeConfig = 78
)

// ExitCodeErr carries the status code a command should exit with.
type ExitCodeErr struct {
	exitCode int
	err      error
}

func (e *ExitCodeErr) Error() string {
	if e.err == nil {
		return fmt.Sprintf("returned non zero exit: %d", e.exitCode)
	}
	return e.err.Error()
}

func (e *ExitCodeErr) Unwrap() error {
	return e.err
}

func (e *ExitCodeErr) ExitCode() int {
	return e.exitCode
}

// NewExitCodeErr wraps err, which can be nil, with an exit code.
func NewExitCodeErr(exitCode int, err error) *ExitCodeErr {
	return &ExitCodeErr{
		exitCode: exitCode,
		err:      err,
	}
}

// CheckExitCode returns the exit code for err: success for nil, the carried
// code for an ExitCodeErr anywhere in the chain, ExitCodeError otherwise.
func CheckExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var exitErr *ExitCodeErr
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return ExitCodeError
}
