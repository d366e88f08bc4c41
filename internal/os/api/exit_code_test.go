// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeErr_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *ExitCodeErr
		expected string
	}{
		{
			name:     "no cause",
			err:      NewExitCodeErr(ExitCodeUsage, nil),
			expected: "returned non zero exit: 2",
		},
		{
			name:     "with cause",
			err:      NewExitCodeErr(ExitCodeUnavailable, errors.New("daemon not running")),
			expected: "daemon not running",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestExitCodeErr_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := NewExitCodeErr(ExitCodeConfig, cause)
	assert.True(t, errors.Is(err, cause))
}

func TestCheckExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: ExitCodeSuccess},
		{name: "plain error", err: errors.New("boom"), expected: ExitCodeError},
		{name: "exit code error", err: NewExitCodeErr(ExitCodeUnavailable, nil), expected: ExitCodeUnavailable},
		{
			name:     "wrapped exit code error",
			err:      fmt.Errorf("running: %w", NewExitCodeErr(ExitCodeConfig, nil)),
			expected: ExitCodeConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CheckExitCode(tt.err))
		})
	}
}
