// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package wire

import (
	"errors"
	"fmt"
)

// Status is the outcome of a request.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidRequest
	StatusInvalidName
	StatusInvalidToken
	StatusInvalidPort
	StatusInvalidFile
	StatusInvalidSignal
	StatusFailed
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInvalidName    = errors.New("invalid notification name")
	ErrInvalidToken   = errors.New("invalid token")
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidFile    = errors.New("invalid file descriptor")
	ErrInvalidSignal  = errors.New("invalid signal")
	ErrFailed         = errors.New("request failed")
)

var statusErrors = map[Status]error{
	StatusInvalidRequest: ErrInvalidRequest,
	StatusInvalidName:    ErrInvalidName,
	StatusInvalidToken:   ErrInvalidToken,
	StatusInvalidPort:    ErrInvalidPort,
	StatusInvalidFile:    ErrInvalidFile,
	StatusInvalidSignal:  ErrInvalidSignal,
	StatusFailed:         ErrFailed,
}

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	if err, ok := statusErrors[s]; ok {
		return err.Error()
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Err returns nil for StatusOK and the matching sentinel otherwise, so callers
// can errors.Is against the Err* values.
func (s Status) Err() error {
	if s == StatusOK {
		return nil
	}
	if err, ok := statusErrors[s]; ok {
		return err
	}
	return fmt.Errorf("%w: %s", ErrFailed, s)
}

// StatusOf maps an error back to the status reported on the wire.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	for status, sentinel := range statusErrors {
		if errors.Is(err, sentinel) {
			return status
		}
	}
	return StatusFailed
}

// Err turns a non OK response into an error carrying the daemon message.
func (r Response) Err() error {
	err := r.Status.Err()
	if err == nil || r.Error == "" || r.Error == err.Error() {
		return err
	}
	return fmt.Errorf("%w: %s", err, r.Error)
}
