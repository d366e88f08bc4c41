// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package wire defines the frames exchanged between the notification daemon and
// its clients: newline delimited JSON over a Unix stream socket. Descriptors for
// file descriptor registrations travel as SCM_RIGHTS ancillary data.
package wire

import (
	"github.com/amratab/xctool/pkg/notification"
)

// Op is the operation a request asks for.
type Op string

const (
	OpHello    Op = "hello"
	OpPost     Op = "post"
	OpRegister Op = "register"
	OpCancel   Op = "cancel"
	OpCheck    Op = "check"
	OpSuspend  Op = "suspend"
	OpResume   Op = "resume"
	OpSetState Op = "set_state"
	OpGetState Op = "get_state"
)

// Token identifies a registration daemon wide.
type Token int32

// Request is sent by clients. Fields not used by Op are left empty.
type Request struct {
	ID        uint64                 `json:"id"`
	Op        Op                     `json:"op"`
	Name      notification.Name      `json:"name,omitempty"`
	Mechanism notification.Mechanism `json:"mechanism,omitempty"`
	Token     Token                  `json:"token,omitempty"`
	Signal    int                    `json:"signal,omitempty"`
	State     uint64                 `json:"state,omitempty"`
	PID       int                    `json:"pid,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID     uint64 `json:"id"`
	Status Status `json:"status"`
	Token  Token  `json:"token,omitempty"`
	State  uint64 `json:"state,omitempty"`
	Posted bool   `json:"posted,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Event is an asynchronous delivery for a mach port registration.
type Event struct {
	Token Token             `json:"token"`
	Name  notification.Name `json:"name"`
}

// Frame is what travels from the daemon to a client: a response, or an event
// when Event is set.
type Frame struct {
	Response
	Event *Event `json:"event,omitempty"`
}
