// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notify

import (
	"context"
	"encoding/binary"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify/wire"
)

// Descriptor is the read end of a pipe the daemon writes delivered tokens to,
// 4 bytes big endian each. Several registrations can share a descriptor.
type Descriptor struct {
	r *os.File
	w *os.File
}

func newDescriptor() (*Descriptor, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "cannot create notification pipe")
	}
	return &Descriptor{r: r, w: w}, nil
}

// File is the readable end, usable with poll or select style APIs.
func (d *Descriptor) File() *os.File {
	return d.r
}

// ReadToken blocks until the next token is delivered.
func (d *Descriptor) ReadToken() (Token, error) {
	var buf [4]byte
	if _, err := io.ReadFull(d.r, buf[:]); err != nil {
		return 0, err
	}
	return Token(int32(binary.BigEndian.Uint32(buf[:]))), nil
}

// Close closes both ends of the pipe.
func (d *Descriptor) Close() error {
	return multierr.Append(d.w.Close(), d.r.Close())
}

// RegisterFileDescriptor registers for name, delivered by writing the token
// to a pipe. A nil reuse creates a new pipe, otherwise reuse receives the tokens.
func (c *Client) RegisterFileDescriptor(ctx context.Context, name notification.Name, reuse *Descriptor) (Token, *Descriptor, error) {
	d := reuse
	if d == nil {
		var err error
		if d, err = newDescriptor(); err != nil {
			return 0, nil, err
		}
	}

	resp, err := c.send(ctx, wire.Request{
		Op:        wire.OpRegister,
		Name:      name,
		Mechanism: notification.FileDescriptor,
	}, d.w, nil)
	if err != nil {
		if reuse == nil {
			_ = d.Close()
		}
		return 0, reuse, err
	}
	return resp.Token, d, nil
}
