// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notifyd

import (
	"encoding/binary"
	"errors"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify/wire"
)

// Target receives the deliveries of one registration.
type Target interface {
	Deliver(token wire.Token, name notification.Name) error
	Close() error
}

// fileTarget writes the token, 4 bytes big endian, to a pipe the consumer reads.
type fileTarget struct {
	f       *os.File
	timeout time.Duration
}

// newFileTarget takes ownership of fd.
func newFileTarget(fd int, timeout time.Duration) (*fileTarget, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	// non blocking descriptors go through the poller, so write deadlines apply
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	return &fileTarget{
		f:       os.NewFile(uintptr(fd), "notification-descriptor"),
		timeout: timeout,
	}, nil
}

func (t *fileTarget) Deliver(token wire.Token, _ notification.Name) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(token))
	if t.timeout > 0 {
		// not every descriptor supports deadlines, a plain write is still fine
		_ = t.f.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	_, err := t.f.Write(buf[:])
	return err
}

func (t *fileTarget) Close() error {
	return t.f.Close()
}

// portTarget queues an event frame on the owning client connection.
type portTarget struct {
	s *session
}

func (t portTarget) Deliver(token wire.Token, name notification.Name) error {
	return t.s.sendEvent(token, name)
}

func (t portTarget) Close() error {
	return nil
}

// signalTarget signals the consumer process.
type signalTarget struct {
	pid int
	sig syscall.Signal
}

func (t signalTarget) Deliver(wire.Token, notification.Name) error {
	return unix.Kill(t.pid, t.sig)
}

func (t signalTarget) Close() error {
	return nil
}

// checkTarget only flips the posted flag, consumers poll with check.
type checkTarget struct{}

func (checkTarget) Deliver(wire.Token, notification.Name) error {
	return nil
}

func (checkTarget) Close() error {
	return nil
}

// consumerGone reports delivery errors meaning the consumer will never read again.
func consumerGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ESRCH) ||
		errors.Is(err, os.ErrClosed)
}

func validSignal(sig int) bool {
	return sig > 0 && unix.SignalName(syscall.Signal(sig)) != ""
}
