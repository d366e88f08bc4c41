// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Package notification holds the notification names shared by producers and
// consumers, and the delivery mechanisms a consumer can select.
package notification

import (
	"errors"
	"fmt"
	"strings"
)

// Name identifies a notification. Producers post names, consumers register for them.
type Name string

// Prefix is the namespace every name below lives under.
const Prefix Name = "com.osxbook.notification."

// Names are matched verbatim by the daemon, any change breaks existing consumers.
const (
	ByFileDescriptor Name = Prefix + "descriptor"
	ByMachPort       Name = Prefix + "mach_port"
	BySignal         Name = Prefix + "signal"

	Cancel Name = Prefix + "cancel"
)

var (
	ErrEmptyName   = errors.New("notification name is empty")
	ErrNameTooLong = errors.New("notification name too long")
	ErrInvalidChar = errors.New("notification name contains invalid characters")
)

// Names returns the well-known names in declaration order.
func Names() []Name {
	return []Name{ByFileDescriptor, ByMachPort, BySignal, Cancel}
}

func (n Name) String() string {
	return string(n)
}

// HasPrefix reports whether the name belongs to the given namespace.
func (n Name) HasPrefix(prefix Name) bool {
	return strings.HasPrefix(string(n), string(prefix))
}

// Validate checks the name can be registered or posted. A maxLen <= 0 disables
// the length check.
func (n Name) Validate(maxLen int) error {
	if n == "" {
		return ErrEmptyName
	}
	if maxLen > 0 && len(n) > maxLen {
		return fmt.Errorf("%w: %d > %d", ErrNameTooLong, len(n), maxLen)
	}
	if strings.ContainsAny(string(n), "\x00\n") {
		return ErrInvalidChar
	}
	return nil
}
