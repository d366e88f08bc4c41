// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// notification domain decorators
package log

import (
	"github.com/sirupsen/logrus"
)

// WithComponent decorates log context with the component name.
func WithComponent(name string) Entry {
	return func() *logrus.Entry {
		return w.l.WithField("component", name)
	}
}

// WithComponent decorates entry context with the component name.
func (e Entry) WithComponent(name string) Entry {
	return e.WithField("component", name)
}

// WithNotification decorates entry context with a notification name.
func (e Entry) WithNotification(name string) Entry {
	return e.WithField("notification", name)
}

// WithToken decorates entry context with a registration token.
func (e Entry) WithToken(token int32) Entry {
	return e.WithField("token", token)
}

// WithSession decorates entry context with a client session ID.
func (e Entry) WithSession(id string) Entry {
	return e.WithField("session", id)
}
