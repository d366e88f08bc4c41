// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package notify

import (
	"context"
	"sync"

	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify/wire"
)

// DefaultPortQueueSize is the number of deliveries a port buffers before dropping.
const DefaultPortQueueSize = 64

// Delivery is a notification received on a Port.
type Delivery struct {
	Token Token
	Name  notification.Name
}

// Port is a message queue of deliveries, the mach port mechanism. Several
// registrations can share a port. A full port drops deliveries, and the
// channel is closed when the client connection goes away.
type Port struct {
	C <-chan Delivery

	mu     sync.Mutex
	ch     chan Delivery
	closed bool
	drops  uint64
}

func newPort(size int) *Port {
	ch := make(chan Delivery, size)
	return &Port{C: ch, ch: ch}
}

// Dropped returns how many deliveries were lost because the port was full.
func (p *Port) Dropped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.drops
}

func (p *Port) deliver(ev wire.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	select {
	case p.ch <- Delivery{Token: ev.Token, Name: ev.Name}:
	default:
		p.drops++
		clog.WithToken(int32(ev.Token)).WithNotification(string(ev.Name)).Debug("Port full, delivery dropped.")
	}
}

func (p *Port) close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.ch)
	}
}

// RegisterMachPort registers for name, delivered on a port. A nil reuse
// creates a new port, otherwise deliveries are queued on reuse.
func (c *Client) RegisterMachPort(ctx context.Context, name notification.Name, reuse *Port) (Token, *Port, error) {
	port := reuse
	if port == nil {
		port = newPort(c.portQueueSize)
	}

	resp, err := c.send(ctx, wire.Request{
		Op:        wire.OpRegister,
		Name:      name,
		Mechanism: notification.MachPort,
	}, nil, port)
	if err != nil {
		return 0, reuse, err
	}
	return resp.Token, port, nil
}
