// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/kardianos/service"

	"github.com/amratab/xctool/internal/os/api"
	"github.com/amratab/xctool/pkg/config"
	"github.com/amratab/xctool/pkg/helpers/recover"
)

var (
	GracefulExitTimeout    = 10 * time.Second
	GracefulExitTimeoutErr = errors.New("graceful stop time exceeded... forcing stop")
)

// program hooks the daemon into the service manager. When run from a
// terminal the service library stops it on SIGINT or SIGTERM.
type program struct {
	cfg    *config.Config
	cancel context.CancelFunc
	done   chan error
}

func newProgram(cfg *config.Config) *program {
	return &program{cfg: cfg}
}

// Start is called when the service manager tells us to start. Listening
// happens before returning so a busy socket fails the start.
func (p *program) Start(_ service.Service) error {
	d := newDaemon(p.cfg)
	if err := d.listen(); err != nil {
		return api.NewExitCodeErr(api.ExitCodeUnavailable, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go recover.FuncWithPanicHandler(recover.LogAndFail, func() {
		err := d.run(ctx)
		if err != nil {
			alog.WithError(err).Error("daemon stopped unexpectedly")
			os.Exit(api.CheckExitCode(err))
		}
		p.done <- nil
	})
	return nil
}

// Stop is called when the service manager commands us to stop.
func (p *program) Stop(_ service.Service) error {
	if p.cancel == nil {
		return nil
	}
	alog.Info("Service is stopping. waiting for clients to be released...")
	p.cancel()

	select {
	case err := <-p.done:
		return err
	case <-time.After(GracefulExitTimeout):
		return GracefulExitTimeoutErr
	}
}
