// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/amratab/xctool/internal/notifyd"
	"github.com/amratab/xctool/internal/os/api/signals"
	"github.com/amratab/xctool/internal/statusapi"
	"github.com/amratab/xctool/pkg/config"
	"github.com/amratab/xctool/pkg/helpers/recover"
	"github.com/amratab/xctool/pkg/log"
)

var errNoUnixListener = errors.New("socket activation passed no unix stream listener")

// daemon wires configuration, the notification server and the status API.
type daemon struct {
	cfg      *config.Config
	promReg  *prometheus.Registry
	server   *notifyd.Server
	status   *statusapi.Server
	listener *net.UnixListener
	logger   log.Entry
}

func newDaemon(cfg *config.Config) *daemon {
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := notifyd.NewMetrics(promReg)
	registry := notifyd.NewRegistry(cfg.MaxNameLength, cfg.StateRetention, metrics)

	d := &daemon{
		cfg:     cfg,
		promReg: promReg,
		server: notifyd.NewServer(notifyd.Options{
			SocketPath:      cfg.SocketPath,
			SocketMode:      os.FileMode(cfg.SocketMode),
			DeliveryTimeout: cfg.DeliveryTimeout,
		}, registry, metrics),
		logger: log.WithComponent("Daemon"),
	}
	if cfg.StatusServerEnabled {
		d.status = statusapi.NewServer(cfg.StatusServerPort, d.server, promReg)
	}
	return d
}

// listen prefers a socket handed over by systemd, and creates the configured
// socket otherwise.
func (d *daemon) listen() error {
	listeners, err := activation.Listeners()
	if err != nil {
		return err
	}
	if len(listeners) > 0 {
		for _, l := range listeners {
			if ul, ok := l.(*net.UnixListener); ok && d.listener == nil {
				d.listener = ul
				continue
			}
			_ = l.Close()
		}
		if d.listener == nil {
			return errNoUnixListener
		}
		d.logger.WithField("addr", d.listener.Addr().String()).Info("Using socket activated listener.")
		return nil
	}

	d.listener, err = d.server.Listen()
	return err
}

// run serves until ctx is done. listen must have been called before.
func (d *daemon) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go recover.FuncWithPanicHandler(recover.LogAndFail, func() {
		serveErr <- d.server.Serve(ctx, d.listener)
	})

	statusErr := make(chan error, 1)
	if d.status != nil {
		go recover.FuncWithPanicHandler(recover.LogAndFail, func() {
			statusErr <- d.status.Serve(ctx)
		})
		d.status.WaitUntilReady()
	}
	d.server.WaitUntilReady()
	d.notifySystemd(sddaemon.SdNotifyReady)

	reload := make(chan struct{}, 1)
	if d.cfg.ConfigFilePath != "" {
		if err := config.NewChangesWatcher(d.cfg.ConfigFilePath).Watch(ctx, reload); err != nil {
			d.logger.WithError(err).Warn("Cannot watch configuration file, reload with SIGHUP.")
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, signals.Reload, signals.Delivery)
	defer signal.Stop(sigs)

	var watchdog <-chan time.Time
	if interval, err := sddaemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		watchdog = ticker.C
	}

	var err error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err = <-serveErr:
			serveErr = nil
			break loop
		case sErr := <-statusErr:
			if sErr != nil {
				d.logger.WithError(sErr).Warn("Status API stopped.")
			}
			statusErr = nil
		case sig := <-sigs:
			switch sig {
			case signals.Reload:
				d.reload()
			case signals.Delivery:
				log.EnableTemporaryVerbose(d.cfg.VerboseDuration)
			}
		case <-reload:
			d.reload()
		case <-watchdog:
			d.notifySystemd(sddaemon.SdNotifyWatchdog)
		}
	}

	d.notifySystemd(sddaemon.SdNotifyStopping)
	cancel()
	if serveErr != nil {
		err = multierr.Append(err, <-serveErr)
	}
	if statusErr != nil {
		err = multierr.Append(err, <-statusErr)
	}
	d.logger.Info("Daemon stopped.")
	return err
}

// reload applies the logging settings of the configuration file. Socket
// and registry settings need a restart.
func (d *daemon) reload() {
	defer recover.PanicHandler(recover.LogAndContinue)

	d.notifySystemd(sddaemon.SdNotifyReloading)
	defer d.notifySystemd(sddaemon.SdNotifyReady)

	cfg, err := config.LoadConfig(d.cfg.ConfigFilePath)
	if err != nil {
		d.logger.WithError(err).Warn("Cannot reload configuration, keeping the current one.")
		return
	}
	if d.cfg.Verbose > 0 {
		cfg.LogLevel = d.cfg.LogLevel
	}
	log.Configure(cfg.LogLevel, cfg.LogFormat == "json")
	d.logger.WithField("level", cfg.LogLevel).Info("Configuration reloaded.")
}

func (d *daemon) notifySystemd(state string) {
	sent, err := sddaemon.SdNotify(false, state)
	if err != nil {
		d.logger.WithError(err).WithField("state", state).Debug("Cannot notify systemd.")
		return
	}
	if sent {
		d.logger.WithField("state", state).Debug("Notified systemd.")
	}
}
