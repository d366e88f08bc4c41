// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/kardianos/service"

	"github.com/amratab/xctool/internal/os/api"
	"github.com/amratab/xctool/pkg/config"
	"github.com/amratab/xctool/pkg/helpers/recover"
	"github.com/amratab/xctool/pkg/log"
)

var (
	configFile   string
	socketPath   string
	verbose      int
	showVersion  bool
	svcControl   string
	buildVersion = "development"
	gitCommit    = ""
	svcName      = "notifyd"
)

func init() {
	flag.StringVar(&configFile, "config", "", "Overrides default configuration file")
	flag.StringVar(&socketPath, "socket", "", "Overrides the Unix socket the daemon listens on")
	flag.IntVar(&verbose, "verbose", 0, "Higher numbers increase levels of logging. When enabled overrides provided config.")
	flag.BoolVar(&showVersion, "version", false, "Shows version details")
	flag.StringVar(&svcControl, "service", "", fmt.Sprintf("Controls the system service: %v", service.ControlAction))
}

var alog = log.WithComponent("Notification Daemon")

func main() {
	flag.Parse()

	defer recover.PanicHandler(recover.LogAndFail)

	if showVersion {
		fmt.Printf("notifyd version: %s, GoVersion: %s, GitCommit: %s\n",
			buildVersion, runtime.Version(), gitCommit)
		os.Exit(api.ExitCodeSuccess)
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		alog.WithError(err).Error("can't load configuration file")
		os.Exit(api.ExitCodeConfig)
	}
	applyFlags(cfg)
	log.Configure(cfg.LogLevel, cfg.LogFormat == "json")

	svc, err := service.New(newProgram(cfg), &service.Config{
		Name:        svcName,
		DisplayName: "Notification daemon",
		Description: "Delivers posted notifications to registered clients.",
		Arguments:   serviceArguments(),
	})
	if err != nil {
		alog.WithError(err).Error("Initializing service manager support...")
		os.Exit(api.ExitCodeError)
	}

	if svcControl != "" {
		if err := service.Control(svc, svcControl); err != nil {
			alog.WithError(err).WithField("action", svcControl).Error("service control failed")
			os.Exit(api.ExitCodeUsage)
		}
		alog.WithField("action", svcControl).Info("service control done")
		os.Exit(api.ExitCodeSuccess)
	}

	if err := svc.Run(); err != nil {
		alog.WithError(err).Error("daemon exited with error")
		os.Exit(api.CheckExitCode(err))
	}
}

func applyFlags(cfg *config.Config) {
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	if verbose > 0 {
		cfg.Verbose = verbose
		cfg.LogLevel = "debug"
	}
}

// serviceArguments are the flags the installed service runs with.
func serviceArguments() []string {
	var args []string
	if configFile != "" {
		args = append(args, "-config", configFile)
	}
	if socketPath != "" {
		args = append(args, "-socket", socketPath)
	}
	return args
}
