// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
// Command notifyutil posts notifications and consumes them through every
// delivery mechanism of the notification daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amratab/xctool/internal/os/api"
	"github.com/amratab/xctool/pkg/config"
	"github.com/amratab/xctool/pkg/helpers/recover"
	"github.com/amratab/xctool/pkg/log"
	"github.com/amratab/xctool/pkg/notify"
)

var (
	buildVersion = "development"
	gitCommit    = ""
)

var ulog = log.WithComponent("notifyutil")

func main() {
	defer recover.PanicHandler(recover.LogAndFail)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		ulog.WithError(err).Error("command failed")
	}
	os.Exit(api.CheckExitCode(err))
}

type globalOptions struct {
	socketPath string
	configFile string
	timeout    time.Duration
	verbose    bool
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "notifyutil",
		Short:         "Post and consume notifications",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.Configure("debug", false)
			} else {
				log.Configure("warn", false)
			}
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return api.NewExitCodeErr(api.ExitCodeUsage, err)
	})

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.socketPath, "socket", "s", "", "Daemon socket (default from the daemon configuration)")
	flags.StringVarP(&opts.configFile, "config", "c", "", "Daemon configuration file to read the socket from")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "Timeout for each request to the daemon")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(
		postCmd(opts),
		consumeCmd(opts),
		stateCmd(opts),
		namesCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "notifyutil version: %s, GoVersion: %s, GitCommit: %s\n",
					buildVersion, runtime.Version(), gitCommit)
			},
		},
	)
	return cmd
}

// usageArgs makes argument validation failures exit with the usage code.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return api.NewExitCodeErr(api.ExitCodeUsage, err)
		}
		return nil
	}
}

func (o *globalOptions) resolveSocket() (string, error) {
	if o.socketPath != "" {
		return o.socketPath, nil
	}
	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return "", api.NewExitCodeErr(api.ExitCodeConfig, err)
	}
	return cfg.SocketPath, nil
}

func (o *globalOptions) dial(ctx context.Context) (*notify.Client, error) {
	socketPath, err := o.resolveSocket()
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	c, err := notify.Dial(dialCtx, socketPath)
	if err != nil {
		return nil, api.NewExitCodeErr(api.ExitCodeUnavailable, err)
	}
	return c, nil
}

// requestContext bounds a single request to the daemon.
func (o *globalOptions) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.timeout)
}
