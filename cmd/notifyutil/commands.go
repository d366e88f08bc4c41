// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/amratab/xctool/internal/os/api"
	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify"
)

func postCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "post NAME...",
		Short: "Post one or more notifications",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			for _, arg := range args {
				ctx, cancel := opts.requestContext(cmd.Context())
				err := post(ctx, c, notification.Name(arg))
				cancel()
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func post(ctx context.Context, c *notify.Client, name notification.Name) error {
	if err := c.Post(ctx, name); err != nil {
		return fmt.Errorf("cannot post %s: %w", name, err)
	}
	ulog.WithNotification(string(name)).Debug("Posted.")
	return nil
}

func stateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Read or write the state attached to a name",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get NAME",
			Short: "Print the state of a name",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := opts.dial(cmd.Context())
				if err != nil {
					return err
				}
				defer c.Close()

				ctx, cancel := opts.requestContext(cmd.Context())
				defer cancel()
				state, err := getState(ctx, c, notification.Name(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), state)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set NAME VALUE",
			Short: "Set the state of a name",
			Args:  usageArgs(cobra.ExactArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := strconv.ParseUint(args[1], 0, 64)
				if err != nil {
					return api.NewExitCodeErr(api.ExitCodeUsage, fmt.Errorf("invalid state %q: %w", args[1], err))
				}

				c, err := opts.dial(cmd.Context())
				if err != nil {
					return err
				}
				defer c.Close()

				ctx, cancel := opts.requestContext(cmd.Context())
				defer cancel()
				return setState(ctx, c, notification.Name(args[0]), value)
			},
		},
	)
	return cmd
}

// getState reads through a short lived check registration.
func getState(ctx context.Context, c *notify.Client, name notification.Name) (state uint64, err error) {
	token, err := c.RegisterCheck(ctx, name)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = multierr.Append(err, c.Cancel(ctx, token))
	}()

	return c.GetState(ctx, token)
}

// setState writes through a short lived check registration. The daemon keeps
// the state once the registration is gone.
func setState(ctx context.Context, c *notify.Client, name notification.Name, state uint64) (err error) {
	token, err := c.RegisterCheck(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, c.Cancel(ctx, token))
	}()

	return c.SetState(ctx, token, state)
}

func namesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names",
		Short: "Print the well known notification names",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			printNames(cmd.OutOrStdout())
		},
	}
}

func printNames(w io.Writer) {
	for _, name := range notification.Names() {
		mechanism := "cancel"
		if m, ok := notification.MechanismOf(name); ok {
			mechanism = m.String()
		}
		fmt.Fprintf(w, "%-10s %s\n", mechanism, name)
	}
}
