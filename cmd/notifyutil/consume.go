// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/amratab/xctool/internal/os/api"
	"github.com/amratab/xctool/internal/os/api/signals"
	"github.com/amratab/xctool/pkg/notification"
	"github.com/amratab/xctool/pkg/notify"
)

func consumeCmd(opts *globalOptions) *cobra.Command {
	var sigName string

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Register for every well known name and print deliveries until cancelled",
		Long: fmt.Sprintf(`Registers %s through a pipe, %s through a port,
%s through a signal and %s on the same port.
Every delivery is printed. Posting %s ends the command.`,
			notification.ByFileDescriptor, notification.ByMachPort, notification.BySignal,
			notification.Cancel, notification.Cancel),
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := signals.Parse(sigName)
			if err != nil {
				return api.NewExitCodeErr(api.ExitCodeUsage, err)
			}

			c, err := opts.dial(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			return consume(cmd.Context(), c, cmd.OutOrStdout(), sig)
		},
	}
	cmd.Flags().StringVar(&sigName, "signal", signals.DeliveryStr, "Signal delivering "+string(notification.BySignal))
	return cmd
}

const releaseTimeout = 2 * time.Second

type consumer struct {
	client *notify.Client
	out    io.Writer
	tokens []notify.Token
}

// consume registers for the four names and prints deliveries until Cancel is
// posted, ctx is done or the daemon goes away.
func consume(ctx context.Context, c *notify.Client, out io.Writer, sig syscall.Signal) (err error) {
	cs := &consumer{client: c, out: out}

	// before registering, the default action of most signals is to terminate
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sig)
	defer signal.Stop(sigCh)
	defer func() {
		err = multierr.Append(err, cs.release())
	}()

	fdToken, desc, err := c.RegisterFileDescriptor(ctx, notification.ByFileDescriptor, nil)
	if err != nil {
		return err
	}
	defer desc.Close()
	cs.tokens = append(cs.tokens, fdToken)

	portToken, port, err := c.RegisterMachPort(ctx, notification.ByMachPort, nil)
	if err != nil {
		return err
	}
	cs.tokens = append(cs.tokens, portToken)

	cancelToken, _, err := c.RegisterMachPort(ctx, notification.Cancel, port)
	if err != nil {
		return err
	}
	cs.tokens = append(cs.tokens, cancelToken)

	sigToken, err := c.RegisterSignal(ctx, notification.BySignal, sig)
	if err != nil {
		return err
	}
	cs.tokens = append(cs.tokens, sigToken)

	fdCh := make(chan notify.Token)
	stop := make(chan struct{})
	defer close(stop)
	go readDescriptor(desc, fdCh, stop)

	ulog.WithField("tokens", cs.tokens).Debug("Waiting for notifications.")
	for {
		select {
		case token, ok := <-fdCh:
			if !ok {
				return fmt.Errorf("descriptor for %s closed", notification.ByFileDescriptor)
			}
			cs.print(notification.FileDescriptor.String(), token, notification.ByFileDescriptor)
		case delivery, ok := <-port.C:
			if !ok {
				return notify.ErrClosed
			}
			if delivery.Token == cancelToken {
				cs.print("cancel", delivery.Token, delivery.Name)
				return nil
			}
			cs.print(notification.MachPort.String(), delivery.Token, delivery.Name)
		case <-sigCh:
			cs.print(notification.Signal.String(), sigToken, notification.BySignal)
		case <-c.Done():
			return notify.ErrClosed
		case <-ctx.Done():
			return nil
		}
	}
}

func readDescriptor(desc *notify.Descriptor, tokens chan<- notify.Token, stop <-chan struct{}) {
	defer close(tokens)
	for {
		token, err := desc.ReadToken()
		if err != nil {
			return
		}
		select {
		case tokens <- token:
		case <-stop:
			return
		}
	}
}

func (cs *consumer) print(mechanism string, token notify.Token, name notification.Name) {
	fmt.Fprintf(cs.out, "%s token=%d name=%s\n", mechanism, token, name)
}

// release cancels every registration, tolerating a daemon that went away.
func (cs *consumer) release() error {
	var err error
	for _, token := range cs.tokens {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		cErr := cs.client.Cancel(ctx, token)
		cancel()
		if cErr != nil && !errors.Is(cErr, notify.ErrClosed) {
			err = multierr.Append(err, cErr)
		}
	}
	cs.tokens = nil
	return err
}
