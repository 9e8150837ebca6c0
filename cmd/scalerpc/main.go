//  Copyright (C) 2021-2023 Chronicle Labs, Inc.
//
//  This program is free software: you can redistribute it and/or modify
//  it under the terms of the GNU Affero General Public License as
//  published by the Free Software Foundation, either version 3 of the
//  License, or (at your option) any later version.
//
//  This program is distributed in the hope that it will be useful,
//  but WITHOUT ANY WARRANTY; without even the implied warranty of
//  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//  GNU Affero General Public License for more details.
//
//  You should have received a copy of the GNU Affero General Public License
//  along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

// session is what every command runs against.
type session struct {
	ctx    context.Context
	opts   *options
	chain  chain
	legacy *rpc.Legacy
	out    io.Writer
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "scalerpc",
		Short:         "Query a Substrate-style node through its JSON-RPC interface",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.RpcURL, "rpc-url", "", "Node RPC URL, https:// or wss://. Falls back to "+envRpcURL)
	cmd.PersistentFlags().StringVar(&opts.Chain, "chain", chainSubstrate, "Chain configuration: substrate, polkadot or ethereum")
	cmd.PersistentFlags().BoolVar(&opts.Insecure, "insecure", false, "Allow unencrypted http:// and ws:// URLs")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "[Optional] Address to serve prometheus metrics on, e.g. `:9090`")

	// run wraps a command body with option checks and a connected transport.
	run := func(fn func(s *session, args []string) error) runE {
		return func(cmd *cobra.Command, args []string) error {
			if err := opts.check(); err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			opts.serveMetrics(ctx)

			t, release, err := opts.transport(ctx)
			if err != nil {
				return err
			}
			defer release()
			return fn(&session{
				ctx:    ctx,
				opts:   &opts,
				chain:  chainFor(opts.Chain),
				legacy: rpc.NewLegacy(t),
				out:    cmd.OutOrStdout(),
			}, args)
		}
	}

	cmd.AddCommand(
		newHeaderCmd(run),
		newFollowCmd(run),
		newCallCmd(run),
		newStorageRawCmd(run),
		newMetadataInfoCmd(run),
		newStorageCmd(run),
		newConstantCmd(run),
		newAccountCmd(run),
	)
	return cmd
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to load .env file: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		cancel()
		os.Exit(1)
	}
}
