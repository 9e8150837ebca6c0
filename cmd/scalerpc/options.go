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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/rpc"
	"github.com/chronicleprotocol/scalerpc/pkg/transport"
)

const envRpcURL = "SCALERPC_RPC_URL"

const (
	chainSubstrate = "substrate"
	chainPolkadot  = "polkadot"
	chainEthereum  = "ethereum"
)

type options struct {
	RpcURL      string
	Chain       string
	Insecure    bool
	LogLevel    string
	MetricsAddr string
}

// check validates the options and applies the log level.
func (o *options) check() error {
	if o.RpcURL == "" {
		o.RpcURL = os.Getenv(envRpcURL)
	}
	if o.RpcURL == "" {
		return fmt.Errorf("please provide RPC URL using `--rpc-url` flag or %s", envRpcURL)
	}
	switch o.Chain {
	case chainSubstrate, chainPolkadot, chainEthereum:
	default:
		return fmt.Errorf("unknown chain %q, expected %s, %s or %s", o.Chain, chainSubstrate, chainPolkadot, chainEthereum)
	}
	lvl, err := logger.ParseLevel(o.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)
	return nil
}

// subscribes reports whether the URL points at a transport that can carry
// subscriptions.
func (o *options) subscribes() bool {
	u, err := url.Parse(o.RpcURL)
	return err == nil && (u.Scheme == "ws" || u.Scheme == "wss")
}

// transport picks the transport by URL scheme. The returned function releases
// it.
func (o *options) transport(ctx context.Context) (rpc.Transport, func(), error) {
	if o.subscribes() {
		ws, err := transport.DialWS(ctx, transport.WSOptions{URL: o.RpcURL, AllowInsecure: o.Insecure})
		if err != nil {
			return nil, nil, err
		}
		return ws, func() { _ = ws.Close() }, nil
	}
	h, err := transport.NewHTTP(transport.HTTPOptions{URL: o.RpcURL, AllowInsecure: o.Insecure})
	if err != nil {
		return nil, nil, err
	}
	return h, func() {}, nil
}

// serveMetrics exposes the RPC metrics until ctx is done. It is a no-op
// without --metrics-addr.
func (o *options) serveMetrics(ctx context.Context) {
	if o.MetricsAddr == "" {
		return
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(rpc.Collectors()...)
	srv := &http.Server{
		Addr:              o.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.WithField("addr", o.MetricsAddr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}
