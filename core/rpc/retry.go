package rpc

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
)

// IsReconnecting reports whether err means the transport lost its connection and
// is already re-establishing it. The failed request may be sent again as is.
func IsReconnecting(err error) bool {
	return clienterrors.IsDisconnectedWillReconnect(err)
}

func kindLabel(err error) string {
	return clienterrors.KindOf(err).String()
}

// RetryReconnecting runs fn until it succeeds, fails with an error other than
// DisconnectedWillReconnect, attempts are exhausted or ctx is done. The library
// never retries on its own; callers opt in through this helper.
func RetryReconnecting[T any](ctx context.Context, attempts uint, delay time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	return retry.DoWithData(
		func() (T, error) {
			return fn(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsReconnecting),
		retry.OnRetry(func(n uint, err error) {
			logger.WithField("attempt", n+1).Debugf("Retrying request after reconnect: %v", err)
		}),
	)
}
