package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ethtransport "github.com/defiweb/go-eth/rpc/transport"
	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

// HTTP sends every request as a separate JSON-RPC call. It cannot carry
// subscriptions.
type HTTP struct {
	url string
	t   ethtransport.Transport
}

var _ rpc.Transport = (*HTTP)(nil)

type HTTPOptions struct {
	URL           string
	AllowInsecure bool
}

func NewHTTP(opts HTTPOptions) (*HTTP, error) {
	if err := checkURL(opts.URL, opts.AllowInsecure, "https", "http"); err != nil {
		return nil, err
	}
	t, err := ethtransport.NewHTTP(ethtransport.HTTPOptions{URL: opts.URL})
	if err != nil {
		return nil, clienterrors.ClientError(fmt.Errorf("failed to create HTTP transport: %w", err))
	}
	logger.WithField("url", opts.URL).Debug("HTTP transport ready")
	return &HTTP{url: opts.URL, t: t}, nil
}

func (h *HTTP) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var result json.RawMessage
	if err := h.t.Call(ctx, &result, method, params...); err != nil {
		var rpcErr *ethtransport.RPCError
		if errors.As(err, &rpcErr) {
			return nil, clienterrors.RequestRejected(fmt.Sprintf("%d: %s", rpcErr.Code, rpcErr.Message))
		}
		return nil, clienterrors.ClientError(err)
	}
	return result, nil
}

func (h *HTTP) Subscribe(context.Context, string, string, ...any) (rpc.Subscription, error) {
	return nil, clienterrors.ClientError(fmt.Errorf("subscriptions are not supported over HTTP (%s)", h.url))
}
