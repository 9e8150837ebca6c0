// Package transport implements rpc.Transport over HTTP and websockets.
package transport

import (
	"fmt"
	"net/url"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
)

// checkURL rejects unencrypted URLs unless insecure ones are allowed.
func checkURL(raw string, allowInsecure bool, secure, insecure string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return clienterrors.ClientError(fmt.Errorf("invalid URL %q: %w", raw, err))
	}
	switch u.Scheme {
	case secure:
		return nil
	case insecure:
		if allowInsecure {
			return nil
		}
		return clienterrors.InsecureURL(raw)
	default:
		return clienterrors.ClientError(fmt.Errorf("unsupported URL scheme %q, expected %s or %s", u.Scheme, secure, insecure))
	}
}
