package runtimeapi

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

// Client executes runtime API payloads through state_call.
type Client struct {
	rpc *rpc.Legacy
	md  *metadata.Metadata
}

func NewClient(legacy *rpc.Legacy, md *metadata.Metadata) *Client {
	return &Client{rpc: legacy, md: md}
}

// CallRaw validates and encodes the payload and returns the raw output.
func (c *Client) CallRaw(ctx context.Context, p Payload, at []byte) ([]byte, error) {
	if err := p.Validate(c.md); err != nil {
		return nil, err
	}
	args, err := p.EncodeArgs(c.md)
	if err != nil {
		return nil, err
	}
	logger.WithField("method", p.FunctionName()).Debugf("Calling runtime API with %d bytes of arguments", len(args))
	out, err := c.rpc.StateCall(ctx, p.FunctionName(), args, at)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", p.FunctionName(), err)
	}
	return out, nil
}

// Call runs the payload and decodes the output against the function's output
// type. The output must be consumed exactly.
func (c *Client) Call(ctx context.Context, p Payload, at []byte) (dynamic.Value, error) {
	_, method, err := c.md.RuntimeFn(p.FunctionName())
	if err != nil {
		return dynamic.Value{}, err
	}
	out, err := c.CallRaw(ctx, p, at)
	if err != nil {
		return dynamic.Value{}, err
	}
	return dynamic.Decode(c.md.Types, method.Output, out)
}

// FetchMetadata asks the runtime for its metadata in the given version through
// Metadata_metadata_at_version and falls back to state_getMetadata when the
// runtime does not offer that version.
func FetchMetadata(ctx context.Context, legacy *rpc.Legacy, version uint8, at []byte) (*metadata.Metadata, error) {
	arg := codec.NewWriter()
	_ = arg.WriteU32(uint32(version))
	out, err := legacy.StateCall(ctx, "Metadata_metadata_at_version", arg.Bytes(), at)
	if err == nil {
		r := codec.NewReader(out)
		if some, err := r.ReadOption(); err == nil && some {
			blob, err := r.ReadVec()
			if err == nil && r.Finish() == nil {
				return metadata.Decode(blob)
			}
		}
	} else if rpc.IsReconnecting(err) {
		return nil, err
	}
	logger.WithField("version", version).Debugf("Metadata version not offered by the runtime, using state_getMetadata")
	blob, err := legacy.StateGetMetadata(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	return metadata.Decode(blob)
}
