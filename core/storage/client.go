package storage

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

// Client reads storage at a given block. A nil block hash reads at the best
// block.
type Client struct {
	rpc *rpc.Legacy
	md  *metadata.Metadata
}

func NewClient(legacy *rpc.Legacy, md *metadata.Metadata) *Client {
	return &Client{rpc: legacy, md: md}
}

// FetchRaw returns the raw value under key, or nil if there is none.
func (c *Client) FetchRaw(ctx context.Context, key []byte, at []byte) ([]byte, error) {
	return c.rpc.StateGetStorage(ctx, key, at)
}

// Fetch reads and decodes the value at addr. When the key is absent, entries
// with a default value decode that default and found is true; optional entries
// return found false.
func (c *Client) Fetch(ctx context.Context, addr Address, at []byte) (v dynamic.Value, found bool, err error) {
	_, entry, err := addr.Lookup(c.md)
	if err != nil {
		return dynamic.Value{}, false, err
	}
	key, err := addr.Key(c.md)
	if err != nil {
		return dynamic.Value{}, false, err
	}
	raw, err := c.FetchRaw(ctx, key, at)
	if err != nil {
		return dynamic.Value{}, false, fmt.Errorf("failed to fetch %s: %w", addr, err)
	}
	if raw == nil {
		if entry.Modifier != metadata.Default {
			return dynamic.Value{}, false, nil
		}
		logger.WithField("entry", addr.String()).Debug("Storage value absent, using default")
		raw = entry.Default
	}
	v, err = dynamic.Decode(c.md.Types, entry.ValueType, raw)
	if err != nil {
		return dynamic.Value{}, false, err
	}
	return v, true, nil
}

// DefaultValue decodes the default value declared for the entry.
func DefaultValue(md *metadata.Metadata, pallet, entry string) (dynamic.Value, error) {
	_, e, err := Address{Pallet: pallet, Entry: entry}.Lookup(md)
	if err != nil {
		return dynamic.Value{}, err
	}
	if e.Modifier != metadata.Default {
		return dynamic.Value{}, clienterrors.MetadataErr(clienterrors.StorageDefaultNotFound, pallet+"."+entry)
	}
	return dynamic.Decode(md.Types, e.ValueType, e.Default)
}

// Constant decodes a pallet constant.
func Constant(md *metadata.Metadata, pallet, name string) (dynamic.Value, error) {
	p, err := md.Pallet(pallet)
	if err != nil {
		return dynamic.Value{}, err
	}
	c, ok := p.Constant(name)
	if !ok {
		return dynamic.Value{}, clienterrors.MetadataErr(clienterrors.ConstantNameNotFound, pallet+"."+name)
	}
	return dynamic.Decode(md.Types, c.Type, c.Value)
}
