package tx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/events"
	"github.com/chronicleprotocol/scalerpc/core/header"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

// Client submits encoded extrinsics.
type Client[N config.Number, H config.Hash, Hr config.Hasher[H]] struct {
	rpc *rpc.Legacy
}

func NewClient[N config.Number, H config.Hash, Hr config.Hasher[H]](legacy *rpc.Legacy) *Client[N, H, Hr] {
	return &Client[N, H, Hr]{rpc: legacy}
}

// ExtrinsicHash hashes a length prefixed extrinsic the way the pool does.
func ExtrinsicHash[H config.Hash, Hr config.Hasher[H]](ext []byte) H {
	var hasher Hr
	return hasher.Hash(ext)
}

// Submit sends the extrinsic without watching it and returns the hash the node
// reports for it.
func (c *Client[N, H, Hr]) Submit(ctx context.Context, ext []byte) (H, error) {
	var zero H
	raw, err := c.rpc.AuthorSubmitExtrinsic(ctx, ext)
	if err != nil {
		return zero, fmt.Errorf("failed to submit extrinsic: %w", err)
	}
	if len(raw) != 32 {
		return zero, clienterrors.Serialization(fmt.Errorf("extrinsic hash has %d bytes, expected 32", len(raw)))
	}
	return H([32]byte(raw)), nil
}

// SubmitAndWatch sends the extrinsic and returns a Progress following its
// status updates.
func (c *Client[N, H, Hr]) SubmitAndWatch(ctx context.Context, ext []byte) (*Progress[N, H, Hr], error) {
	sub, err := c.rpc.AuthorSubmitAndWatchExtrinsic(ctx, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to submit extrinsic: %w", err)
	}
	p := &Progress[N, H, Hr]{c: c, sub: sub, extHash: ExtrinsicHash[H, Hr](ext)}
	logger.WithField("txHash", p.extHash.String()).Debug("Extrinsic submitted")
	return p, nil
}

// Progress follows the status stream of one submitted extrinsic.
type Progress[N config.Number, H config.Hash, Hr config.Hasher[H]] struct {
	c       *Client[N, H, Hr]
	sub     rpc.Subscription
	extHash H
	done    bool
}

func (p *Progress[N, H, Hr]) ExtrinsicHash() H {
	return p.extHash
}

// Next returns the next status. After a final status it returns io.EOF. A
// stream that ends before a final status fails with SubscriptionDropped.
func (p *Progress[N, H, Hr]) Next(ctx context.Context) (Status[H], error) {
	if p.done {
		return Status[H]{}, io.EOF
	}
	raw, err := p.sub.Next(ctx)
	if errors.Is(err, io.EOF) {
		p.done = true
		return Status[H]{}, clienterrors.SubscriptionDropped()
	}
	if err != nil {
		return Status[H]{}, err
	}
	s, err := ParseStatus[H](json.RawMessage(raw))
	if err != nil {
		return Status[H]{}, err
	}
	logger.
		WithField("txHash", p.extHash.String()).
		WithField("status", s.Kind.String()).
		Debug("Extrinsic status update")
	if s.IsFinal() {
		p.done = true
		if err := p.sub.Unsubscribe(ctx); err != nil {
			logger.WithField("txHash", p.extHash.String()).Debugf("Failed to unsubscribe: %v", err)
		}
	}
	return s, nil
}

// WaitForFinalized consumes statuses until the extrinsic is finalized or
// fails. A zero timeout waits as long as ctx allows.
func (p *Progress[N, H, Hr]) WaitForFinalized(ctx context.Context, timeout time.Duration) (*InBlock[N, H, Hr], error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	for {
		s, err := p.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, clienterrors.Other("failed to wait for extrinsic finalization: %w", ctx.Err())
			}
			return nil, err
		}
		if s.Kind == InFinalizedBlock {
			logger.
				WithField("txHash", p.extHash.String()).
				WithField("block", s.Block.String()).
				Info("Extrinsic finalized")
			return &InBlock[N, H, Hr]{c: p.c, block: s.Block, extHash: p.extHash}, nil
		}
		if err := s.Err(); err != nil {
			return nil, err
		}
	}
}

// WaitForFinalizedSuccess waits for finalization and then checks that the
// extrinsic dispatched successfully. It returns the extrinsic's events.
func (p *Progress[N, H, Hr]) WaitForFinalizedSuccess(ctx context.Context, md *metadata.Metadata, timeout time.Duration) (*events.Events, error) {
	in, err := p.WaitForFinalized(ctx, timeout)
	if err != nil {
		return nil, err
	}
	return in.WaitForSuccess(ctx, md)
}

// InBlock is an extrinsic included in a block.
type InBlock[N config.Number, H config.Hash, Hr config.Hasher[H]] struct {
	c       *Client[N, H, Hr]
	block   H
	extHash H
}

func (b *InBlock[N, H, Hr]) BlockHash() H {
	return b.block
}

func (b *InBlock[N, H, Hr]) ExtrinsicHash() H {
	return b.extHash
}

// FetchHeader returns the header of the block. It fails with BlockNotFound if
// the node no longer knows the block.
func (b *InBlock[N, H, Hr]) FetchHeader(ctx context.Context) (*header.Header[N, H, Hr], error) {
	hash := [32]byte(b.block)
	raw, err := b.c.rpc.ChainGetHeader(ctx, hash[:])
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, clienterrors.TxBlockNotFoundError()
	}
	var h header.Header[N, H, Hr]
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ExtrinsicIndex finds the position of the extrinsic in the block body.
func (b *InBlock[N, H, Hr]) ExtrinsicIndex(ctx context.Context) (int, error) {
	hash := [32]byte(b.block)
	block, err := b.c.rpc.ChainGetBlock(ctx, hash[:])
	if err != nil {
		return 0, err
	}
	if block == nil {
		return 0, clienterrors.TxBlockNotFoundError()
	}
	for i, ext := range block.Extrinsics {
		if ExtrinsicHash[H, Hr](ext) == b.extHash {
			return i, nil
		}
	}
	return 0, clienterrors.TxErrorf("extrinsic %s not found in block %s", b.extHash.String(), b.block.String())
}

// FetchEvents returns the events emitted while applying the extrinsic.
func (b *InBlock[N, H, Hr]) FetchEvents(ctx context.Context, md *metadata.Metadata) (*events.Events, error) {
	idx, err := b.ExtrinsicIndex(ctx)
	if err != nil {
		return nil, err
	}
	hash := [32]byte(b.block)
	evs, err := events.NewClient(b.c.rpc, md).At(ctx, hash[:])
	if err != nil {
		return nil, err
	}
	return evs.ForExtrinsic(uint32(idx)), nil
}

// WaitForSuccess returns the extrinsic's events if it dispatched
// successfully. A System.ExtrinsicFailed event is returned as a Runtime error.
func (b *InBlock[N, H, Hr]) WaitForSuccess(ctx context.Context, md *metadata.Metadata) (*events.Events, error) {
	evs, err := b.FetchEvents(ctx, md)
	if err != nil {
		return nil, err
	}
	if ev, ok := evs.FindFirst("System", "ExtrinsicFailed"); ok {
		logger.WithField("txHash", b.extHash.String()).Debugf("Extrinsic failed: %s", ev)
		return nil, dispatchFailure(md, ev)
	}
	if !evs.Has("System", "ExtrinsicSuccess") {
		return nil, clienterrors.TxErrorf("no ExtrinsicSuccess or ExtrinsicFailed event for extrinsic %s", b.extHash.String())
	}
	return evs, nil
}

func dispatchFailure(md *metadata.Metadata, ev events.Event) error {
	v, ok := ev.Field("dispatch_error")
	if !ok {
		v, ok = ev.Fields.At(0)
	}
	if !ok {
		return clienterrors.Decode(fmt.Errorf("%s.%s carries no dispatch error", ev.Pallet, ev.Variant))
	}
	de, err := DispatchErrorFromValue(md, v)
	if err != nil {
		return clienterrors.Decode(err)
	}
	return clienterrors.Runtime(de)
}
