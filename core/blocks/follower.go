package blocks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/header"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

const DefaultPollInterval = 6 * time.Second

type FollowerOptions struct {
	// Chain labels the last finalized block metric.
	Chain string
	// Interval between polls. Zero uses DefaultPollInterval.
	Interval time.Duration
	// Subscribe follows chain_subscribeFinalizedHeads instead of polling.
	Subscribe bool
	// FromBlock, if set, is the first block delivered. Otherwise following
	// starts at the current finalized block.
	FromBlock *uint64
	// OnError receives every error that is not a reconnect. May be nil.
	OnError func(error)
}

// Follower delivers finalized headers in order and without gaps.
type Follower[N config.Number, H config.Hash, Hr config.Hasher[H]] struct {
	ctx     context.Context
	client  *Client[N, H, Hr]
	opts    FollowerOptions
	headers chan *header.Header[N, H, Hr]
	next    *uint64
	wg      *sync.WaitGroup
}

func NewFollower[N config.Number, H config.Hash, Hr config.Hasher[H]](
	ctx context.Context,
	client *Client[N, H, Hr],
	opts FollowerOptions,
	wg *sync.WaitGroup,
) *Follower[N, H, Hr] {
	if opts.Interval == 0 {
		opts.Interval = DefaultPollInterval
	}
	return &Follower[N, H, Hr]{
		ctx:     ctx,
		client:  client,
		opts:    opts,
		headers: make(chan *header.Header[N, H, Hr]),
		next:    opts.FromBlock,
		wg:      wg,
	}
}

// Headers is closed when Run returns.
func (f *Follower[N, H, Hr]) Headers() <-chan *header.Header[N, H, Hr] {
	return f.headers
}

func (f *Follower[N, H, Hr]) reportError(err error) {
	if rpc.IsReconnecting(err) {
		logger.WithField("chain", f.opts.Chain).Warnf("Connection lost, retrying next tick: %v", err)
		return
	}
	logger.WithField("chain", f.opts.Chain).Errorf("Failed to follow finalized blocks: %v", err)
	if f.opts.OnError != nil {
		f.opts.OnError(err)
	}
}

// deliver sends every header from the next expected number up to and
// including fin.
func (f *Follower[N, H, Hr]) deliver(fin *header.Header[N, H, Hr]) error {
	finNumber := fin.BlockNumber()
	if f.next == nil {
		f.next = &finNumber
	}
	for n := *f.next; n < finNumber; n++ {
		hash, found, err := f.client.BlockHash(f.ctx, n)
		if err != nil {
			return fmt.Errorf("failed to get hash of block %d: %w", n, err)
		}
		if !found {
			return clienterrors.BlockNotFoundAt(fmt.Sprintf("block %d below finalized block %d", n, finNumber))
		}
		h, err := f.client.Header(f.ctx, hash)
		if err != nil {
			return fmt.Errorf("failed to get header of block %d: %w", n, err)
		}
		if err := f.send(h); err != nil {
			return err
		}
	}
	if *f.next > finNumber {
		return nil
	}
	return f.send(fin)
}

func (f *Follower[N, H, Hr]) send(h *header.Header[N, H, Hr]) error {
	select {
	case <-f.ctx.Done():
		return f.ctx.Err()
	case f.headers <- h:
	}
	n := h.BlockNumber() + 1
	f.next = &n
	rpc.LastFinalizedGauge.WithLabelValues(f.opts.Chain).Set(float64(h.BlockNumber()))
	return nil
}

func (f *Follower[N, H, Hr]) executeTick() error {
	hash, err := f.client.FinalizedHead(f.ctx)
	if err != nil {
		return fmt.Errorf("failed to get finalized head: %w", err)
	}
	fin, err := f.client.Header(f.ctx, hash)
	if err != nil {
		return fmt.Errorf("failed to get finalized header: %w", err)
	}
	logger.WithField("block", fin.BlockNumber()).Debug("Finalized head")
	return f.deliver(fin)
}

// Run follows the chain until the context is cancelled.
func (f *Follower[N, H, Hr]) Run() error {
	if f.wg != nil {
		defer f.wg.Done()
	}
	defer close(f.headers)

	if f.opts.Subscribe {
		return f.Listen()
	}

	if err := f.executeTick(); err != nil && f.ctx.Err() == nil {
		f.reportError(err)
	}

	logger.WithField("chain", f.opts.Chain).Infof("Following finalized blocks every %s", f.opts.Interval)

	ticker := time.NewTicker(f.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-f.ctx.Done():
			logger.WithField("chain", f.opts.Chain).Infof("Terminate follower")
			return nil
		case t := <-ticker.C:
			logger.Tracef("Tick at: %v", t)
			if err := f.executeTick(); err != nil && f.ctx.Err() == nil {
				f.reportError(err)
			}
		}
	}
}

// Listen follows the finalized heads subscription and resubscribes after a
// reconnect.
func (f *Follower[N, H, Hr]) Listen() error {
	logger.WithField("chain", f.opts.Chain).Infof("Subscribing to finalized heads")
	for {
		sub, err := f.client.rpc.ChainSubscribeFinalizedHeads(f.ctx)
		if err != nil {
			if f.ctx.Err() != nil {
				return nil
			}
			if !rpc.IsReconnecting(err) {
				return err
			}
			f.reportError(err)
			if !f.sleep() {
				return nil
			}
			continue
		}
		err = f.consume(sub)
		if f.ctx.Err() != nil {
			_ = sub.Unsubscribe(context.Background())
			logger.WithField("chain", f.opts.Chain).Infof("Terminate follower")
			return nil
		}
		if errors.Is(err, io.EOF) || rpc.IsReconnecting(err) {
			f.reportError(err)
			if !f.sleep() {
				return nil
			}
			continue
		}
		return err
	}
}

func (f *Follower[N, H, Hr]) consume(sub rpc.Subscription) error {
	for {
		raw, err := sub.Next(f.ctx)
		if err != nil {
			return err
		}
		var fin header.Header[N, H, Hr]
		if err := json.Unmarshal(raw, &fin); err != nil {
			f.reportError(err)
			continue
		}
		if err := f.deliver(&fin); err != nil {
			if f.ctx.Err() != nil {
				return err
			}
			f.reportError(err)
		}
	}
}

func (f *Follower[N, H, Hr]) sleep() bool {
	t := time.NewTimer(f.opts.Interval)
	defer t.Stop()
	select {
	case <-f.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
