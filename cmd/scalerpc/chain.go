package main

import (
	"fmt"

	"github.com/defiweb/go-eth/types"
	"github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/blocks"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/events"
	"github.com/chronicleprotocol/scalerpc/core/header"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
	"github.com/chronicleprotocol/scalerpc/core/storage"
)

// chain runs the commands whose types depend on the chain bundle.
type chain interface {
	name() string
	header(s *session, hash string) error
	follow(s *session, opts blocks.FollowerOptions, show followOutput) error
	account(s *session, address string) error
}

type followOutput struct {
	extrinsics bool
	events     bool
}

// accountID is what the commands need from a bundle's account type.
type accountID interface {
	AsValue() dynamic.Value
	String() string
}

// chainFor returns the commands instantiated with the bundle selected by
// --chain. The name was validated by options.check.
func chainFor(name string) chain {
	switch name {
	case chainEthereum:
		return bundle[config.EthereumConfig, uint64, common.Hash, config.Keccak256,
			config.AccountID20, config.AccountID20, config.EcdsaSignature, config.U32AssetID]{}
	case chainPolkadot:
		return bundle[config.PolkadotConfig, uint32, types.Hash, config.BlakeTwo256,
			config.AccountID32, config.MultiAddress, config.MultiSignature, config.U32AssetID]{}
	default:
		return bundle[config.SubstrateConfig, uint32, types.Hash, config.BlakeTwo256,
			config.AccountID32, config.MultiAddress, config.MultiSignature, config.U32AssetID]{}
	}
}

type bundle[
	C config.Config[N, H, Hr, Acc, Addr, Sig, Asset],
	N config.Number,
	H config.Hash,
	Hr config.Hasher[H],
	Acc accountID,
	Addr, Sig, Asset any,
] struct {
	cfg C
}

func (b bundle[C, N, H, Hr, Acc, Addr, Sig, Asset]) name() string {
	return b.cfg.Name()
}

func (b bundle[C, N, H, Hr, Acc, Addr, Sig, Asset]) header(s *session, hash string) error {
	c := blocks.NewClient[N, H, Hr](s.legacy)
	var (
		h   *header.Header[N, H, Hr]
		err error
	)
	if hash == "" {
		h, err = c.BestHeader(s.ctx)
	} else {
		var at H
		if at, err = header.ParseHash[H](hash); err != nil {
			return err
		}
		h, err = c.Header(s.ctx, at)
	}
	if err != nil {
		return err
	}
	enc, err := h.Encode()
	if err != nil {
		return err
	}
	return s.printJSON(struct {
		Chain  string `json:"chain"`
		Hash   string `json:"hash"`
		Header any    `json:"header"`
	}{b.cfg.Name(), b.cfg.Hasher().Hash(enc).String(), h})
}

func (b bundle[C, N, H, Hr, Acc, Addr, Sig, Asset]) follow(s *session, opts blocks.FollowerOptions, show followOutput) error {
	c := blocks.NewClient[N, H, Hr](s.legacy)
	var md *metadata.Metadata
	if show.extrinsics || show.events {
		var err error
		if md, err = s.metadata(); err != nil {
			return err
		}
	}
	opts.Chain = b.cfg.Name()

	f := blocks.NewFollower(s.ctx, c, opts, nil)
	errc := make(chan error, 1)
	go func() {
		errc <- f.Run()
	}()

	hasher := b.cfg.Hasher()
	for h := range f.Headers() {
		enc, err := h.Encode()
		if err != nil {
			logger.WithField("block", h.BlockNumber()).Warnf("Failed to encode header: %v", err)
			continue
		}
		hash := hasher.Hash(enc)
		fmt.Fprintf(s.out, "#%d %s\n", h.BlockNumber(), hash)
		if show.extrinsics {
			exts, err := c.Extrinsics(s.ctx, hash, md)
			if err != nil {
				logger.WithField("block", h.BlockNumber()).Warnf("Failed to decode extrinsics: %v", err)
			}
			for _, ext := range exts {
				fmt.Fprintf(s.out, "  %d %s.%s signed=%t %s\n", ext.Index, ext.Pallet, ext.CallName, ext.Signed, hasher.Hash(ext.Bytes))
			}
		}
		if show.events {
			at := [32]byte(hash)
			evs, err := events.NewClient(s.legacy, md).At(s.ctx, at[:])
			if err != nil {
				logger.WithField("block", h.BlockNumber()).Warnf("Failed to decode events: %v", err)
				continue
			}
			for _, ev := range evs.All() {
				phase := ev.Phase.Kind.String()
				if ev.Phase.Kind == events.ApplyExtrinsic {
					phase = fmt.Sprintf("%s(%d)", phase, ev.Phase.Extrinsic)
				}
				fmt.Fprintf(s.out, "  event %d %s %s.%s\n", ev.Index, phase, ev.Pallet, ev.Variant)
			}
		}
	}
	return <-errc
}

// account reads System.Account for an address in the bundle's text format.
func (b bundle[C, N, H, Hr, Acc, Addr, Sig, Asset]) account(s *session, address string) error {
	acc, err := b.cfg.ParseAccountID(address)
	if err != nil {
		return err
	}
	md, err := s.metadata()
	if err != nil {
		return err
	}
	addr := storage.NewAddress("System", "Account", acc.AsValue())
	v, _, err := storage.NewClient(s.legacy, md).Fetch(s.ctx, addr, nil)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(s.out, "%s: %s\n", acc, v)
	return err
}
