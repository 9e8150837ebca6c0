package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/defiweb/go-eth/hexutil"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chronicleprotocol/scalerpc/core/blocks"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
	"github.com/chronicleprotocol/scalerpc/core/runtimeapi"
	"github.com/chronicleprotocol/scalerpc/core/storage"
)

// metadataVersion is the metadata version requested from the runtime.
const metadataVersion = 15

type (
	runE   = func(*cobra.Command, []string) error
	runner = func(fn func(s *session, args []string) error) runE
)

func (s *session) metadata() (*metadata.Metadata, error) {
	md, err := runtimeapi.FetchMetadata(s.ctx, s.legacy, metadataVersion, nil)
	if err != nil {
		return nil, err
	}
	logger.WithField("version", md.Version).Debugf("Loaded metadata with %d pallets", len(md.Pallets))
	return md, nil
}

func (s *session) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(s.out, string(b))
	return err
}

func newHeaderCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "header [hash]",
		Short: "Print a block header, the best one if no hash is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: run(func(s *session, args []string) error {
			var hash string
			if len(args) == 1 {
				hash = args[0]
			}
			return s.chain.header(s, hash)
		}),
	}
}

func newFollowCmd(run runner) *cobra.Command {
	var (
		fromBlock uint64
		interval  time.Duration
		show      followOutput
	)
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Print finalized blocks as they arrive",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = run(func(s *session, _ []string) error {
		var from *uint64
		if cmd.Flags().Changed("from-block") {
			from = &fromBlock
		}
		return s.chain.follow(s, blocks.FollowerOptions{
			Interval:  interval,
			Subscribe: s.opts.subscribes(),
			FromBlock: from,
		}, show)
	})
	cmd.Flags().Uint64Var(&fromBlock, "from-block", 0, "Block number to start from. If not provided, following starts at the finalized head")
	cmd.Flags().DurationVar(&interval, "interval", blocks.DefaultPollInterval, "Poll interval, also the delay before resubscribing")
	cmd.Flags().BoolVar(&show.extrinsics, "extrinsics", false, "Decode and print the extrinsics of every block")
	cmd.Flags().BoolVar(&show.events, "events", false, "Decode and print the events of every block")
	return cmd
}

func newAccountCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "account <address>",
		Short: "Print System.Account for an address in the chain's account format",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(s *session, args []string) error {
			return s.chain.account(s, args[0])
		}),
	}
}

func newCallCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "call <Trait_method> [hex-args]",
		Short: "Call a runtime API function and print the decoded output",
		Long: "Call a runtime API function. Without hex-args the function must take no arguments; " +
			"with them the bytes are passed through as the SCALE encoded arguments.",
		Args: cobra.RangeArgs(1, 2),
		RunE: run(func(s *session, args []string) error {
			md, err := s.metadata()
			if err != nil {
				return err
			}
			name := args[0]
			var v dynamic.Value
			if len(args) == 2 {
				_, method, err := md.RuntimeFn(name)
				if err != nil {
					return err
				}
				data, err := hexutil.HexToBytes(args[1])
				if err != nil {
					return fmt.Errorf("invalid arguments: %w", err)
				}
				out, err := s.legacy.StateCall(s.ctx, name, data, nil)
				if err != nil {
					return err
				}
				if v, err = dynamic.Decode(md.Types, method.Output, out); err != nil {
					return err
				}
			} else {
				v, err = runtimeapi.NewClient(s.legacy, md).Call(s.ctx, runtimeapi.Dynamic(name, dynamic.Unnamed()), nil)
				if err != nil {
					return err
				}
			}
			_, err = fmt.Fprintln(s.out, v.String())
			return err
		}),
	}
}

func newStorageRawCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "storage-raw <hex-key> <output-file>",
		Short: "Write the raw value under a storage key to a file",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(s *session, args []string) error {
			key, err := hexutil.HexToBytes(args[0])
			if err != nil {
				return fmt.Errorf("invalid storage key: %w", err)
			}
			value, err := storage.NewClient(s.legacy, nil).FetchRaw(s.ctx, key, nil)
			if err != nil {
				return err
			}
			if value == nil {
				return fmt.Errorf("no value stored under %s", args[0])
			}
			if err := os.WriteFile(args[1], value, 0o644); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}
			logger.WithField("key", args[0]).Infof("Wrote %d bytes to %s", len(value), args[1])
			return nil
		}),
	}
}

func newStorageCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "storage <Pallet> <Entry>",
		Short: "Read and decode a plain storage entry",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(s *session, args []string) error {
			md, err := s.metadata()
			if err != nil {
				return err
			}
			addr := storage.NewAddress(args[0], args[1])
			v, found, err := storage.NewClient(s.legacy, md).Fetch(s.ctx, addr, nil)
			if err != nil {
				return err
			}
			if !found {
				_, err = fmt.Fprintf(s.out, "%s: not set\n", addr)
				return err
			}
			_, err = fmt.Fprintf(s.out, "%s: %s\n", addr, v)
			return err
		}),
	}
}

func newConstantCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "constant <Pallet> <Name>",
		Short: "Print a pallet constant",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(s *session, args []string) error {
			md, err := s.metadata()
			if err != nil {
				return err
			}
			v, err := storage.Constant(md, args[0], args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(s.out, v.String())
			return err
		}),
	}
}

type palletInfo struct {
	Index     uint8  `json:"index"`
	Name      string `json:"name"`
	Storage   int    `json:"storage"`
	Constants int    `json:"constants"`
	Calls     bool   `json:"calls"`
	Events    bool   `json:"events"`
}

type metadataInfo struct {
	Version          uint8        `json:"version"`
	ExtrinsicVersion uint8        `json:"extrinsicVersion"`
	SignedExtensions []string     `json:"signedExtensions"`
	Pallets          []palletInfo `json:"pallets"`
	APIs             []string     `json:"apis"`
}

func summarize(md *metadata.Metadata) metadataInfo {
	info := metadataInfo{Version: md.Version, ExtrinsicVersion: md.Extrinsic.Version}
	for _, ext := range md.Extrinsic.SignedExtensions {
		info.SignedExtensions = append(info.SignedExtensions, ext.Identifier)
	}
	for _, p := range md.Pallets {
		info.Pallets = append(info.Pallets, palletInfo{
			Index:     p.Index,
			Name:      p.Name,
			Storage:   len(p.Storage),
			Constants: len(p.Constants),
			Calls:     p.Calls != nil,
			Events:    p.Events != nil,
		})
	}
	for _, api := range md.APIs {
		for _, m := range api.Methods {
			info.APIs = append(info.APIs, api.Name+"_"+m.Name)
		}
	}
	return info
}

func newMetadataInfoCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata-info",
		Short: "Summarize the node's metadata",
		Args:  cobra.NoArgs,
		RunE: run(func(s *session, _ []string) error {
			md, err := s.metadata()
			if err != nil {
				return err
			}
			return s.printJSON(summarize(md))
		}),
	}
}
