package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/defiweb/go-eth/hexutil"
	logger "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/header"
	"github.com/chronicleprotocol/scalerpc/core/metadata/metadatatest"
)

func TestOptionsCheck(t *testing.T) {
	t.Setenv(envRpcURL, "")
	o := options{Chain: chainSubstrate, LogLevel: "info"}
	require.Error(t, o.check())

	t.Setenv(envRpcURL, "wss://rpc.example.org")
	require.NoError(t, o.check())
	assert.Equal(t, "wss://rpc.example.org", o.RpcURL)
	assert.True(t, o.subscribes())

	o = options{RpcURL: "https://rpc.example.org", Chain: "kusama", LogLevel: "info"}
	require.Error(t, o.check())

	o = options{RpcURL: "https://rpc.example.org", Chain: chainEthereum, LogLevel: "loud"}
	require.Error(t, o.check())

	o = options{RpcURL: "https://rpc.example.org", Chain: chainPolkadot, LogLevel: "debug"}
	require.NoError(t, o.check())
	assert.Equal(t, logger.DebugLevel, logger.GetLevel())
	assert.False(t, o.subscribes())
	logger.SetLevel(logger.InfoLevel)
}

func TestSummarize(t *testing.T) {
	info := summarize(metadatatest.Metadata())
	assert.Equal(t, uint8(4), info.ExtrinsicVersion)
	assert.NotEmpty(t, info.Pallets)
	assert.Contains(t, info.APIs, "AccountNonceApi_account_nonce")

	var names []string
	for _, p := range info.Pallets {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "System")
	assert.Contains(t, names, "Balances")
}

// node answers JSON-RPC calls over HTTP from a fixed method table.
func node(t *testing.T, results map[string]any) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		res := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := results[req.Method]; ok {
			res["result"] = result
		} else {
			res["error"] = map[string]any{"code": -32601, "message": "Method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(res))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMetadataInfoCommand(t *testing.T) {
	blob, err := metadatatest.Metadata().Encode(15)
	require.NoError(t, err)
	srv := node(t, map[string]any{
		"state_call":        "0x00",
		"state_getMetadata": hexutil.BytesToHex(blob),
	})

	out, err := execute(t, "--rpc-url", srv.URL, "--insecure", "metadata-info")
	require.NoError(t, err)

	var info metadataInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, summarize(metadatatest.Metadata()), info)
}

func TestInsecureURLRejected(t *testing.T) {
	srv := node(t, nil)
	_, err := execute(t, "--rpc-url", srv.URL, "metadata-info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure")
}

func TestChainFor(t *testing.T) {
	for _, name := range []string{chainSubstrate, chainPolkadot, chainEthereum} {
		assert.Equal(t, name, chainFor(name).name())
	}
}

const aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

func accountNode(t *testing.T) *httptest.Server {
	blob, err := metadatatest.Metadata().Encode(15)
	require.NoError(t, err)
	return node(t, map[string]any{
		"state_call":        "0x00",
		"state_getMetadata": hexutil.BytesToHex(blob),
		"state_getStorage":  nil,
	})
}

func TestAccountCommand(t *testing.T) {
	srv := accountNode(t)

	out, err := execute(t, "--rpc-url", srv.URL, "--insecure", "account", aliceSS58)
	require.NoError(t, err)
	assert.Contains(t, out, aliceSS58+": {nonce: 0, consumers: 0")

	// The same address is foreign to the polkadot bundle.
	_, err = execute(t, "--rpc-url", srv.URL, "--insecure", "--chain", chainPolkadot, "account", aliceSS58)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "network prefix 42, expected 0")

	_, err = execute(t, "--rpc-url", srv.URL, "--insecure", "--chain", chainEthereum, "account", aliceSS58)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid account id")
}

func TestHeaderCommand(t *testing.T) {
	raw := json.RawMessage(`{"parentHash":"0x` + strings.Repeat("11", 32) + `","number":"0x10",` +
		`"stateRoot":"0x` + strings.Repeat("22", 32) + `","extrinsicsRoot":"0x` + strings.Repeat("33", 32) + `",` +
		`"digest":{"logs":[]}}`)
	srv := node(t, map[string]any{"chain_getHeader": raw})

	var sub header.SubstrateHeader
	require.NoError(t, json.Unmarshal(raw, &sub))
	subHash, err := sub.Hash()
	require.NoError(t, err)
	var eth header.EthereumHeader
	require.NoError(t, json.Unmarshal(raw, &eth))
	ethHash, err := eth.Hash()
	require.NoError(t, err)

	tests := []struct {
		chain string
		hash  string
	}{
		{chainSubstrate, subHash.String()},
		{chainPolkadot, subHash.String()},
		{chainEthereum, ethHash.String()},
	}
	for _, tt := range tests {
		t.Run(tt.chain, func(t *testing.T) {
			out, err := execute(t, "--rpc-url", srv.URL, "--insecure", "--chain", tt.chain, "header")
			require.NoError(t, err)
			var res struct {
				Chain string `json:"chain"`
				Hash  string `json:"hash"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.chain, res.Chain)
			assert.Equal(t, tt.hash, res.Hash)
		})
	}
	assert.NotEqual(t, subHash.String(), ethHash.String())
}

func TestFollowEvents(t *testing.T) {
	md := metadatatest.Metadata()
	blob, err := md.Encode(15)
	require.NoError(t, err)
	evs, err := dynamic.Encode(md.Types, metadatatest.VecEventRecord, dynamic.Unnamed(
		dynamic.Named(
			dynamic.Field("phase", dynamic.Variant("ApplyExtrinsic", dynamic.U64(0))),
			dynamic.Field("event", dynamic.Variant("System", dynamic.NamedVariant("ExtrinsicSuccess"))),
			dynamic.Field("topics", dynamic.Unnamed()),
		),
	))
	require.NoError(t, err)
	srv := node(t, map[string]any{
		"state_call":             "0x00",
		"state_getMetadata":      hexutil.BytesToHex(blob),
		"state_getStorage":       hexutil.BytesToHex(evs),
		"chain_getFinalizedHead": "0x" + strings.Repeat("44", 32),
		"chain_getHeader": json.RawMessage(`{"parentHash":"0x` + strings.Repeat("11", 32) + `","number":"0x7",` +
			`"stateRoot":"0x` + strings.Repeat("22", 32) + `","extrinsicsRoot":"0x` + strings.Repeat("33", 32) + `",` +
			`"digest":{"logs":[]}}`),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--rpc-url", srv.URL, "--insecure", "follow", "--events", "--interval", "20ms"})
	_ = cmd.ExecuteContext(ctx)

	assert.Contains(t, out.String(), "#7 0x")
	assert.Contains(t, out.String(), "  event 0 ApplyExtrinsic(0) System.ExtrinsicSuccess\n")
}
