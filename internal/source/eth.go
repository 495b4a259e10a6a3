package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// EthSource reads the latest block height from a geth compatible node
// using the JSON-RPC "eth_blockNumber" method.
type EthSource struct {
	httpClient *http.Client
	rpcURL     string
}

// NewEthSource creates an eth_blockNumber based height source for the
// given RPC address. The address may omit the http:// scheme.
func NewEthSource(rpcAddress string) *EthSource {
	return &EthSource{
		httpClient: &http.Client{
			Timeout: rpcTimeout,
		},
		rpcURL: normalizeRPCURL(rpcAddress),
	}
}

// CurrentHeight returns the node's latest block height
func (s *EthSource) CurrentHeight(ctx context.Context) (int64, error) {
	resp, err := rpcCall(ctx, s.httpClient, s.rpcURL, "eth_blockNumber", []interface{}{})
	if err != nil {
		return 0, err
	}

	var hexHeight string
	if err := json.Unmarshal(resp, &hexHeight); err != nil {
		return 0, &QueryError{Kind: KindBadResponse, Err: fmt.Errorf("failed to unmarshal block number: %w", err)}
	}

	height, err := strconv.ParseInt(strings.TrimPrefix(hexHeight, "0x"), 16, 64)
	if err != nil {
		return 0, &QueryError{Kind: KindBadResponse, Err: fmt.Errorf("invalid block number %q: %w", hexHeight, err)}
	}

	return height, nil
}

// Name identifies the source by its RPC endpoint
func (s *EthSource) Name() string {
	return s.rpcURL
}
