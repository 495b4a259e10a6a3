package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// StatusSource reads the latest block height from a WBFT consensus node
// using the JSON-RPC "status" method.
type StatusSource struct {
	httpClient *http.Client
	rpcURL     string
}

// NewStatusSource creates a status-based height source for the given RPC
// address. The address may omit the http:// scheme.
func NewStatusSource(rpcAddress string) *StatusSource {
	return &StatusSource{
		httpClient: &http.Client{
			Timeout: rpcTimeout,
		},
		rpcURL: normalizeRPCURL(rpcAddress),
	}
}

// flexInt64 decodes a JSON number or a quoted numeric string. WBFT nodes
// report heights as numbers while CometBFT style nodes quote them.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid height %q: %w", s, err)
	}
	*f = flexInt64(v)
	return nil
}

// statusResult is the subset of the status response we care about
type statusResult struct {
	SyncInfo struct {
		LatestBlockHeight flexInt64 `json:"latest_block_height"`
		CatchingUp        bool      `json:"catching_up"`
	} `json:"sync_info"`
}

// CurrentHeight returns the node's latest block height
func (s *StatusSource) CurrentHeight(ctx context.Context) (int64, error) {
	resp, err := rpcCall(ctx, s.httpClient, s.rpcURL, "status", nil)
	if err != nil {
		return 0, err
	}

	var status statusResult
	if err := json.Unmarshal(resp, &status); err != nil {
		return 0, &QueryError{Kind: KindBadResponse, Err: fmt.Errorf("failed to unmarshal status: %w", err)}
	}

	height := int64(status.SyncInfo.LatestBlockHeight)
	if height < 0 {
		return 0, &QueryError{Kind: KindBadResponse, Err: fmt.Errorf("negative block height %d", height)}
	}

	return height, nil
}

// Name identifies the source by its RPC endpoint
func (s *StatusSource) Name() string {
	return s.rpcURL
}
