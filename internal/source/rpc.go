package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const rpcTimeout = 10 * time.Second

// normalizeRPCURL ensures the address carries an http scheme
func normalizeRPCURL(addr string) string {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		return fmt.Sprintf("http://%s", addr)
	}
	return addr
}

// rpcCall makes a JSON-RPC call to the node and returns the raw result.
// Failures are returned as *QueryError.
func rpcCall(ctx context.Context, client *http.Client, rpcURL, method string, params interface{}) (json.RawMessage, error) {
	// Construct JSON-RPC request
	reqBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	}

	reqData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &QueryError{Kind: KindBadResponse, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	// Create HTTP request
	req, err := http.NewRequestWithContext(ctx, "POST", rpcURL, strings.NewReader(string(reqData)))
	if err != nil {
		return nil, &QueryError{Kind: KindUnreachable, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")

	// Execute request
	resp, err := client.Do(req)
	if err != nil {
		return nil, &QueryError{Kind: KindUnreachable, Err: fmt.Errorf("RPC request failed: %w", err)}
	}
	defer resp.Body.Close()

	// Parse response
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}

	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(&rpcResp); err != nil {
		return nil, &QueryError{Kind: KindBadResponse, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	// Check for RPC error
	if rpcResp.Error != nil {
		return nil, &QueryError{Kind: KindRPCRejected, Err: fmt.Errorf("RPC error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)}
	}

	return rpcResp.Result, nil
}
