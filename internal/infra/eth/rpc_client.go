// internal/infra/eth/rpc_client.go
package eth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	sessiondom "creatorhub/internal/domain/session"
)

// Lisk Sepolia RPC endpoint (default)
const DefaultEndpoint = "https://rpc.sepolia-api.lisk.com"

// JSONRPCClient is a simple HTTP JSON-RPC client for an Ethereum node.
type JSONRPCClient struct {
	Endpoint string
	HTTP     *http.Client
}

// NewJSONRPCClient creates an Ethereum JSON-RPC client.
// Endpoint resolution order:
// 1) explicit endpoint argument (if set)
// 2) ETH_RPC_ENDPOINT env (if set)
// 3) DefaultEndpoint
func NewJSONRPCClient(endpoint string) *JSONRPCClient {
	ep := strings.TrimSpace(endpoint)
	if ep == "" {
		ep = strings.TrimSpace(os.Getenv("ETH_RPC_ENDPOINT"))
	}
	if ep == "" {
		ep = DefaultEndpoint
	}
	return &JSONRPCClient{
		Endpoint: ep,
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Request sends one JSON-RPC call and returns the raw result.
// Node-reported errors come back as *session.ProviderError so callers can
// classify by code.
func (c *JSONRPCClient) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if c == nil || c.Endpoint == "" || c.HTTP == nil {
		return nil, fmt.Errorf("eth rpc: client not configured")
	}

	if params == nil {
		params = []any{}
	}
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("eth rpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("eth rpc: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eth rpc: http do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("eth rpc: http status=%d", resp.StatusCode)
	}

	var rr rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("eth rpc: decode response: %w", err)
	}
	if rr.Error != nil {
		return nil, &sessiondom.ProviderError{Code: rr.Error.Code, Message: rr.Error.Message}
	}
	return rr.Result, nil
}
