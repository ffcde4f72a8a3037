package eth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	sessiondom "creatorhub/internal/domain/session"
)

func TestRequestReturnsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.JSONRPC != "2.0" || req.Method != "eth_chainId" {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": req.ID, "result": "0x106a",
		})
	}))
	defer srv.Close()

	c := NewJSONRPCClient(srv.URL)
	raw, err := c.Request(context.Background(), "eth_chainId")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s != "0x106a" {
		t.Fatalf("result = %s err=%v", raw, err)
	}
}

func TestRequestReturnsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]any{"code": 4001, "message": "User rejected the request."},
		})
	}))
	defer srv.Close()

	c := NewJSONRPCClient(srv.URL)
	_, err := c.Request(context.Background(), "eth_sendRawTransaction", "0x00")
	var pe *sessiondom.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %T %v, want *ProviderError", err, err)
	}
	if pe.Code != sessiondom.CodeUserRejected {
		t.Fatalf("code = %d, want 4001", pe.Code)
	}
	if !sessiondom.IsUserRejected(err) {
		t.Fatal("IsUserRejected must classify the node error")
	}
}

func TestRequestHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewJSONRPCClient(srv.URL)
	if _, err := c.Request(context.Background(), "eth_blockNumber"); err == nil {
		t.Fatal("expected error on HTTP 502")
	}
}
