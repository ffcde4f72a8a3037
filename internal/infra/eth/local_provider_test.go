package eth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	sessiondom "creatorhub/internal/domain/session"
)

// Well-known hardhat test key #0. Address 0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266.
const testKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
const testAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func newTestProvider(t *testing.T, node *JSONRPCClient) *LocalKeyProvider {
	t.Helper()
	p, err := NewLocalKeyProvider(node, testKey, 4202)
	if err != nil {
		t.Fatalf("NewLocalKeyProvider: %v", err)
	}
	return p
}

func TestNewLocalKeyProviderRejectsBadKey(t *testing.T) {
	if _, err := NewLocalKeyProvider(NewJSONRPCClient("http://unused"), "nothex", 4202); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestAccountsAndChainID(t *testing.T) {
	p := newTestProvider(t, NewJSONRPCClient("http://unused"))
	ctx := context.Background()

	for _, method := range []string{"eth_accounts", "eth_requestAccounts"} {
		raw, err := p.Request(ctx, method)
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		var accounts []string
		if err := json.Unmarshal(raw, &accounts); err != nil {
			t.Fatalf("decode accounts: %v", err)
		}
		if len(accounts) != 1 || accounts[0] != testAddr {
			t.Fatalf("%s = %v", method, accounts)
		}
	}

	raw, err := p.Request(ctx, "eth_chainId")
	if err != nil {
		t.Fatalf("eth_chainId: %v", err)
	}
	var hex string
	_ = json.Unmarshal(raw, &hex)
	if hex != "0x106a" {
		t.Fatalf("chainId = %s, want 0x106a", hex)
	}
}

func TestSwitchChain(t *testing.T) {
	p := newTestProvider(t, NewJSONRPCClient("http://unused"))
	ctx := context.Background()

	// Switching to the configured chain succeeds.
	if _, err := p.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": "0x106a"}); err != nil {
		t.Fatalf("switch to own chain: %v", err)
	}

	// Any other chain reports 4902.
	_, err := p.Request(ctx, "wallet_switchEthereumChain", map[string]string{"chainId": "0x1"})
	if !sessiondom.IsUnrecognizedChain(err) {
		t.Fatalf("err = %v, want code 4902", err)
	}

	// A fixed-key provider cannot register chains either.
	_, err = p.Request(ctx, "wallet_addEthereumChain", map[string]any{"chainId": "0x1"})
	var pe *sessiondom.ProviderError
	if !errors.As(err, &pe) || pe.Code != sessiondom.CodeUnsupportedMethod {
		t.Fatalf("err = %v, want code 4200", err)
	}
}

func TestSendTransactionSignsLocally(t *testing.T) {
	var rawTx string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		result := any(nil)
		switch req.Method {
		case "eth_getTransactionCount":
			result = "0x7"
		case "eth_gasPrice":
			result = "0x3b9aca00" // 1 gwei
		case "eth_estimateGas":
			result = "0x5208"
		case "eth_sendRawTransaction":
			params := req.Params.([]any)
			rawTx = params[0].(string)
			result = "0xsigned"
		default:
			t.Errorf("unexpected node method %s", req.Method)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	defer srv.Close()

	p := newTestProvider(t, NewJSONRPCClient(srv.URL))

	raw, err := p.Request(context.Background(), "eth_sendTransaction", map[string]string{
		"from": testAddr,
		"to":   "0x00000000000000000000000000000000000000A1",
		"data": "0xdeadbeef",
	})
	if err != nil {
		t.Fatalf("eth_sendTransaction: %v", err)
	}
	var hash string
	_ = json.Unmarshal(raw, &hash)
	if hash != "0xsigned" {
		t.Fatalf("hash = %s", hash)
	}

	// The node must have received a fully signed transaction with our
	// nonce, calldata and chain-bound signature.
	txBytes, err := hexutil.Decode(rawTx)
	if err != nil {
		t.Fatalf("decode raw tx: %v", err)
	}
	var tx types.Transaction
	if err := tx.UnmarshalBinary(txBytes); err != nil {
		t.Fatalf("unmarshal tx: %v", err)
	}
	if tx.Nonce() != 7 {
		t.Fatalf("nonce = %d, want 7", tx.Nonce())
	}
	if got := hexutil.Encode(tx.Data()); got != "0xdeadbeef" {
		t.Fatalf("data = %s", got)
	}
	if tx.Gas() != 0x5208 {
		t.Fatalf("gas = %d, want estimate 0x5208", tx.Gas())
	}
	signer := types.LatestSignerForChainID(tx.ChainId())
	from, err := types.Sender(signer, &tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if from.Hex() != testAddr {
		t.Fatalf("sender = %s, want %s", from.Hex(), testAddr)
	}
}

func TestSendTransactionRequiresTo(t *testing.T) {
	p := newTestProvider(t, NewJSONRPCClient("http://unused"))
	if _, err := p.Request(context.Background(), "eth_sendTransaction", map[string]string{"from": testAddr}); err == nil {
		t.Fatal("expected error for missing to address")
	}
}

func TestSubscriptionUnsubscribe(t *testing.T) {
	p := newTestProvider(t, NewJSONRPCClient("http://unused"))

	calls := 0
	unsub := p.OnAccountsChanged(func([]string) { calls++ })
	unsub()

	p.mu.Lock()
	n := len(p.accountsSubs)
	p.mu.Unlock()
	if n != 0 {
		t.Fatalf("subscription not removed, %d left", n)
	}
	if calls != 0 {
		t.Fatal("handler must not fire")
	}
}
