// internal/infra/eth/local_provider.go
package eth

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	sessiondom "creatorhub/internal/domain/session"
)

// LocalKeyProvider は「ブラウザ拡張ウォレット」に相当するサーバーサイド実装です。
// アカウント系・署名系メソッドは自前の秘密鍵で処理し、それ以外はノードの
// JSON-RPC へそのまま委譲します。
//
// SessionManager / ContractGateway からは request(method, params) 境界として
// 利用されます。
type LocalKeyProvider struct {
	node *JSONRPCClient

	key     *ecdsa.PrivateKey
	address common.Address
	chainID *big.Int

	mu           sync.Mutex
	accountsSubs map[int]func([]string)
	chainSubs    map[int]func(string)
	nextSub      int
}

// NewLocalKeyProvider parses a hex private key and wires the provider to node.
func NewLocalKeyProvider(node *JSONRPCClient, privateKeyHex string, chainID int64) (*LocalKeyProvider, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("local provider: invalid private key: %w", err)
	}
	pub, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("local provider: cannot derive public key")
	}
	return &LocalKeyProvider{
		node:         node,
		key:          key,
		address:      crypto.PubkeyToAddress(*pub),
		chainID:      big.NewInt(chainID),
		accountsSubs: make(map[int]func([]string)),
		chainSubs:    make(map[int]func(string)),
	}, nil
}

// Address returns the signer account address.
func (p *LocalKeyProvider) Address() string {
	return p.address.Hex()
}

// Request implements the wallet provider boundary.
func (p *LocalKeyProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if p == nil || p.node == nil {
		return nil, sessiondom.ErrProviderUnavailable
	}

	switch method {
	case "eth_accounts", "eth_requestAccounts":
		return json.Marshal([]string{p.address.Hex()})

	case "eth_chainId":
		return json.Marshal(hexutil.EncodeBig(p.chainID))

	case "wallet_switchEthereumChain":
		target, err := switchChainTarget(params)
		if err != nil {
			return nil, err
		}
		if target.Cmp(p.chainID) != 0 {
			// A fixed-key provider cannot hop chains; report the chain as
			// unknown so callers take their add-chain path.
			return nil, &sessiondom.ProviderError{
				Code:    sessiondom.CodeUnrecognizedChain,
				Message: fmt.Sprintf("chain %s is not available", hexutil.EncodeBig(target)),
			}
		}
		return json.Marshal(nil)

	case "wallet_addEthereumChain":
		return nil, &sessiondom.ProviderError{
			Code:    sessiondom.CodeUnsupportedMethod,
			Message: "local key provider cannot register chains",
		}

	case "eth_sendTransaction":
		hash, err := p.signAndSend(ctx, params)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hash)

	default:
		return p.node.Request(ctx, method, params...)
	}
}

// OnAccountsChanged registers a callback; the returned func deregisters it.
// A local key never changes accounts, but the subscription surface is part of
// the provider contract.
func (p *LocalKeyProvider) OnAccountsChanged(fn func(accounts []string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.accountsSubs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.accountsSubs, id)
	}
}

// OnChainChanged registers a callback; the returned func deregisters it.
func (p *LocalKeyProvider) OnChainChanged(fn func(hexChainID string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.chainSubs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.chainSubs, id)
	}
}

// txParams is the eth_sendTransaction call object we accept.
type txParams struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
	Gas   string `json:"gas"`
}

func (p *LocalKeyProvider) signAndSend(ctx context.Context, params []any) (string, error) {
	if len(params) == 0 {
		return "", fmt.Errorf("local provider: eth_sendTransaction needs a call object")
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return "", fmt.Errorf("local provider: marshal call object: %w", err)
	}
	var tp txParams
	if err := json.Unmarshal(raw, &tp); err != nil {
		return "", fmt.Errorf("local provider: decode call object: %w", err)
	}
	if tp.To == "" {
		return "", fmt.Errorf("local provider: to address is empty")
	}
	to := common.HexToAddress(tp.To)

	data := []byte{}
	if tp.Data != "" {
		if data, err = hexutil.Decode(tp.Data); err != nil {
			return "", fmt.Errorf("local provider: decode data: %w", err)
		}
	}
	value := new(big.Int)
	if tp.Value != "" {
		if value, err = hexutil.DecodeBig(tp.Value); err != nil {
			return "", fmt.Errorf("local provider: decode value: %w", err)
		}
	}

	nonce, err := p.hexQuantity(ctx, "eth_getTransactionCount", p.address.Hex(), "pending")
	if err != nil {
		return "", fmt.Errorf("local provider: nonce: %w", err)
	}
	gasPrice, err := p.hexQuantity(ctx, "eth_gasPrice")
	if err != nil {
		return "", fmt.Errorf("local provider: gas price: %w", err)
	}

	gasLimit := uint64(300000)
	if tp.Gas != "" {
		g, err := hexutil.DecodeUint64(tp.Gas)
		if err != nil {
			return "", fmt.Errorf("local provider: decode gas: %w", err)
		}
		gasLimit = g
	} else if est, err := p.hexQuantity(ctx, "eth_estimateGas", map[string]string{
		"from": p.address.Hex(),
		"to":   tp.To,
		"data": tp.Data,
	}); err == nil {
		gasLimit = est.Uint64()
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce.Uint64(),
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(p.chainID), p.key)
	if err != nil {
		return "", fmt.Errorf("local provider: sign transaction: %w", err)
	}
	rawTx, err := signed.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("local provider: encode transaction: %w", err)
	}

	res, err := p.node.Request(ctx, "eth_sendRawTransaction", hexutil.Encode(rawTx))
	if err != nil {
		return "", err
	}
	var hash string
	if err := json.Unmarshal(res, &hash); err != nil {
		return "", fmt.Errorf("local provider: decode tx hash: %w", err)
	}
	return hash, nil
}

func (p *LocalKeyProvider) hexQuantity(ctx context.Context, method string, params ...any) (*big.Int, error) {
	res, err := p.node.Request(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	var s string
	if err := json.Unmarshal(res, &s); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", method, err)
	}
	return hexutil.DecodeBig(s)
}

func switchChainTarget(params []any) (*big.Int, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("local provider: wallet_switchEthereumChain needs a chain object")
	}
	raw, err := json.Marshal(params[0])
	if err != nil {
		return nil, fmt.Errorf("local provider: marshal chain object: %w", err)
	}
	var obj struct {
		ChainID string `json:"chainId"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("local provider: decode chain object: %w", err)
	}
	target, err := hexutil.DecodeBig(obj.ChainID)
	if err != nil {
		return nil, fmt.Errorf("local provider: decode chainId: %w", err)
	}
	return target, nil
}
