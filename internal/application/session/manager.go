// internal/application/session/manager.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	sessiondom "creatorhub/internal/domain/session"
)

// errNoAccounts marks a silent-resume attempt with no prior authorization.
var errNoAccounts = errors.New("no accounts authorized")

// Provider はウォレット境界です。infra/eth の LocalKeyProvider が
// これを満たします。テストでは fake を渡します。
type Provider interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
	// OnAccountsChanged registers a handler for account switches. The
	// returned func removes the handler.
	OnAccountsChanged(func(accounts []string)) (unsubscribe func())
	// OnChainChanged registers a handler for chain switches.
	OnChainChanged(func(chainIDHex string)) (unsubscribe func())
}

// BalanceSource supplies display balances for a connected account. Reads
// degrade inside the source and never error.
type BalanceSource interface {
	GetNativeBalance(ctx context.Context, addr string) string
	GetTokenBalance(ctx context.Context, addr string) string
	GetNFTBalance(ctx context.Context, addr string) int
}

const (
	ethDisplayDecimals   = 4
	tokenDisplayDecimals = 2
)

// Manager はウォレットセッションのライフサイクルを統括します。
// connect / resume / switch-chain / balance refresh と、provider 起点の
// accountsChanged / chainChanged への反応を一箇所に集めます。
type Manager struct {
	provider Provider
	balances BalanceSource
	chainID  int64

	mu     sync.RWMutex
	state  sessiondom.Session
	unsubs []func()
	closed bool
}

// NewManager constructs a disconnected manager bound to the platform chain.
// Balance lookups stay disabled until WithBalanceSource is called.
func NewManager(provider Provider, chainID int64) *Manager {
	m := &Manager{
		provider: provider,
		chainID:  chainID,
		state:    sessiondom.Disconnected(),
	}
	m.unsubs = append(m.unsubs,
		provider.OnAccountsChanged(m.handleAccountsChanged),
		provider.OnChainChanged(m.handleChainChanged),
	)
	return m
}

// WithBalanceSource injects the balance reader. Split from the constructor
// because the gateway in turn needs the manager as its account source.
func (m *Manager) WithBalanceSource(src BalanceSource) *Manager {
	m.balances = src
	return m
}

// Session returns a snapshot of the current state.
func (m *Manager) Session() sessiondom.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Address satisfies the gateway's account port.
func (m *Manager) Address() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.state.Connected {
		return "", false
	}
	return m.state.Address, true
}

// ChainMatches satisfies the gateway's account port.
func (m *Manager) ChainMatches() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Connected && !m.state.ChainMismatch
}

// Connect prompts the provider for account access, validates the chain and
// loads balances. A provider rejection leaves the session disconnected.
// When the wallet reports a foreign chain, one switch to the platform chain
// is attempted; its failure keeps the connected session with ChainMismatch
// set, so callers can offer a manual retry.
func (m *Manager) Connect(ctx context.Context) (sessiondom.Session, error) {
	addr, err := m.requestAccounts(ctx, "eth_requestAccounts")
	if err != nil {
		return m.Session(), err
	}
	sess, err := m.establish(ctx, addr)
	if err != nil {
		return sess, err
	}
	if sess.ChainMismatch {
		if serr := m.SwitchChain(ctx); serr != nil {
			log.Printf("[session] automatic chain switch failed: %v", serr)
		}
		sess = m.Session()
	}
	return sess, nil
}

// Resume silently restores an existing authorization via eth_accounts.
// It never prompts: with no prior authorization it returns the
// disconnected state without error.
func (m *Manager) Resume(ctx context.Context) (sessiondom.Session, error) {
	addr, err := m.requestAccounts(ctx, "eth_accounts")
	if err != nil {
		if errors.Is(err, errNoAccounts) {
			return m.Session(), nil
		}
		return m.Session(), err
	}
	return m.establish(ctx, addr)
}

// Disconnect drops the local session state. Provider-side authorization is
// unaffected; a later Resume can re-establish the session.
func (m *Manager) Disconnect() sessiondom.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = sessiondom.Disconnected()
	log.Printf("[session] disconnected")
	return m.state
}

// SwitchChain asks the provider to move to the platform chain. When the
// provider does not know the chain (code 4902) it attempts to add it first.
func (m *Manager) SwitchChain(ctx context.Context) error {
	target := fmt.Sprintf("0x%x", m.chainID)
	_, err := m.provider.Request(ctx, "wallet_switchEthereumChain",
		map[string]string{"chainId": target})
	if err == nil {
		return m.afterChainSwitch(ctx)
	}
	if sessiondom.IsUserRejected(err) {
		return fmt.Errorf("%w: switch chain: %v", sessiondom.ErrUserRejected, err)
	}
	if !sessiondom.IsUnrecognizedChain(err) {
		return fmt.Errorf("%w: %v", sessiondom.ErrChainSwitchFailed, err)
	}

	// 未登録チェーン。追加してから再度スイッチする。
	log.Printf("[session] chain 0x%x unknown to provider, registering", m.chainID)
	_, err = m.provider.Request(ctx, "wallet_addEthereumChain", m.chainParams(target))
	if err != nil {
		if sessiondom.IsUserRejected(err) {
			return fmt.Errorf("%w: add chain: %v", sessiondom.ErrUserRejected, err)
		}
		return fmt.Errorf("%w: add chain: %v", sessiondom.ErrChainSwitchFailed, err)
	}
	_, err = m.provider.Request(ctx, "wallet_switchEthereumChain",
		map[string]string{"chainId": target})
	if err != nil {
		return fmt.Errorf("%w: %v", sessiondom.ErrChainSwitchFailed, err)
	}
	return m.afterChainSwitch(ctx)
}

// RefreshBalances re-reads the three balances for the connected account.
// The read is tagged with the address it started for: if the account
// changed while the lookups ran, the stale result is discarded.
func (m *Manager) RefreshBalances(ctx context.Context) sessiondom.Session {
	m.mu.RLock()
	addr := m.state.Address
	connected := m.state.Connected
	m.mu.RUnlock()

	if !connected || m.balances == nil {
		return m.Session()
	}

	eth := m.balances.GetNativeBalance(ctx, addr)
	token := m.balances.GetTokenBalance(ctx, addr)
	nfts := m.balances.GetNFTBalance(ctx, addr)

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.state.Connected || !strings.EqualFold(m.state.Address, addr) {
		log.Printf("[session] discard stale balances for %s", addr)
		return m.state
	}
	m.state.EthBalance = trimDisplay(eth, ethDisplayDecimals)
	m.state.TokenBalance = trimDisplay(token, tokenDisplayDecimals)
	m.state.NFTBalance = nfts
	return m.state
}

// Close removes the provider subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for _, u := range m.unsubs {
		u()
	}
	m.unsubs = nil
}

// ----------------------------------------------------------------------
// Internals
// ----------------------------------------------------------------------

func (m *Manager) requestAccounts(ctx context.Context, method string) (string, error) {
	raw, err := m.provider.Request(ctx, method)
	if err != nil {
		if sessiondom.IsUserRejected(err) {
			return "", fmt.Errorf("%w: %v", sessiondom.ErrUserRejected, err)
		}
		return "", fmt.Errorf("%w: %v", sessiondom.ErrProviderUnavailable, err)
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return "", fmt.Errorf("%w: decode accounts: %v", sessiondom.ErrProviderUnavailable, err)
	}
	if len(accounts) == 0 {
		return "", fmt.Errorf("%w: %w", sessiondom.ErrProviderUnavailable, errNoAccounts)
	}
	if !sessiondom.IsValidAddress(accounts[0]) {
		return "", fmt.Errorf("%w: %q", sessiondom.ErrInvalidAddress, accounts[0])
	}
	return accounts[0], nil
}

// establish records the connected account, checks the chain and loads
// balances in one pass. Used by Connect, Resume and the change handlers.
func (m *Manager) establish(ctx context.Context, addr string) (sessiondom.Session, error) {
	chainID, err := m.currentChainID(ctx)
	if err != nil {
		return m.Session(), err
	}

	m.mu.Lock()
	m.state = sessiondom.Session{
		Address:       addr,
		ChainID:       chainID,
		EthBalance:    "0",
		TokenBalance:  "0",
		Connected:     true,
		ChainMismatch: chainID != m.chainID,
	}
	mismatch := m.state.ChainMismatch
	m.mu.Unlock()

	log.Printf("[session] connected addr=%s chainId=%d mismatch=%t", addr, chainID, mismatch)
	return m.RefreshBalances(ctx), nil
}

func (m *Manager) currentChainID(ctx context.Context) (int64, error) {
	raw, err := m.provider.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, fmt.Errorf("%w: eth_chainId: %v", sessiondom.ErrProviderUnavailable, err)
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, fmt.Errorf("%w: decode chainId: %v", sessiondom.ErrProviderUnavailable, err)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(hex, "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse chainId %q: %v", sessiondom.ErrProviderUnavailable, hex, err)
	}
	return id, nil
}

func (m *Manager) afterChainSwitch(ctx context.Context) error {
	chainID, err := m.currentChainID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.state.ChainID = chainID
	m.state.ChainMismatch = chainID != m.chainID
	m.mu.Unlock()
	m.RefreshBalances(ctx)
	return nil
}

// handleAccountsChanged reacts to provider-initiated account switches.
// An empty account list means the user revoked access.
func (m *Manager) handleAccountsChanged(accounts []string) {
	if len(accounts) == 0 {
		m.Disconnect()
		return
	}
	addr := accounts[0]
	if !sessiondom.IsValidAddress(addr) {
		log.Printf("[session] ignore accountsChanged with invalid address %q", addr)
		return
	}

	m.mu.Lock()
	m.state.Address = addr
	m.state.Connected = true
	m.state.EthBalance = "0"
	m.state.TokenBalance = "0"
	m.state.NFTBalance = 0
	m.mu.Unlock()

	log.Printf("[session] account changed addr=%s", addr)
	m.RefreshBalances(context.Background())
}

// handleChainChanged re-validates the chain and refetches balances instead
// of tearing the whole session down.
func (m *Manager) handleChainChanged(chainIDHex string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(chainIDHex, "0x"), 16, 64)
	if err != nil {
		log.Printf("[session] ignore chainChanged with invalid id %q", chainIDHex)
		return
	}

	m.mu.Lock()
	m.state.ChainID = id
	m.state.ChainMismatch = id != m.chainID
	connected := m.state.Connected
	m.mu.Unlock()

	log.Printf("[session] chain changed chainId=%d mismatch=%t", id, id != m.chainID)
	if connected {
		m.RefreshBalances(context.Background())
	}
}

// chainParams describes the platform chain for wallet_addEthereumChain.
func (m *Manager) chainParams(chainIDHex string) map[string]any {
	return map[string]any{
		"chainId":   chainIDHex,
		"chainName": "Lisk Sepolia Testnet",
		"nativeCurrency": map[string]any{
			"name":     "Sepolia Ether",
			"symbol":   "ETH",
			"decimals": 18,
		},
		"rpcUrls":           []string{"https://rpc.sepolia-api.lisk.com"},
		"blockExplorerUrls": []string{"https://sepolia-blockscout.lisk.com"},
	}
}

// trimDisplay truncates a decimal balance string for display.
func trimDisplay(s string, places int) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	frac := s[dot+1:]
	if len(frac) <= places {
		return s
	}
	trimmed := s[:dot+1+places]
	trimmed = strings.TrimRight(trimmed, "0")
	return strings.TrimSuffix(trimmed, ".")
}
