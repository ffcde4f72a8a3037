package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	sessiondom "creatorhub/internal/domain/session"
)

const (
	addrAlice = "0x1111111111111111111111111111111111111111"
	addrBob   = "0x2222222222222222222222222222222222222222"
	platform  = int64(4202)
)

// fakeProvider scripts wallet responses per method and records handlers so
// tests can emit accountsChanged / chainChanged events.
type fakeProvider struct {
	mu       sync.Mutex
	accounts []string
	chainID  int64
	errs     map[string]error
	calls    []string

	accountHandlers []func([]string)
	chainHandlers   []func(string)
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accounts: []string{addrAlice},
		chainID:  platform,
		errs:     map[string]error{},
	}
}

func (f *fakeProvider) Request(_ context.Context, method string, _ ...any) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if err := f.errs[method]; err != nil {
		return nil, err
	}
	switch method {
	case "eth_accounts", "eth_requestAccounts":
		return json.Marshal(f.accounts)
	case "eth_chainId":
		return json.Marshal(fmt.Sprintf("0x%x", f.chainID))
	case "wallet_switchEthereumChain", "wallet_addEthereumChain":
		f.chainID = platform
		return json.Marshal(nil)
	}
	return nil, fmt.Errorf("unexpected method %s", method)
}

func (f *fakeProvider) OnAccountsChanged(fn func([]string)) func() {
	f.accountHandlers = append(f.accountHandlers, fn)
	return func() {}
}

func (f *fakeProvider) OnChainChanged(fn func(string)) func() {
	f.chainHandlers = append(f.chainHandlers, fn)
	return func() {}
}

func (f *fakeProvider) emitAccountsChanged(accounts []string) {
	for _, fn := range f.accountHandlers {
		fn(accounts)
	}
}

func (f *fakeProvider) emitChainChanged(hex string) {
	for _, fn := range f.chainHandlers {
		fn(hex)
	}
}

func (f *fakeProvider) called(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

// fakeBalances returns per-address balances, optionally switching the
// provider account mid-read to exercise stale-result discard.
type fakeBalances struct {
	eth   map[string]string
	token map[string]string
	nfts  map[string]int

	onRead func(addr string)
}

func (f *fakeBalances) GetNativeBalance(_ context.Context, addr string) string {
	if f.onRead != nil {
		f.onRead(addr)
	}
	if v, ok := f.eth[addr]; ok {
		return v
	}
	return "0"
}

func (f *fakeBalances) GetTokenBalance(_ context.Context, addr string) string {
	if v, ok := f.token[addr]; ok {
		return v
	}
	return "0"
}

func (f *fakeBalances) GetNFTBalance(_ context.Context, addr string) int {
	return f.nfts[addr]
}

func newManager(t *testing.T, f *fakeProvider, b BalanceSource) *Manager {
	t.Helper()
	m := NewManager(f, platform)
	if b != nil {
		m.WithBalanceSource(b)
	}
	t.Cleanup(m.Close)
	return m
}

func TestConnectEstablishesSession(t *testing.T) {
	f := newFakeProvider()
	b := &fakeBalances{
		eth:   map[string]string{addrAlice: "1.23456789"},
		token: map[string]string{addrAlice: "100.987"},
		nfts:  map[string]int{addrAlice: 3},
	}
	m := newManager(t, f, b)

	sess, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !sess.Connected {
		t.Fatal("expected connected session")
	}
	if sess.Address != addrAlice {
		t.Fatalf("address = %s, want %s", sess.Address, addrAlice)
	}
	if sess.ChainMismatch {
		t.Fatal("unexpected chain mismatch")
	}
	if sess.EthBalance != "1.2345" {
		t.Fatalf("eth balance = %s, want 1.2345", sess.EthBalance)
	}
	if sess.TokenBalance != "100.98" {
		t.Fatalf("token balance = %s, want 100.98", sess.TokenBalance)
	}
	if sess.NFTBalance != 3 {
		t.Fatalf("nft balance = %d, want 3", sess.NFTBalance)
	}
}

func TestConnectUserRejected(t *testing.T) {
	f := newFakeProvider()
	f.errs["eth_requestAccounts"] = &sessiondom.ProviderError{
		Code:    sessiondom.CodeUserRejected,
		Message: "User rejected the request.",
	}
	m := newManager(t, f, nil)

	_, err := m.Connect(context.Background())
	if !errors.Is(err, sessiondom.ErrUserRejected) {
		t.Fatalf("err = %v, want ErrUserRejected", err)
	}
	if m.Session().Connected {
		t.Fatal("session must stay disconnected after rejection")
	}
}

func TestConnectProviderUnavailable(t *testing.T) {
	f := newFakeProvider()
	f.errs["eth_requestAccounts"] = errors.New("connection refused")
	m := newManager(t, f, nil)

	_, err := m.Connect(context.Background())
	if !errors.Is(err, sessiondom.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestConnectAttemptsChainSwitch(t *testing.T) {
	f := newFakeProvider()
	f.chainID = 1
	m := newManager(t, f, nil)

	sess, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if f.called("wallet_switchEthereumChain") < 1 {
		t.Fatal("connect on a foreign chain must attempt a chain switch")
	}
	// The fake accepts the switch, so the session lands on the platform chain.
	if sess.ChainMismatch || sess.ChainID != platform {
		t.Fatalf("expected platform chain after the automatic switch, got %+v", sess)
	}
}

func TestConnectKeepsSessionWhenSwitchFails(t *testing.T) {
	f := newFakeProvider()
	f.chainID = 1
	f.errs["wallet_switchEthereumChain"] = &sessiondom.ProviderError{
		Code:    sessiondom.CodeUserRejected,
		Message: "User rejected the request.",
	}
	m := newManager(t, f, nil)

	sess, err := m.Connect(context.Background())
	if err != nil {
		t.Fatalf("a failed automatic switch must not fail Connect: %v", err)
	}
	if !sess.Connected {
		t.Fatal("session must stay connected when the switch is declined")
	}
	if !sess.ChainMismatch {
		t.Fatal("expected chain mismatch to remain after a declined switch")
	}
	if f.called("wallet_switchEthereumChain") < 1 {
		t.Fatal("connect on a foreign chain must attempt a chain switch")
	}
	if m.ChainMatches() {
		t.Fatal("ChainMatches must be false on foreign chain")
	}
}

func TestResumeWithoutAuthorizationIsSilent(t *testing.T) {
	f := newFakeProvider()
	f.accounts = nil
	m := newManager(t, f, nil)

	sess, err := m.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume must not error without prior authorization: %v", err)
	}
	if sess.Connected {
		t.Fatal("expected disconnected session")
	}
}

func TestResumeRestoresSession(t *testing.T) {
	f := newFakeProvider()
	m := newManager(t, f, nil)

	sess, err := m.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !sess.Connected || sess.Address != addrAlice {
		t.Fatalf("resume did not restore session: %+v", sess)
	}
	if f.called("eth_requestAccounts") != 0 {
		t.Fatal("Resume must never prompt via eth_requestAccounts")
	}
}

func TestDisconnectResetsState(t *testing.T) {
	f := newFakeProvider()
	m := newManager(t, f, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	sess := m.Disconnect()
	want := sessiondom.Disconnected()
	if sess != want {
		t.Fatalf("disconnect state = %+v, want %+v", sess, want)
	}
	if _, ok := m.Address(); ok {
		t.Fatal("Address must report not-ok after disconnect")
	}
}

func TestAccountsChangedSwitchesAccount(t *testing.T) {
	f := newFakeProvider()
	b := &fakeBalances{
		eth:   map[string]string{addrAlice: "1", addrBob: "2"},
		token: map[string]string{},
		nfts:  map[string]int{},
	}
	m := newManager(t, f, b)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	f.emitAccountsChanged([]string{addrBob})

	sess := m.Session()
	if sess.Address != addrBob {
		t.Fatalf("address = %s, want %s", sess.Address, addrBob)
	}
	if sess.EthBalance != "2" {
		t.Fatalf("eth balance = %s, want refetched 2", sess.EthBalance)
	}
}

func TestAccountsChangedEmptyDisconnects(t *testing.T) {
	f := newFakeProvider()
	m := newManager(t, f, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	f.emitAccountsChanged(nil)

	if m.Session().Connected {
		t.Fatal("empty accountsChanged must disconnect")
	}
}

func TestChainChangedUpdatesMismatch(t *testing.T) {
	f := newFakeProvider()
	m := newManager(t, f, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	f.emitChainChanged("0x1")
	if sess := m.Session(); !sess.ChainMismatch || sess.ChainID != 1 {
		t.Fatalf("expected mismatch on chain 1, got %+v", sess)
	}

	f.emitChainChanged("0x106a")
	if sess := m.Session(); sess.ChainMismatch || sess.ChainID != platform {
		t.Fatalf("expected match back on platform chain, got %+v", sess)
	}
}

func TestRefreshDiscardsStaleResult(t *testing.T) {
	f := newFakeProvider()
	var m *Manager
	b := &fakeBalances{
		eth:   map[string]string{addrAlice: "111", addrBob: "222"},
		token: map[string]string{},
		nfts:  map[string]int{},
	}
	// Switch the account while Alice's read is in flight. The late result
	// must not overwrite Bob's session.
	switched := false
	b.onRead = func(addr string) {
		if addr == addrAlice && !switched {
			switched = true
			f.emitAccountsChanged([]string{addrBob})
		}
	}
	m = newManager(t, f, b)

	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	sess := m.Session()
	if sess.Address != addrBob {
		t.Fatalf("address = %s, want %s", sess.Address, addrBob)
	}
	if sess.EthBalance == "111" {
		t.Fatal("stale balance for the previous account leaked into the session")
	}
	if sess.EthBalance != "222" {
		t.Fatalf("eth balance = %s, want 222", sess.EthBalance)
	}
}

func TestRefreshWhileDisconnectedIsNoop(t *testing.T) {
	f := newFakeProvider()
	b := &fakeBalances{eth: map[string]string{}, token: map[string]string{}, nfts: map[string]int{}}
	m := newManager(t, f, b)

	sess := m.RefreshBalances(context.Background())
	if sess.Connected {
		t.Fatal("refresh must not fabricate a session")
	}
	if sess != sessiondom.Disconnected() {
		t.Fatalf("unexpected state: %+v", sess)
	}
}

func TestSwitchChainSuccess(t *testing.T) {
	f := newFakeProvider()
	f.chainID = 1
	m := newManager(t, f, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := m.SwitchChain(context.Background()); err != nil {
		t.Fatalf("SwitchChain: %v", err)
	}
	if sess := m.Session(); sess.ChainMismatch || sess.ChainID != platform {
		t.Fatalf("expected platform chain after switch, got %+v", sess)
	}
}

func TestSwitchChainAddsUnknownChain(t *testing.T) {
	f := newFakeProvider()
	f.chainID = 1
	// Every switch attempt reports the chain as unknown, even after the add.
	f.errs["wallet_switchEthereumChain"] = &sessiondom.ProviderError{
		Code:    sessiondom.CodeUnrecognizedChain,
		Message: "Unrecognized chain ID",
	}
	m := newManager(t, f, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	addsBefore := f.called("wallet_addEthereumChain")
	switchesBefore := f.called("wallet_switchEthereumChain")

	// The fake keeps reporting 4902 even after the add, so the manager
	// must surface ErrChainSwitchFailed rather than hang or succeed.
	err := m.SwitchChain(context.Background())
	if !errors.Is(err, sessiondom.ErrChainSwitchFailed) {
		t.Fatalf("err = %v, want ErrChainSwitchFailed", err)
	}
	if got := f.called("wallet_addEthereumChain") - addsBefore; got != 1 {
		t.Fatalf("expected one wallet_addEthereumChain attempt after 4902, got %d", got)
	}
	if got := f.called("wallet_switchEthereumChain") - switchesBefore; got != 2 {
		t.Fatalf("expected a switch retry after the add, got %d", got)
	}
}

func TestSwitchChainUserRejected(t *testing.T) {
	f := newFakeProvider()
	f.chainID = 1
	f.errs["wallet_switchEthereumChain"] = &sessiondom.ProviderError{
		Code:    sessiondom.CodeUserRejected,
		Message: "User rejected the request.",
	}
	m := newManager(t, f, nil)
	if _, err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if err := m.SwitchChain(context.Background()); !errors.Is(err, sessiondom.ErrUserRejected) {
		t.Fatalf("err = %v, want ErrUserRejected", err)
	}
}
