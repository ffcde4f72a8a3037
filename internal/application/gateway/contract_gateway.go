// internal/application/gateway/contract_gateway.go
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/sync/errgroup"

	nftdom "creatorhub/internal/domain/nft"
	sessiondom "creatorhub/internal/domain/session"
)

// Caller は gateway が必要とする最小の provider 境界です。
// infra/eth の LocalKeyProvider / JSONRPCClient がこれを満たします。
type Caller interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Accounts は署名コンテキスト（現在の接続アカウント）を提供します。
// session.Manager がこれを満たします。
type Accounts interface {
	// Address returns the connected account, ok=false while disconnected.
	Address() (addr string, ok bool)
	// ChainMatches reports whether the wallet is on the platform chain.
	ChainMatches() bool
}

const (
	// 並列 lookup の上限。enumeration は tokenId 昇順の結果順を保ったまま
	// 同時実行される。
	nftLookupConcurrency = 8

	// CreatorRewarded ログの走査窓。これより古いイベントはこの呼び出しでは
	// 取得できない。
	rewardBlockWindow = 10_000

	// レジストリの reward トークンは 18 桁精度で発行される。
	rewardDecimals = 18

	defaultPollInterval = 2 * time.Second
)

// ContractGateway は NFT レジストリと報酬トークン台帳への読み書きを
// ドメイン操作に変換します。read 系は表示用途のため失敗時も
// 空/ゼロへ degrade し、write 系は必ずエラーを呼び出し元へ返します。
type ContractGateway struct {
	caller   Caller
	accounts Accounts

	registryAddr common.Address
	tokenAddr    common.Address
	chainID      int64

	// PollInterval controls receipt polling for submitted transactions.
	PollInterval time.Duration

	// Submitted, if set, is invoked once a write landed in the pending pool,
	// before confirmation. Callers use it to show a "submitted" state.
	Submitted func(op, txHash string)
}

// NewContractGateway constructs the gateway for the given deployed contracts.
func NewContractGateway(caller Caller, accounts Accounts, registryAddr, tokenAddr string, chainID int64) *ContractGateway {
	return &ContractGateway{
		caller:       caller,
		accounts:     accounts,
		registryAddr: common.HexToAddress(registryAddr),
		tokenAddr:    common.HexToAddress(tokenAddr),
		chainID:      chainID,
		PollInterval: defaultPollInterval,
	}
}

// ----------------------------------------------------------------------
// Read operations (no signer required; degrade to zero/empty on failure)
// ----------------------------------------------------------------------

// GetNativeBalance returns the ETH balance of addr as a decimal string.
func (g *ContractGateway) GetNativeBalance(ctx context.Context, addr string) string {
	raw, err := g.caller.Request(ctx, "eth_getBalance", addr, "latest")
	if err != nil {
		log.Printf("[gateway] eth_getBalance failed addr=%s err=%v", addr, err)
		return "0"
	}
	v, err := decodeQuantity(raw)
	if err != nil {
		log.Printf("[gateway] eth_getBalance decode failed err=%v", err)
		return "0"
	}
	return FormatUnits(v, 18)
}

// GetTokenBalance returns the reward-token balance of addr as a decimal
// string, converted with the ledger's declared precision.
func (g *ContractGateway) GetTokenBalance(ctx context.Context, addr string) string {
	out, err := g.call(ctx, g.tokenAddr, tokenABI, "balanceOf", common.HexToAddress(addr))
	if err != nil {
		log.Printf("[gateway] token balanceOf failed addr=%s err=%v", addr, err)
		return "0"
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		log.Printf("[gateway] token balanceOf returned unexpected type %T", out[0])
		return "0"
	}

	decimals, err := g.tokenDecimals(ctx)
	if err != nil {
		log.Printf("[gateway] token decimals failed err=%v", err)
		return "0"
	}
	return FormatUnits(balance, decimals)
}

// GetNFTBalance returns how many registry tokens addr owns.
func (g *ContractGateway) GetNFTBalance(ctx context.Context, addr string) int {
	out, err := g.call(ctx, g.registryAddr, registryABI, "balanceOf", common.HexToAddress(addr))
	if err != nil {
		log.Printf("[gateway] nft balanceOf failed addr=%s err=%v", addr, err)
		return 0
	}
	v, ok := out[0].(*big.Int)
	if !ok || !v.IsInt64() {
		log.Printf("[gateway] nft balanceOf out of range addr=%s value=%v", addr, out[0])
		return 0
	}
	return int(v.Int64())
}

// GetTotalMinted returns the current mint counter (enumeration upper bound).
func (g *ContractGateway) GetTotalMinted(ctx context.Context) int64 {
	out, err := g.call(ctx, g.registryAddr, registryABI, "tokenCounter")
	if err != nil {
		log.Printf("[gateway] tokenCounter failed err=%v", err)
		return 0
	}
	v, ok := out[0].(*big.Int)
	if !ok || !v.IsInt64() {
		log.Printf("[gateway] tokenCounter out of range value=%v", out[0])
		return 0
	}
	return v.Int64()
}

// GetAllNFTs enumerates tokenId 1..tokenCounter() inclusive. Individual
// lookup failures are logged and skipped; the result stays ordered by
// ascending tokenId. Lookups run with bounded concurrency since this is the
// dominant remote-call cost of the system.
func (g *ContractGateway) GetAllNFTs(ctx context.Context) []nftdom.Record {
	total := g.GetTotalMinted(ctx)
	if total <= 0 {
		return []nftdom.Record{}
	}

	slots := make([]*nftdom.Record, total)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(nftLookupConcurrency)
	for id := int64(1); id <= total; id++ {
		id := id
		eg.Go(func() error {
			rec, err := g.lookupRecord(gctx, id)
			if err != nil {
				log.Printf("[gateway] skip tokenId=%d: %v", id, err)
				return nil
			}
			slots[id-1] = &rec
			return nil
		})
	}
	_ = eg.Wait() // lookups never propagate errors, only skip

	out := make([]nftdom.Record, 0, total)
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// GetNFTsByCreator uses the registry's creator index instead of scanning.
func (g *ContractGateway) GetNFTsByCreator(ctx context.Context, creator string) []nftdom.Record {
	out, err := g.call(ctx, g.registryAddr, registryABI, "getNFTsByCreator", common.HexToAddress(creator))
	if err != nil {
		log.Printf("[gateway] getNFTsByCreator failed creator=%s err=%v", creator, err)
		return []nftdom.Record{}
	}
	ids, ok := out[0].([]*big.Int)
	if !ok {
		log.Printf("[gateway] getNFTsByCreator returned unexpected type %T", out[0])
		return []nftdom.Record{}
	}

	records := make([]nftdom.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := g.lookupRecord(ctx, id.Int64())
		if err != nil {
			log.Printf("[gateway] skip tokenId=%d: %v", id.Int64(), err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// ethLog is the subset of an eth_getLogs entry we decode.
type ethLog struct {
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
}

// GetRewardEvents scans CreatorRewarded logs over the last rewardBlockWindow
// blocks, optionally filtered to one creator. Events keep the log source
// order (ascending block number). Timestamps are synthesized at read time.
func (g *ContractGateway) GetRewardEvents(ctx context.Context, creator string) []nftdom.RewardEvent {
	latestRaw, err := g.caller.Request(ctx, "eth_blockNumber")
	if err != nil {
		log.Printf("[gateway] eth_blockNumber failed err=%v", err)
		return []nftdom.RewardEvent{}
	}
	latest, err := decodeQuantity(latestRaw)
	if err != nil {
		log.Printf("[gateway] eth_blockNumber decode failed err=%v", err)
		return []nftdom.RewardEvent{}
	}

	from := new(big.Int).Sub(latest, big.NewInt(rewardBlockWindow))
	if from.Sign() < 0 {
		from.SetInt64(0)
	}

	eventID := registryABI.Events["CreatorRewarded"].ID
	topics := []any{eventID.Hex()}
	if c := strings.TrimSpace(creator); c != "" {
		topics = append(topics, common.HexToHash(c).Hex())
	}

	filter := map[string]any{
		"address":   g.registryAddr.Hex(),
		"fromBlock": hexutil.EncodeBig(from),
		"toBlock":   "latest",
		"topics":    topics,
	}
	raw, err := g.caller.Request(ctx, "eth_getLogs", filter)
	if err != nil {
		log.Printf("[gateway] eth_getLogs failed err=%v", err)
		return []nftdom.RewardEvent{}
	}

	var logs []ethLog
	if err := json.Unmarshal(raw, &logs); err != nil {
		log.Printf("[gateway] eth_getLogs decode failed err=%v", err)
		return []nftdom.RewardEvent{}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	events := make([]nftdom.RewardEvent, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 2 {
			continue
		}
		amountBytes, err := hexutil.Decode(l.Data)
		if err != nil {
			log.Printf("[gateway] skip reward log tx=%s: bad data: %v", l.TransactionHash, err)
			continue
		}
		block, err := hexutil.DecodeUint64(l.BlockNumber)
		if err != nil {
			log.Printf("[gateway] skip reward log tx=%s: bad blockNumber: %v", l.TransactionHash, err)
			continue
		}
		events = append(events, nftdom.RewardEvent{
			Creator:         common.HexToAddress(l.Topics[1]).Hex(),
			Amount:          FormatUnits(new(big.Int).SetBytes(amountBytes), rewardDecimals),
			BlockNumber:     int64(block),
			TransactionHash: l.TransactionHash,
			Timestamp:       now,
		})
	}
	return events
}

// FetchTokenURI reads the content locator of one token. Unlike the bulk
// reads this surfaces its error: callers decide whether the miss is fatal.
func (g *ContractGateway) FetchTokenURI(ctx context.Context, tokenID int64) (string, error) {
	out, err := g.call(ctx, g.registryAddr, registryABI, "tokenURI", big.NewInt(tokenID))
	if err != nil {
		return "", err
	}
	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("gateway: tokenURI returned unexpected type %T", out[0])
	}
	return uri, nil
}

// ----------------------------------------------------------------------
// Write operations (connected signer required; single attempt, two-phase)
// ----------------------------------------------------------------------

// Mint submits a mintNft call and waits for on-chain confirmation.
// The Submitted hook fires as soon as the transaction enters the pending
// pool. User rejection and execution failures keep their original message.
func (g *ContractGateway) Mint(ctx context.Context, metadataURI string) (string, error) {
	data, err := registryABI.Pack("mintNft", metadataURI)
	if err != nil {
		return "", fmt.Errorf("%w: pack mintNft: %v", nftdom.ErrContractCallFailed, err)
	}
	return g.submit(ctx, "mint", g.registryAddr, data)
}

// TransferTokens converts amount into raw ledger units using the token's
// declared precision and submits a transfer.
func (g *ContractGateway) TransferTokens(ctx context.Context, to, amount string) (string, error) {
	decimals, err := g.tokenDecimals(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: read decimals: %v", nftdom.ErrContractCallFailed, err)
	}
	units, err := ParseUnits(amount, decimals)
	if err != nil {
		return "", fmt.Errorf("%w: %v", nftdom.ErrContractCallFailed, err)
	}

	data, err := tokenABI.Pack("transfer", common.HexToAddress(to), units)
	if err != nil {
		return "", fmt.Errorf("%w: pack transfer: %v", nftdom.ErrContractCallFailed, err)
	}
	return g.submit(ctx, "transfer", g.tokenAddr, data)
}

func (g *ContractGateway) submit(ctx context.Context, op string, to common.Address, data []byte) (string, error) {
	from, ok := g.accounts.Address()
	if !ok {
		return "", fmt.Errorf("%w: %s requires a connected signer", nftdom.ErrContractCallFailed, op)
	}
	if !g.accounts.ChainMatches() {
		return "", fmt.Errorf("%w: %s rejected: wallet is not on chain %d", nftdom.ErrContractCallFailed, op, g.chainID)
	}

	raw, err := g.caller.Request(ctx, "eth_sendTransaction", map[string]string{
		"from": from,
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	})
	if err != nil {
		if sessiondom.IsUserRejected(err) {
			return "", fmt.Errorf("%w: %s: %v", sessiondom.ErrUserRejected, op, err)
		}
		return "", fmt.Errorf("%w: %s: %v", nftdom.ErrContractCallFailed, op, err)
	}

	var txHash string
	if err := json.Unmarshal(raw, &txHash); err != nil {
		return "", fmt.Errorf("%w: %s: decode tx hash: %v", nftdom.ErrContractCallFailed, op, err)
	}

	log.Printf("[gateway] %s submitted tx=%s", op, txHash)
	if g.Submitted != nil {
		g.Submitted(op, txHash)
	}

	if err := g.waitMined(ctx, txHash); err != nil {
		return "", fmt.Errorf("%w: %s: %v", nftdom.ErrContractCallFailed, op, err)
	}

	log.Printf("[gateway] %s confirmed tx=%s", op, txHash)
	return txHash, nil
}

// waitMined polls for the transaction receipt until it lands or ctx ends.
func (g *ContractGateway) waitMined(ctx context.Context, txHash string) error {
	interval := g.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		raw, err := g.caller.Request(ctx, "eth_getTransactionReceipt", txHash)
		if err != nil {
			return fmt.Errorf("get receipt: %v", err)
		}
		if len(raw) > 0 && string(raw) != "null" {
			var receipt struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(raw, &receipt); err != nil {
				return fmt.Errorf("decode receipt: %v", err)
			}
			if receipt.Status == "0x0" {
				return fmt.Errorf("transaction %s reverted", txHash)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ----------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------

func (g *ContractGateway) lookupRecord(ctx context.Context, tokenID int64) (nftdom.Record, error) {
	id := big.NewInt(tokenID)

	uriOut, err := g.call(ctx, g.registryAddr, registryABI, "tokenURI", id)
	if err != nil {
		return nftdom.Record{}, fmt.Errorf("tokenURI: %v", err)
	}
	ownerOut, err := g.call(ctx, g.registryAddr, registryABI, "ownerOf", id)
	if err != nil {
		return nftdom.Record{}, fmt.Errorf("ownerOf: %v", err)
	}
	creatorOut, err := g.call(ctx, g.registryAddr, registryABI, "creators", id)
	if err != nil {
		return nftdom.Record{}, fmt.Errorf("creators: %v", err)
	}

	uri, _ := uriOut[0].(string)
	owner, _ := ownerOut[0].(common.Address)
	creator, _ := creatorOut[0].(common.Address)

	return nftdom.Record{
		TokenID:  tokenID,
		TokenURI: uri,
		Owner:    owner.Hex(),
		Creator:  creator.Hex(),
	}, nil
}

func (g *ContractGateway) tokenDecimals(ctx context.Context) (int, error) {
	out, err := g.call(ctx, g.tokenAddr, tokenABI, "decimals")
	if err != nil {
		return 0, err
	}
	if v, ok := out[0].(uint8); ok {
		return int(v), nil
	}
	return 0, fmt.Errorf("gateway: decimals returned unexpected type %T", out[0])
}

// call packs an eth_call, sends it, and unpacks the result.
func (g *ContractGateway) call(ctx context.Context, to common.Address, contractABI ethabi.ABI, method string, args ...any) ([]any, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %v", method, err)
	}
	raw, err := g.caller.Request(ctx, "eth_call", map[string]string{
		"to":   to.Hex(),
		"data": hexutil.Encode(data),
	}, "latest")
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %v", method, err)
	}

	var hexResult string
	if err := json.Unmarshal(raw, &hexResult); err != nil {
		return nil, fmt.Errorf("decode %s result: %v", method, err)
	}
	resultBytes, err := hexutil.Decode(hexResult)
	if err != nil {
		return nil, fmt.Errorf("decode %s hex: %v", method, err)
	}
	out, err := contractABI.Unpack(method, resultBytes)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %v", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return out, nil
}

func decodeQuantity(raw json.RawMessage) (*big.Int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return hexutil.DecodeBig(s)
}
