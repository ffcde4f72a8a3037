// internal/platform/di/container.go
package di

import (
	"context"
	"fmt"
	"log"

	httpin "creatorhub/internal/adapters/in/http"
	"creatorhub/internal/application/gateway"
	"creatorhub/internal/application/mintpipe"
	appsession "creatorhub/internal/application/session"
	"creatorhub/internal/infra/config"
	"creatorhub/internal/infra/eth"
	"creatorhub/internal/infra/ipfs"
)

// 結線の整合チェック
var (
	_ appsession.Provider      = (*eth.LocalKeyProvider)(nil)
	_ appsession.BalanceSource = (*gateway.ContractGateway)(nil)
	_ gateway.Caller           = (*eth.LocalKeyProvider)(nil)
	_ gateway.Accounts         = (*appsession.Manager)(nil)
	_ mintpipe.Uploader        = (*ipfs.PinataClient)(nil)
	_ mintpipe.Minter          = (*gateway.ContractGateway)(nil)
)

// Container は main.go から使う依存オブジェクトの束。
// 目的は main.go を極限まで薄くすること。
type Container struct {
	Config *config.Config

	SessionMgr *appsession.Manager
	Gateway    *gateway.ContractGateway
	Pipeline   *mintpipe.Pipeline
	Pinata     *ipfs.PinataClient

	cleanupFn []func()
}

// NewContainer は設定を読み、署名鍵を解決し、全サービスを配線して返す。
func NewContainer(ctx context.Context) (*Container, error) {
	cfg := config.Load()

	node := eth.NewJSONRPCClient(cfg.EthRPCEndpoint)

	signerKey, cleanup, err := resolveSignerKey(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("di: resolve signer key: %w", err)
	}

	provider, err := eth.NewLocalKeyProvider(node, signerKey, cfg.ChainID)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, fmt.Errorf("di: init provider: %w", err)
	}
	log.Printf("[di] signer address=%s chainId=%d", provider.Address(), cfg.ChainID)

	// session ↔ gateway は相互参照するため setter で後から結線する。
	mgr := appsession.NewManager(provider, cfg.ChainID)
	gw := gateway.NewContractGateway(provider, mgr,
		cfg.NFTContractAddress, cfg.CreatorTokenAddress, cfg.ChainID)
	mgr.WithBalanceSource(gw)

	pinata := ipfs.NewPinataClient(cfg.PinataBaseURL, cfg.PinataJWT, cfg.IPFSGatewayURL)

	pipe := mintpipe.NewPipeline(pinata, gw)
	gw.Submitted = func(op, txHash string) {
		log.Printf("[di] %s submitted tx=%s explorer=%s", op, txHash, cfg.ExplorerTxURL(txHash))
		if op == "mint" {
			pipe.NoteSubmitted(txHash)
		}
	}

	c := &Container{
		Config:     cfg,
		SessionMgr: mgr,
		Gateway:    gw,
		Pipeline:   pipe,
		Pinata:     pinata,
	}
	if cleanup != nil {
		c.cleanupFn = append(c.cleanupFn, cleanup)
	}
	c.cleanupFn = append(c.cleanupFn, mgr.Close)
	return c, nil
}

// RouterDeps は HTTP ルーターへ渡す依存の束を組み立てる。
func (c *Container) RouterDeps() httpin.RouterDeps {
	return httpin.RouterDeps{
		SessionMgr: c.SessionMgr,
		Gateway:    c.Gateway,
		Pipeline:   c.Pipeline,
		Metadata:   c.Pinata,
	}
}

// Close は終了時に呼んで安全にリソースを閉じる。
func (c *Container) Close() {
	for _, fn := range c.cleanupFn {
		fn()
	}
}

func resolveSignerKey(ctx context.Context, cfg *config.Config) (string, func(), error) {
	if cfg.EthSignerKey != "" {
		return cfg.EthSignerKey, nil, nil
	}
	if cfg.EthSignerSecretID == "" {
		return "", nil, fmt.Errorf("neither ETH_SIGNER_KEY nor ETH_SIGNER_SECRET_ID is set")
	}

	sm, err := eth.NewSignerSecretProviderSM(ctx, cfg.GCPProjectID)
	if err != nil {
		return "", nil, err
	}
	key, err := sm.GetSignerKey(ctx, cfg.EthSignerSecretID)
	if err != nil {
		_ = sm.Close()
		return "", nil, err
	}
	return key, func() { _ = sm.Close() }, nil
}
