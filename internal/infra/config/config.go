// internal/infra/config/config.go
package config

import (
	"os"
	"strconv"
)

// Config はアプリケーション全体の環境変数設定を保持します。
type Config struct {
	Port string

	// Ethereum JSON-RPC node (Lisk Sepolia by default)
	EthRPCEndpoint string
	ChainID        int64

	// Deployed contract addresses
	NFTContractAddress  string
	CreatorTokenAddress string

	// Pinata (IPFS pinning service)
	PinataBaseURL  string
	PinataJWT      string
	IPFSGatewayURL string

	// Server-side signer key. ETH_SIGNER_KEY (hex) wins; otherwise the key is
	// fetched from Secret Manager by ETH_SIGNER_SECRET_ID.
	EthSignerKey      string
	EthSignerSecretID string
	GCPProjectID      string
}

// Lisk Sepolia testnet defaults.
const (
	DefaultChainID     = 4202
	DefaultRPCEndpoint = "https://rpc.sepolia-api.lisk.com"
	DefaultExplorerURL = "https://sepolia-blockscout.lisk.com"
	DefaultGatewayURL  = "https://gateway.pinata.cloud/ipfs/"
	DefaultPinataURL   = "https://api.pinata.cloud"
)

// Load は環境変数を読み込み Config を返します。
func Load() *Config {
	cfg := &Config{
		Port: getenvDefault("PORT", "8080"),

		EthRPCEndpoint: getenvDefault("ETH_RPC_ENDPOINT", DefaultRPCEndpoint),
		ChainID:        getenvInt64("CHAIN_ID", DefaultChainID),

		NFTContractAddress:  os.Getenv("NFT_CONTRACT_ADDRESS"),
		CreatorTokenAddress: os.Getenv("CREATOR_TOKEN_ADDRESS"),

		PinataBaseURL:  getenvDefault("PINATA_BASE_URL", DefaultPinataURL),
		PinataJWT:      os.Getenv("PINATA_JWT"),
		IPFSGatewayURL: getenvDefault("IPFS_GATEWAY_URL", DefaultGatewayURL),

		EthSignerKey:      os.Getenv("ETH_SIGNER_KEY"),
		EthSignerSecretID: os.Getenv("ETH_SIGNER_SECRET_ID"),
		GCPProjectID:      os.Getenv("GCP_PROJECT_ID"),
	}
	return cfg
}

// ExplorerTxURL は tx hash をブロックエクスプローラの URL に変換します。
func (c *Config) ExplorerTxURL(txHash string) string {
	return DefaultExplorerURL + "/tx/" + txHash
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
