// cmd/ipfs/main.go
package main

import (
	"context"
	"log"
	"time"

	"creatorhub/internal/infra/config"
	"creatorhub/internal/infra/ipfs"
)

// Pinata 疎通確認用のデバッグコマンド。JSON を1件ピン留めして
// gateway URL で読み戻せることを確認する。
func main() {
	cfg := config.Load()
	if cfg.PinataJWT == "" {
		log.Fatal("[debug-ipfs] PINATA_JWT is empty")
	}

	c := ipfs.NewPinataClient(cfg.PinataBaseURL, cfg.PinataJWT, cfg.IPFSGatewayURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	payload := map[string]any{
		"hello": "from creatorhub debug",
		"ts":    time.Now().UTC().Format(time.RFC3339),
	}

	log.Printf("[debug-ipfs] UploadJSON to %s ...", cfg.PinataBaseURL)
	uri, err := c.UploadJSON(ctx, payload)
	if err != nil {
		log.Fatalf("UploadJSON failed: %v", err)
	}
	log.Printf("[debug-ipfs] pinned uri=%s gateway=%s", uri, c.GatewayURL(uri))

	var back map[string]any
	if err := c.FetchJSON(ctx, uri, &back); err != nil {
		log.Fatalf("FetchJSON failed: %v", err)
	}
	log.Printf("[debug-ipfs] OK read back ts=%v", back["ts"])
}
