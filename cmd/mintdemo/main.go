// cmd/mintdemo/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"creatorhub/internal/application/mintpipe"
	"creatorhub/internal/domain/nft"
	"creatorhub/internal/platform/di"
)

// テストネットに対して1件だけミントを通すデバッグコマンド。
// 本番 API と同じ Config / Secret Manager 設定を利用する。
func main() {
	name := flag.String("name", "mintdemo", "NFT name")
	description := flag.String("description", "minted by cmd/mintdemo", "NFT description")
	imagePath := flag.String("image", "", "path to the image file")
	flag.Parse()

	if *imagePath == "" {
		log.Fatal("[mintdemo] -image is required")
	}
	image, err := os.ReadFile(*imagePath)
	if err != nil {
		log.Fatalf("[mintdemo] read image: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := di.NewContainer(ctx)
	if err != nil {
		log.Fatalf("[mintdemo] init container: %v", err)
	}
	defer container.Close()

	sess, err := container.SessionMgr.Resume(ctx)
	if err != nil {
		log.Fatalf("[mintdemo] resume session: %v", err)
	}
	if !sess.Connected {
		log.Fatal("[mintdemo] no signer session (check ETH_SIGNER_KEY / ETH_SIGNER_SECRET_ID)")
	}
	if sess.ChainMismatch {
		log.Fatalf("[mintdemo] signer is on chain %d, want %d", sess.ChainID, container.Config.ChainID)
	}
	log.Printf("[mintdemo] signer=%s eth=%s", sess.Address, sess.EthBalance)

	container.Pipeline.WithNotifier(func(s mintpipe.Status) {
		log.Printf("[mintdemo] %s %d%% %s", s.Phase, s.Progress, s.Message)
	})

	status, err := container.Pipeline.Run(ctx, nft.MintRequest{
		Name:        *name,
		Description: *description,
		Image:       image,
	})
	if err != nil {
		log.Fatalf("[mintdemo] mint failed: %v", err)
	}
	log.Printf("[mintdemo] OK tx=%s explorer=%s", status.TxHash, container.Config.ExplorerTxURL(status.TxHash))
}
