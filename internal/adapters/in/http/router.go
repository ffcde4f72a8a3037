package httpin

import (
	"net/http"

	"creatorhub/internal/adapters/in/http/handlers"
	"creatorhub/internal/application/gateway"
	"creatorhub/internal/application/mintpipe"
	appsession "creatorhub/internal/application/session"
)

// RouterDeps collects all services injected from main.go.
type RouterDeps struct {
	SessionMgr *appsession.Manager
	Gateway    *gateway.ContractGateway
	Pipeline   *mintpipe.Pipeline
	Metadata   handlers.MetadataFetcher
}

// NewRouter sets up HTTP routing for all endpoints.
func NewRouter(deps RouterDeps) http.Handler {
	mux := http.NewServeMux()

	// Health check (always on)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// 以降、依存が存在するものだけマウントする
	if deps.SessionMgr != nil {
		h := handlers.NewSessionHandler(deps.SessionMgr)
		mux.Handle("/session", h)
		mux.Handle("/session/", h)
	}

	if deps.Gateway != nil {
		nfts := handlers.NewNFTHandler(deps.Gateway, deps.Metadata)
		mux.Handle("/nfts", nfts)
		mux.Handle("/nfts/", nfts)
		mux.Handle("/rewards", handlers.NewRewardHandler(deps.Gateway))
		mux.Handle("/tokens/", handlers.NewTokenHandler(deps.Gateway))
	}

	if deps.Pipeline != nil {
		h := handlers.NewMintHandler(deps.Pipeline)
		mux.Handle("/mint", h)
		mux.Handle("/mint/", h)
	}

	return mux
}
