package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"creatorhub/internal/application/gateway"
	nftdom "creatorhub/internal/domain/nft"
	sessiondom "creatorhub/internal/domain/session"
)

// MetadataFetcher resolves an ipfs:// locator into a metadata document.
type MetadataFetcher interface {
	FetchJSON(ctx context.Context, uri string, v any) error
}

// NFTHandler は /nfts 関連のエンドポイントを担当します。
type NFTHandler struct {
	gw       *gateway.ContractGateway
	metadata MetadataFetcher
}

// NewNFTHandler はHTTPハンドラを初期化します。
func NewNFTHandler(gw *gateway.ContractGateway, metadata MetadataFetcher) http.Handler {
	return &NFTHandler{gw: gw, metadata: metadata}
}

// nftView は Record にメタデータを添えた応答表現です。
// メタデータ取得に失敗したトークンは metadata:null のまま返します。
type nftView struct {
	nftdom.Record
	Metadata *nftdom.Metadata `json:"metadata"`
}

// ServeHTTP はHTTPルーティングの入口です。
func (h *NFTHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && (r.URL.Path == "/nfts" || r.URL.Path == "/nfts/"):
		h.list(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/nfts/creator/"):
		creator := strings.TrimPrefix(r.URL.Path, "/nfts/creator/")
		h.listByCreator(w, r, creator)
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_found"})
	}
}

// GET /nfts
func (h *NFTHandler) list(w http.ResponseWriter, r *http.Request) {
	records := h.gw.GetAllNFTs(r.Context())
	_ = json.NewEncoder(w).Encode(h.enrich(r.Context(), records))
}

// GET /nfts/creator/{address}
func (h *NFTHandler) listByCreator(w http.ResponseWriter, r *http.Request, creator string) {
	creator = strings.TrimSpace(creator)
	if !sessiondom.IsValidAddress(creator) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid creator address"})
		return
	}
	records := h.gw.GetNFTsByCreator(r.Context(), creator)
	_ = json.NewEncoder(w).Encode(h.enrich(r.Context(), records))
}

// enrich はレコードごとにメタデータを解決します。個別の失敗は一覧全体を
// 壊さず、そのトークンだけ metadata なしで返します。
func (h *NFTHandler) enrich(ctx context.Context, records []nftdom.Record) []nftView {
	views := make([]nftView, 0, len(records))
	for _, rec := range records {
		view := nftView{Record: rec}
		if h.metadata != nil && rec.TokenURI != "" {
			var meta nftdom.Metadata
			if err := h.metadata.FetchJSON(ctx, rec.TokenURI, &meta); err != nil {
				log.Printf("[nfts] metadata fetch failed tokenId=%d: %v", rec.TokenID, err)
			} else {
				view.Metadata = &meta
			}
		}
		views = append(views, view)
	}
	return views
}
