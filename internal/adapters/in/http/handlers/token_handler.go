package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"creatorhub/internal/application/gateway"
	nftdom "creatorhub/internal/domain/nft"
	sessiondom "creatorhub/internal/domain/session"
)

// TokenHandler は /tokens 関連のエンドポイントを担当します。
type TokenHandler struct {
	gw *gateway.ContractGateway
}

// NewTokenHandler はHTTPハンドラを初期化します。
func NewTokenHandler(gw *gateway.ContractGateway) http.Handler {
	return &TokenHandler{gw: gw}
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type transferResponse struct {
	TxHash string `json:"txHash"`
}

// ServeHTTP はHTTPルーティングの入口です。
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/tokens/transfer":
		h.transfer(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_found"})
	}
}

// POST /tokens/transfer
func (h *TokenHandler) transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid json body"})
		return
	}

	if !sessiondom.IsValidAddress(strings.TrimSpace(req.To)) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid recipient address"})
		return
	}
	if strings.TrimSpace(req.Amount) == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "amount is required"})
		return
	}

	txHash, err := h.gw.TransferTokens(r.Context(), req.To, req.Amount)
	if err != nil {
		writeTokenErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(transferResponse{TxHash: txHash})
}

// エラーハンドリング
func writeTokenErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, sessiondom.ErrUserRejected):
		code = http.StatusConflict
	case errors.Is(err, nftdom.ErrContractCallFailed):
		code = http.StatusBadGateway
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
