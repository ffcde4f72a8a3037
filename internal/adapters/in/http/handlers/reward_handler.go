package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"creatorhub/internal/application/gateway"
	sessiondom "creatorhub/internal/domain/session"
)

// RewardHandler は /rewards エンドポイントを担当します。
type RewardHandler struct {
	gw *gateway.ContractGateway
}

// NewRewardHandler はHTTPハンドラを初期化します。
func NewRewardHandler(gw *gateway.ContractGateway) http.Handler {
	return &RewardHandler{gw: gw}
}

// GET /rewards?creator=0x...
func (h *RewardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "method_not_allowed"})
		return
	}

	creator := strings.TrimSpace(r.URL.Query().Get("creator"))
	if creator != "" && !sessiondom.IsValidAddress(creator) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid creator address"})
		return
	}

	events := h.gw.GetRewardEvents(r.Context(), creator)
	_ = json.NewEncoder(w).Encode(events)
}
