package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	appsession "creatorhub/internal/application/session"
	sessiondom "creatorhub/internal/domain/session"
)

// SessionHandler は /session 関連のエンドポイントを担当します。
type SessionHandler struct {
	mgr *appsession.Manager
}

// NewSessionHandler はHTTPハンドラを初期化します。
func NewSessionHandler(mgr *appsession.Manager) http.Handler {
	return &SessionHandler{mgr: mgr}
}

// ServeHTTP はHTTPルーティングの入口です。
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/session":
		_ = json.NewEncoder(w).Encode(h.mgr.Session())
	case r.Method == http.MethodPost && r.URL.Path == "/session/connect":
		h.connect(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/session/resume":
		h.resume(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/session/disconnect":
		_ = json.NewEncoder(w).Encode(h.mgr.Disconnect())
	case r.Method == http.MethodPost && r.URL.Path == "/session/switch-chain":
		h.switchChain(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/session/refresh":
		_ = json.NewEncoder(w).Encode(h.mgr.RefreshBalances(r.Context()))
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_found"})
	}
}

// POST /session/connect
func (h *SessionHandler) connect(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Connect(r.Context())
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

// POST /session/resume
func (h *SessionHandler) resume(w http.ResponseWriter, r *http.Request) {
	sess, err := h.mgr.Resume(r.Context())
	if err != nil {
		writeSessionErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(sess)
}

// POST /session/switch-chain
func (h *SessionHandler) switchChain(w http.ResponseWriter, r *http.Request) {
	if err := h.mgr.SwitchChain(r.Context()); err != nil {
		writeSessionErr(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(h.mgr.Session())
}

// エラーハンドリング
func writeSessionErr(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, sessiondom.ErrUserRejected):
		code = http.StatusConflict
	case errors.Is(err, sessiondom.ErrProviderUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, sessiondom.ErrChainSwitchFailed):
		code = http.StatusBadGateway
	case errors.Is(err, sessiondom.ErrInvalidAddress):
		code = http.StatusBadRequest
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
