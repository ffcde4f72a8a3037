package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"creatorhub/internal/application/mintpipe"
	nftdom "creatorhub/internal/domain/nft"
	sessiondom "creatorhub/internal/domain/session"
)

// 画像アップロードの上限（multipart メモリ上限と兼用）。
const maxImageBytes = 10 << 20

// MintHandler は /mint 関連のエンドポイントを担当します。
type MintHandler struct {
	pipe *mintpipe.Pipeline
}

// NewMintHandler はHTTPハンドラを初期化します。
func NewMintHandler(pipe *mintpipe.Pipeline) http.Handler {
	return &MintHandler{pipe: pipe}
}

// ServeHTTP はHTTPルーティングの入口です。
func (h *MintHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && (r.URL.Path == "/mint" || r.URL.Path == "/mint/"):
		h.mint(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/mint/status":
		_ = json.NewEncoder(w).Encode(h.pipe.Status())
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_found"})
	}
}

// POST /mint (multipart/form-data: name, description, image)
func (h *MintHandler) mint(w http.ResponseWriter, r *http.Request) {
	req, err := parseMintForm(r)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	status, err := h.pipe.Run(r.Context(), req)
	if err != nil {
		writeMintErr(w, status, err)
		return
	}
	_ = json.NewEncoder(w).Encode(status)
}

func parseMintForm(r *http.Request) (nftdom.MintRequest, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nftdom.MintRequest{}, errors.New("expected multipart form with name, description and image")
	}

	req := nftdom.MintRequest{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		// 画像欠落は Validate 側でまとめて報告する。
		return req, nil
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return nftdom.MintRequest{}, err
	}
	if len(data) > maxImageBytes {
		return nftdom.MintRequest{}, errors.New("image exceeds 10MB limit")
	}
	req.Image = data
	return req, nil
}

// エラーハンドリング
func writeMintErr(w http.ResponseWriter, status mintpipe.Status, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, nftdom.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, mintpipe.ErrBusy):
		code = http.StatusConflict
	case errors.Is(err, sessiondom.ErrUserRejected):
		code = http.StatusConflict
	case errors.Is(err, nftdom.ErrUploadFailure):
		code = http.StatusBadGateway
	case errors.Is(err, nftdom.ErrContractCallFailed):
		code = http.StatusBadGateway
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}
