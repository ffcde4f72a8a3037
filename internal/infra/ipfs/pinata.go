// internal/infra/ipfs/pinata.go
package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	nftdom "creatorhub/internal/domain/nft"
)

// Scheme は content-address locator の接頭辞です。
const Scheme = "ipfs://"

// PinataClient は Pinata の pinning API を叩く HTTP 実装です。
// 返す locator は常に "ipfs://<hash>" 形式に揃えます。
type PinataClient struct {
	client     *http.Client
	baseURL    string // 例: "https://api.pinata.cloud"
	jwt        string // 認証トークン（Bearer）
	gatewayURL string // 例: "https://gateway.pinata.cloud/ipfs/"
}

// NewPinataClient は Pinata 用 uploader を生成します。
func NewPinataClient(baseURL, jwt, gatewayURL string) *PinataClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	gatewayURL = strings.TrimSpace(gatewayURL)
	if gatewayURL != "" && !strings.HasSuffix(gatewayURL, "/") {
		gatewayURL += "/"
	}

	return &PinataClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:    baseURL,
		jwt:        jwt,
		gatewayURL: gatewayURL,
	}
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// UploadBlob pins raw bytes (the NFT image) and returns its locator.
func (c *PinataClient) UploadBlob(ctx context.Context, data []byte, name string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("ipfs: blob is empty")
	}
	if c.baseURL == "" {
		return "", fmt.Errorf("ipfs: baseURL is empty; pinata endpoint not configured")
	}

	log.Printf("[ipfs] UploadBlob start name=%s len=%d", name, len(data))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("ipfs: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("ipfs: write form file: %w", err)
	}

	meta, _ := json.Marshal(map[string]any{"name": name})
	if err := mw.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", fmt.Errorf("ipfs: write pinataMetadata: %w", err)
	}
	opts, _ := json.Marshal(map[string]any{"cidVersion": 0})
	if err := mw.WriteField("pinataOptions", string(opts)); err != nil {
		return "", fmt.Errorf("ipfs: write pinataOptions: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("ipfs: close multipart: %w", err)
	}

	hash, err := c.pin(ctx, "/pinning/pinFileToIPFS", mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}

	log.Printf("[ipfs] UploadBlob OK hash=%s", hash)
	return Scheme + hash, nil
}

// UploadJSON pins a JSON document (the NFT metadata) and returns its locator.
func (c *PinataClient) UploadJSON(ctx context.Context, v any) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("ipfs: baseURL is empty; pinata endpoint not configured")
	}

	payload, err := json.Marshal(map[string]any{"pinataContent": v})
	if err != nil {
		return "", fmt.Errorf("ipfs: marshal metadata: %w", err)
	}

	log.Printf("[ipfs] UploadJSON start len=%d", len(payload))

	hash, err := c.pin(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}

	log.Printf("[ipfs] UploadJSON OK hash=%s", hash)
	return Scheme + hash, nil
}

func (c *PinataClient) pin(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return "", fmt.Errorf("ipfs: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.jwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.jwt)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("[ipfs] pin FAILED path=%s err=%v", path, err)
		return "", fmt.Errorf("ipfs: upload: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[ipfs] pin FAILED path=%s status=%d body=%s", path, resp.StatusCode, string(bodyBytes))
		return "", fmt.Errorf("ipfs: upload failed: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var res pinResponse
	if err := json.Unmarshal(bodyBytes, &res); err != nil {
		return "", fmt.Errorf("ipfs: decode upload response: %w", err)
	}
	if res.IpfsHash == "" {
		return "", fmt.Errorf("ipfs: upload response has empty hash")
	}
	return res.IpfsHash, nil
}

// FetchJSON resolves a locator through the HTTP gateway and decodes it into out.
// Display-path callers treat failures as non-fatal (logged, item skipped).
func (c *PinataClient) FetchJSON(ctx context.Context, locator string, out any) error {
	url := c.GatewayURL(locator)
	if url == "" {
		return fmt.Errorf("%w: empty locator", nftdom.ErrMetadataFetchFailure)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", nftdom.ErrMetadataFetchFailure, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", nftdom.ErrMetadataFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status=%d", nftdom.ErrMetadataFetchFailure, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", nftdom.ErrMetadataFetchFailure, err)
	}
	return nil
}

// GatewayURL rewrites "ipfs://hash" into an HTTP gateway URL for display.
// Non-ipfs locators pass through unchanged.
func (c *PinataClient) GatewayURL(locator string) string {
	l := strings.TrimSpace(locator)
	if l == "" {
		return ""
	}
	if strings.HasPrefix(l, Scheme) && c.gatewayURL != "" {
		return c.gatewayURL + strings.TrimPrefix(l, Scheme)
	}
	return l
}
