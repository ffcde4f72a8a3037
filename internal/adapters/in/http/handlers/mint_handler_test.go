package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"creatorhub/internal/application/mintpipe"
)

type stubUploader struct{}

func (stubUploader) UploadBlob(context.Context, []byte, string) (string, error) {
	return "ipfs://image", nil
}

func (stubUploader) UploadJSON(context.Context, any) (string, error) {
	return "ipfs://metadata", nil
}

type stubMinter struct{}

func (stubMinter) Mint(context.Context, string) (string, error) {
	return "0xabc123", nil
}

func mintForm(t *testing.T, name, description string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", name)
	_ = mw.WriteField("description", description)
	if image != nil {
		fw, err := mw.CreateFormFile("image", "img.png")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write(image)
	}
	_ = mw.Close()
	return &body, mw.FormDataContentType()
}

func TestMintEndpointHappyPath(t *testing.T) {
	pipe := mintpipe.NewPipeline(stubUploader{}, stubMinter{})
	h := NewMintHandler(pipe)

	body, contentType := mintForm(t, "sunrise", "first light", []byte{1, 2, 3})
	req := httptest.NewRequest(http.MethodPost, "/mint", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var status mintpipe.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status.Phase != mintpipe.PhaseConfirmed || status.TxHash != "0xabc123" {
		t.Fatalf("status = %+v", status)
	}

	// /mint/status reflects the finished run
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/mint/status", nil))
	var latest mintpipe.Status
	_ = json.Unmarshal(rec2.Body.Bytes(), &latest)
	if latest.Phase != mintpipe.PhaseConfirmed {
		t.Fatalf("latest = %+v", latest)
	}
}

func TestMintEndpointValidation(t *testing.T) {
	pipe := mintpipe.NewPipeline(stubUploader{}, stubMinter{})
	h := NewMintHandler(pipe)

	// missing image
	body, contentType := mintForm(t, "sunrise", "first light", nil)
	req := httptest.NewRequest(http.MethodPost, "/mint", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var status mintpipe.Status
	_ = json.Unmarshal(rec.Body.Bytes(), &status)
	if status.Phase != mintpipe.PhaseIdle {
		t.Fatalf("status = %+v, want the pipeline left idle", status)
	}
	if got := pipe.Status().Phase; got != mintpipe.PhaseIdle {
		t.Fatalf("pipeline phase = %s, a rejected request must not start a run", got)
	}
}

func TestMintEndpointRejectsNonMultipart(t *testing.T) {
	pipe := mintpipe.NewPipeline(stubUploader{}, stubMinter{})
	h := NewMintHandler(pipe)

	req := httptest.NewRequest(http.MethodPost, "/mint", bytes.NewBufferString(`{"name":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
