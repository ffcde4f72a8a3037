package eth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "google.golang.org/genproto/googleapis/cloud/secretmanager/v1"
)

var (
	ErrSignerSecretNotConfigured = errors.New("signer_secret_provider: not configured")
	ErrSignerSecretEmptyID       = errors.New("signer_secret_provider: secretID is empty")
	ErrSignerSecretNotFound      = errors.New("signer_secret_provider: secret not found")
)

// SignerSecretProviderSM fetches the server-side signer private key (hex)
// from Google Secret Manager. The returned string feeds NewLocalKeyProvider.
type SignerSecretProviderSM struct {
	Client    *secretmanager.Client
	ProjectID string
}

func NewSignerSecretProviderSM(ctx context.Context, projectID string) (*SignerSecretProviderSM, error) {
	pid := strings.TrimSpace(projectID)
	if pid == "" {
		pid = strings.TrimSpace(os.Getenv("GCP_PROJECT_ID"))
	}
	if pid == "" {
		pid = strings.TrimSpace(os.Getenv("GOOGLE_CLOUD_PROJECT"))
	}
	if pid == "" {
		return nil, fmt.Errorf("%w: projectID is empty", ErrSignerSecretNotConfigured)
	}

	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	return &SignerSecretProviderSM{
		Client:    c,
		ProjectID: pid,
	}, nil
}

// GetSignerKey returns the hex-encoded private key stored under secretID.
func (p *SignerSecretProviderSM) GetSignerKey(ctx context.Context, secretID string) (string, error) {
	if p == nil || p.Client == nil {
		return "", ErrSignerSecretNotConfigured
	}

	sid := strings.TrimSpace(secretID)
	if sid == "" {
		return "", ErrSignerSecretEmptyID
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", p.ProjectID, sid)

	res, err := p.Client.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignerSecretNotFound, err)
	}
	if res == nil || res.Payload == nil {
		return "", ErrSignerSecretNotFound
	}

	s := strings.TrimSpace(string(res.Payload.Data))
	if s == "" {
		return "", ErrSignerSecretNotFound
	}
	return s, nil
}

func (p *SignerSecretProviderSM) Close() error {
	if p == nil || p.Client == nil {
		return nil
	}
	return p.Client.Close()
}
