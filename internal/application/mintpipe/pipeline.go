// internal/application/mintpipe/pipeline.go
package mintpipe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	nftdom "creatorhub/internal/domain/nft"
)

// Phase はミントパイプラインの進行段階です。
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseUploadingImage    Phase = "uploading_image"
	PhaseUploadingMetadata Phase = "uploading_metadata"
	PhaseMinting           Phase = "minting"
	PhaseConfirmed         Phase = "confirmed"
	PhaseFailed            Phase = "failed"
)

// Uploader pins content and returns an ipfs:// locator.
type Uploader interface {
	UploadBlob(ctx context.Context, data []byte, name string) (string, error)
	UploadJSON(ctx context.Context, v any) (string, error)
}

// Minter submits the mint transaction and waits for confirmation.
type Minter interface {
	Mint(ctx context.Context, metadataURI string) (txHash string, err error)
}

// Status is one observable snapshot of a run.
type Status struct {
	RunID    string `json:"runId"`
	Phase    Phase  `json:"phase"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	TxHash   string `json:"txHash,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Notifier receives every status transition of a run.
type Notifier func(Status)

// Pipeline drives one mint at a time through upload, metadata and contract
// submission. It is restartable: a finished or failed run never blocks the
// next one.
type Pipeline struct {
	uploader Uploader
	minter   Minter

	mu     sync.Mutex
	status Status
	notify Notifier
}

// ErrBusy is returned when Run is called while a run is still in flight.
var ErrBusy = errors.New("mintpipe: a mint is already in progress")

func NewPipeline(uploader Uploader, minter Minter) *Pipeline {
	return &Pipeline{
		uploader: uploader,
		minter:   minter,
		status:   Status{Phase: PhaseIdle, Message: "Ready to mint"},
	}
}

// WithNotifier sets the transition callback. Must be set before Run.
func (p *Pipeline) WithNotifier(n Notifier) *Pipeline {
	p.notify = n
	return p
}

// Status returns the latest snapshot.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Run executes a full mint. An invalid request is rejected up front without
// starting a run, so the previous status survives untouched. Cancelling ctx
// abandons the run; the run then reports Failed with the cancellation reason
// and a new Run may start immediately after.
func (p *Pipeline) Run(ctx context.Context, req nftdom.MintRequest) (Status, error) {
	if err := req.Validate(); err != nil {
		return p.Status(), err
	}

	runID, err := p.begin()
	if err != nil {
		return p.Status(), err
	}

	p.transition(runID, PhaseUploadingImage, 10, "Uploading image to IPFS...", "")
	imageURI, err := p.uploader.UploadBlob(ctx, req.Image, req.Name)
	if err != nil {
		err = fmt.Errorf("%w: image: %v", nftdom.ErrUploadFailure, err)
		return p.fail(runID, err), err
	}
	if err := ctx.Err(); err != nil {
		return p.fail(runID, err), err
	}

	p.transition(runID, PhaseUploadingMetadata, 50, "Uploading metadata to IPFS...", "")
	metadataURI, err := p.uploader.UploadJSON(ctx, buildMetadata(req, imageURI))
	if err != nil {
		err = fmt.Errorf("%w: metadata: %v", nftdom.ErrUploadFailure, err)
		return p.fail(runID, err), err
	}
	if err := ctx.Err(); err != nil {
		return p.fail(runID, err), err
	}

	p.transition(runID, PhaseMinting, 80, "Please confirm the transaction in your wallet...", "")
	txHash, err := p.minter.Mint(ctx, metadataURI)
	if err != nil {
		return p.fail(runID, err), err
	}

	p.transition(runID, PhaseConfirmed, 100, "NFT minted successfully!", txHash)
	log.Printf("[mintpipe] run=%s confirmed tx=%s", runID, txHash)
	return p.Status(), nil
}

// NoteSubmitted marks the in-flight mint as submitted but unconfirmed.
// Wired to the gateway's submission hook.
func (p *Pipeline) NoteSubmitted(txHash string) {
	p.mu.Lock()
	runID := p.status.RunID
	minting := p.status.Phase == PhaseMinting
	p.mu.Unlock()
	if !minting {
		return
	}
	p.transition(runID, PhaseMinting, 95, "Transaction submitted, waiting for confirmation...", txHash)
}

// ----------------------------------------------------------------------
// Internals
// ----------------------------------------------------------------------

func (p *Pipeline) begin() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.status.Phase {
	case PhaseIdle, PhaseConfirmed, PhaseFailed:
	default:
		return "", ErrBusy
	}
	runID := uuid.NewString()
	p.status = Status{RunID: runID, Phase: PhaseIdle, Message: "Preparing mint..."}
	log.Printf("[mintpipe] run=%s started", runID)
	return runID, nil
}

// transition advances the run. Progress is monotone: a regression is
// clamped to the current value.
func (p *Pipeline) transition(runID string, phase Phase, progress int, message, txHash string) {
	p.mu.Lock()
	if p.status.RunID != runID {
		p.mu.Unlock()
		return
	}
	if progress < p.status.Progress {
		progress = p.status.Progress
	}
	p.status = Status{
		RunID:    runID,
		Phase:    phase,
		Progress: progress,
		Message:  message,
		TxHash:   txHash,
	}
	snapshot := p.status
	p.mu.Unlock()

	if p.notify != nil {
		p.notify(snapshot)
	}
}

func (p *Pipeline) fail(runID string, cause error) Status {
	p.mu.Lock()
	if p.status.RunID != runID {
		snapshot := p.status
		p.mu.Unlock()
		return snapshot
	}
	p.status = Status{
		RunID:    runID,
		Phase:    PhaseFailed,
		Progress: p.status.Progress,
		Message:  "Minting failed",
		Reason:   cause.Error(),
	}
	snapshot := p.status
	p.mu.Unlock()

	log.Printf("[mintpipe] run=%s failed: %v", runID, cause)
	if p.notify != nil {
		p.notify(snapshot)
	}
	return snapshot
}

// buildMetadata assembles the token metadata document. The creation time
// rides along as an attribute so viewers can sort without an indexer.
func buildMetadata(req nftdom.MintRequest, imageURI string) nftdom.Metadata {
	return nftdom.Metadata{
		Name:        req.Name,
		Description: req.Description,
		Image:       imageURI,
		Attributes: []nftdom.Attribute{
			{TraitType: "Created", Value: time.Now().UTC().Format(time.RFC3339)},
		},
	}
}
