// internal/domain/nft/entity.go
package nft

import (
	"errors"
	"strings"
)

// Domain errors (mint / ledger taxonomy)
var (
	ErrValidation           = errors.New("nft: missing required mint fields")
	ErrUploadFailure        = errors.New("nft: storage upload failed")
	ErrContractCallFailed   = errors.New("nft: contract call failed")
	ErrMetadataFetchFailure = errors.New("nft: metadata fetch failed")
)

// Record is one minted item as read from the registry.
// TokenID values are dense integers assigned from 1 upward at mint time;
// enumeration relies on that. Owner may change on transfer, everything else
// is immutable after mint.
type Record struct {
	TokenID  int64  `json:"tokenId"`
	TokenURI string `json:"tokenURI"`
	Owner    string `json:"owner"`
	Creator  string `json:"creator"`
}

// BelongsTo reports whether addr matches either owner or creator.
// "My NFTs" filters treat the two interchangeably, so the match is
// deliberately permissive.
func (r Record) BelongsTo(addr string) bool {
	a := strings.ToLower(strings.TrimSpace(addr))
	if a == "" {
		return false
	}
	return strings.ToLower(r.Owner) == a || strings.ToLower(r.Creator) == a
}

// Attribute is a single display trait inside token metadata.
type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Metadata is the JSON document referenced by a Record's TokenURI.
// It is resolved lazily from content-addressed storage and never persisted here.
type Metadata struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Image       string      `json:"image"`
	Attributes  []Attribute `json:"attributes"`
}

// RewardEvent is a read-only projection of one CreatorRewarded log entry.
// Amount is already converted to a decimal string.
type RewardEvent struct {
	Creator         string `json:"creator"`
	Amount          string `json:"amount"`
	BlockNumber     int64  `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	Timestamp       string `json:"timestamp"`
}

// MintRequest is the transient input of the mint pipeline. It is consumed by
// one pipeline run and discarded afterwards.
type MintRequest struct {
	Name        string
	Description string
	Image       []byte
}

// Validate checks that all three fields are present.
func (r MintRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrValidation
	}
	if strings.TrimSpace(r.Description) == "" {
		return ErrValidation
	}
	if len(r.Image) == 0 {
		return ErrValidation
	}
	return nil
}
