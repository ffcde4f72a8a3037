// internal/domain/session/entity.go
package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Domain errors (wallet boundary taxonomy)
var (
	ErrProviderUnavailable = errors.New("session: no wallet provider available")
	ErrUserRejected        = errors.New("session: user rejected the request")
	ErrChainSwitchFailed   = errors.New("session: chain switch failed")
	ErrInvalidAddress      = errors.New("session: invalid address")
)

// EIP-1193 provider error codes we care about.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeUnrecognizedChain = 4902
)

// ProviderError is the structured error shape of the wallet provider boundary.
// Infra implementations return it so callers can classify by Code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error code=%d message=%s", e.Code, e.Message)
}

// IsUserRejected reports whether err carries the EIP-1193 user-rejection code.
func IsUserRejected(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == CodeUserRejected
}

// IsUnrecognizedChain reports whether err means the wallet does not know the chain.
func IsUnrecognizedChain(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Code == CodeUnrecognizedChain
}

// 0x-prefixed, 40 hex chars (EVM account address).
var addressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func IsValidAddress(s string) bool {
	return addressRe.MatchString(strings.TrimSpace(s))
}

// Session is the in-memory representation of wallet connection state.
// Address is empty and ChainID zero while disconnected.
type Session struct {
	Address       string `json:"address"`
	ChainID       int64  `json:"chainId"`
	EthBalance    string `json:"ethBalance"`
	TokenBalance  string `json:"tokenBalance"`
	NFTBalance    int    `json:"nftBalance"`
	Connected     bool   `json:"connected"`
	ChainMismatch bool   `json:"chainMismatch"`
}

// Disconnected returns the deterministic reset state used when the wallet
// reports an empty account list.
func Disconnected() Session {
	return Session{
		Address:      "",
		ChainID:      0,
		EthBalance:   "0",
		TokenBalance: "0",
		NFTBalance:   0,
		Connected:    false,
	}
}
