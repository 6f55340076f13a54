package ports

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Verifier is the backend that issues login nonces and judges signatures.
// Signature validity is decided there and nowhere else.
type Verifier interface {
	GenerateNonce(ctx context.Context) (string, error)
	VerifyMessage(ctx context.Context, message string, address common.Address, signature []byte) (bool, error)
}
