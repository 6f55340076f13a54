package walletrpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/layer-3/taksu/core"
)

// EIP-1193 provider error codes.
const (
	codeUserRejected  = 4001
	codeUnauthorized  = 4100
	codeMethodMissing = -32601
)

// mapRPCError translates provider failures into core sentinels. A structured
// JSON-RPC error means the provider answered and the code decides; anything
// else is a transport failure and counts as the wallet being unavailable.
func mapRPCError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected:
			return fmt.Errorf("%w: %v", core.ErrUserRejected, err)
		case codeUnauthorized:
			return fmt.Errorf("%w: %v", core.ErrAddressUnavailable, err)
		}
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "insufficient funds"):
			return fmt.Errorf("%w: %v", core.ErrInsufficientFunds, err)
		case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
			return fmt.Errorf("%w: %v", core.ErrUserRejected, err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrWalletUnavailable, err)
}

func isMethodNotFound(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodMissing
}
