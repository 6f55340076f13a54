package core

import "errors"

var (
	ErrWalletUnavailable  = errors.New("wallet is not available")
	ErrUserRejected       = errors.New("request rejected by user")
	ErrNonceMissing       = errors.New("verifier returned no nonce")
	ErrSigningRejected    = errors.New("message signing rejected")
	ErrAddressUnavailable = errors.New("no wallet address available")
	ErrSignatureInvalid   = errors.New("signature rejected by verifier")
	ErrWrongNetwork       = errors.New("wrong network")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrSubmissionFailed   = errors.New("transaction submission failed")
	ErrLoginInFlight      = errors.New("login already in progress")
	ErrStaleLogin         = errors.New("account changed during login")
)
