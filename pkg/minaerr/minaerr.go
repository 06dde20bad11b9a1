// Package minaerr defines the applier's stable, tagged error strings.
//
// These are the observable API of the transaction-application core: upstream
// layers (CLI, GraphQL, tests) match on them, so the text must not drift.
package minaerr

import (
	"errors"
	"fmt"
)

// Pre-apply rejections. The ledger is guaranteed unchanged when these are
// returned.
var (
	ErrFeePayerMissing  = errors.New("The fee-payer account does not exist")
	ErrZkAppNoncePrecon = errors.New("[[AccountNoncePreconditionUnsatisfied]]")
	ErrZkAppFeeOverflow = errors.New("[[Overflow]]")
	ErrZkAppFeeOverflowAmountInsufficient = errors.New("[[Overflow, AmountInsufficientToCreateAccount]]")
)

// In-apply failures. Fee/nonce/receipt changes are retained; the rest of the
// transaction body is rolled back.
var (
	ErrSourceInsufficientBalance = errors.New("Source_insufficient_balance")
)

// Structural errors: caller bugs, never expected in well-formed input.
var (
	ErrLedgerFull             = errors.New("ledger is full")
	ErrMalformedCallForest    = errors.New("malformed call forest: hash mismatch")
	ErrAuthorizationKindMismatch = errors.New("Authorization kind does not match the authorization")
)

// NonceMismatch renders spec.md's nonce-mismatch template:
// "Nonce in account N_acc different from nonce in transaction N_tx".
type NonceMismatch struct {
	AccountNonce     uint32
	TransactionNonce uint32
}

func (e *NonceMismatch) Error() string {
	return fmt.Sprintf("Nonce in account Nonce(%d) different from nonce in transaction Nonce(%d)",
		e.AccountNonce, e.TransactionNonce)
}

// NewNonceMismatch builds the tagged nonce-mismatch error.
func NewNonceMismatch(accountNonce, txNonce uint32) error {
	return &NonceMismatch{AccountNonce: accountNonce, TransactionNonce: txNonce}
}
