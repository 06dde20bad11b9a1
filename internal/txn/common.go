// Package txn implements the transaction model (spec.md §3.4/§4.H): the
// four transaction variants the applier consumes, the zkApp call-forest
// shape, and the small set of pure helpers (fee payer, receiver, access
// statuses) the spec pins as authoritative.
package txn

import (
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// SetOrKeep represents an optional mutation: either "leave this field
// alone" or "set it to Value". Used throughout the zkApp account-update
// mask in place of the source's sum type (`Set_or_keep.t`), and reused for
// preconditions where it reads as "check this field" instead.
type SetOrKeep[T any] struct {
	Set   bool
	Value T
}

// Keep returns the "no-op" SetOrKeep value.
func Keep[T any]() SetOrKeep[T] { return SetOrKeep[T]{} }

// SetTo returns a SetOrKeep that mutates (or checks) the field to v.
func SetTo[T any](v T) SetOrKeep[T] { return SetOrKeep[T]{Set: true, Value: v} }

// Common carries the fields shared by every SignedCommand payload
// (spec.md §4.H; original_source/ledger/src/scan_state/transaction_logic/
// signed_command.rs Common).
type Common struct {
	Fee        currency.Fee
	FeePayerPK types.PublicKey
	Nonce      currency.Nonce
	ValidUntil currency.Slot
	Memo       types.Memo
}

// BodyKind tags a SignedCommand's payload variant.
type BodyKind uint8

const (
	BodyPayment BodyKind = iota
	BodyStakeDelegation
)

// PaymentPayload transfers MINA from the fee payer to a receiver.
type PaymentPayload struct {
	Receiver types.PublicKey
	Amount   currency.Amount
}

// StakeDelegationPayload delegates the fee payer's stake.
type StakeDelegationPayload struct {
	NewDelegate types.PublicKey
}

// Body is the tagged union of a SignedCommand's payload (spec.md §4.H:
// Payment | StakeDelegation).
type Body struct {
	Kind            BodyKind
	Payment         PaymentPayload
	StakeDelegation StakeDelegationPayload
}

// SignedCommandPayload pairs Common with its Body.
type SignedCommandPayload struct {
	Common Common
	Body   Body
}

// Signature is a raw Schnorr/Ed25519-shaped signature blob; the verifier
// boundary (internal/verifier) owns interpreting its bytes.
type Signature [64]byte

// SignedCommand is a fee-paying, signed payment or stake-delegation
// (spec.md §3.4).
type SignedCommand struct {
	Payload   SignedCommandPayload
	Signer    types.PublicKey
	Signature Signature
}

// FeePayer returns the fee payer's AccountId in the default token
// (spec.md §4.H).
func (sc *SignedCommand) FeePayer() types.AccountID {
	return types.NewAccountID(sc.Payload.Common.FeePayerPK)
}

// Receiver returns the other account a SignedCommand touches: the
// payment receiver, or the new delegate for a stake delegation, always
// in the default token (spec.md §4.H).
func (sc *SignedCommand) Receiver() types.AccountID {
	switch sc.Payload.Body.Kind {
	case BodyStakeDelegation:
		return types.NewAccountID(sc.Payload.Body.StakeDelegation.NewDelegate)
	default:
		return types.NewAccountID(sc.Payload.Body.Payment.Receiver)
	}
}

// AccessKind is whether an account is touched in the course of applying a
// transaction.
type AccessKind uint8

const (
	Accessed AccessKind = iota
	NotAccessed
)

// AccountAccess pairs an account id with its access kind.
type AccountAccess struct {
	ID   types.AccountID
	Kind AccessKind
}

// AccountAccessStatuses enumerates the accounts a SignedCommand touches
// and whether they were Accessed given the transaction's final status
// (spec.md §4.H): the fee payer is always Accessed; the receiver is
// NotAccessed only when the transaction Failed.
func (sc *SignedCommand) AccountAccessStatuses(applied bool) []AccountAccess {
	receiverKind := Accessed
	if !applied {
		receiverKind = NotAccessed
	}
	return []AccountAccess{
		{ID: sc.FeePayer(), Kind: Accessed},
		{ID: sc.Receiver(), Kind: receiverKind},
	}
}
