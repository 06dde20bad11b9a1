// Package account implements the account model: balance, nonce, delegate,
// permissions, timing and optional zkApp state (spec.md §3.2).
package account

import (
	"encoding/binary"

	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// hashDomain tags account-content hashing, distinct from inner-node
// hashing in internal/hashmatrix (domain separation).
const hashDomain = "ccore/account"

// Account is a single entry in the ledger, keyed by AccountID.
type Account struct {
	ID              types.AccountID
	Balance         currency.Balance
	Nonce           currency.Nonce
	Delegate        *types.PublicKey
	ReceiptChainHash types.Hash
	VotingFor       types.Hash
	Timing          Timing
	Permissions     Permissions
	TokenSymbol     string
	ZkApp           *ZkAppState
}

// EmptyHash is the hash of the canonical default (empty) account, shared
// by every unallocated leaf in the tree (spec.md account invariant 4).
func EmptyHash() types.Hash {
	return types.HashBytes(hashDomain + "/empty")
}

// New returns the canonical empty/default account for the given id: zero
// balance, zero nonce, no delegate, untimed, user-default permissions, no
// zkApp state.
func New(id types.AccountID) *Account {
	return &Account{
		ID:          id,
		Timing:      Untimed(),
		Permissions: UserDefault(),
	}
}

// CreateWith returns a new account with the given id and initial balance,
// mirroring the teacher/source's Account::create_with convenience used
// pervasively in tests.
func CreateWith(id types.AccountID, balance currency.Balance) *Account {
	a := New(id)
	a.Balance = balance
	return a
}

// IsDefault reports whether this account is indistinguishable from the
// canonical empty account (spec.md invariant 4: an empty account hashes to
// the height-0 empty hash).
func (a *Account) IsDefault() bool {
	if a == nil {
		return true
	}
	return a.Balance == 0 &&
		a.Nonce == 0 &&
		a.Delegate == nil &&
		a.ReceiptChainHash.IsEmpty() &&
		a.VotingFor.IsEmpty() &&
		a.Timing.IsUntimed() &&
		a.TokenSymbol == "" &&
		a.ZkApp == nil
}

// MinimumBalance returns the minimum balance this account must retain at
// the given global slot (spec.md invariant 1).
func (a *Account) MinimumBalance(slot currency.Slot) currency.Balance {
	return a.Timing.MinBalanceAt(slot)
}

// SatisfiesMinimumBalance reports whether the account's current balance
// meets its timing-derived minimum at the given slot.
func (a *Account) SatisfiesMinimumBalance(slot currency.Slot) bool {
	return a.Balance >= a.MinimumBalance(slot)
}

// Clone deep-copies an account so a ledger layer can safely overlay a
// mutated copy without aliasing the parent's value.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Delegate != nil {
		d := *a.Delegate
		clone.Delegate = &d
	}
	if a.ZkApp != nil {
		z := *a.ZkApp
		clone.ZkApp = &z
	}
	return &clone
}

// Hash computes the account's content hash, reproducing the field
// ordering of original_source/ledger/src/account/legacy.rs's
// AccountLegacy::to_roinput (snapp digest, permissions, timing,
// voting_for, delegate, receipt_chain_hash, nonce, balance, token id,
// public key), with the token symbol additionally hashed right after
// voting_for, and blake2b in place of Poseidon (DESIGN.md OQ-1). This is
// a structural, not bit-exact, reproduction per spec.md's non-goal of
// bit-compatibility with any specific historical chain.
func (a *Account) Hash() types.Hash {
	if a.IsDefault() {
		return EmptyHash()
	}

	var buf []byte
	buf = append(buf, a.zkAppDigest()[:]...)
	buf = append(buf, a.permissionsBytes()...)
	buf = append(buf, a.timingBytes()...)
	buf = append(buf, a.VotingFor[:]...)
	buf = append(buf, []byte(a.TokenSymbol)...)
	buf = append(buf, a.delegateBytes()...)
	buf = append(buf, a.ReceiptChainHash[:]...)
	buf = appendUint32(buf, uint32(a.Nonce))
	buf = appendUint64(buf, uint64(a.Balance))
	buf = appendUint64(buf, uint64(a.ID.TokenID))
	buf = append(buf, a.ID.PublicKey[:]...)

	return types.HashBytes(hashDomain, buf)
}

func (a *Account) zkAppDigest() types.Hash {
	if a.ZkApp == nil {
		return NewZkAppState().digest()
	}
	return a.ZkApp.digest()
}

func (z *ZkAppState) digest() types.Hash {
	var buf []byte
	if z.VerificationKey != nil {
		buf = append(buf, z.VerificationKey.Hash[:]...)
	} else {
		buf = append(buf, make([]byte, types.HashSize)...)
	}
	for _, f := range z.AppState {
		buf = append(buf, f[:]...)
	}
	return types.HashBytes(hashDomain+"/zkapp", buf)
}

func (a *Account) permissionsBytes() []byte {
	p := a.Permissions
	var buf []byte
	for _, auth := range []AuthRequired{
		p.SetVerificationKey.Auth,
		p.SetPermissions,
		p.SetDelegate,
		p.Receive,
		p.Send,
		p.EditState,
		p.SetZkappURI,
		p.EditActionState,
		p.SetTokenSymbol,
		p.IncrementNonce,
		p.SetVotingFor,
		p.SetTiming,
	} {
		buf = append(buf, byte(auth))
	}
	return buf
}

func (a *Account) timingBytes() []byte {
	var buf []byte
	if a.Timing.IsUntimed() {
		buf = append(buf, 0)
		buf = appendUint64(buf, 0)
		buf = appendUint32(buf, 0)
		buf = appendUint64(buf, 0)
		buf = appendUint32(buf, 1)
		buf = appendUint64(buf, 0)
		return buf
	}
	v := a.Timing.Vesting
	buf = append(buf, 1)
	buf = appendUint64(buf, uint64(v.InitialMinimumBalance))
	buf = appendUint32(buf, uint32(v.CliffTime))
	buf = appendUint64(buf, uint64(v.CliffAmount))
	buf = appendUint32(buf, uint32(v.VestingPeriod))
	buf = appendUint64(buf, uint64(v.VestingIncrement))
	return buf
}

func (a *Account) delegateBytes() []byte {
	if a.Delegate == nil {
		return make([]byte, types.PublicKeySize)
	}
	return a.Delegate[:]
}

func appendUint32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
