package txn

import (
	"encoding/binary"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// MayUseToken controls whether an account update may act on a token it
// does not own (spec.md §4.J).
type MayUseToken uint8

const (
	MayUseTokenNo MayUseToken = iota
	MayUseTokenParentsOwnToken
	MayUseTokenInheritFromParent
)

// Range is an inclusive lower/upper bound used by numeric preconditions.
type Range[T any] struct {
	Lower T
	Upper T
}

// AccountPrecondition constrains which account states an update is valid
// against (spec.md §4.J "account preconditions checked against the
// current account, including prior writes in this command").
type AccountPrecondition struct {
	Balance          SetOrKeep[Range[currency.Balance]]
	Nonce            SetOrKeep[Range[currency.Nonce]]
	ReceiptChainHash SetOrKeep[types.Hash]
	Delegate         SetOrKeep[types.PublicKey]
	State            [account.AppStateSlots]SetOrKeep[types.Hash]
	ActionState      SetOrKeep[types.Hash]
	ProvedState      SetOrKeep[bool]
	IsNew            SetOrKeep[bool]
}

// NetworkPrecondition constrains which protocol-state views an update is
// valid against (spec.md §4.I.1 ProtocolStateView fields).
type NetworkPrecondition struct {
	SnarkedLedgerHash      SetOrKeep[types.Hash]
	BlockchainLength       SetOrKeep[Range[currency.Length]]
	MinWindowDensity       SetOrKeep[Range[currency.Length]]
	TotalCurrency          SetOrKeep[Range[currency.Amount]]
	GlobalSlotSinceGenesis SetOrKeep[Range[currency.Slot]]
}

// Preconditions bundles both precondition kinds plus the valid_while
// window checked directly against the applied global slot.
type Preconditions struct {
	Network    NetworkPrecondition
	Account    AccountPrecondition
	ValidWhile SetOrKeep[Range[currency.Slot]]
}

// AccountUpdateModifications is the update mask applied to an account:
// every field a zkApp command may mutate, each independently Keep/Set
// (spec.md §3.4 "update mask").
type AccountUpdateModifications struct {
	AppState        [account.AppStateSlots]SetOrKeep[types.Hash]
	Delegate        SetOrKeep[types.PublicKey]
	VerificationKey SetOrKeep[*account.VerificationKey]
	Permissions     SetOrKeep[account.Permissions]
	ZkAppURI        SetOrKeep[string]
	TokenSymbol     SetOrKeep[string]
	VotingFor       SetOrKeep[types.Hash]
	Timing          SetOrKeep[account.Timing]
}

// AuthorizationKind is the declared requirement an AccountUpdate's
// Authorization must satisfy (spec.md §3.4: NoneGiven | Signature |
// Proof(vk_hash)).
type AuthorizationKind struct {
	Kind   account.ControlKind
	VKHash types.Hash // meaningful only when Kind == account.ControlProof
}

// Control is the authorization actually attached to an AccountUpdate.
type Control struct {
	Kind      account.ControlKind
	Signature Signature
	Proof     []byte
}

// AccountUpdateBody is the mutable payload of one call-forest node
// (spec.md §3.4).
type AccountUpdateBody struct {
	AccountID                  types.AccountID
	Update                     AccountUpdateModifications
	BalanceChange              currency.Signed[currency.Amount]
	IncrementNonce             bool
	Events                     [][]types.Hash
	Actions                    [][]types.Hash
	Preconditions              Preconditions
	UseFullCommitment          bool
	ImplicitAccountCreationFee bool
	MayUseToken                MayUseToken
	AuthorizationKind          AuthorizationKind
}

// AccountUpdate is one node's payload plus its authorization.
type AccountUpdate struct {
	Body          AccountUpdateBody
	Authorization Control
}

// Tree is one node of a CallForest: an account update plus the
// sub-forest executed immediately after it (spec.md §3.4/§4.J).
type Tree struct {
	AccountUpdate *AccountUpdate
	Calls         CallForest
}

// CallForest is an ordered list of Trees; pre-order traversal is the
// authoritative execution order (spec.md §4.J).
type CallForest []*Tree

// PreOrder flattens the forest into execution order: each node followed
// immediately by its own sub-forest's pre-order.
func (f CallForest) PreOrder() []*AccountUpdate {
	var out []*AccountUpdate
	var walk func(CallForest)
	walk = func(forest CallForest) {
		for _, t := range forest {
			out = append(out, t.AccountUpdate)
			walk(t.Calls)
		}
	}
	walk(f)
	return out
}

// Hash computes a domain-separated structural hash of a call-forest
// node: its account id, balance change and authorization kind, followed
// by its children's hashes. It feeds Transaction.Hash and the zkApp proof
// statement; nothing compares it against a declared hash, so a malformed
// forest is not detected (minaerr.ErrMalformedCallForest is not returned).
func (t *Tree) Hash() types.Hash {
	buf := accountUpdateBodyBytes(&t.AccountUpdate.Body)
	for _, child := range t.Calls {
		childHash := child.Hash()
		buf = append(buf, childHash[:]...)
	}
	return types.HashBytes("ccore/call-forest-node", buf)
}

// Hash computes the forest's structural hash: the ordered concatenation
// of its trees' hashes.
func (f CallForest) Hash() types.Hash {
	var buf []byte
	for _, t := range f {
		h := t.Hash()
		buf = append(buf, h[:]...)
	}
	return types.HashBytes("ccore/call-forest", buf)
}

func accountUpdateBodyBytes(b *AccountUpdateBody) []byte {
	var buf []byte
	buf = append(buf, b.AccountID.PublicKey[:]...)
	buf = appendUint64(buf, uint64(b.AccountID.TokenID))
	buf = appendUint64(buf, uint64(b.BalanceChange.Magnitude))
	buf = append(buf, byte(b.BalanceChange.Sgn))
	buf = append(buf, byte(b.AuthorizationKind.Kind))
	buf = append(buf, b.AuthorizationKind.VKHash[:]...)
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// FeePayerBody is the fee-paying account's contribution to a ZkAppCommand
// (spec.md §3.4): always the default token, always a plain nonce
// precondition (no range).
type FeePayerBody struct {
	PublicKey  types.PublicKey
	Fee        currency.Fee
	ValidUntil currency.Slot
	Nonce      currency.Nonce
}

// FeePayer is the fee-paying update: a body plus its signature.
type FeePayer struct {
	Body          FeePayerBody
	Authorization Signature
}

// ZkAppCommand is a fee-paying command whose body is a call forest of
// account updates (spec.md §3.4).
type ZkAppCommand struct {
	FeePayer       FeePayer
	AccountUpdates CallForest
	Memo           types.Memo
}

// FeePayerID returns the fee payer's AccountId in the default token.
func (z *ZkAppCommand) FeePayerID() types.AccountID {
	return types.NewAccountID(z.FeePayer.Body.PublicKey)
}
