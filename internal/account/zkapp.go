package account

import (
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// AppStateSlots is the number of field-element slots in a zkApp's app
// state (spec.md §3.2).
const AppStateSlots = 8

// ActionStateSlots is the number of rolling action-state commitments Mina
// keeps per zkApp account.
const ActionStateSlots = 5

// VerificationKey wraps a compiled zkApp verification key along with its
// content hash, the value the applier matches Proof authorizations against.
type VerificationKey struct {
	Hash types.Hash
	Data []byte
}

// ZkAppState is the optional zkApp-specific portion of an account
// (spec.md §3.2).
type ZkAppState struct {
	AppState          [AppStateSlots]types.Hash
	VerificationKey   *VerificationKey
	ZkAppVersion      uint32
	ActionState       [ActionStateSlots]types.Hash
	LastActionSlot    currency.Slot
	ProvedState       bool
	ZkAppURI          string
}

// NewZkAppState returns a zkApp state with app/action state slots set to
// the empty field element and no verification key, matching
// original_source/ledger/src/account/legacy.rs SnappAccount::default.
func NewZkAppState() *ZkAppState {
	return &ZkAppState{}
}

// VerificationKeyHash returns the hash the applier checks Proof(vk_hash)
// authorizations against, or the zero hash if no key is set.
func (z *ZkAppState) VerificationKeyHash() types.Hash {
	if z == nil || z.VerificationKey == nil {
		return types.Hash{}
	}
	return z.VerificationKey.Hash
}
