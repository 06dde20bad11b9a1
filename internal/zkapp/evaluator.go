// Package zkapp implements the §4.J zkApp command evaluator: pre-order
// execution of a ZkAppCommand's call forest against a staged ledger mask,
// with per-update authorization, precondition, balance-change and
// permission checks, and all-or-nothing rollback on any failure.
package zkapp

import (
	"fmt"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/constants"
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/internal/ledger"
	"github.com/minagoat/ccore/internal/protocolstate"
	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/internal/verifier"
	"github.com/minagoat/ccore/pkg/types"
)

// Failure names the account update (by its index in pre-order traversal)
// and the reason evaluation rejected it.
type Failure struct {
	UpdateIndex int
	Reason      string
}

func (f Failure) String() string {
	return fmt.Sprintf("update %d: %s", f.UpdateIndex, f.Reason)
}

// Result is the outcome of evaluating one ZkAppCommand's call forest.
type Result struct {
	Applied            bool
	Failures           []Failure
	NewAccountsCreated int
	BurnedTokens       currency.Amount
}

// vkOverride records a vks_overridden entry: Present=false means the vk
// was explicitly erased by a prior update in this same command (spec.md
// §4.J "Some(None) means the vk was explicitly erased").
type vkOverride struct {
	Present bool
	VK      *account.VerificationKey
}

// evalState threads the running vks_overridden map and the staging mask
// through pre-order evaluation.
type evalState struct {
	mask       ledger.Maskable
	view       protocolstate.View
	globalSlot currency.Slot
	verifier   verifier.Verifier
	constants  *constants.ConstraintConstants
	overrides  map[types.AccountID]vkOverride
	newAccts   int
	burned     currency.Amount
}

// Evaluate executes cmd.AccountUpdates in pre-order against a mask spawned
// from l, committing the mask on success or discarding it on any failure
// (spec.md §4.I.3 "Failure locality").
func Evaluate(l ledger.Maskable, cmd *txn.ZkAppCommand, view protocolstate.View, globalSlot currency.Slot, v verifier.Verifier, c *constants.ConstraintConstants) (Result, error) {
	mask := l.CreateMasked()
	st := &evalState{
		mask:       mask,
		view:       view,
		globalSlot: globalSlot,
		verifier:   v,
		constants:  c,
		overrides:  make(map[types.AccountID]vkOverride),
	}

	var failures []Failure
	index := 0
	var walk func(forest txn.CallForest) bool
	walk = func(forest txn.CallForest) bool {
		for _, t := range forest {
			i := index
			index++
			if reason := st.evaluateOne(t); reason != "" {
				failures = append(failures, Failure{UpdateIndex: i, Reason: reason})
				return false
			}
			if !walk(t.Calls) {
				return false
			}
		}
		return true
	}
	walk(cmd.AccountUpdates)

	if len(failures) > 0 {
		return Result{Applied: false, Failures: failures}, nil
	}

	if err := l.ApplyMask(mask); err != nil {
		return Result{}, fmt.Errorf("zkapp: applying staged mask: %w", err)
	}
	return Result{Applied: true, NewAccountsCreated: st.newAccts, BurnedTokens: st.burned}, nil
}

// evaluateOne runs all seven checks (spec.md §4.I.3) for a single call-forest
// node and returns a non-empty reason string on any rejection, or "" on
// success (the mutation has already been staged on st.mask).
func (st *evalState) evaluateOne(t *txn.Tree) string {
	u := t.AccountUpdate
	if reason := checkAuthorizationMatch(u); reason != "" {
		return reason
	}

	status, acc, loc, err := st.mask.GetOrCreate(u.Body.AccountID)
	if err != nil {
		return err.Error()
	}
	isNew := status == ledger.Created

	vk, vkReason := st.resolveVerificationKey(u, acc)
	if vkReason != "" {
		return vkReason
	}

	if reason := checkPreconditions(u, acc, st.view, st.globalSlot, isNew); reason != "" {
		return reason
	}

	newBalance, ok := acc.Balance.AddSignedAmountFlagged(u.Body.BalanceChange)
	if !ok {
		return "Overflow"
	}

	if reason := checkPermissions(u, acc); reason != "" {
		return reason
	}

	if u.Authorization.Kind == account.ControlProof {
		// The statement commits to the sparse, proof-sized view of the
		// ledger the update was checked against (spec.md §4.G "used by
		// the zkApp evaluator to present a minimal view to the
		// proof-verifier oracle"), not the whole staged mask, so the
		// oracle's input size tracks the touched accounts only.
		witness := ledger.OfLedger(st.mask, []types.AccountID{u.Body.AccountID})
		statement := zkappStatement(t, witness.RootHash())
		ok, err := st.verifier.VerifyProof(vk, statement, u.Authorization.Proof)
		if err != nil {
			return err.Error()
		}
		if !ok {
			return "proof did not verify"
		}
	}

	if isNew {
		fee := currency.Amount(st.constants.AccountCreationFee)
		afterCreationFee, ok := newBalance.SubAmount(fee)
		if !ok {
			st.burned, _ = st.burned.CheckedAdd(currency.Amount(newBalance))
			newBalance = 0
		} else {
			newBalance = afterCreationFee
		}
		st.newAccts++
	}

	acc.Balance = newBalance
	applyUpdateMask(acc, u.Body.Update)
	if u.Body.IncrementNonce {
		acc.Nonce = acc.Nonce.Incr()
	}

	st.recordOverride(u.Body.AccountID, u.Body.Update.VerificationKey)
	st.mask.Set(loc, acc)
	return ""
}

// checkAuthorizationMatch implements step 1 (spec.md §4.I.3): the
// authorization actually supplied must match its declared kind.
func checkAuthorizationMatch(u *txn.AccountUpdate) string {
	kind := u.Body.AuthorizationKind.Kind
	supplied := u.Authorization.Kind
	if kind != supplied {
		return "Authorization kind does not match the authorization"
	}
	switch kind {
	case account.ControlNone, account.ControlSignature, account.ControlProof:
		return ""
	default:
		return "Authorization kind does not match the authorization"
	}
}

// resolveVerificationKey implements step 2: for a Proof authorization,
// the effective vk is either this command's own prior override or the
// account's stored one; its hash must match the update's declared
// vk_hash.
func (st *evalState) resolveVerificationKey(u *txn.AccountUpdate, acc *account.Account) (*account.VerificationKey, string) {
	if u.Body.AuthorizationKind.Kind != account.ControlProof {
		return nil, ""
	}

	var vk *account.VerificationKey
	if ov, ok := st.overrides[u.Body.AccountID]; ok {
		if !ov.Present {
			return nil, "verification key was erased by a prior update in this command"
		}
		vk = ov.VK
	} else if acc.ZkApp != nil {
		vk = acc.ZkApp.VerificationKey
	}

	if vk == nil || vk.Hash != u.Body.AuthorizationKind.VKHash {
		return nil, "declared vk_hash does not match the account's verification key"
	}
	return vk, ""
}

// recordOverride updates vks_overridden when this update's mask writes
// the verification-key field (spec.md §4.J).
func (st *evalState) recordOverride(id types.AccountID, vkMod txn.SetOrKeep[*account.VerificationKey]) {
	if !vkMod.Set {
		return
	}
	st.overrides[id] = vkOverride{Present: vkMod.Value != nil, VK: vkMod.Value}
}

// checkPreconditions implements step 3: network preconditions against
// the protocol-state view, account preconditions against the current
// (possibly already-mutated-this-command) account, and valid_while
// against the applied global slot.
func checkPreconditions(u *txn.AccountUpdate, acc *account.Account, view protocolstate.View, globalSlot currency.Slot, isNew bool) string {
	p := u.Body.Preconditions

	if p.ValidWhile.Set {
		if !inRange(globalSlot, p.ValidWhile.Value) {
			return "valid_while precondition unsatisfied"
		}
	}

	if p.Network.GlobalSlotSinceGenesis.Set && !inRange(view.GlobalSlotSinceGenesis, p.Network.GlobalSlotSinceGenesis.Value) {
		return "GlobalSlotSinceGenesis precondition unsatisfied"
	}
	if p.Network.BlockchainLength.Set && !inRange(view.BlockchainLength, p.Network.BlockchainLength.Value) {
		return "BlockchainLength precondition unsatisfied"
	}
	if p.Network.MinWindowDensity.Set && !inRange(view.MinWindowDensity, p.Network.MinWindowDensity.Value) {
		return "MinWindowDensity precondition unsatisfied"
	}
	if p.Network.TotalCurrency.Set && !inRange(view.TotalCurrency, p.Network.TotalCurrency.Value) {
		return "TotalCurrency precondition unsatisfied"
	}
	if p.Network.SnarkedLedgerHash.Set && p.Network.SnarkedLedgerHash.Value != view.SnarkedLedgerHash {
		return "SnarkedLedgerHash precondition unsatisfied"
	}

	a := p.Account
	if a.Balance.Set && !inRange(acc.Balance, a.Balance.Value) {
		return "AccountBalancePreconditionUnsatisfied"
	}
	if a.Nonce.Set && !inRange(acc.Nonce, a.Nonce.Value) {
		return "AccountNoncePreconditionUnsatisfied"
	}
	if a.ReceiptChainHash.Set && a.ReceiptChainHash.Value != acc.ReceiptChainHash {
		return "AccountReceiptChainHashPreconditionUnsatisfied"
	}
	if a.Delegate.Set {
		if acc.Delegate == nil || *acc.Delegate != a.Delegate.Value {
			return "AccountDelegatePreconditionUnsatisfied"
		}
	}
	if a.ProvedState.Set && acc.ZkApp != nil && acc.ZkApp.ProvedState != a.ProvedState.Value {
		return "AccountProvedStatePreconditionUnsatisfied"
	}
	if a.IsNew.Set && a.IsNew.Value != isNew {
		return "AccountIsNewPreconditionUnsatisfied"
	}
	for i, slot := range a.State {
		if !slot.Set {
			continue
		}
		var current types.Hash
		if acc.ZkApp != nil {
			current = acc.ZkApp.AppState[i]
		}
		if current != slot.Value {
			return "AccountStatePreconditionUnsatisfied"
		}
	}

	return ""
}

type ordered interface {
	~uint32 | ~uint64
}

func inRange[T ordered](v T, r txn.Range[T]) bool {
	return v >= r.Lower && v <= r.Upper
}

// checkPermissions implements step 5: every field the update mask
// actually mutates must be authorized by the account's permissions
// controller for that field, at the authorization kind this update
// supplied.
func checkPermissions(u *txn.AccountUpdate, acc *account.Account) string {
	kind := u.Authorization.Kind
	m := u.Body.Update
	perm := acc.Permissions

	check := func(required account.AuthRequired, field string) string {
		if !required.Satisfied(kind) {
			return fmt.Sprintf("permission denied: %s requires stricter authorization", field)
		}
		return ""
	}

	for _, slot := range m.AppState {
		if slot.Set {
			if reason := check(perm.EditState, "app_state"); reason != "" {
				return reason
			}
			break
		}
	}
	if m.Delegate.Set {
		if reason := check(perm.SetDelegate, "delegate"); reason != "" {
			return reason
		}
	}
	if m.VerificationKey.Set {
		if perm.SetVerificationKey.TxnVersion != account.CurrentTransactionVersion {
			return "permission denied: verification_key permission is not for the current transaction version"
		}
		if reason := check(perm.SetVerificationKey.Auth, "verification_key"); reason != "" {
			return reason
		}
	}
	if m.Permissions.Set {
		if reason := check(perm.SetPermissions, "permissions"); reason != "" {
			return reason
		}
	}
	if m.ZkAppURI.Set {
		if reason := check(perm.SetZkappURI, "zkapp_uri"); reason != "" {
			return reason
		}
	}
	if m.TokenSymbol.Set {
		if reason := check(perm.SetTokenSymbol, "token_symbol"); reason != "" {
			return reason
		}
	}
	if m.VotingFor.Set {
		if reason := check(perm.SetVotingFor, "voting_for"); reason != "" {
			return reason
		}
	}
	if m.Timing.Set {
		if reason := check(perm.SetTiming, "timing"); reason != "" {
			return reason
		}
	}
	if u.Body.IncrementNonce {
		if reason := check(perm.IncrementNonce, "nonce"); reason != "" {
			return reason
		}
	}
	if u.Body.BalanceChange.IsNeg() {
		if reason := check(perm.Send, "balance (send)"); reason != "" {
			return reason
		}
	} else if !u.Body.BalanceChange.IsZero() {
		if reason := check(perm.Receive, "balance (receive)"); reason != "" {
			return reason
		}
	}

	return ""
}

// applyUpdateMask commits every Set field of m onto acc; Keep fields are
// left untouched.
func applyUpdateMask(acc *account.Account, m txn.AccountUpdateModifications) {
	if acc.ZkApp == nil {
		acc.ZkApp = account.NewZkAppState()
	}
	for i, slot := range m.AppState {
		if slot.Set {
			acc.ZkApp.AppState[i] = slot.Value
		}
	}
	if m.Delegate.Set {
		d := m.Delegate.Value
		acc.Delegate = &d
	}
	if m.VerificationKey.Set {
		acc.ZkApp.VerificationKey = m.VerificationKey.Value
	}
	if m.Permissions.Set {
		acc.Permissions = m.Permissions.Value
	}
	if m.ZkAppURI.Set {
		acc.ZkApp.ZkAppURI = m.ZkAppURI.Value
	}
	if m.TokenSymbol.Set {
		acc.TokenSymbol = m.TokenSymbol.Value
	}
	if m.VotingFor.Set {
		acc.VotingFor = m.VotingFor.Value
	}
	if m.Timing.Set {
		acc.Timing = m.Timing.Value
	}
}

// zkappStatement computes the opaque statement the verifier oracle checks
// a Proof authorization against: a domain-separated hash of the update's
// body, its sub-forest's structural hash, and the sparse ledger root the
// update was evaluated against (spec.md §4.J "zkapp_statement(update,
// forest_below)" — this core reproduces the protocol's fixed commitment
// scheme without interpreting it further, extended with the §4.G sparse
// witness root so the statement actually binds the ledger state a proof
// was generated for).
func zkappStatement(t *txn.Tree, ledgerRoot types.Hash) types.Hash {
	u := t.AccountUpdate
	buf := accountUpdateStatementBytes(u)
	forestHash := t.Calls.Hash()
	buf = append(buf, forestHash[:]...)
	buf = append(buf, ledgerRoot[:]...)
	return types.HashBytes("ccore/zkapp-statement", buf)
}

func accountUpdateStatementBytes(u *txn.AccountUpdate) []byte {
	var buf []byte
	buf = append(buf, u.Body.AccountID.PublicKey[:]...)
	buf = append(buf, u.Body.AuthorizationKind.VKHash[:]...)
	buf = append(buf, byte(u.Body.AuthorizationKind.Kind))
	return buf
}
