package applier

import (
	"testing"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/constants"
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/internal/ledger"
	"github.com/minagoat/ccore/internal/protocolstate"
	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/internal/verifier"
	"github.com/minagoat/ccore/pkg/types"
)

func pk(seed byte) types.PublicKey {
	var p types.PublicKey
	p[0] = seed
	return p
}

func paymentTx(fromPK, toPK types.PublicKey, amount, fee uint64, nonce uint32) *txn.Transaction {
	sc := &txn.SignedCommand{
		Payload: txn.SignedCommandPayload{
			Common: txn.Common{
				Fee:        currency.Fee(fee),
				FeePayerPK: fromPK,
				Nonce:      currency.Nonce(nonce),
			},
			Body: txn.Body{
				Kind: txn.BodyPayment,
				Payment: txn.PaymentPayload{
					Receiver: toPK,
					Amount:   currency.Amount(amount),
				},
			},
		},
		Signer: fromPK,
	}
	return &txn.Transaction{
		Kind:    txn.TransactionCommand,
		Command: &txn.UserCommand{Kind: txn.UserCommandSigned, Signed: sc},
	}
}

func newTestLedgerWithAliceAndBob(t *testing.T) (*ledger.Database, types.AccountID, types.AccountID) {
	t.Helper()
	db := ledger.NewDatabase(15)
	alice := types.NewAccountID(pk(1))
	bob := types.NewAccountID(pk(2))
	if _, _, _, err := db.GetOrCreate(alice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, _ := db.LocationOf(alice)
	acc := db.Get(loc)
	acc.Balance = currency.Balance(1_000_000_000)
	db.Set(loc, acc)

	if _, _, _, err := db.GetOrCreate(bob); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, _ = db.LocationOf(bob)
	acc = db.Get(loc)
	acc.Balance = currency.Balance(500_000_000)
	db.Set(loc, acc)

	return db, alice, bob
}

// Scenario 1 (spec.md §8.4): payment success.
func TestApplyPaymentSuccess(t *testing.T) {
	db, alice, bob := newTestLedgerWithAliceAndBob(t)
	tx := paymentTx(pk(1), pk(2), 100_000_000, 10_000_000, 0)

	pa, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err != nil {
		t.Fatalf("unexpected pre-apply rejection: %v", err)
	}
	res, err := ApplySecondPass(db, verifier.StubVerifier{Accept: true}, protocolstate.View{}, 0, constants.Default(), pa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusApplied {
		t.Fatalf("expected Applied, got %v (%s)", res.Status, res.FailureReason)
	}

	aliceLoc, _ := db.LocationOf(alice)
	aliceAfter := db.Get(aliceLoc)
	if aliceAfter.Balance != 890_000_000 {
		t.Errorf("expected alice balance 890_000_000, got %d", aliceAfter.Balance)
	}
	if aliceAfter.Nonce != 1 {
		t.Errorf("expected alice nonce 1, got %d", aliceAfter.Nonce)
	}

	bobLoc, _ := db.LocationOf(bob)
	bobAfter := db.Get(bobLoc)
	if bobAfter.Balance != 600_000_000 {
		t.Errorf("expected bob balance 600_000_000, got %d", bobAfter.Balance)
	}
	if bobAfter.Nonce != 0 {
		t.Errorf("expected bob nonce unchanged, got %d", bobAfter.Nonce)
	}
}

// Scenario 2: payment insufficient balance — fee retained, amount not
// transferred.
func TestApplyPaymentInsufficientBalance(t *testing.T) {
	db, alice, bob := newTestLedgerWithAliceAndBob(t)
	tx := paymentTx(pk(1), pk(2), 2_000_000_000, 10_000_000, 0)

	pa, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err != nil {
		t.Fatalf("unexpected pre-apply rejection: %v", err)
	}
	if pa.FailureReason != "Source_insufficient_balance" {
		t.Fatalf("expected Source_insufficient_balance, got %q", pa.FailureReason)
	}

	aliceLoc, _ := db.LocationOf(alice)
	aliceAfter := db.Get(aliceLoc)
	if aliceAfter.Balance != 990_000_000 {
		t.Errorf("expected fee-only deduction, got balance %d", aliceAfter.Balance)
	}
	if aliceAfter.Nonce != 1 {
		t.Errorf("expected nonce incremented despite failure, got %d", aliceAfter.Nonce)
	}

	bobLoc, _ := db.LocationOf(bob)
	bobAfter := db.Get(bobLoc)
	if bobAfter.Balance != 500_000_000 {
		t.Errorf("expected bob unchanged, got %d", bobAfter.Balance)
	}
}

// Scenario 3: invalid nonce — ledger entirely unchanged.
func TestApplyPaymentInvalidNonce(t *testing.T) {
	db, alice, _ := newTestLedgerWithAliceAndBob(t)
	before := db.RootHash()
	tx := paymentTx(pk(1), pk(2), 100_000_000, 10_000_000, 5)

	_, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err == nil {
		t.Fatalf("expected a nonce-mismatch error")
	}
	wantMsg := "Nonce in account Nonce(0) different from nonce in transaction Nonce(5)"
	if err.Error() != wantMsg {
		t.Errorf("expected %q, got %q", wantMsg, err.Error())
	}

	after := db.RootHash()
	if before != after {
		t.Errorf("expected ledger unchanged, root hash changed")
	}
	aliceLoc, _ := db.LocationOf(alice)
	if db.Get(aliceLoc).Nonce != 0 {
		t.Errorf("expected alice nonce unchanged")
	}
}

// Scenario 4: nonexistent fee payer — ledger unchanged.
func TestApplyPaymentNonexistentFeePayer(t *testing.T) {
	db := ledger.NewDatabase(15)
	tx := paymentTx(pk(1), pk(2), 100_000_000, 10_000_000, 0)

	_, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err == nil {
		t.Fatalf("expected fee-payer-missing error")
	}
	if err.Error() != "The fee-payer account does not exist" {
		t.Errorf("unexpected error: %v", err)
	}
	if _, ok := db.LocationOf(types.NewAccountID(pk(1))); ok {
		t.Errorf("expected alice still not to exist")
	}
}

// A zkApp command from a nonexistent fee payer is rejected the same way
// an underfunded account creation is: the implicit creation would start
// the fee payer at a zero balance, which can never cover a positive fee
// (original_source/ledger/tests/test_transaction_logic_first_pass_zkapp.rs
// test_apply_zkapp_command_nonexistent_fee_payer). The ledger is left
// unchanged; no account is created for the missing fee payer.
func TestApplyZkAppCommandNonexistentFeePayer(t *testing.T) {
	db := ledger.NewDatabase(15)
	alice := types.NewAccountID(pk(1))
	bob := types.NewAccountID(pk(2))

	cmd := &txn.ZkAppCommand{
		FeePayer: txn.FeePayer{
			Body: txn.FeePayerBody{PublicKey: pk(1), Fee: currency.Fee(10_000_000), Nonce: 0},
		},
		AccountUpdates: txn.CallForest{
			{
				AccountUpdate: &txn.AccountUpdate{
					Body: txn.AccountUpdateBody{
						AccountID:         bob,
						AuthorizationKind: txn.AuthorizationKind{Kind: account.ControlSignature},
					},
					Authorization: txn.Control{Kind: account.ControlSignature, Signature: txn.Signature{1}},
				},
			},
		},
	}
	tx := &txn.Transaction{Kind: txn.TransactionCommand, Command: &txn.UserCommand{Kind: txn.UserCommandZkApp, ZkApp: cmd}}

	_, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err == nil {
		t.Fatalf("expected an account-creation-insufficient error")
	}
	if err.Error() != "[[Overflow, AmountInsufficientToCreateAccount]]" {
		t.Errorf("unexpected error: %v", err)
	}
	if _, ok := db.LocationOf(alice); ok {
		t.Errorf("expected alice still not to exist")
	}
}

// Scenario 5: coinbase creates an account, deducting the creation fee.
func TestApplyCoinbaseCreatesAccount(t *testing.T) {
	db := ledger.NewDatabase(15)
	bob := types.NewAccountID(pk(2))
	cb := txn.CreateCoinbase(currency.Amount(720_000_000_000), pk(2), nil)
	tx := &txn.Transaction{Kind: txn.TransactionCoinbase, Coinbase: cb}

	pa, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := ApplySecondPass(db, verifier.StubVerifier{Accept: true}, protocolstate.View{}, 0, constants.Default(), pa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusApplied {
		t.Fatalf("expected Applied, got Failed: %s", res.FailureReason)
	}

	loc, ok := db.LocationOf(bob)
	if !ok {
		t.Fatalf("expected bob to be created")
	}
	bobAcc := db.Get(loc)
	if bobAcc.Balance != 719_000_000_000 {
		t.Errorf("expected balance 719_000_000_000, got %d", bobAcc.Balance)
	}
	if bobAcc.Nonce != 0 {
		t.Errorf("expected nonce 0 for new account")
	}
}

// Scenario 6: coinbase + fee transfer to the same pk is elided; receiver
// gets exactly the coinbase amount.
func TestApplyCoinbaseFeeTransferElidedToSamePK(t *testing.T) {
	db := ledger.NewDatabase(15)
	alice := types.NewAccountID(pk(1))
	if _, _, _, err := db.GetOrCreate(alice); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, _ := db.LocationOf(alice)
	acc := db.Get(loc)
	acc.Balance = 0
	db.Set(loc, acc)

	ft := &txn.FeeTransferSingle{Receiver: pk(1), Fee: currency.Fee(10_000_000_000)}
	cb := txn.CreateCoinbase(currency.Amount(720_000_000_000), pk(1), ft)
	if cb.FeeTransfer != nil {
		t.Fatalf("expected fee transfer to be elided at construction")
	}
	tx := &txn.Transaction{Kind: txn.TransactionCoinbase, Coinbase: cb}

	pa, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := ApplySecondPass(db, verifier.StubVerifier{Accept: true}, protocolstate.View{}, 0, constants.Default(), pa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusApplied {
		t.Fatalf("expected Applied, got Failed: %s", res.FailureReason)
	}

	aliceAfter := db.Get(loc)
	if aliceAfter.Balance != 720_000_000_000 {
		t.Errorf("expected alice to receive exactly the coinbase amount, got %d", aliceAfter.Balance)
	}
}

func TestApplyStakeDelegationUpdatesDelegate(t *testing.T) {
	db, alice, bob := newTestLedgerWithAliceAndBob(t)

	sc := &txn.SignedCommand{
		Payload: txn.SignedCommandPayload{
			Common: txn.Common{Fee: currency.Fee(10_000_000), FeePayerPK: pk(1), Nonce: 0},
			Body: txn.Body{
				Kind:            txn.BodyStakeDelegation,
				StakeDelegation: txn.StakeDelegationPayload{NewDelegate: pk(2)},
			},
		},
		Signer: pk(1),
	}
	tx := &txn.Transaction{Kind: txn.TransactionCommand, Command: &txn.UserCommand{Kind: txn.UserCommandSigned, Signed: sc}}

	pa, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := ApplySecondPass(db, verifier.StubVerifier{Accept: true}, protocolstate.View{}, 0, constants.Default(), pa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusApplied {
		t.Fatalf("expected Applied, got Failed: %s", res.FailureReason)
	}

	aliceLoc, _ := db.LocationOf(alice)
	aliceAfter := db.Get(aliceLoc)
	if aliceAfter.Delegate == nil || *aliceAfter.Delegate != pk(2) {
		t.Errorf("expected alice's delegate set to bob")
	}
	_ = bob
}

func TestApplyZkAppCommandEndToEnd(t *testing.T) {
	db := ledger.NewDatabase(15)
	feePayer := types.NewAccountID(pk(1))
	target := types.NewAccountID(pk(3))
	if _, _, _, err := db.GetOrCreate(feePayer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc, _ := db.LocationOf(feePayer)
	acc := db.Get(loc)
	acc.Balance = currency.Balance(1_000_000_000)
	db.Set(loc, acc)
	if _, _, _, err := db.GetOrCreate(target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	newState := types.HashBytes("test", []byte("hello"))
	cmd := &txn.ZkAppCommand{
		FeePayer: txn.FeePayer{
			Body: txn.FeePayerBody{PublicKey: pk(1), Fee: currency.Fee(10_000_000), Nonce: 0},
		},
		AccountUpdates: txn.CallForest{
			{
				AccountUpdate: &txn.AccountUpdate{
					Body: txn.AccountUpdateBody{
						AccountID: target,
						Update: txn.AccountUpdateModifications{
							AppState: [account.AppStateSlots]txn.SetOrKeep[types.Hash]{0: txn.SetTo(newState)},
						},
						AuthorizationKind: txn.AuthorizationKind{Kind: account.ControlSignature},
					},
					Authorization: txn.Control{Kind: account.ControlSignature, Signature: txn.Signature{1}},
				},
			},
		},
	}
	tx := &txn.Transaction{
		Kind:    txn.TransactionCommand,
		Command: &txn.UserCommand{Kind: txn.UserCommandZkApp, ZkApp: cmd},
	}

	pa, err := ApplyFirstPass(constants.Default(), 0, protocolstate.View{}, db, tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := ApplySecondPass(db, verifier.StubVerifier{Accept: true}, protocolstate.View{}, 0, constants.Default(), pa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != StatusApplied {
		t.Fatalf("expected Applied, got Failed: %v", res.ZkAppFailures)
	}

	feeLoc, _ := db.LocationOf(feePayer)
	feeAcc := db.Get(feeLoc)
	if feeAcc.Balance != 990_000_000 {
		t.Errorf("expected fee payer balance 990_000_000, got %d", feeAcc.Balance)
	}
	if feeAcc.Nonce != 1 {
		t.Errorf("expected fee payer nonce incremented")
	}

	targetLoc, _ := db.LocationOf(target)
	targetAcc := db.Get(targetLoc)
	if targetAcc.ZkApp == nil || targetAcc.ZkApp.AppState[0] != newState {
		t.Errorf("expected target app state updated")
	}
}
