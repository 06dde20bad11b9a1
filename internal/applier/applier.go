// Package applier implements the two-pass transaction applier (spec.md
// §4.I): apply_first_pass settles fees, nonces and non-zkApp balance
// changes directly against the ledger; apply_second_pass evaluates a
// ZkAppCommand's call forest (identity for every other variant).
package applier

import (
	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/constants"
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/internal/ledger"
	"github.com/minagoat/ccore/internal/protocolstate"
	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/internal/verifier"
	"github.com/minagoat/ccore/internal/zkapp"
	"github.com/minagoat/ccore/pkg/minaerr"
	"github.com/minagoat/ccore/pkg/types"
)

// Status is the final disposition of an applied transaction.
type Status int

const (
	StatusApplied Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusFailed {
		return "Failed"
	}
	return "Applied"
}

// PartiallyApplied is what apply_first_pass hands to apply_second_pass:
// the original transaction plus whatever the first pass already
// determined, so the second pass never has to re-derive it (spec.md
// §4.I.1).
type PartiallyApplied struct {
	Tx                  *txn.Transaction
	FailureReason       string // non-empty: first pass already decided Failed; second pass is a pass-through
	NewAccounts         int
	BurnedTokens        currency.Amount
	AccountCreationFees currency.Amount
}

// Result is the outcome apply_second_pass returns for one transaction
// (spec.md §4.I.3/§4.I.4).
type Result struct {
	Status              Status
	FailureReason        string
	ZkAppFailures        []zkapp.Failure
	SupplyIncrease       currency.Signed[currency.Amount]
	BurnedTokens         currency.Amount
	AccountCreationFees  currency.Amount
	NewAccounts          int
}

const receiptChainDomain = "ccore/receipt-chain"

// consReceiptChain computes cons(tx_payload, old) (spec.md §4.I.5): a
// domain-separated hash folding the transaction's own hash onto the
// account's prior receipt chain.
func consReceiptChain(old types.Hash, txHash types.Hash) types.Hash {
	return types.HashBytes(receiptChainDomain, old[:], txHash[:])
}

// creditWithNewAccountRule applies the account-creation-fee deduction
// for a newly allocated account: if the credited amount doesn't cover
// account_creation_fee, the account receives nothing and the shortfall is
// burned (spec.md §4.I.2.3/§8.3 "New-account underfunding").
func creditWithNewAccountRule(amount currency.Amount, isNew bool, creationFee currency.Fee) (credited currency.Amount, burned currency.Amount) {
	if !isNew {
		return amount, 0
	}
	fee := currency.Amount(creationFee)
	remainder, ok := amount.CheckedSub(fee)
	if !ok {
		return 0, amount
	}
	return remainder, 0
}

// ApplyFirstPass settles the fee/nonce/non-zkApp-balance portion of tx
// directly against l (spec.md §4.I.2). A non-nil error is a pre-apply
// rejection, which leaves l unchanged, or an error from the ledger itself
// (such as a full ledger). An in-apply failure, which keeps the fee debit,
// instead returns a PartiallyApplied with FailureReason set and a nil error.
func ApplyFirstPass(c *constants.ConstraintConstants, globalSlot currency.Slot, view protocolstate.View, l ledger.Maskable, tx *txn.Transaction) (*PartiallyApplied, error) {
	switch tx.Kind {
	case txn.TransactionCommand:
		return applyUserCommandFirstPass(c, l, tx)
	case txn.TransactionCoinbase:
		return applyCoinbaseFirstPass(c, l, tx)
	case txn.TransactionFeeTransfer:
		return applyFeeTransferFirstPass(c, l, tx)
	default:
		return nil, minaerr.ErrFeePayerMissing
	}
}

func applyUserCommandFirstPass(c *constants.ConstraintConstants, l ledger.Maskable, tx *txn.Transaction) (*PartiallyApplied, error) {
	cmd := tx.Command
	if cmd.Kind == txn.UserCommandZkApp {
		return applyZkAppCommandFirstPass(c, l, tx)
	}
	return applySignedCommandFirstPass(c, l, tx)
}

// applySignedCommandFirstPass implements spec.md §4.I.2.1: nonce check,
// fee debit, receipt-chain update, then the variant-specific body
// (Payment transfer or StakeDelegation permission-gated delegate change).
func applySignedCommandFirstPass(c *constants.ConstraintConstants, l ledger.Maskable, tx *txn.Transaction) (*PartiallyApplied, error) {
	sc := tx.Command.Signed
	feePayerID := sc.FeePayer()

	loc, ok := l.LocationOf(feePayerID)
	if !ok {
		return nil, minaerr.ErrFeePayerMissing
	}
	payer := l.Get(loc)

	fee := currency.Amount(sc.Payload.Common.Fee)
	if payer.Balance < currency.Balance(fee) {
		return nil, minaerr.ErrSourceInsufficientBalance
	}

	if uint32(payer.Nonce) != uint32(sc.Payload.Common.Nonce) {
		return nil, minaerr.NewNonceMismatch(uint32(payer.Nonce), uint32(sc.Payload.Common.Nonce))
	}

	afterFee, _ := payer.Balance.SubAmount(fee)
	payer.Balance = afterFee
	payer.Nonce = payer.Nonce.Incr()
	payer.ReceiptChainHash = consReceiptChain(payer.ReceiptChainHash, tx.Hash())
	l.Set(loc, payer)

	pa := &PartiallyApplied{Tx: tx}

	switch sc.Payload.Body.Kind {
	case txn.BodyStakeDelegation:
		if !payer.Permissions.SetDelegate.Satisfied(account.ControlSignature) {
			pa.FailureReason = "permission denied: set_delegate"
			return pa, nil
		}
		newDelegate := sc.Payload.Body.StakeDelegation.NewDelegate
		payer.Delegate = &newDelegate
		l.Set(loc, payer)
		return pa, nil

	default: // BodyPayment
		amount := sc.Payload.Body.Payment.Amount
		remaining, ok := afterFee.SubAmount(amount)
		if !ok {
			pa.FailureReason = "Source_insufficient_balance"
			return pa, nil
		}
		payer.Balance = remaining
		l.Set(loc, payer)

		receiverID := sc.Receiver()
		status, receiver, rloc, err := l.GetOrCreate(receiverID)
		if err != nil {
			return nil, err
		}
		isNew := status == ledger.Created
		credited, burned := creditWithNewAccountRule(amount, isNew, c.AccountCreationFee)
		if isNew && burned > 0 {
			pa.FailureReason = "AmountInsufficientToCreateAccount"
			pa.BurnedTokens = burned
			return pa, nil
		}
		newBalance, _ := receiver.Balance.AddAmount(credited)
		receiver.Balance = newBalance
		l.Set(rloc, receiver)
		if isNew {
			pa.NewAccounts++
			pa.AccountCreationFees, _ = pa.AccountCreationFees.CheckedAdd(currency.Amount(c.AccountCreationFee))
		}
		return pa, nil
	}
}

// applyZkAppCommandFirstPass implements spec.md §4.I.2.2: validate the
// fee payer's nonce precondition, debit the fee, and carry the
// un-evaluated call forest to the second pass.
func applyZkAppCommandFirstPass(c *constants.ConstraintConstants, l ledger.Maskable, tx *txn.Transaction) (*PartiallyApplied, error) {
	zk := tx.Command.ZkApp
	feePayerID := zk.FeePayerID()

	// A zkApp fee payer that doesn't yet exist would be created on demand
	// with a zero balance; deducting any positive fee from that balance
	// always falls short of account_creation_fee, so the attempt fails the
	// same way an underfunded account creation does elsewhere
	// (test_apply_zkapp_command_nonexistent_fee_payer in
	// original_source/ledger/tests/test_transaction_logic_first_pass_zkapp.rs
	// expects "[[Overflow, AmountInsufficientToCreateAccount]]", not a
	// generic fee-payer-missing error). This check runs before any ledger
	// mutation, so the account is never actually created.
	loc, ok := l.LocationOf(feePayerID)
	if !ok {
		return nil, minaerr.ErrZkAppFeeOverflowAmountInsufficient
	}
	payer := l.Get(loc)

	if uint32(payer.Nonce) != uint32(zk.FeePayer.Body.Nonce) {
		return nil, minaerr.ErrZkAppNoncePrecon
	}

	fee := currency.Amount(zk.FeePayer.Body.Fee)
	afterFee, ok := payer.Balance.SubAmount(fee)
	if !ok {
		return nil, minaerr.ErrZkAppFeeOverflow
	}

	payer.Balance = afterFee
	payer.Nonce = payer.Nonce.Incr()
	payer.ReceiptChainHash = consReceiptChain(payer.ReceiptChainHash, tx.Hash())
	l.Set(loc, payer)

	return &PartiallyApplied{Tx: tx}, nil
}

// applyCoinbaseFirstPass implements spec.md §4.I.2.3: credit the
// receiver with amount minus any surviving fee transfer, then the fee
// transfer's own receiver if it survived elision, both under the
// new-account rule.
func applyCoinbaseFirstPass(c *constants.ConstraintConstants, l ledger.Maskable, tx *txn.Transaction) (*PartiallyApplied, error) {
	cb := tx.Coinbase
	pa := &PartiallyApplied{Tx: tx}

	receiverCredit := cb.Amount
	if cb.FeeTransfer != nil {
		receiverCredit, _ = receiverCredit.CheckedSub(currency.Amount(cb.FeeTransfer.Fee))
	}

	if err := creditAccount(l, c, types.NewAccountID(cb.Receiver), receiverCredit, pa); err != nil {
		return nil, err
	}

	if cb.FeeTransfer != nil {
		ftAmount := currency.Amount(cb.FeeTransfer.Fee)
		if err := creditAccount(l, c, types.NewAccountID(cb.FeeTransfer.Receiver), ftAmount, pa); err != nil {
			return nil, err
		}
	}

	return pa, nil
}

// applyFeeTransferFirstPass implements spec.md §4.I.2.4: credit every
// receiver under the same new-account rule as coinbase.
func applyFeeTransferFirstPass(c *constants.ConstraintConstants, l ledger.Maskable, tx *txn.Transaction) (*PartiallyApplied, error) {
	pa := &PartiallyApplied{Tx: tx}
	for _, ft := range tx.FeeTransfer.Receivers {
		if err := creditAccount(l, c, types.NewAccountID(ft.Receiver), currency.Amount(ft.Fee), pa); err != nil {
			return nil, err
		}
	}
	return pa, nil
}

// creditAccount looks up or creates id, credits it with amount under the
// new-account rule, and accumulates the resulting burn/creation-fee
// bookkeeping onto pa.
func creditAccount(l ledger.Maskable, c *constants.ConstraintConstants, id types.AccountID, amount currency.Amount, pa *PartiallyApplied) error {
	status, acc, loc, err := l.GetOrCreate(id)
	if err != nil {
		return err
	}
	isNew := status == ledger.Created
	credited, burned := creditWithNewAccountRule(amount, isNew, c.AccountCreationFee)
	pa.BurnedTokens, _ = pa.BurnedTokens.CheckedAdd(burned)
	if isNew {
		pa.NewAccounts++
		pa.AccountCreationFees, _ = pa.AccountCreationFees.CheckedAdd(currency.Amount(c.AccountCreationFee))
	}
	newBalance, _ := acc.Balance.AddAmount(credited)
	acc.Balance = newBalance
	l.Set(loc, acc)
	return nil
}

// ApplySecondPass evaluates the zkApp portion of a ZkAppCommand (identity
// for every other variant) and assembles the final Result, including
// supply accounting (spec.md §4.I.3/§4.I.4).
func ApplySecondPass(l ledger.Maskable, v verifier.Verifier, view protocolstate.View, globalSlot currency.Slot, c *constants.ConstraintConstants, pa *PartiallyApplied) (*Result, error) {
	if pa.FailureReason != "" {
		return &Result{
			Status:              StatusFailed,
			FailureReason:       pa.FailureReason,
			BurnedTokens:        pa.BurnedTokens,
			AccountCreationFees: pa.AccountCreationFees,
			SupplyIncrease:      supplyIncrease(pa.Tx, pa.BurnedTokens, pa.AccountCreationFees),
		}, nil
	}

	if pa.Tx.Kind != txn.TransactionCommand || pa.Tx.Command.Kind != txn.UserCommandZkApp {
		return &Result{
			Status:              StatusApplied,
			NewAccounts:         pa.NewAccounts,
			BurnedTokens:        pa.BurnedTokens,
			AccountCreationFees: pa.AccountCreationFees,
			SupplyIncrease:      supplyIncrease(pa.Tx, pa.BurnedTokens, pa.AccountCreationFees),
		}, nil
	}

	zkRes, err := zkapp.Evaluate(l, pa.Tx.Command.ZkApp, view, globalSlot, v, c)
	if err != nil {
		return nil, err
	}
	if !zkRes.Applied {
		return &Result{
			Status:              StatusFailed,
			ZkAppFailures:       zkRes.Failures,
			BurnedTokens:        pa.BurnedTokens,
			AccountCreationFees: pa.AccountCreationFees,
			SupplyIncrease:      supplyIncrease(pa.Tx, pa.BurnedTokens, pa.AccountCreationFees),
		}, nil
	}

	burned, _ := pa.BurnedTokens.CheckedAdd(zkRes.BurnedTokens)
	zkCreationFees, _ := currency.Amount(c.AccountCreationFee).Scale(uint64(zkRes.NewAccountsCreated))
	creationFees, _ := pa.AccountCreationFees.CheckedAdd(zkCreationFees)
	return &Result{
		Status:              StatusApplied,
		NewAccounts:         pa.NewAccounts + zkRes.NewAccountsCreated,
		BurnedTokens:        burned,
		AccountCreationFees: creationFees,
		SupplyIncrease:      supplyIncrease(pa.Tx, burned, creationFees),
	}, nil
}

// supplyIncrease computes spec.md §4.I.4's supply_increase(tx): the
// coinbase's declared amount (0 for every other variant) minus
// burned_tokens minus account_creation_fees.
func supplyIncrease(tx *txn.Transaction, burned, creationFees currency.Amount) currency.Signed[currency.Amount] {
	base := currency.Signed[currency.Amount]{}
	if tx.Kind == txn.TransactionCoinbase {
		base = currency.OfUnsigned(tx.Coinbase.Amount)
	}
	deduction := currency.OfUnsigned(burned)
	if fees, ok := deduction.Add(currency.OfUnsigned(creationFees)); ok {
		deduction = fees
	}
	result, ok := base.Add(deduction.Negate())
	if !ok {
		return base
	}
	return result
}
