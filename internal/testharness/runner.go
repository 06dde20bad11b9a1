package testharness

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/minagoat/ccore/internal/applier"
	"github.com/minagoat/ccore/internal/constants"
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/internal/ledger"
	"github.com/minagoat/ccore/internal/protocolstate"
	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/internal/verifier"
)

// RunResult is the outcome of running a Scenario's steps to completion or
// to the first unrecoverable error. RunID identifies this particular
// execution (not the scenario itself, which may be run many times), the
// way mod.rs's scenario framework distinguishes a replayable fixture from
// one recorded pass over it.
type RunResult struct {
	RunID      string
	ScenarioID string
	Passed     bool
	Failures   []string
}

func (r *RunResult) fail(format string, args ...any) {
	r.Passed = false
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Run executes a scenario's steps in order against a fresh ledger.Database
// of the scenario's configured depth, using v to authorize signatures and
// proofs. It never stops early on an assertion failure: every step runs,
// and every failure is collected, so a single Run reports everything
// wrong with a scenario rather than just the first thing.
func Run(s *Scenario, cc *constants.ConstraintConstants, v verifier.Verifier) (*RunResult, error) {
	depth := s.Info.LedgerDepth
	if depth == 0 {
		depth = cc.LedgerDepth
	}
	db := ledger.NewDatabase(depth)
	view := protocolstate.View{}

	result := &RunResult{RunID: uuid.New().String(), ScenarioID: s.Info.ID, Passed: true}
	var lastStatus applier.Status

	for i, step := range s.Steps {
		switch step.Kind {
		case StepSeedAccount:
			_, acc, loc, err := db.GetOrCreate(step.Account)
			if err != nil {
				return nil, fmt.Errorf("testharness: step %d: seeding account: %w", i, err)
			}
			acc.Balance = currency.Balance(step.Balance)
			acc.Nonce = step.Nonce
			db.Set(loc, acc)

		case StepApplyTransaction:
			tx, err := decodeTransactionHex(step.TransactionHex)
			if err != nil {
				return nil, fmt.Errorf("testharness: step %d: %w", i, err)
			}
			pa, err := applier.ApplyFirstPass(cc, view.GlobalSlotSinceGenesis, view, db, tx)
			if err != nil {
				result.fail("step %d: apply_transaction first pass: %v", i, err)
				continue
			}
			res, err := applier.ApplySecondPass(db, v, view, view.GlobalSlotSinceGenesis, cc, pa)
			if err != nil {
				result.fail("step %d: apply_transaction second pass: %v", i, err)
				continue
			}
			lastStatus = res.Status

		case StepExpectStatus:
			if got := lastStatus.String(); got != step.ExpectedStatus {
				result.fail("step %d: expected status %q, got %q", i, step.ExpectedStatus, got)
			}

		case StepExpectBalance:
			loc, ok := db.LocationOf(step.Account)
			if !ok {
				result.fail("step %d: expect_balance: account %s was never created", i, step.Account)
				continue
			}
			if got := currency.Amount(db.Get(loc).Balance); got != step.Balance {
				result.fail("step %d: expect_balance: expected %d, got %d", i, step.Balance, got)
			}

		case StepExpectRootHash:
			if got := db.RootHash(); got != step.ExpectedHash {
				result.fail("step %d: expect_root_hash: expected %s, got %s", i, step.ExpectedHash, got)
			}

		default:
			return nil, fmt.Errorf("testharness: step %d: unknown step kind %q", i, step.Kind)
		}
	}

	return result, nil
}

func decodeTransactionHex(s string) (*txn.Transaction, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding transaction_hex: %w", err)
	}
	tx, err := txn.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling transaction: %w", err)
	}
	return tx, nil
}

// EncodeTransactionHex is the inverse of decodeTransactionHex, used by
// scenario authors (and tests) to populate Step.TransactionHex.
func EncodeTransactionHex(tx *txn.Transaction) string {
	return hex.EncodeToString(tx.Marshal())
}
