package ledger

import (
	"testing"

	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

func idFor(b byte) types.AccountID {
	var pk types.PublicKey
	pk[0] = b
	return types.NewAccountID(pk)
}

func TestDatabaseGetOrCreateThenGet(t *testing.T) {
	db := NewDatabase(4)
	id := idFor(1)

	status, acc, loc, err := db.GetOrCreate(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Created {
		t.Errorf("expected Created, got %v", status)
	}
	if !acc.IsDefault() {
		t.Errorf("freshly created account should be default")
	}

	acc.Balance = 500
	db.Set(loc, acc)

	got := db.Get(loc)
	if got.Balance != 500 {
		t.Errorf("expected balance 500, got %d", got.Balance)
	}

	status2, _, loc2, err := db.GetOrCreate(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status2 != Existed {
		t.Errorf("second GetOrCreate should report Existed")
	}
	if loc2 != loc {
		t.Errorf("expected same location on repeat lookup")
	}
}

func TestDatabaseLedgerFull(t *testing.T) {
	db := NewDatabase(1) // capacity 2
	if _, _, _, err := db.GetOrCreate(idFor(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, _, err := db.GetOrCreate(idFor(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, _, err := db.GetOrCreate(idFor(3)); err == nil {
		t.Errorf("expected ledger-full error on third account")
	}
}

func TestDatabaseRootHashChangesOnMutation(t *testing.T) {
	db := NewDatabase(3)
	_, acc, loc, _ := db.GetOrCreate(idFor(1))
	before := db.RootHash()

	acc.Balance = 10
	db.Set(loc, acc)
	after := db.RootHash()

	if before == after {
		t.Errorf("root hash should change after mutating a leaf")
	}
}

func TestDatabaseRootHashStableAcrossEquivalentTrees(t *testing.T) {
	a := NewDatabase(3)
	b := NewDatabase(3)
	for _, db := range []*Database{a, b} {
		_, acc, loc, _ := db.GetOrCreate(idFor(7))
		acc.Balance = 42
		db.Set(loc, acc)
	}
	if a.RootHash() != b.RootHash() {
		t.Errorf("two ledgers with identical content should share a root hash")
	}
}

func TestMaskReadsFallThroughToParent(t *testing.T) {
	db := NewDatabase(3)
	_, acc, loc, _ := db.GetOrCreate(idFor(1))
	acc.Balance = 100
	db.Set(loc, acc)

	mask := db.CreateMasked()
	got := mask.Get(loc)
	if got.Balance != 100 {
		t.Errorf("mask should read through to parent's value, got %d", got.Balance)
	}
}

func TestMaskRootHashMatchesParentBeforeAnyWrite(t *testing.T) {
	db := NewDatabase(3)
	_, acc, loc, _ := db.GetOrCreate(idFor(1))
	acc.Balance = 100
	db.Set(loc, acc)

	mask := db.CreateMasked()
	if mask.RootHash() != db.RootHash() {
		t.Errorf("untouched mask should have the same root hash as its parent")
	}
}

func TestMaskOverlayDivergesFromParentUntilApplied(t *testing.T) {
	db := NewDatabase(3)
	_, acc, loc, _ := db.GetOrCreate(idFor(1))
	acc.Balance = 100
	db.Set(loc, acc)
	parentRoot := db.RootHash()

	mask := db.CreateMasked()
	overlaid := mask.Get(loc)
	overlaid.Balance = 200
	mask.Set(loc, overlaid)

	if mask.RootHash() == parentRoot {
		t.Errorf("mask root hash should diverge from parent after an overlay write")
	}
	if db.RootHash() != parentRoot {
		t.Errorf("parent root hash must be unaffected by an unapplied mask")
	}

	if err := db.ApplyMask(mask); err != nil {
		t.Fatalf("unexpected error applying mask: %v", err)
	}
	if db.RootHash() != mask.RootHash() {
		t.Errorf("parent root hash should match the mask's after ApplyMask")
	}
	if db.Get(loc).Balance != 200 {
		t.Errorf("parent should observe the overlaid balance after ApplyMask")
	}
}

func TestMaskGetOrCreateAllocatesBeyondParentSize(t *testing.T) {
	db := NewDatabase(2) // capacity 4
	db.GetOrCreate(idFor(1))

	mask := db.CreateMasked()
	status, acc, _, err := mask.GetOrCreate(idFor(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != Created {
		t.Errorf("expected Created for a brand-new id")
	}
	if !acc.IsDefault() {
		t.Errorf("freshly created account should be default")
	}
	if mask.NumAccounts() != 2 {
		t.Errorf("expected mask to see 2 accounts, got %d", mask.NumAccounts())
	}
	if db.NumAccounts() != 1 {
		t.Errorf("parent account count must be unaffected before ApplyMask")
	}
}

func TestNestedMasksApplyInOrder(t *testing.T) {
	db := NewDatabase(3)
	_, acc, loc, _ := db.GetOrCreate(idFor(1))
	acc.Balance = 10
	db.Set(loc, acc)

	child := db.CreateMasked()
	grandchild := child.CreateMasked()

	overlaid := grandchild.Get(loc)
	overlaid.Balance = 99
	grandchild.Set(loc, overlaid)

	if err := child.ApplyMask(grandchild); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.Get(loc).Balance != 99 {
		t.Errorf("child should observe grandchild's overlay after ApplyMask")
	}

	if err := db.ApplyMask(child); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.Get(loc).Balance != 99 {
		t.Errorf("root database should observe the fully-applied chain")
	}
}

func TestSparseLedgerRootHashMatchesSource(t *testing.T) {
	db := NewDatabase(3)
	_, acc1, loc1, _ := db.GetOrCreate(idFor(1))
	acc1.Balance = currency.Balance(10)
	db.Set(loc1, acc1)

	_, acc2, loc2, _ := db.GetOrCreate(idFor(2))
	acc2.Balance = currency.Balance(20)
	db.Set(loc2, acc2)

	full := db.RootHash()

	sparse := OfLedger(db, []types.AccountID{idFor(1), idFor(2)})
	if sparse.RootHash() != full {
		t.Errorf("sparse ledger root hash should match the full ledger's")
	}
}

func TestSparseLedgerSetUpdatesRootHash(t *testing.T) {
	db := NewDatabase(3)
	_, acc1, loc1, _ := db.GetOrCreate(idFor(1))
	acc1.Balance = 10
	db.Set(loc1, acc1)
	before := db.RootHash()

	sparse := OfLedger(db, []types.AccountID{idFor(1)})
	got, _ := sparse.Get(idFor(1))
	got.Balance = 999
	sparse.Set(idFor(1), got)

	if sparse.RootHash() == before {
		t.Errorf("mutating the sparse projection should change its recomputed root")
	}
}
