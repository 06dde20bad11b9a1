package testharness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/minagoat/ccore/pkg/types"
)

func pk(seed byte) types.PublicKey {
	var p types.PublicKey
	p[0] = seed
	return p
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := &Store{Dir: t.TempDir()}

	s := New("base", "", 12)
	s.AddStep(Step{Kind: StepSeedAccount, Account: types.NewAccountID(pk(1)), Balance: 1_000})

	if err := st.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !st.Exists("base") {
		t.Fatalf("expected scenario %q to exist after Save", s.Info.ID)
	}

	loaded, err := st.Load("base")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Info.ID != "base" || loaded.Info.LedgerDepth != 12 {
		t.Errorf("unexpected info after round trip: %+v", loaded.Info)
	}
	if len(loaded.Steps) != 1 || loaded.Steps[0].Kind != StepSeedAccount {
		t.Errorf("unexpected steps after round trip: %+v", loaded.Steps)
	}
	if loaded.Steps[0].Account != s.Steps[0].Account {
		t.Errorf("account did not round-trip through JSON: got %s, want %s", loaded.Steps[0].Account, s.Steps[0].Account)
	}
}

func TestLoadResolvesParentChain(t *testing.T) {
	st := &Store{Dir: t.TempDir()}

	base := New("base", "", 10)
	base.AddStep(Step{Kind: StepSeedAccount, Account: types.NewAccountID(pk(1)), Balance: 500})
	if err := st.Save(base); err != nil {
		t.Fatalf("Save(base): %v", err)
	}

	child := New("child", "base", 10)
	child.AddStep(Step{Kind: StepExpectBalance, Account: types.NewAccountID(pk(1)), Balance: 500})
	if err := st.Save(child); err != nil {
		t.Fatalf("Save(child): %v", err)
	}

	resolved, err := st.Load("child")
	if err != nil {
		t.Fatalf("Load(child): %v", err)
	}
	if len(resolved.Steps) != 2 {
		t.Fatalf("expected 2 steps (1 inherited + 1 own), got %d", len(resolved.Steps))
	}
	if resolved.Steps[0].Kind != StepSeedAccount || resolved.Steps[1].Kind != StepExpectBalance {
		t.Errorf("expected parent step before child step, got %+v", resolved.Steps)
	}
	if resolved.Info.ID != "child" {
		t.Errorf("expected resolved scenario to keep the child's own info, got %+v", resolved.Info)
	}
}

func TestLoadDetectsParentCycle(t *testing.T) {
	st := &Store{Dir: t.TempDir()}

	a := New("a", "b", 10)
	if err := st.Save(a); err != nil {
		t.Fatalf("Save(a): %v", err)
	}
	b := New("b", "a", 10)
	if err := st.Save(b); err != nil {
		t.Fatalf("Save(b): %v", err)
	}

	if _, err := st.Load("a"); err == nil {
		t.Fatal("expected an error loading a scenario with a cyclic parent chain")
	}
}

func TestList(t *testing.T) {
	st := &Store{Dir: t.TempDir()}
	for _, id := range []string{"charlie", "alice", "bob"} {
		if err := st.Save(New(id, "", 10)); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	list, err := st.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 scenarios, got %d", len(list))
	}
	for i, want := range []string{"alice", "bob", "charlie"} {
		if list[i].ID != want {
			t.Errorf("expected sorted order, index %d: got %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestExistsFalseForUnsavedScenario(t *testing.T) {
	st := &Store{Dir: t.TempDir()}
	if st.Exists("nope") {
		t.Error("expected Exists to report false before any scenario is saved")
	}
	if _, err := st.Load("nope"); err == nil {
		t.Error("expected Load to error for an unsaved scenario")
	}
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	st := &Store{Dir: dir}
	if err := st.Save(New("x", "", 10)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "x.json")); err != nil {
		t.Fatalf("expected final scenario file to exist: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".tmp.x.json")); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be gone after Save, stat returned: %v", err)
	}
}
