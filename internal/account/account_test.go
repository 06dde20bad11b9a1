package account

import (
	"testing"

	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

func testID() types.AccountID {
	var pk types.PublicKey
	pk[0] = 0xAB
	return types.NewAccountID(pk)
}

func TestDefaultAccountHashesToEmptyHash(t *testing.T) {
	a := New(testID())
	if !a.IsDefault() {
		t.Fatalf("freshly created account should be default")
	}
	if a.Hash() != EmptyHash() {
		t.Errorf("default account must hash to the canonical empty hash")
	}
}

func TestMutatedAccountHashDiffers(t *testing.T) {
	a := New(testID())
	before := a.Hash()
	a.Balance = 100
	after := a.Hash()
	if before == after {
		t.Errorf("mutated account should hash differently")
	}
}

func TestAuthRequiredStrictness(t *testing.T) {
	if !Impossible.Stricter(Signature) {
		t.Errorf("Impossible should be stricter than Signature")
	}
	if None.Stricter(Either) {
		t.Errorf("None should not be stricter than Either")
	}
}

func TestAuthRequiredSatisfied(t *testing.T) {
	cases := []struct {
		auth AuthRequired
		kind ControlKind
		want bool
	}{
		{None, ControlNone, true},
		{Signature, ControlNone, false},
		{Signature, ControlSignature, true},
		{Proof, ControlSignature, false},
		{Proof, ControlProof, true},
		{Either, ControlSignature, true},
		{Either, ControlProof, true},
		{Either, ControlNone, false},
		{Impossible, ControlProof, false},
	}
	for _, c := range cases {
		got := c.auth.Satisfied(c.kind)
		if got != c.want {
			t.Errorf("%v.Satisfied(%v) = %v, want %v", c.auth, c.kind, got, c.want)
		}
	}
}

func TestTimingBeforeCliff(t *testing.T) {
	timing := Timing{Vesting: &VestingSchedule{
		InitialMinimumBalance: 1000,
		CliffTime:             100,
		CliffAmount:           200,
		VestingPeriod:         10,
		VestingIncrement:      50,
	}}
	if got := timing.MinBalanceAt(50); got != 1000 {
		t.Errorf("before cliff, min balance should equal initial minimum; got %d", got)
	}
}

func TestTimingAfterCliffVests(t *testing.T) {
	timing := Timing{Vesting: &VestingSchedule{
		InitialMinimumBalance: 1000,
		CliffTime:             100,
		CliffAmount:           200,
		VestingPeriod:         10,
		VestingIncrement:      50,
	}}
	// At slot 100: elapsed=0, periods=0, vested=0, minus cliff_amount=200 -> 800
	if got := timing.MinBalanceAt(100); got != 800 {
		t.Errorf("at cliff, got %d want 800", got)
	}
	// At slot 130: elapsed=30, periods=3, vested=150, minus cliff 200 -> 1000-150-200=650
	if got := timing.MinBalanceAt(130); got != 650 {
		t.Errorf("at slot 130, got %d want 650", got)
	}
}

func TestTimingSaturatesAtZero(t *testing.T) {
	timing := Timing{Vesting: &VestingSchedule{
		InitialMinimumBalance: 100,
		CliffTime:             0,
		CliffAmount:           50,
		VestingPeriod:         1,
		VestingIncrement:      10,
	}}
	got := timing.MinBalanceAt(currency.Slot(1000))
	if got != 0 {
		t.Errorf("expected saturation at zero, got %d", got)
	}
}

func TestCloneDeepCopiesDelegate(t *testing.T) {
	a := New(testID())
	var delegate types.PublicKey
	delegate[0] = 1
	a.Delegate = &delegate

	clone := a.Clone()
	clone.Delegate[0] = 2

	if a.Delegate[0] != 1 {
		t.Errorf("mutating clone's delegate should not affect original")
	}
}
