package account

import "github.com/minagoat/ccore/internal/currency"

// Timing is either Untimed or a vesting schedule. The zero value is
// Untimed.
type Timing struct {
	Vesting *VestingSchedule
}

// VestingSchedule describes a slot-indexed minimum-balance schedule
// (spec.md §3.2/§4.D).
type VestingSchedule struct {
	InitialMinimumBalance currency.Balance
	CliffTime             currency.Slot
	CliffAmount           currency.Balance
	VestingPeriod         currency.Slot
	VestingIncrement      currency.Balance
}

// Untimed is the default (no vesting schedule) timing.
func Untimed() Timing { return Timing{} }

// IsUntimed reports whether this account has no vesting schedule.
func (t Timing) IsUntimed() bool { return t.Vesting == nil }

// MinBalanceAt computes the minimum balance required at the given slot,
// saturating at zero. Formula (spec.md §4.D):
//
//	min_balance_at(slot) = initial_minimum_balance
//	                       - clamp((slot-cliff_time)/vesting_period, 0, inf) * vesting_increment
//	                       - (if slot >= cliff_time then cliff_amount else 0)
func (t Timing) MinBalanceAt(slot currency.Slot) currency.Balance {
	if t.IsUntimed() {
		return 0
	}
	v := t.Vesting

	if slot < v.CliffTime {
		return v.InitialMinimumBalance
	}

	elapsed := uint32(slot - v.CliffTime)
	periods := uint64(elapsed)
	if v.VestingPeriod > 0 {
		periods = uint64(elapsed) / uint64(v.VestingPeriod)
	}
	vested := periods * uint64(v.VestingIncrement)

	total := uint64(v.InitialMinimumBalance)
	total = saturatingSub(total, vested)
	total = saturatingSub(total, uint64(v.CliffAmount))

	return currency.Balance(total)
}

func saturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}
