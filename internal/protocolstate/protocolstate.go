// Package protocolstate holds the read-only protocol-state view the
// applier checks zkApp network preconditions against (spec.md §4.I.1),
// grounded on original_source/ledger/src/scan_state/transaction_logic/
// protocol_state.rs's ProtocolStateView/EpochData.
package protocolstate

import (
	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// EpochLedger is the snapshot of a staking epoch's ledger.
type EpochLedger struct {
	Hash          types.Hash
	TotalCurrency currency.Amount
}

// EpochData describes one staking epoch (current or next).
type EpochData struct {
	Ledger          EpochLedger
	Seed            types.Hash
	StartCheckpoint types.Hash
	LockCheckpoint  types.Hash
	EpochLength     currency.Length
}

// View bundles the fields of the protocol state a transaction's network
// preconditions may be checked against (spec.md §4.I.1). It is read-only
// for the applier.
type View struct {
	SnarkedLedgerHash      types.Hash
	BlockchainLength       currency.Length
	MinWindowDensity       currency.Length
	TotalCurrency          currency.Amount
	GlobalSlotSinceGenesis currency.Slot
	StakingEpochData       EpochData
	NextEpochData          EpochData
}
