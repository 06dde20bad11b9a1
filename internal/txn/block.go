package txn

import "github.com/minagoat/ccore/pkg/types"

// BlockHeader carries the minimum metadata the applier's
// protocolstate.View needs to be constructed from an incoming block.
// Block production, VRF scheduling and SNARK-work coordination are
// external collaborators per spec.md §1 non-goals — this type only needs
// to carry enough for p2p delivery and the applier's consumption.
type BlockHeader struct {
	Hash                   types.Hash
	ParentHash             types.Hash
	Height                 uint64
	GlobalSlotSinceGenesis uint32
	SnarkedLedgerHash      types.Hash
	TotalCurrency          uint64
}

// Block is the opaque value a block producer hands to the applier: a
// header plus the ordered transactions it carries.
type Block struct {
	Header       BlockHeader
	Transactions []*Transaction
}
