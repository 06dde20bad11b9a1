// Package ledger implements the account ledger (spec.md §3.3/§4): a
// flat-array Database at the root, zero or more copy-on-write Mask layers
// stacked on top of it, and a proof-sized SparseLedger projection used by
// transaction snark witnesses.
package ledger

import (
	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/merkle"
	"github.com/minagoat/ccore/pkg/types"
)

// Location addresses a single leaf (account slot) in a ledger of some
// fixed depth.
type Location = merkle.Address

// Status reports whether GetOrCreate found an existing account or
// allocated a fresh default one.
type Status int

const (
	Existed Status = iota
	Created
)

func (s Status) String() string {
	if s == Created {
		return "Created"
	}
	return "Existed"
}

// Ledger is the shared read/write account-ledger interface (spec.md §3.3).
// Database and Mask implement it, and both also support layering
// (Maskable). SparseLedger does not implement it: it offers only id-keyed
// Get/Set plus PathOf and RootHash.
type Ledger interface {
	// LocationOf returns the leaf location of an existing account, or
	// (_, false) if no such account has ever been created.
	LocationOf(id types.AccountID) (Location, bool)

	// Get returns the account stored at loc, or the canonical default
	// account if loc has never been written.
	Get(loc Location) *account.Account

	// Set overwrites the account at loc. loc must have been obtained
	// from LocationOf or GetOrCreate.
	Set(loc Location, acc *account.Account)

	// GetOrCreate returns the existing account for id, or allocates and
	// stores a fresh default account for it. Returns ErrLedgerFull if
	// the ledger's leaf capacity (2^Depth) is exhausted.
	GetOrCreate(id types.AccountID) (Status, *account.Account, Location, error)

	// RootHash returns the Merkle root of the whole tree, recomputing
	// and caching only the nodes invalidated since the last call.
	RootHash() types.Hash

	// Depth is the fixed tree depth (number of levels from root to leaf).
	Depth() int

	// NumAccounts is the count of leaves ever allocated (via
	// GetOrCreate), visible at this layer.
	NumAccounts() int
}

// Maskable is implemented by ledger layers that can be overlaid with a
// child Mask and can absorb one back into themselves (spec.md §4.F).
type Maskable interface {
	Ledger
	CreateMasked() *Mask
	ApplyMask(child *Mask) error
}
