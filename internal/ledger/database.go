package ledger

import (
	"sync"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/hashmatrix"
	"github.com/minagoat/ccore/internal/merkle"
	"github.com/minagoat/ccore/pkg/minaerr"
	"github.com/minagoat/ccore/pkg/types"
)

// nodeHasher is the internal capability every ledger layer (Database,
// Mask) provides so a child Mask can ask its parent for a node's hash
// without forcing that computation through the public Ledger interface.
type nodeHasher interface {
	Ledger
	nodeHash(addr merkle.Address) types.Hash
}

// Database is the root ledger layer: a flat, contiguously indexed
// account vector plus an AccountID -> AccountIndex map, grounded on the
// teacher's internal/zkp/merkle.go InMemoryTreeStore map-backed store
// (spec.md §4.E).
type Database struct {
	mu        sync.RWMutex
	depth     int
	accounts  []*account.Account
	locations map[types.AccountID]merkle.AccountIndex
	hashes    *hashmatrix.Matrix
}

// NewDatabase creates an empty ledger of the given fixed depth (leaf
// capacity 2^depth).
func NewDatabase(depth int) *Database {
	return &Database{
		depth:     depth,
		locations: make(map[types.AccountID]merkle.AccountIndex),
		hashes:    hashmatrix.New(depth),
	}
}

func (d *Database) Depth() int { return d.depth }

func (d *Database) NumAccounts() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.accounts)
}

func (d *Database) LocationOf(id types.AccountID) (Location, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.locations[id]
	if !ok {
		return Location{}, false
	}
	return merkle.FromAccountIndex(idx, d.depth), true
}

func (d *Database) Get(loc Location) *account.Account {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx := loc.ToAccountIndex()
	if uint64(idx) >= uint64(len(d.accounts)) {
		return account.New(types.AccountID{})
	}
	acc := d.accounts[idx]
	if acc == nil {
		return account.New(types.AccountID{})
	}
	return acc.Clone()
}

func (d *Database) Set(loc Location, acc *account.Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := loc.ToAccountIndex()
	d.ensureSizeLocked(int(idx) + 1)
	d.accounts[idx] = acc.Clone()
	if _, ok := d.locations[acc.ID]; !ok {
		d.locations[acc.ID] = idx
	}
	d.hashes.Invalidate(idx)
}

func (d *Database) GetOrCreate(id types.AccountID) (Status, *account.Account, Location, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if idx, ok := d.locations[id]; ok {
		loc := merkle.FromAccountIndex(idx, d.depth)
		return Existed, d.accounts[idx].Clone(), loc, nil
	}

	maxLeaves := uint64(1) << uint(d.depth)
	idx := merkle.AccountIndex(len(d.accounts))
	if uint64(idx) >= maxLeaves {
		return Existed, nil, Location{}, minaerr.ErrLedgerFull
	}

	acc := account.New(id)
	d.ensureSizeLocked(int(idx) + 1)
	d.accounts[idx] = acc
	d.locations[id] = idx
	d.hashes.Invalidate(idx)

	loc := merkle.FromAccountIndex(idx, d.depth)
	return Created, acc.Clone(), loc, nil
}

func (d *Database) ensureSizeLocked(n int) {
	for len(d.accounts) < n {
		d.accounts = append(d.accounts, nil)
	}
}

func (d *Database) RootHash() types.Hash {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nodeHashLocked(merkle.Root())
}

// nodeHash computes (and caches) the hash of the subtree rooted at addr,
// pruning subtrees that lie entirely beyond the currently allocated
// leaves by substituting the memoized empty-subtree hash for that height
// (spec.md §4.E; avoids a full 2^depth traversal the way
// original_source/ledger/src/database.rs's `merkle_root` does via its
// `num_accounts` bound).
func (d *Database) nodeHash(addr merkle.Address) types.Hash {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nodeHashLocked(addr)
}

func (d *Database) nodeHashLocked(addr merkle.Address) types.Hash {
	if h, ok := d.hashes.Get(addr); ok {
		return h
	}

	var h types.Hash
	if addr.Depth == d.depth {
		idx := addr.ToAccountIndex()
		if uint64(idx) < uint64(len(d.accounts)) && d.accounts[idx] != nil {
			h = d.accounts[idx].Hash()
		} else {
			h = account.EmptyHash()
		}
	} else if d.subtreeEmptyLocked(addr) {
		h = d.hashes.EmptyHashAtHeight(d.depth - addr.Depth)
	} else {
		left := d.nodeHashLocked(addr.Left())
		right := d.nodeHashLocked(addr.Right())
		h = hashmatrix.HashInnerNode(left, right)
	}

	d.hashes.Set(addr, h)
	return h
}

// subtreeEmptyLocked reports whether every leaf under addr lies beyond
// the currently allocated account range.
func (d *Database) subtreeEmptyLocked(addr merkle.Address) bool {
	levelsToLeaf := uint(d.depth - addr.Depth)
	firstLeaf := addr.Index << levelsToLeaf
	return firstLeaf >= uint64(len(d.accounts))
}

// CreateMasked returns a fresh Mask layered on top of this Database
// (spec.md §4.F).
func (d *Database) CreateMasked() *Mask {
	return newMask(d)
}

// ApplyMask merges a child Mask's overlaid writes and locations directly
// into this Database, discarding stale cached hashes for every touched
// leaf before pulling in the child's freshly computed ones (spec.md
// §4.F). The child must not be used after this call.
func (d *Database) ApplyMask(child *Mask) error {
	child.mu.RLock()
	overlay := make(map[merkle.AccountIndex]*account.Account, len(child.overlayAccounts))
	for idx, acc := range child.overlayAccounts {
		overlay[idx] = acc
	}
	newLocations := make(map[types.AccountID]merkle.AccountIndex, len(child.newLocations))
	for id, idx := range child.newLocations {
		newLocations[id] = idx
	}
	child.mu.RUnlock()

	d.mu.Lock()
	for idx, acc := range overlay {
		d.ensureSizeLocked(int(idx) + 1)
		d.accounts[idx] = acc
		d.hashes.Invalidate(idx)
	}
	for id, idx := range newLocations {
		d.locations[id] = idx
	}
	d.mu.Unlock()

	d.hashes.TransfertHashes(child.matrix)
	return nil
}
