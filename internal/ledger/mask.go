package ledger

import (
	"sync"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/hashmatrix"
	"github.com/minagoat/ccore/internal/merkle"
	"github.com/minagoat/ccore/pkg/minaerr"
	"github.com/minagoat/ccore/pkg/types"
)

// Mask is a copy-on-write overlay on top of a parent ledger layer
// (spec.md §4.F). Reads fall through to the parent for anything not
// written in this layer; writes (and the accounts created by
// GetOrCreate) are kept local until ApplyMask folds them into the
// parent.
type Mask struct {
	mu              sync.RWMutex
	parent          nodeHasher
	depth           int
	overlayAccounts map[merkle.AccountIndex]*account.Account
	newLocations    map[types.AccountID]merkle.AccountIndex
	matrix          *hashmatrix.Matrix
}

func newMask(parent nodeHasher) *Mask {
	return &Mask{
		parent:          parent,
		depth:           parent.Depth(),
		overlayAccounts: make(map[merkle.AccountIndex]*account.Account),
		newLocations:    make(map[types.AccountID]merkle.AccountIndex),
		matrix:          hashmatrix.New(parent.Depth()),
	}
}

func (m *Mask) Depth() int { return m.depth }

func (m *Mask) NumAccounts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.parent.NumAccounts() + len(m.newLocations)
}

func (m *Mask) LocationOf(id types.AccountID) (Location, bool) {
	m.mu.RLock()
	if idx, ok := m.newLocations[id]; ok {
		m.mu.RUnlock()
		return merkle.FromAccountIndex(idx, m.depth), true
	}
	m.mu.RUnlock()
	return m.parent.LocationOf(id)
}

func (m *Mask) Get(loc Location) *account.Account {
	idx := loc.ToAccountIndex()
	m.mu.RLock()
	if acc, ok := m.overlayAccounts[idx]; ok {
		m.mu.RUnlock()
		return acc.Clone()
	}
	m.mu.RUnlock()
	return m.parent.Get(loc)
}

func (m *Mask) Set(loc Location, acc *account.Account) {
	idx := loc.ToAccountIndex()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlayAccounts[idx] = acc.Clone()
	m.matrix.Invalidate(idx)
}

func (m *Mask) GetOrCreate(id types.AccountID) (Status, *account.Account, Location, error) {
	if loc, ok := m.LocationOf(id); ok {
		return Existed, m.Get(loc), loc, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check under the write lock: another caller may have created it
	// since the LocationOf probe above released the read lock.
	if idx, ok := m.newLocations[id]; ok {
		loc := merkle.FromAccountIndex(idx, m.depth)
		return Existed, m.overlayAccounts[idx].Clone(), loc, nil
	}

	maxLeaves := uint64(1) << uint(m.depth)
	idx := merkle.AccountIndex(m.parent.NumAccounts() + len(m.newLocations))
	if uint64(idx) >= maxLeaves {
		return Existed, nil, Location{}, minaerr.ErrLedgerFull
	}

	acc := account.New(id)
	m.newLocations[id] = idx
	m.overlayAccounts[idx] = acc
	m.matrix.Invalidate(idx)

	loc := merkle.FromAccountIndex(idx, m.depth)
	return Created, acc.Clone(), loc, nil
}

func (m *Mask) RootHash() types.Hash {
	return m.nodeHash(merkle.Root())
}

func (m *Mask) nodeHash(addr merkle.Address) types.Hash {
	if h, ok := m.matrix.Get(addr); ok {
		return h
	}

	var h types.Hash
	if addr.Depth == m.depth {
		idx := addr.ToAccountIndex()
		m.mu.RLock()
		acc, dirty := m.overlayAccounts[idx]
		m.mu.RUnlock()
		if dirty {
			h = acc.Hash()
		} else {
			h = m.parent.nodeHash(addr)
		}
	} else if m.subtreeOverlaid(addr) {
		left := m.nodeHash(addr.Left())
		right := m.nodeHash(addr.Right())
		h = hashmatrix.HashInnerNode(left, right)
	} else {
		h = m.parent.nodeHash(addr)
	}

	m.matrix.Set(addr, h)
	return h
}

// subtreeOverlaid reports whether any dirty leaf falls within addr's
// leaf range, meaning the subtree cannot simply be delegated to the
// parent wholesale.
func (m *Mask) subtreeOverlaid(addr merkle.Address) bool {
	levels := uint(m.depth - addr.Depth)
	first := addr.Index << levels
	last := first + (uint64(1)<<levels - 1)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for idx := range m.overlayAccounts {
		if uint64(idx) >= first && uint64(idx) <= last {
			return true
		}
	}
	return false
}

// CreateMasked layers a new child Mask on top of this one.
func (m *Mask) CreateMasked() *Mask {
	return newMask(m)
}

// ApplyMask merges a child Mask's overlay into this one, the same way
// Database.ApplyMask does for a top-level merge (spec.md §4.F).
func (m *Mask) ApplyMask(child *Mask) error {
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

	m.mu.Lock()
	for idx, acc := range overlay {
		m.overlayAccounts[idx] = acc
		m.matrix.Invalidate(idx)
	}
	for id, idx := range newLocations {
		m.newLocations[id] = idx
	}
	m.mu.Unlock()

	m.matrix.TransfertHashes(child.matrix)
	return nil
}

// UnsetTokenOwners clears the delegate field on every overlaid account
// whose token id matches one of the given ids — used when a custom
// token's owner account is removed from the fee payer's perspective
// (spec.md §4.F unset_token_owners). Only accounts already dirty in this
// mask are affected; it does not pull clean accounts up from the parent.
func (m *Mask) UnsetTokenOwners(tokenIDs map[types.TokenID]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx, acc := range m.overlayAccounts {
		if _, match := tokenIDs[acc.ID.TokenID]; match {
			acc.Delegate = nil
			m.matrix.Invalidate(idx)
		}
	}
}
