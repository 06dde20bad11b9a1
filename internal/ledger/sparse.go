package ledger

import (
	"sort"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/hashmatrix"
	"github.com/minagoat/ccore/internal/merkle"
	"github.com/minagoat/ccore/pkg/types"
)

// MerklePath is the list of sibling hashes from a leaf up to (excluding)
// the root, leaf first.
type MerklePath []types.Hash

// SparseLedger is a proof-sized projection of a full ledger: it carries
// only the accounts a transaction witness actually touches, plus the
// Merkle sibling path needed to recompute the root from each of them
// (spec.md §4.G).
type SparseLedger struct {
	depth    int
	accounts map[merkle.AccountIndex]*account.Account
	paths    map[merkle.AccountIndex]MerklePath
	ids      map[types.AccountID]merkle.AccountIndex
}

// OfLedger builds a SparseLedger containing exactly the accounts named
// by ids, each with the sibling path needed to verify it against
// source's current root. ids not present in source are skipped.
func OfLedger(source Maskable, ids []types.AccountID) *SparseLedger {
	hashed, _ := source.(nodeHasher)

	s := &SparseLedger{
		depth:    source.Depth(),
		accounts: make(map[merkle.AccountIndex]*account.Account),
		paths:    make(map[merkle.AccountIndex]MerklePath),
		ids:      make(map[types.AccountID]merkle.AccountIndex),
	}

	for _, id := range ids {
		loc, ok := source.LocationOf(id)
		if !ok {
			continue
		}
		idx := loc.ToAccountIndex()
		s.accounts[idx] = source.Get(loc)
		s.ids[id] = idx

		var path MerklePath
		addr := loc
		for addr.Depth > 0 {
			sibling := addr.Sibling()
			var siblingHash types.Hash
			if hashed != nil {
				siblingHash = hashed.nodeHash(sibling)
			}
			path = append(path, siblingHash)
			parent, _ := addr.Parent()
			addr = parent
		}
		s.paths[idx] = path
	}

	return s
}

// Get returns the projected account for id, if it is part of this
// sparse ledger.
func (s *SparseLedger) Get(id types.AccountID) (*account.Account, bool) {
	idx, ok := s.ids[id]
	if !ok {
		return nil, false
	}
	return s.accounts[idx].Clone(), true
}

// Set overwrites the projected account for id, leaving its sibling path
// unchanged; RootHash reflects the mutation on the next call.
func (s *SparseLedger) Set(id types.AccountID, acc *account.Account) bool {
	idx, ok := s.ids[id]
	if !ok {
		return false
	}
	s.accounts[idx] = acc.Clone()
	return true
}

// PathOf returns the sibling path recorded for id.
func (s *SparseLedger) PathOf(id types.AccountID) (MerklePath, bool) {
	idx, ok := s.ids[id]
	if !ok {
		return nil, false
	}
	return s.paths[idx], true
}

// RootHash recomputes the Merkle root implied by this projection's
// current account values and recorded sibling paths. Every included
// account must reconstruct the same root; RootHash walks all of them,
// in deterministic ascending-index order, and panics if any pair
// disagrees, since that means OfLedger built an inconsistent witness
// rather than that the caller's transaction is invalid.
func (s *SparseLedger) RootHash() types.Hash {
	if len(s.accounts) == 0 {
		return hashmatrix.New(s.depth).EmptyHashAtHeight(s.depth)
	}

	indices := make([]merkle.AccountIndex, 0, len(s.accounts))
	for idx := range s.accounts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	var root types.Hash
	for i, idx := range indices {
		path := s.paths[idx]
		addr := merkle.FromAccountIndex(idx, s.depth)
		h := s.accounts[idx].Hash()
		for _, siblingHash := range path {
			if addr.IsRight() {
				h = hashmatrix.HashInnerNode(siblingHash, h)
			} else {
				h = hashmatrix.HashInnerNode(h, siblingHash)
			}
			parent, _ := addr.Parent()
			addr = parent
		}
		if i == 0 {
			root = h
		} else if h != root {
			panic("ledger: sparse ledger witness is inconsistent across accounts")
		}
	}
	return root
}
