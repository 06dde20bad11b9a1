// Package hashmatrix implements the sparse per-node hash cache described in
// spec.md §3.1/§4.C: a partial linear-index -> hash map plus a lazily
// populated per-height empty-subtree hash vector.
package hashmatrix

import (
	"sync"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/merkle"
	"github.com/minagoat/ccore/pkg/types"
)

// innerNodeDomain tags inner-node hashing, distinct from account content
// hashing (domain separation).
const innerNodeDomain = "ccore/merkle-inner"

// Matrix is a sparse cache of node hashes indexed by linear index, plus a
// cache of per-height "empty subtree" hashes. One Matrix belongs to exactly
// one ledger layer (Database or Mask) — it is not safe to share across
// layers (spec.md §5).
type Matrix struct {
	mu          sync.RWMutex
	nodes       map[uint64]types.Hash
	emptyHashes []*types.Hash // lazily populated, length depth+1
	depth       int
}

// New creates a hash matrix for a tree of the given depth.
func New(depth int) *Matrix {
	return &Matrix{
		nodes:       make(map[uint64]types.Hash),
		emptyHashes: make([]*types.Hash, depth+1),
		depth:       depth,
	}
}

// Get returns the cached hash at an address, if present.
func (m *Matrix) Get(addr merkle.Address) (types.Hash, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.nodes[addr.ToLinearIndex()]
	return h, ok
}

// Set stores the hash at an address.
func (m *Matrix) Set(addr merkle.Address, hash types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[addr.ToLinearIndex()] = hash
}

// Invalidate removes the hash at the given leaf and every ancestor linear
// index up to and including the root; absent entries are tolerated
// (spec.md §3.1, original_source/ledger/src/tree.rs
// HashesMatrix::invalidate_hashes).
func (m *Matrix) Invalidate(accountIndex merkle.AccountIndex) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr := merkle.FromAccountIndex(accountIndex, m.depth)
	for {
		delete(m.nodes, addr.ToLinearIndex())
		parent, ok := addr.Parent()
		if !ok {
			break
		}
		addr = parent
	}
}

// TransfertHashes merges another matrix's entries on top of this one,
// counting and inserting only entries not already present; it never
// overwrites (spec.md §4.C, original_source/ledger/src/tree.rs
// HashesMatrix::transfert_hashes). The other matrix is left unmodified.
func (m *Matrix) TransfertHashes(other *Matrix) int {
	other.mu.RLock()
	snapshot := make(map[uint64]types.Hash, len(other.nodes))
	for k, v := range other.nodes {
		snapshot[k] = v
	}
	other.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for k, v := range snapshot {
		if _, exists := m.nodes[k]; !exists {
			m.nodes[k] = v
			inserted++
		}
	}
	return inserted
}

// EmptyHashAtHeight returns the hash of an empty subtree rooted at the
// given height above the leaves (0 = leaf height), lazily computed and
// cached. Height 0 is the hash of the canonical empty account.
func (m *Matrix) EmptyHashAtHeight(height int) types.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emptyHashAtHeightLocked(height)
}

func (m *Matrix) emptyHashAtHeightLocked(height int) types.Hash {
	if height < len(m.emptyHashes) && m.emptyHashes[height] != nil {
		return *m.emptyHashes[height]
	}

	var hash types.Hash
	if height == 0 {
		hash = EmptyAccountHash()
	} else {
		child := m.emptyHashAtHeightLocked(height - 1)
		hash = types.HashPair(innerNodeDomain, child, child)
	}

	if height < len(m.emptyHashes) {
		h := hash
		m.emptyHashes[height] = &h
	}
	return hash
}

// EmptyAccountHash is the hash of the canonical default account, reused by
// every empty leaf in the tree.
func EmptyAccountHash() types.Hash {
	return account.EmptyHash()
}

// HashInnerNode combines two child hashes into their parent's hash.
func HashInnerNode(left, right types.Hash) types.Hash {
	return types.HashPair(innerNodeDomain, left, right)
}

// Len reports the number of cached entries (for tests/diagnostics).
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
