// Package p2p provides block synchronization functionality.
package p2p

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/pkg/types"
)

// ErrNoSyncPeers is returned when no peer advertises a usable height.
var ErrNoSyncPeers = errors.New("no peers available for sync")

// BlockHandler is given every block that passes HandleBlock's parent
// check, in order. Block validation/application (the applier, consensus
// rules, VRF-scheduled production) is the caller's concern — p2p only
// delivers bytes in the order the chain implies (spec.md §1 non-goals:
// "VRF, scan-state SNARK-work coordination").
type BlockHandler func(ctx context.Context, block *txn.Block) error

// SyncManager drives catch-up against the best-known peer: a
// considerably smaller adaptation of the teacher's DAG-aware sync loop,
// since minanode's chain is a simple linear predecessor chain rather
// than a multi-parent DAG (txn.BlockHeader carries one ParentHash, not
// a parent set).
type SyncManager struct {
	mu sync.RWMutex

	node    *Node
	handler BlockHandler

	localHeight func() uint64

	syncing      bool
	syncTarget   uint64
	syncProgress uint64
	lastSyncPeer peer.ID

	// pending holds blocks received before their parent, keyed by the
	// parent hash they are waiting on.
	pending map[types.Hash][]*txn.Block
	known   map[types.Hash]bool

	pendingRequests map[types.Hash]time.Time
	requestTimeout  time.Duration
	batchSize       int
}

// SyncConfig holds synchronization configuration.
type SyncConfig struct {
	BatchSize      int
	RequestTimeout time.Duration
}

// DefaultSyncConfig returns default sync configuration.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		BatchSize:      100,
		RequestTimeout: 30 * time.Second,
	}
}

// NewSyncManager creates a new sync manager. localHeight reports the
// caller's current chain height (e.g. the last applied block's Height).
func NewSyncManager(node *Node, localHeight func() uint64, handler BlockHandler, cfg *SyncConfig) *SyncManager {
	if cfg == nil {
		cfg = DefaultSyncConfig()
	}
	return &SyncManager{
		node:            node,
		handler:         handler,
		localHeight:     localHeight,
		pending:         make(map[types.Hash][]*txn.Block),
		known:           make(map[types.Hash]bool),
		pendingRequests: make(map[types.Hash]time.Time),
		requestTimeout:  cfg.RequestTimeout,
		batchSize:       cfg.BatchSize,
	}
}

// Start begins the sync process against the best-known peer.
func (sm *SyncManager) Start(ctx context.Context) error {
	bestPeer, bestHeight := sm.findBestPeer()
	if bestPeer == "" {
		return ErrNoSyncPeers
	}

	localHeight := sm.localHeight()
	if bestHeight <= localHeight {
		return nil
	}

	sm.mu.Lock()
	sm.syncing = true
	sm.syncTarget = bestHeight
	sm.syncProgress = localHeight
	sm.lastSyncPeer = bestPeer
	sm.mu.Unlock()

	go sm.syncLoop(ctx, localHeight, bestHeight)
	return nil
}

// syncLoop polls localHeight every 500ms and returns once it reaches
// target or ctx is done, clearing the syncing flag. The actual block
// transfer happens via gossip/HandleBlock, and syncProgress is advanced
// by deliver, not here.
func (sm *SyncManager) syncLoop(ctx context.Context, start, target uint64) {
	defer func() {
		sm.mu.Lock()
		sm.syncing = false
		sm.mu.Unlock()
	}()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sm.localHeight() >= target {
				return
			}
		}
	}
}

// findBestPeer finds the peer with the highest reported block height.
func (sm *SyncManager) findBestPeer() (peer.ID, uint64) {
	peers := sm.node.Peers()
	if len(peers) == 0 {
		return "", 0
	}

	var bestPeer peer.ID
	var bestHeight uint64
	for _, p := range peers {
		if p.Height > bestHeight {
			bestHeight = p.Height
			bestPeer = p.ID
		}
	}
	return bestPeer, bestHeight
}

// HandleBlock processes an incoming block: if its parent is already
// known it is handed to the caller's handler immediately and any
// blocks waiting on it are released in turn; otherwise it is parked in
// pending until its parent arrives.
func (sm *SyncManager) HandleBlock(ctx context.Context, block *txn.Block) error {
	sm.mu.Lock()
	parentKnown := sm.known[block.Header.ParentHash]
	sm.mu.Unlock()

	if !parentKnown {
		sm.addPending(block)
		return nil
	}

	if err := sm.deliver(ctx, block); err != nil {
		return err
	}
	sm.releasePending(ctx, block.Header.Hash)
	return nil
}

// MarkKnown records a hash (typically genesis, or a locally applied
// block) as a valid parent, unblocking anything pending on it.
func (sm *SyncManager) MarkKnown(ctx context.Context, hash types.Hash) {
	sm.mu.Lock()
	sm.known[hash] = true
	sm.mu.Unlock()
	sm.releasePending(ctx, hash)
}

func (sm *SyncManager) deliver(ctx context.Context, block *txn.Block) error {
	if sm.handler != nil {
		if err := sm.handler(ctx, block); err != nil {
			return err
		}
	}
	sm.mu.Lock()
	sm.known[block.Header.Hash] = true
	if block.Header.Height > sm.syncProgress {
		sm.syncProgress = block.Header.Height
	}
	sm.mu.Unlock()
	return nil
}

func (sm *SyncManager) addPending(block *txn.Block) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	parent := block.Header.ParentHash
	sm.pending[parent] = append(sm.pending[parent], block)
}

// releasePending delivers any blocks whose parent is hash, recursively
// releasing their own children in turn.
func (sm *SyncManager) releasePending(ctx context.Context, hash types.Hash) {
	sm.mu.Lock()
	waiting := sm.pending[hash]
	delete(sm.pending, hash)
	sm.mu.Unlock()

	for _, b := range waiting {
		if err := sm.deliver(ctx, b); err != nil {
			continue
		}
		sm.releasePending(ctx, b.Header.Hash)
	}
}

// IsSyncing returns whether sync is in progress.
func (sm *SyncManager) IsSyncing() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.syncing
}

// Progress returns sync progress.
func (sm *SyncManager) Progress() (current, target uint64) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.syncProgress, sm.syncTarget
}

// PendingCount returns the number of blocks parked awaiting a parent.
func (sm *SyncManager) PendingCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	n := 0
	for _, blocks := range sm.pending {
		n += len(blocks)
	}
	return n
}

// CleanupStale removes stale pending block-requests.
func (sm *SyncManager) CleanupStale() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := time.Now().Add(-sm.requestTimeout)
	for hash, requestTime := range sm.pendingRequests {
		if requestTime.Before(cutoff) {
			delete(sm.pendingRequests, hash)
		}
	}
}
