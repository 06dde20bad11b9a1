package p2p

import (
	"context"
	"testing"

	"github.com/minagoat/ccore/internal/txn"
	"github.com/minagoat/ccore/pkg/types"
)

func blockWithParent(hash, parent types.Hash, height uint64) *txn.Block {
	return &txn.Block{Header: txn.BlockHeader{Hash: hash, ParentHash: parent, Height: height}}
}

func TestHandleBlockDeliversWhenParentKnown(t *testing.T) {
	var delivered []types.Hash
	sm := NewSyncManager(nil, func() uint64 { return 0 }, func(_ context.Context, b *txn.Block) error {
		delivered = append(delivered, b.Header.Hash)
		return nil
	}, nil)

	genesis := types.HashBytes("test", []byte("genesis"))
	sm.MarkKnown(context.Background(), genesis)

	h1 := types.HashBytes("test", []byte("b1"))
	if err := sm.HandleBlock(context.Background(), blockWithParent(h1, genesis, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 1 || delivered[0] != h1 {
		t.Errorf("expected block to be delivered immediately, got %v", delivered)
	}
}

func TestHandleBlockParksOrphanUntilParentArrives(t *testing.T) {
	var delivered []types.Hash
	sm := NewSyncManager(nil, func() uint64 { return 0 }, func(_ context.Context, b *txn.Block) error {
		delivered = append(delivered, b.Header.Hash)
		return nil
	}, nil)

	genesis := types.HashBytes("test", []byte("genesis"))
	h1 := types.HashBytes("test", []byte("b1"))
	h2 := types.HashBytes("test", []byte("b2"))

	// b2 arrives before its parent b1: it should be parked, not delivered.
	if err := sm.HandleBlock(context.Background(), blockWithParent(h2, h1, 2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(delivered) != 0 {
		t.Fatalf("expected orphan block to be parked, got %v", delivered)
	}
	if sm.PendingCount() != 1 {
		t.Errorf("expected 1 pending block, got %d", sm.PendingCount())
	}

	sm.MarkKnown(context.Background(), genesis)
	if err := sm.HandleBlock(context.Background(), blockWithParent(h1, genesis, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(delivered) != 2 || delivered[0] != h1 || delivered[1] != h2 {
		t.Errorf("expected b1 then b2 delivered in order, got %v", delivered)
	}
	if sm.PendingCount() != 0 {
		t.Errorf("expected no pending blocks after release, got %d", sm.PendingCount())
	}
}

func TestProgressTracksDeliveredHeight(t *testing.T) {
	sm := NewSyncManager(nil, func() uint64 { return 0 }, func(_ context.Context, _ *txn.Block) error { return nil }, nil)
	genesis := types.HashBytes("test", []byte("genesis"))
	sm.MarkKnown(context.Background(), genesis)

	h1 := types.HashBytes("test", []byte("b1"))
	if err := sm.HandleBlock(context.Background(), blockWithParent(h1, genesis, 5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	current, _ := sm.Progress()
	if current != 5 {
		t.Errorf("expected progress to advance to 5, got %d", current)
	}
}
