// Package storage implements an optional PostgreSQL checkpoint store for
// ledger snapshots (spec.md §1 "persistence is an external collaborator",
// SPEC_FULL.md's storage/ domain-stack section): an adapted form of the
// teacher's block/transaction persistence layer, re-keyed around
// ledger.Database account vectors and root hashes instead of blocks.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/minagoat/ccore/internal/account"
	"github.com/minagoat/ccore/internal/ledger"
	"github.com/minagoat/ccore/internal/merkle"
	"github.com/minagoat/ccore/pkg/types"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDBConnection = errors.New("database connection error")
)

// PostgresStore implements ledger-snapshot persistence using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "minanode",
		Password: "",
		Database: "minanode",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// NewPostgresStore creates a new PostgreSQL store.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// ============================================
// Ledger snapshot operations
// ============================================

// SaveSnapshot persists every allocated account in db under db.RootHash(),
// so a later SNARK-worker/node restart can LoadSnapshot instead of
// replaying every transaction since genesis.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, db *ledger.Database) error {
	root := db.RootHash()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO snapshots (root_hash, depth, num_accounts)
		VALUES ($1, $2, $3)
		ON CONFLICT (root_hash) DO NOTHING
	`, root[:], db.Depth(), db.NumAccounts())
	if err != nil {
		return fmt.Errorf("saving snapshot header: %w", err)
	}

	// Every allocated index is persisted, including untouched default
	// accounts: a gap would leave LoadSnapshot unable to tell "never
	// allocated" apart from "default but counted", which would silently
	// undersize the rebuilt ledger and change its root hash.
	n := db.NumAccounts()
	for idx := 0; idx < n; idx++ {
		loc := merkle.FromAccountIndex(merkle.AccountIndex(idx), db.Depth())
		acc := db.Get(loc)
		if _, err := tx.Exec(ctx, `
			INSERT INTO snapshot_accounts (root_hash, account_index, public_key, token_id, data)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (root_hash, account_index) DO UPDATE SET data = $5
		`, root[:], idx, acc.ID.PublicKey[:], uint64(acc.ID.TokenID), acc.Marshal()); err != nil {
			return fmt.Errorf("saving account %d: %w", idx, err)
		}
	}

	return tx.Commit(ctx)
}

// LoadSnapshot rebuilds a ledger.Database from a previously saved root
// hash. The returned database has the same depth and account layout as
// when it was saved; its RootHash() is verified to match rootHash before
// returning.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, rootHash types.Hash) (*ledger.Database, error) {
	var depth, numAccounts int
	err := s.pool.QueryRow(ctx, `
		SELECT depth, num_accounts FROM snapshots WHERE root_hash = $1
	`, rootHash[:]).Scan(&depth, &numAccounts)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot header: %w", err)
	}

	db := ledger.NewDatabase(depth)

	rows, err := s.pool.Query(ctx, `
		SELECT account_index, data FROM snapshot_accounts WHERE root_hash = $1 ORDER BY account_index ASC
	`, rootHash[:])
	if err != nil {
		return nil, fmt.Errorf("loading snapshot accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idx int
		var data []byte
		if err := rows.Scan(&idx, &data); err != nil {
			return nil, err
		}
		acc, err := account.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("decoding account %d: %w", idx, err)
		}
		loc := merkle.FromAccountIndex(merkle.AccountIndex(idx), depth)
		db.Set(loc, acc)
	}

	if db.NumAccounts() != numAccounts {
		return nil, fmt.Errorf("loaded snapshot has %d accounts, expected %d", db.NumAccounts(), numAccounts)
	}
	got := db.RootHash()
	if got != rootHash {
		return nil, fmt.Errorf("loaded snapshot root hash %x does not match requested %x", got, rootHash)
	}
	return db, nil
}

// LatestSnapshotRoot returns the root hash of the most recently saved
// snapshot, or ErrNotFound if none exists.
func (s *PostgresStore) LatestSnapshotRoot(ctx context.Context) (types.Hash, error) {
	var hashBytes []byte
	err := s.pool.QueryRow(ctx, `
		SELECT root_hash FROM snapshots ORDER BY created_at DESC LIMIT 1
	`).Scan(&hashBytes)
	if err == pgx.ErrNoRows {
		return types.Hash{}, ErrNotFound
	}
	if err != nil {
		return types.Hash{}, fmt.Errorf("loading latest snapshot root: %w", err)
	}
	var hash types.Hash
	copy(hash[:], hashBytes)
	return hash, nil
}
