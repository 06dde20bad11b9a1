// Package constants pins the protocol parameters the applier and ledger
// take as explicit arguments rather than process-wide state (spec.md §6.3,
// §9 "Global constants vs. injected constants" design note).
package constants

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/minagoat/ccore/internal/currency"
)

// Fork pins a hard-fork's genesis point when this chain continues the
// history of another (spec.md §6.3, optional).
type Fork struct {
	StateHash              string `yaml:"state_hash"`
	BlockchainLength       uint32 `yaml:"blockchain_length"`
	GlobalSlotSinceGenesis uint32 `yaml:"global_slot_since_genesis"`
}

// ConstraintConstants bundles every protocol parameter the applier and
// ledger need explicitly passed in (spec.md §6.3). There is no
// package-level default instance used implicitly anywhere in this repo;
// every caller threads a *ConstraintConstants through.
type ConstraintConstants struct {
	LedgerDepth               int             `yaml:"ledger_depth"`
	SubWindowsPerWindow       int             `yaml:"sub_windows_per_window"`
	WorkDelay                 int             `yaml:"work_delay"`
	BlockWindowDurationMs     int             `yaml:"block_window_duration_ms"`
	TransactionCapacityLog2   int             `yaml:"transaction_capacity_log_2"`
	PendingCoinbaseDepth      int             `yaml:"pending_coinbase_depth"`
	CoinbaseAmount            currency.Amount `yaml:"coinbase_amount"`
	SupercharedCoinbaseFactor int             `yaml:"supercharged_coinbase_factor"`
	AccountCreationFee        currency.Fee    `yaml:"account_creation_fee"`
	Fork                      *Fork           `yaml:"fork,omitempty"`
}

// Default returns the scenario constants pinned in spec.md §8.4, used as
// the baseline for tests and for the node when no config file is given.
func Default() *ConstraintConstants {
	return &ConstraintConstants{
		LedgerDepth:               15,
		SubWindowsPerWindow:       11,
		WorkDelay:                 2,
		BlockWindowDurationMs:     180_000,
		TransactionCapacityLog2:   7,
		PendingCoinbaseDepth:      5,
		CoinbaseAmount:            720_000_000_000,
		SupercharedCoinbaseFactor: 2,
		AccountCreationFee:        1_000_000_000,
	}
}

// Load reads a YAML constraint-constants file, layering its fields over
// Default() so a config only needs to override what it changes.
func Load(path string) (*ConstraintConstants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("constants: reading %s: %w", path, err)
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("constants: parsing %s: %w", path, err)
	}
	return c, nil
}
