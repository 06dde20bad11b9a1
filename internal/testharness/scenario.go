// Package testharness implements a scenario runner for the applier and
// ledger: deterministic, file-backed test sequences in the style of
// original_source/node/testing/src/scenario/mod.rs's Scenario/ScenarioInfo
// (there: libp2p node topologies and network events; here: a single
// ledger's account seeding and transaction application).
//
// A scenario is a JSON file holding metadata (ScenarioInfo) plus an
// ordered list of Steps. Scenarios may declare a ParentID: Store.Load
// resolves the parent chain and prepends its steps, so a family of
// scenarios can share setup without repeating it (mod.rs's scenario
// inheritance, generalized from network topology to ledger state).
package testharness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minagoat/ccore/internal/currency"
	"github.com/minagoat/ccore/pkg/types"
)

// StepKind identifies the action a Step performs against the ledger under
// test.
type StepKind string

const (
	// StepSeedAccount allocates (or overwrites) an account at a known
	// balance and nonce before any transaction is applied.
	StepSeedAccount StepKind = "seed_account"
	// StepApplyTransaction runs the two-pass applier over a single
	// wire-encoded transaction (internal/txn.Marshal format).
	StepApplyTransaction StepKind = "apply_transaction"
	// StepExpectStatus asserts the most recently applied transaction's
	// disposition (internal/applier.Status.String()).
	StepExpectStatus StepKind = "expect_status"
	// StepExpectBalance asserts an account's balance.
	StepExpectBalance StepKind = "expect_balance"
	// StepExpectRootHash asserts the ledger's current Merkle root.
	StepExpectRootHash StepKind = "expect_root_hash"
)

// Step is one entry in a Scenario's ordered step list. Only the fields
// relevant to Kind are populated; the rest are left at their zero value.
// Zero-valued omitempty fields are left out of the JSON encoding; account
// and expected_hash are always written.
type Step struct {
	Kind StepKind `json:"kind"`

	Account types.AccountID `json:"account"`
	Balance currency.Amount `json:"balance,omitempty"`
	Nonce   currency.Nonce  `json:"nonce,omitempty"`

	TransactionHex string `json:"transaction_hex,omitempty"`

	ExpectedStatus string     `json:"expected_status,omitempty"`
	ExpectedHash   types.Hash `json:"expected_hash,omitempty"`
}

// ScenarioInfo is a scenario's metadata: identity, description and the
// ledger configuration new accounts are seeded into (mod.rs's
// ScenarioInfo.nodes, generalized from a list of network node configs to
// the one ledger depth a single-ledger scenario needs).
type ScenarioInfo struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id,omitempty"`
	LedgerDepth int    `json:"ledger_depth"`
}

// Scenario is a complete, loadable/saveable test sequence.
type Scenario struct {
	Info  ScenarioInfo `json:"info"`
	Steps []Step       `json:"steps"`
}

// New returns an empty scenario with the given id, optionally descending
// from parentID (empty string for none).
func New(id, parentID string, ledgerDepth int) *Scenario {
	return &Scenario{
		Info: ScenarioInfo{ID: id, ParentID: parentID, LedgerDepth: ledgerDepth},
	}
}

// AddStep appends a step to the scenario.
func (s *Scenario) AddStep(step Step) {
	s.Steps = append(s.Steps, step)
}

// Store is a directory of scenario JSON files, mirroring mod.rs's
// res/scenarios layout: `{Dir}/{id}.json`, written atomically via a
// `.tmp.{id}.json` temp file plus rename.
type Store struct {
	Dir string
}

func (st *Store) finalPath(id string) string {
	return filepath.Join(st.Dir, id+".json")
}

func (st *Store) tmpPath(id string) string {
	return filepath.Join(st.Dir, ".tmp."+id+".json")
}

// Exists reports whether a scenario with the given id has been saved.
func (st *Store) Exists(id string) bool {
	_, err := os.Stat(st.finalPath(id))
	return err == nil
}

// Save writes the scenario to disk, pretty-printed, via a temp file and
// atomic rename so a reader never observes a partially written file
// (mod.rs's Scenario::save).
func (st *Store) Save(s *Scenario) error {
	if err := os.MkdirAll(st.Dir, 0o755); err != nil {
		return fmt.Errorf("testharness: creating scenario directory %s: %w", st.Dir, err)
	}
	encoded, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("testharness: encoding scenario %s: %w", s.Info.ID, err)
	}
	tmp := st.tmpPath(s.Info.ID)
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("testharness: writing temporary scenario file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, st.finalPath(s.Info.ID)); err != nil {
		return fmt.Errorf("testharness: renaming scenario file %s: %w", tmp, err)
	}
	return nil
}

// loadOne reads a single scenario file without resolving its parent.
func (st *Store) loadOne(id string) (*Scenario, error) {
	path := st.finalPath(id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testharness: reading scenario file %s: %w", path, err)
	}
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testharness: parsing scenario file %s: %w", path, err)
	}
	return &s, nil
}

// Load reads a scenario by id and resolves its parent chain: an ancestor's
// steps are prepended, oldest first, ahead of the scenario's own steps
// (mod.rs's parent_id inheritance). A cycle in the parent chain is
// reported as an error rather than looping forever.
func (st *Store) Load(id string) (*Scenario, error) {
	var chain []*Scenario
	seen := map[string]bool{}
	cur := id
	for cur != "" {
		if seen[cur] {
			return nil, fmt.Errorf("testharness: scenario %s has a cyclic parent chain", id)
		}
		seen[cur] = true
		s, err := st.loadOne(cur)
		if err != nil {
			return nil, err
		}
		chain = append(chain, s)
		cur = s.Info.ParentID
	}

	resolved := &Scenario{Info: chain[0].Info}
	for i := len(chain) - 1; i >= 0; i-- {
		resolved.Steps = append(resolved.Steps, chain[i].Steps...)
	}
	return resolved, nil
}

// List returns the metadata of every scenario in the store, sorted by id.
func (st *Store) List() ([]ScenarioInfo, error) {
	entries, err := os.ReadDir(st.Dir)
	if err != nil {
		return nil, fmt.Errorf("testharness: reading scenario directory %s: %w", st.Dir, err)
	}
	var list []ScenarioInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".tmp.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		s, err := st.loadOne(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		list = append(list, s.Info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}
