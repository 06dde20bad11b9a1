package config

import (
	"os"
	"testing"
)

func TestDefaultHasSaneBaseline(t *testing.T) {
	c := Default()
	if c.LedgerDepth != 15 {
		t.Errorf("expected ledger_depth 15, got %d", c.LedgerDepth)
	}
	if c.RPCAddr == "" || c.ListenAddr == "" {
		t.Errorf("expected non-empty network addresses")
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *c != *Default() {
		t.Errorf("expected Default() for an empty path")
	}
}

func TestLoadOverridesOnlyDeclaredFields(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/minanode.yaml"
	if err := os.WriteFile(path, []byte("db_host: db.internal\nlog_level: debug\n"), 0o644); err != nil {
		t.Fatalf("unexpected error writing fixture: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.DBHost != "db.internal" {
		t.Errorf("expected overridden db_host, got %q", c.DBHost)
	}
	if c.LogLevel != "debug" {
		t.Errorf("expected overridden log_level, got %q", c.LogLevel)
	}
	if c.DataDir != Default().DataDir {
		t.Errorf("expected data_dir to keep its default, got %q", c.DataDir)
	}
}
