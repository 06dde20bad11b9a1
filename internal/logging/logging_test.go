package logging

import (
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewDefaultsToInfoOnStdout(t *testing.T) {
	logger, closer, err := New(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer != nil {
		t.Errorf("expected nil closer for stdout logging")
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected info level by default, got %v", logger.GetLevel())
	}
}

func TestNewParsesLevel(t *testing.T) {
	logger, _, err := New(Config{Level: "debug"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %v", logger.GetLevel())
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/node.log"

	logger, closer, err := New(Config{File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer == nil {
		t.Fatalf("expected a non-nil closer for file logging")
	}
	logger.Info().Msg("hello")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error reading log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("expected log file to contain the logged message, got %q", data)
	}
}
