package main

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// TestMain triggers our helper process mode. When the environment
// variable GO_HELPER_PROCESS is set, main() is called (simulating our CLI).
func TestMain(m *testing.M) {
	if os.Getenv("GO_HELPER_PROCESS") == "1" {
		main()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runCLI runs the current test binary as a helper process running the CLI.
// It passes along the provided arguments and any extra environment variables.
func runCLI(args []string, extraEnv ...string) (string, error) {
	cmd := exec.Command(os.Args[0], args...)
	cmd.Env = append(os.Environ(), "GO_HELPER_PROCESS=1")
	cmd.Env = append(cmd.Env, extraEnv...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestCLIHelp(t *testing.T) {
	out, _ := runCLI([]string{"-help"})
	if !strings.Contains(out, "Usage:") || !strings.Contains(out, "MYSQL_URL") {
		t.Errorf("expected help usage info, got:\n%s", out)
	}
}

func TestCLIVersion(t *testing.T) {
	out, _ := runCLI([]string{"-version"})
	if !strings.Contains(out, "ledgrator-mysql version:") {
		t.Errorf("expected version info, got:\n%s", out)
	}
}

func TestCLIUnknownCommand(t *testing.T) {
	out, _ := runCLI([]string{"foobar"})
	if !strings.Contains(out, "Unknown command: foobar") {
		t.Errorf("expected unknown command error, got:\n%s", out)
	}
}

// TestCLIMigrateMissingConn verifies that 'migrate' without a connection
// prints an error about the missing connection URL.
func TestCLIMigrateMissingConn(t *testing.T) {
	out, _ := runCLI([]string{"migrate"}, "MYSQL_URL=")
	if !strings.Contains(out, "Error: connection URL must be provided") {
		t.Errorf("expected connection URL missing error, got:\n%s", out)
	}
}

// TestCLIDropLedgerMissingConn checks drop-ledger without a connection URL.
func TestCLIDropLedgerMissingConn(t *testing.T) {
	out, _ := runCLI([]string{"drop-ledger"}, "MYSQL_URL=")
	if !strings.Contains(out, "Error: connection URL must be provided") {
		t.Errorf("expected connection URL error for drop-ledger, got:\n%s", out)
	}
}

func TestCLINewMissingDescription(t *testing.T) {
	out, _ := runCLI([]string{"-conn", "dummy", "new"})
	if !strings.Contains(out, "Error: a description is required for the new command.") {
		t.Errorf("expected missing description error, got:\n%s", out)
	}
}

// TestCLINewSuccess runs the new command with a JSON config pointing at a
// temporary schema tree. No database is needed.
func TestCLINewSuccess(t *testing.T) {
	tmpDir := t.TempDir()

	cfgPath := filepath.Join(tmpDir, "cfg.json")
	data, err := json.Marshal(map[string]any{"SchemaPath": tmpDir})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfgPath, data, 0o644); err != nil {
		t.Fatal(err)
	}

	out, _ := runCLI([]string{"-config", cfgPath, "-mode", "int", "new", "Create test table"})
	if !strings.Contains(out, "Created ") {
		t.Errorf("expected new migration success message, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "mysql", "V001__Create_test_table.sql")); err != nil {
		t.Errorf("expected migration file in the postgres directory: %v", err)
	}
}

func TestFlagOrderingSafe(t *testing.T) {
	out, _ := runCLI([]string{"migrate", "-conn", "dummy"})
	expected := "Error: Flags must be specified before the command. Please reorder your arguments."
	if !strings.Contains(out, expected) {
		t.Errorf("expected flag ordering error message, got:\n%s", out)
	}
}
