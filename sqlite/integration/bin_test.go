package main_test

import (
	"database/sql"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

var cliBinary string

var (
	// We use a temporary file for the SQLite DB.
	testDBFile = filepath.Join(os.TempDir(), "ledgrator_sqlite_test.db")
	// testSchemaPath is the migration tree relative to this package.
	testSchemaPath = "../../testdata/schema"
)

// TestMain builds the CLI binary and removes the test database around the run.
func TestMain(m *testing.M) {
	os.Remove(testDBFile)

	binaryPath := filepath.Join(os.TempDir(), "ledgrator-sqlite-integration")
	buildCmd := exec.Command("go", "build", "-o", binaryPath, "../")
	buildCmd.Stdout = os.Stdout
	buildCmd.Stderr = os.Stderr
	if err := buildCmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to build SQLite CLI binary: %v\n", err)
		os.Exit(1)
	}
	cliBinary = binaryPath

	code := m.Run()

	os.Remove(testDBFile)
	os.Remove(cliBinary)
	os.Exit(code)
}

// helperRun runs the built CLI binary with the provided arguments and extra environment variables.
func helperRun(args []string, extraEnv ...string) (string, error) {
	cmd := exec.Command(cliBinary, args...)
	cmd.Env = append(os.Environ(), extraEnv...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// tableExists checks whether a table exists in the SQLite database.
func tableExists(t *testing.T, name string) bool {
	t.Helper()
	db, err := sql.Open("sqlite3", testDBFile)
	if err != nil {
		t.Fatalf("open %s: %v", testDBFile, err)
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return cnt > 0
}

// TestCLILifecycle runs migrate, status and drop-ledger against one database
// file in order.
func TestCLILifecycle(t *testing.T) {
	base := []string{"-conn", testDBFile, "-schema-path", testSchemaPath}

	t.Run("migrate", func(t *testing.T) {
		out, err := helperRun(append(base, "migrate"))
		if err != nil {
			t.Fatalf("migrate failed: %v; output: %s", err, out)
		}
		if !strings.Contains(out, "Starting migration") || !strings.Contains(out, "Applied 3 migrations") {
			t.Errorf("unexpected migrate output:\n%s", out)
		}
		for _, table := range []string{"widgets", "gadgets", "schema_migration"} {
			if !tableExists(t, table) {
				t.Errorf("expected table %s to exist", table)
			}
		}
	})

	t.Run("migrate again", func(t *testing.T) {
		out, err := helperRun(append(base, "migrate"), "SQLITE_URL=ignored.db")
		if err != nil {
			t.Fatalf("migrate failed: %v; output: %s", err, out)
		}
		if !strings.Contains(out, "Applied 0 migrations") {
			t.Errorf("expected nothing applied, got:\n%s", out)
		}
	})

	t.Run("status", func(t *testing.T) {
		out, err := helperRun(append(base, "status"))
		if err != nil {
			t.Fatalf("status failed: %v; output: %s", err, out)
		}
		if strings.Count(out, "[applied ") != 3 {
			t.Errorf("expected 3 applied migrations, got:\n%s", out)
		}
	})

	t.Run("drop-ledger", func(t *testing.T) {
		out, err := helperRun(append(base, "drop-ledger"))
		if err != nil {
			t.Fatalf("drop-ledger failed: %v; output: %s", err, out)
		}
		if !strings.Contains(out, "Dropping ledger table") {
			t.Errorf("expected drop message, got:\n%s", out)
		}
		if tableExists(t, "schema_migration") {
			t.Error("expected the ledger table to be dropped")
		}
	})
}

// TestCLINew creates a migration in a temporary schema tree.
func TestCLINew(t *testing.T) {
	dir := t.TempDir()
	out, err := helperRun([]string{"-schema-path", dir, "-mode", "timestamp", "new", "create users"})
	if err != nil {
		t.Fatalf("new failed: %v; output: %s", err, out)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "sqlite", "V*__create_users.sql"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("expected one migration file, got %v", matches)
	}
}
