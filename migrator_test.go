package ledgrator

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bcomnes/ledgrator/entity"
	"github.com/bcomnes/ledgrator/sqlgen"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openSqlite returns a client over a private in-memory database.
func openSqlite(t *testing.T, cfg Config) *Client {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite3 in-memory db: %v", err)
	}
	// Every pooled connection would get its own empty database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	cfg.Driver = "sqlite3"
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	client, err := NewClient(cfg, db)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func schemaFS(files map[string]string) FSFilesystem {
	m := fstest.MapFS{}
	for name, contents := range files {
		m["schema/sqlite/"+name] = &fstest.MapFile{Data: []byte(contents)}
	}
	return FSFilesystem{FS: m}
}

func countRows(t *testing.T, c *Client, table string) int {
	t.Helper()
	var n int
	if err := c.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestSqliteSynchronize(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	cfg := Config{
		SchemaPath: "testdata/schema",
		Logger:     slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Locker:     NewProcessLock(),
	}
	client := openSqlite(t, cfg)
	m := NewMigrator(cfg, client, nil)

	t.Run("first run applies everything", func(t *testing.T) {
		report, err := m.Synchronize(ctx)
		if err != nil {
			t.Fatalf("synchronize failed: %v", err)
		}
		if len(report.Applied) != 3 {
			t.Fatalf("expected 3 migrations applied, got %d", len(report.Applied))
		}
		if report.State != Done || report.Present != 3 || report.Latest != "V03" {
			t.Errorf("unexpected report %+v", report)
		}
		if report.RunID == "" {
			t.Error("expected a run id")
		}
		if n := countRows(t, client, "widgets"); n != 2 {
			t.Errorf("expected 2 seeded widgets, got %d", n)
		}
		if n := countRows(t, client, LedgerTable.Name); n != 3 {
			t.Errorf("expected 3 ledger rows, got %d", n)
		}
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		report, err := m.Synchronize(ctx)
		if err != nil {
			t.Fatalf("synchronize failed: %v", err)
		}
		if len(report.Applied) != 0 {
			t.Errorf("expected no migrations applied, got %d", len(report.Applied))
		}
		if n := countRows(t, client, LedgerTable.Name); n != 3 {
			t.Errorf("expected 3 ledger rows, got %d", n)
		}
	})

	t.Run("ledger rows", func(t *testing.T) {
		entries, err := NewRepository(client, LedgerMapper).GetAll(ctx)
		if err != nil {
			t.Fatalf("read ledger: %v", err)
		}
		for _, e := range entries {
			if e.ID == 0 || e.Applied.IsZero() || len(e.Checksum) != 40 {
				t.Errorf("incomplete ledger entry %+v", e)
			}
		}
	})

	out := logs.String()
	for _, want := range []string{"applying migration", "migration applied", "migrations synchronized", "run_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %q", want)
		}
	}
}

func TestSynchronizeGrowthAndDrift(t *testing.T) {
	ctx := context.Background()
	cfg := Config{}
	client := openSqlite(t, cfg)

	files := map[string]string{
		"V1__Initial.sql": "CREATE TABLE a (id INTEGER PRIMARY KEY);",
	}
	if _, err := NewMigrator(cfg, client, schemaFS(files)).Synchronize(ctx); err != nil {
		t.Fatalf("initial synchronize: %v", err)
	}

	files["V2__Second.sql"] = "CREATE TABLE b (id INTEGER PRIMARY KEY);"
	report, err := NewMigrator(cfg, client, schemaFS(files)).Synchronize(ctx)
	if err != nil {
		t.Fatalf("growth synchronize: %v", err)
	}
	if len(report.Applied) != 1 || report.Applied[0].Version != "V2" {
		t.Fatalf("expected only V2 applied, got %+v", report.Applied)
	}

	files["V1__Initial.sql"] = "CREATE TABLE a (id INTEGER PRIMARY KEY, name TEXT);"
	report, err = NewMigrator(cfg, client, schemaFS(files)).Synchronize(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "reconcile: ") {
		t.Errorf("expected stage prefix, got %q", err)
	}
	if report.State != Failed {
		t.Errorf("expected failed state, got %s", report.State)
	}
	if n := countRows(t, client, LedgerTable.Name); n != 2 {
		t.Errorf("ledger changed after drift: %d rows", n)
	}

	files["V1__Initial.sql"] = "CREATE TABLE a (id INTEGER PRIMARY KEY);"
	delete(files, "V2__Second.sql")
	_, err = NewMigrator(cfg, client, schemaFS(files)).Synchronize(ctx)
	if !errors.Is(err, ErrLedgerAheadOfFilesystem) {
		t.Errorf("expected ErrLedgerAheadOfFilesystem, got %v", err)
	}
}

func TestSynchronizeFailureHalts(t *testing.T) {
	ctx := context.Background()
	cfg := Config{SchemaPath: "testdata/fail"}
	client := openSqlite(t, cfg)

	report, err := NewMigrator(cfg, client, nil).Synchronize(ctx)
	if err == nil {
		t.Fatal("expected migration failure error, got none")
	}
	if !strings.Contains(err.Error(), "execute migration V02") {
		t.Errorf("expected the failing version in the error, got %q", err)
	}
	if len(report.Applied) != 1 || report.Applied[0].Version != "V01" {
		t.Errorf("expected only V01 applied, got %+v", report.Applied)
	}
	if n := countRows(t, client, LedgerTable.Name); n != 1 {
		t.Errorf("expected 1 ledger row, got %d", n)
	}
	tables, err := client.TableNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range tables {
		if name == "never_applied" {
			t.Error("migration after the failure was applied")
		}
	}
}

func TestSynchronizeMissingDirectory(t *testing.T) {
	cfg := Config{SchemaPath: "testdata/nowhere"}
	client := openSqlite(t, cfg)

	_, err := NewMigrator(cfg, client, nil).Synchronize(context.Background())
	if !errors.Is(err, ErrMigrationsDirectoryNotFound) {
		t.Errorf("expected ErrMigrationsDirectoryNotFound, got %v", err)
	}
}

func TestApplyOneTransactional(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Transactional: true}
	client := openSqlite(t, cfg)
	m := NewMigrator(cfg, client, schemaFS(nil))
	if err := m.EnsureLedgerTable(ctx); err != nil {
		t.Fatal(err)
	}

	bad := unit(t, "V1__Half.sql", "CREATE TABLE half (id INTEGER); INSERT INTO nope VALUES (1);")
	if err := m.ApplyOne(ctx, bad); err == nil {
		t.Fatal("expected failure")
	}
	tables, err := client.TableNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range tables {
		if name == "half" {
			t.Error("expected the partial migration to be rolled back")
		}
	}
	if n := countRows(t, client, LedgerTable.Name); n != 0 {
		t.Errorf("expected empty ledger, got %d rows", n)
	}

	good := unit(t, "V1__Whole.sql", "CREATE TABLE whole (id INTEGER);")
	if err := m.ApplyOne(ctx, good); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n := countRows(t, client, LedgerTable.Name); n != 1 {
		t.Errorf("expected 1 ledger row, got %d", n)
	}
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	cfg := Config{}
	client := openSqlite(t, cfg)

	files := map[string]string{"V1__Initial.sql": "CREATE TABLE a (id INTEGER);"}
	if _, err := NewMigrator(cfg, client, schemaFS(files)).Synchronize(ctx); err != nil {
		t.Fatal(err)
	}

	files["V2__Next.sql"] = "CREATE TABLE b (id INTEGER);"
	statuses, err := NewMigrator(cfg, client, schemaFS(files)).Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Pending || statuses[0].Applied.IsZero() {
		t.Errorf("expected V1 applied, got %+v", statuses[0])
	}
	if !statuses[1].Pending {
		t.Errorf("expected V2 pending, got %+v", statuses[1])
	}

	statuses, err = NewMigrator(cfg, client, schemaFS(map[string]string{"V2__Next.sql": ""})).Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) != 2 || !statuses[1].Missing || statuses[1].Unit.Version != "V1" {
		t.Errorf("expected V1 reported missing, got %+v", statuses)
	}
}

func TestStatusWithoutLedger(t *testing.T) {
	ctx := context.Background()
	cfg := Config{}
	client := openSqlite(t, cfg)

	files := map[string]string{"V1__Initial.sql": "CREATE TABLE a (id INTEGER);"}
	statuses, err := NewMigrator(cfg, client, schemaFS(files)).Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) != 1 || !statuses[0].Pending {
		t.Errorf("expected V1 pending, got %+v", statuses)
	}

	tables, err := client.TableNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if slices.Contains(tables, LedgerTable.Name) {
		t.Errorf("status created the ledger table: %v", tables)
	}
}

// countingSource is a DataSource that records scripts and fails on demand.
type countingSource struct {
	mu       sync.Mutex
	executed []string
	failOn   string
	ledger   []entity.Row
}

func (s *countingSource) DriverName() string { return "sqlite" }

func (s *countingSource) Compiler() *sqlgen.Compiler { return sqlgen.NewCompiler(sqlgen.SQLite{}) }

func (s *countingSource) DropTable(context.Context, string) error { return nil }

func (s *countingSource) TableNames(context.Context) ([]string, error) {
	return []string{LedgerTable.Name}, nil
}

func (s *countingSource) CreateTable(context.Context, sqlgen.TableDefinition) error { return nil }

func (s *countingSource) ExecBatch(_ context.Context, script string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executed = append(s.executed, script)
	if script == s.failOn {
		return errors.New("boom")
	}
	return nil
}

func (s *countingSource) Exec(context.Context, string, ...any) (Result, error) {
	return Result{}, nil
}

func (s *countingSource) Query(context.Context, string, ...any) ([]entity.Row, error) {
	return s.ledger, nil
}

func (s *countingSource) Insert(_ context.Context, row entity.Row, _ entity.Schema, m entity.Mapping) (entity.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row = entity.AssignAutoIncrement(int64(len(s.ledger)+1), row, m)
	s.ledger = append(s.ledger, row)
	return row, nil
}

func (s *countingSource) Update(context.Context, entity.Row, entity.Schema, entity.Mapping) error {
	return nil
}

func (s *countingSource) Delete(context.Context, entity.Row, entity.Schema, entity.Mapping) error {
	return nil
}

func TestApplyAllStopsAtFirstFailure(t *testing.T) {
	ds := &countingSource{failOn: "SELECT 2;"}
	m := NewMigrator(Config{Logger: discardLogger()}, ds, schemaFS(nil))

	units := []MigrationUnit{
		unit(t, "V1__One.sql", "SELECT 1;"),
		unit(t, "V2__Two.sql", "SELECT 2;"),
		unit(t, "V3__Three.sql", "SELECT 3;"),
	}
	applied, err := m.ApplyAll(context.Background(), units)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(ds.executed) != 2 {
		t.Errorf("expected 2 executions, got %d: %v", len(ds.executed), ds.executed)
	}
	if len(applied) != 1 || applied[0].Version != "V1" {
		t.Errorf("expected only V1 applied, got %v", versions(applied))
	}
	if len(ds.ledger) != 1 || ds.ledger[0]["version"] != "V1" {
		t.Errorf("expected only V1 recorded, got %v", ds.ledger)
	}
}

func TestApplyAllCancelled(t *testing.T) {
	ds := &countingSource{}
	m := NewMigrator(Config{Logger: discardLogger()}, ds, schemaFS(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.ApplyAll(ctx, []MigrationUnit{unit(t, "V1__One.sql", "SELECT 1;")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(ds.executed) != 0 {
		t.Errorf("expected nothing executed, got %v", ds.executed)
	}
}

func TestApplyOneUnitTimeout(t *testing.T) {
	ds := &deadlineSource{countingSource: &countingSource{}}
	m := NewMigrator(Config{Logger: discardLogger(), UnitTimeout: time.Minute}, ds, schemaFS(nil))

	if err := m.ApplyOne(context.Background(), unit(t, "V1__One.sql", "SELECT 1;")); err != nil {
		t.Fatal(err)
	}
	if !ds.sawDeadline {
		t.Error("expected the unit to run with a deadline")
	}
}

type deadlineSource struct {
	*countingSource
	sawDeadline bool
}

func (s *deadlineSource) ExecBatch(ctx context.Context, script string) error {
	_, s.sawDeadline = ctx.Deadline()
	return s.countingSource.ExecBatch(ctx, script)
}
