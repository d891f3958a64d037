package ledgrator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// State is the stage a Synchronize run reached.
type State int

const (
	Idle State = iota
	LedgerLoaded
	FilesystemLoaded
	Reconciled
	Applying
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LedgerLoaded:
		return "ledger-loaded"
	case FilesystemLoaded:
		return "filesystem-loaded"
	case Reconciled:
		return "reconciled"
	case Applying:
		return "applying"
	case Done:
		return "done"
	default:
		return "failed"
	}
}

// Report summarises a Synchronize run.
type Report struct {
	RunID   string
	State   State
	Applied []MigrationUnit

	// Present is the number of migrations found on the file system.
	Present int

	// Latest is the highest file system version, empty when there is none.
	Latest string
}

// MigrationStatus pairs a migration with its ledger row, if any.
type MigrationStatus struct {
	Unit    MigrationUnit
	Applied time.Time
	Pending bool

	// Missing is set for ledger rows without a script on disk.
	Missing bool
}

// Migrator keeps a database in step with the scripts of its migration directory.
//
// It loads the ledger and the file system, verifies every applied migration
// against its script, and applies the remainder one at a time in version order.
type Migrator struct {
	cfg    Config
	ds     DataSource
	files  Filesystem
	ledger *Repository[LedgerEntry]
	logger Logger
	now    func() time.Time
}

// NewMigrator creates a Migrator. A nil files reads from the local disk.
func NewMigrator(cfg Config, ds DataSource, files Filesystem) *Migrator {
	cfg = cfg.withDefaults()
	if files == nil {
		files = OSFilesystem{}
	}
	return &Migrator{
		cfg:    cfg,
		ds:     ds,
		files:  files,
		ledger: NewRepository(ds, LedgerMapper),
		logger: cfg.Logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// MigrationsDir returns the directory scripts are read from.
func (m *Migrator) MigrationsDir() string {
	return m.cfg.migrationsDir(m.ds.DriverName())
}

// EnsureLedgerTable creates the ledger table when it is missing.
func (m *Migrator) EnsureLedgerTable(ctx context.Context) error {
	tables, err := m.ds.TableNames(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(tables, LedgerTable.Name) {
		return nil
	}
	m.logger.Debug("migration table will be created", "table", LedgerTable.Name)
	return m.ds.CreateTable(ctx, LedgerTable)
}

var ledgerQuery = "SELECT * FROM " + LedgerTable.Name + " ORDER BY version"

func (m *Migrator) ledgerEntries(ctx context.Context) ([]LedgerEntry, error) {
	if err := m.EnsureLedgerTable(ctx); err != nil {
		return nil, err
	}
	return m.ledger.Find(ctx, ledgerQuery)
}

// LoadLedger returns the applied migrations, without contents, in version order.
func (m *Migrator) LoadLedger(ctx context.Context) ([]MigrationUnit, error) {
	entries, err := m.ledgerEntries(ctx)
	if err != nil {
		return nil, err
	}
	units := make([]MigrationUnit, len(entries))
	for i, e := range entries {
		units[i] = e.Unit()
	}
	return OrderMigrations(units), nil
}

// LoadFilesystem parses every script of the migration directory.
func (m *Migrator) LoadFilesystem() ([]MigrationUnit, error) {
	return loadMigrations(m.files, m.MigrationsDir(), m.cfg.Newline)
}

// Reconcile verifies ledger against files and returns the migrations still
// to apply, in version order.
//
// Every ledger version must exist on disk with the same checksum. A ledger
// longer than the file list is rejected outright.
func Reconcile(ledger, files []MigrationUnit) ([]MigrationUnit, error) {
	if len(ledger) > len(files) {
		return nil, fmt.Errorf("%w: %d applied, %d present", ErrLedgerAheadOfFilesystem, len(ledger), len(files))
	}

	byVersion := make(map[string]MigrationUnit, len(files))
	for _, f := range files {
		byVersion[f.Version] = f
	}

	for _, applied := range ledger {
		local, ok := byVersion[applied.Version]
		if !ok {
			return nil, fmt.Errorf("%w: version %q", ErrMigrationMissingLocally, applied.Version)
		}
		if applied.Checksum != local.Checksum {
			return nil, &ChecksumMismatchError{
				Version: applied.Version,
				Stored:  applied.Checksum,
				Current: local.Checksum,
			}
		}
		delete(byVersion, applied.Version)
	}

	pending := make([]MigrationUnit, 0, len(byVersion))
	for _, f := range files {
		if _, ok := byVersion[f.Version]; ok {
			pending = append(pending, f)
		}
	}
	return OrderMigrations(pending), nil
}

// ApplyOne runs the unit's script and records it in the ledger. Nothing is
// retried or rolled back unless Config.Transactional is set and the data
// source supports transactions.
func (m *Migrator) ApplyOne(ctx context.Context, unit MigrationUnit) error {
	if m.cfg.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.UnitTimeout)
		defer cancel()
	}

	m.logger.Info("applying migration", "version", unit.Version, "name", unit.Name)

	apply := func(ds DataSource) error {
		if err := ds.ExecBatch(ctx, unit.Contents); err != nil {
			return fmt.Errorf("execute migration %s: %w", unit.Version, err)
		}
		entry := LedgerEntry{
			Version:  unit.Version,
			Name:     unit.Name,
			Applied:  m.now(),
			Checksum: unit.Checksum,
		}
		if _, err := NewRepository(ds, LedgerMapper).Insert(ctx, entry); err != nil {
			return fmt.Errorf("record migration %s: %w", unit.Version, err)
		}
		return nil
	}

	var err error
	if tx, ok := m.ds.(Transactor); ok && m.cfg.Transactional {
		err = tx.WithTx(ctx, apply)
	} else {
		err = apply(m.ds)
	}
	if err != nil {
		m.logger.Error("migration failed", "version", unit.Version, "error", err)
		return err
	}

	m.logger.Info("migration applied", "version", unit.Version)
	return nil
}

// ApplyAll applies units sequentially and stops at the first failure. It
// returns the units applied before the failure.
func (m *Migrator) ApplyAll(ctx context.Context, units []MigrationUnit) ([]MigrationUnit, error) {
	var applied []MigrationUnit
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if err := m.ApplyOne(ctx, u); err != nil {
			return applied, err
		}
		applied = append(applied, u)
	}
	return applied, nil
}

// Synchronize brings the database up to date with the migration directory.
// When Config.Locker is set the whole run holds Config.LockKey.
func (m *Migrator) Synchronize(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), State: Idle}
	log := func(msg string, args ...any) {
		m.logger.Debug(msg, append([]any{"run_id", report.RunID}, args...)...)
	}
	fail := func(stage string, err error) (Report, error) {
		report.State = Failed
		m.logger.Error("migration run failed", "run_id", report.RunID, "stage", stage, "error", err)
		return report, fmt.Errorf("%s: %w", stage, err)
	}

	log("starting migration check", "dir", m.MigrationsDir())

	if m.cfg.Locker != nil {
		release, err := m.cfg.Locker.Acquire(ctx, m.cfg.LockKey)
		if err != nil {
			return fail("acquire lock", err)
		}
		defer release()
	}

	ledger, err := m.LoadLedger(ctx)
	if err != nil {
		return fail("load ledger", err)
	}
	report.State = LedgerLoaded
	log("ledger loaded", "applied", len(ledger))

	files, err := m.LoadFilesystem()
	if err != nil {
		return fail("load migrations", err)
	}
	report.State = FilesystemLoaded
	report.Present = len(files)
	if len(files) > 0 {
		report.Latest = files[len(files)-1].Version
	}
	log("migrations loaded", "present", len(files))

	pending, err := Reconcile(ledger, files)
	if err != nil {
		return fail("reconcile", err)
	}
	report.State = Reconciled

	report.State = Applying
	report.Applied, err = m.ApplyAll(ctx, pending)
	if err != nil {
		return fail("apply", err)
	}
	report.State = Done

	latest := report.Latest
	if latest == "" {
		latest = "None"
	}
	m.logger.Info("migrations synchronized",
		"run_id", report.RunID,
		"applied", len(report.Applied),
		"present", report.Present,
		"latest", latest)
	return report, nil
}

// Status lists every migration on disk with its ledger state, followed by
// ledger rows that have no script.
// A missing ledger table reads as an empty ledger and is not created.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	tables, err := m.ds.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	var entries []LedgerEntry
	if slices.Contains(tables, LedgerTable.Name) {
		entries, err = m.ledger.Find(ctx, ledgerQuery)
		if err != nil {
			return nil, err
		}
	}
	files, err := m.LoadFilesystem()
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]LedgerEntry, len(entries))
	for _, e := range entries {
		byVersion[e.Version] = e
	}

	out := make([]MigrationStatus, 0, len(files))
	for _, f := range files {
		st := MigrationStatus{Unit: f, Pending: true}
		if e, ok := byVersion[f.Version]; ok {
			st.Pending = false
			st.Applied = e.Applied
			delete(byVersion, f.Version)
		}
		out = append(out, st)
	}
	for _, e := range entries {
		if _, ok := byVersion[e.Version]; ok {
			out = append(out, MigrationStatus{Unit: e.Unit(), Applied: e.Applied, Missing: true})
		}
	}
	return out, nil
}
