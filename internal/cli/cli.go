// Package cli implements the command line shared by the per-driver
// ledgrator binaries.
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/bcomnes/ledgrator"
	"github.com/bcomnes/ledgrator/internal/logging"
)

// Driver describes one binary.
type Driver struct {
	// Binary is the program name, e.g. "ledgrator-sqlite".
	Binary string

	// Driver is the ledgrator.Config driver name.
	Driver string

	// SQLDriver is the database/sql driver used when Open is nil.
	SQLDriver string

	// EnvPrefix selects the environment variables, e.g. "SQLITE" reads SQLITE_URL.
	EnvPrefix string

	// ConnHelp describes the -conn value.
	ConnHelp string

	Open func(conn string) (*sql.DB, error)
}

// env is the environment layer, read with envconfig under Driver.EnvPrefix.
type env struct {
	URL           string `envconfig:"URL"`
	SchemaPath    string `envconfig:"SCHEMA_PATH"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR"`
}

// fileConfig is the JSON file passed with -config.
type fileConfig struct {
	ledgrator.Config
	Conn      string `json:"conn"`
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`
}

// options is the resolved command line.
type options struct {
	conn      string
	logLevel  string
	logFormat string
	mode      string
	cfg       ledgrator.Config
}

const commandTimeout = 10 * time.Minute

// Run executes the command line args and returns the process exit code.
func Run(d Driver, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(d.Binary, flag.ContinueOnError)
	fs.SetOutput(stderr)

	connStr := fs.String("conn", "", d.ConnHelp+" Can also be set via "+d.EnvPrefix+"_URL env var.")
	configPath := fs.String("config", "", "Path to JSON configuration file (optional)")
	schemaPath := fs.String("schema-path", ledgrator.DefaultConfig.SchemaPath, "Root of the migration tree; scripts live in <schema-path>/<driver>")
	migrationsDir := fs.String("migrations-dir", "", "Directory of migration scripts, overrides -schema-path")
	newline := fs.String("newline", "", "Normalise line endings before checksumming (LF, CR or CRLF)")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "text", "Log format (text or json)")
	echoSQL := fs.Bool("echo-sql", false, "Log every SQL statement at debug level")
	transactional := fs.Bool("transactional", false, "Run each migration in its own transaction")
	unitTimeout := fs.Duration("unit-timeout", 0, "Deadline for a single migration (0 for none)")
	lock := fs.Bool("lock", false, "Hold an advisory lock while migrating")
	mode := fs.String("mode", "int", "Migration numbering mode (\"int\" or \"timestamp\") for new command")
	helpFlag := fs.Bool("help", false, "Show help message")
	versionFlag := fs.Bool("version", false, "Show version")

	usage := func() {
		fmt.Fprintf(stderr, `Usage:
  %s [options] [command] [arguments]

Commands:
  migrate             Apply every pending migration.
  status              List migrations with their applied time or pending state.
  new <desc>          Create a new empty migration with the provided description.
  drop-ledger         Drop the migration ledger table.

Options:
`, d.Binary)
		fs.PrintDefaults()
	}
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// flag stops at the first positional argument, so anything flag-like after the command was ignored.
	for _, arg := range fs.Args() {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintln(stderr, "Error: Flags must be specified before the command. Please reorder your arguments.")
			usage()
			return 1
		}
	}

	if *helpFlag {
		usage()
		return 0
	}
	if *versionFlag {
		fmt.Fprintf(stdout, "%s version: %s (%s)\n", d.Binary, ledgrator.Version, ledgrator.GitCommit)
		return 0
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	file := fileConfig{}
	if *configPath != "" {
		if err := loadConfig(*configPath, &file); err != nil {
			fmt.Fprintf(stderr, "Error loading config file: %v\n", err)
			return 1
		}
	}
	var e env
	if err := envconfig.Process(d.EnvPrefix, &e); err != nil {
		fmt.Fprintf(stderr, "Error reading environment: %v\n", err)
		return 1
	}

	opts := resolve(file, e, set, options{
		conn:      *connStr,
		logLevel:  *logLevel,
		logFormat: *logFormat,
		mode:      *mode,
		cfg: ledgrator.Config{
			SchemaPath:    *schemaPath,
			MigrationsDir: *migrationsDir,
			Newline:       *newline,
			EchoSQL:       *echoSQL,
			Transactional: *transactional,
			UnitTimeout:   *unitTimeout,
		},
	})
	opts.cfg.Driver = d.Driver
	opts.cfg.EchoErrorSQL = true
	opts.cfg.Logger = logging.New(opts.logLevel, opts.logFormat, stderr)

	cmdArgs := fs.Args()
	if len(cmdArgs) < 1 {
		fmt.Fprintln(stderr, "Error: no command provided.")
		usage()
		return 1
	}

	r := runner{d: d, opts: opts, lock: *lock, stdout: stdout, stderr: stderr}
	switch command := cmdArgs[0]; command {
	case "migrate":
		return r.withMigrator(r.migrate)
	case "status":
		return r.withMigrator(r.status)
	case "drop-ledger":
		return r.withMigrator(r.dropLedger)
	case "new":
		if len(cmdArgs) < 2 {
			fmt.Fprintln(stderr, "Error: a description is required for the new command.")
			usage()
			return 1
		}
		return r.newMigration(cmdArgs[1])
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		usage()
		return 1
	}
}

// resolve layers the settings: explicit flag, then environment, then config
// file, then flag defaults.
func resolve(file fileConfig, e env, set map[string]bool, flags options) options {
	out := flags
	out.cfg.LockKey = file.LockKey

	pick := func(name, flagValue, envValue, fileValue string) string {
		switch {
		case set[name]:
			return flagValue
		case envValue != "":
			return envValue
		case fileValue != "":
			return fileValue
		default:
			return flagValue
		}
	}
	out.conn = pick("conn", flags.conn, e.URL, file.Conn)
	out.cfg.SchemaPath = pick("schema-path", flags.cfg.SchemaPath, e.SchemaPath, file.SchemaPath)
	out.cfg.MigrationsDir = pick("migrations-dir", flags.cfg.MigrationsDir, e.MigrationsDir, file.MigrationsDir)
	out.cfg.Newline = pick("newline", flags.cfg.Newline, "", file.Newline)
	out.logLevel = pick("log-level", flags.logLevel, "", file.LogLevel)
	out.logFormat = pick("log-format", flags.logFormat, "", file.LogFormat)

	if !set["echo-sql"] {
		out.cfg.EchoSQL = file.EchoSQL
	}
	if !set["transactional"] {
		out.cfg.Transactional = file.Transactional
	}
	if !set["unit-timeout"] {
		out.cfg.UnitTimeout = file.UnitTimeout
	}
	return out
}

func loadConfig(path string, cfg *fileConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(cfg)
}

type runner struct {
	d      Driver
	opts   options
	lock   bool
	stdout io.Writer
	stderr io.Writer
}

func (r runner) printf(format string, args ...any) {
	fmt.Fprintf(r.stdout, "[%s] "+format+"\n", append([]any{time.Now().Format(time.Kitchen)}, args...)...)
}

func (r runner) withMigrator(f func(ctx context.Context, c *ledgrator.Client, m *ledgrator.Migrator) error) int {
	if r.opts.conn == "" {
		fmt.Fprintf(r.stderr, "Error: connection URL must be provided via -conn flag or %s_URL environment variable\n", r.d.EnvPrefix)
		return 1
	}

	open := r.d.Open
	if open == nil {
		open = func(conn string) (*sql.DB, error) { return sql.Open(r.d.SQLDriver, conn) }
	}
	db, err := open(r.opts.conn)
	if err != nil {
		fmt.Fprintf(r.stderr, "Error opening database: %v\n", err)
		return 1
	}
	defer db.Close()

	cfg := r.opts.cfg
	client, err := ledgrator.NewClient(cfg, db)
	if err != nil {
		fmt.Fprintf(r.stderr, "Error initializing client: %v\n", err)
		return 1
	}
	if r.lock {
		cfg.Locker = ledgrator.NewLocker(client)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := f(ctx, client, ledgrator.NewMigrator(cfg, client, nil)); err != nil {
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (r runner) migrate(ctx context.Context, _ *ledgrator.Client, m *ledgrator.Migrator) error {
	r.printf("Starting migration from %s...", m.MigrationsDir())
	report, err := m.Synchronize(ctx)
	if err != nil {
		return fmt.Errorf("migration: %w", err)
	}
	r.printf("Applied %d migrations:", len(report.Applied))
	for _, u := range report.Applied {
		fmt.Fprintf(r.stdout, "  - Version %s: %s (%s)\n", u.Version, u.Name, u.Filename)
	}
	return nil
}

func (r runner) status(ctx context.Context, _ *ledgrator.Client, m *ledgrator.Migrator) error {
	statuses, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	fmt.Fprintf(r.stdout, "Migrations in %s:\n", m.MigrationsDir())
	for _, s := range statuses {
		state := "pending"
		switch {
		case s.Missing:
			state = "applied " + s.Applied.Format(time.RFC3339) + ", missing locally"
		case !s.Pending:
			state = "applied " + s.Applied.Format(time.RFC3339)
		}
		fmt.Fprintf(r.stdout, "Version %s: %s [%s]\n", s.Unit.Version, s.Unit.Name, state)
	}
	return nil
}

func (r runner) dropLedger(ctx context.Context, c *ledgrator.Client, _ *ledgrator.Migrator) error {
	r.printf("Dropping ledger table %s...", ledgrator.LedgerTable.Name)
	if err := c.DropTable(ctx, ledgrator.LedgerTable.Name); err != nil {
		return fmt.Errorf("dropping ledger table: %w", err)
	}
	r.printf("Ledger table dropped.")
	return nil
}

func (r runner) newMigration(description string) int {
	cfg := r.opts.cfg
	dir := cfg.MigrationsDir
	if dir == "" {
		client, err := ledgrator.NewClient(cfg, nil)
		if err != nil {
			fmt.Fprintf(r.stderr, "Error initializing client: %v\n", err)
			return 1
		}
		dir = ledgrator.NewMigrator(cfg, client, nil).MigrationsDir()
	}

	r.printf("Creating new migration with description '%s' in %s mode...", description, r.opts.mode)
	path, err := ledgrator.CreateMigration(dir, description, r.opts.mode)
	if err != nil {
		fmt.Fprintf(r.stderr, "Error creating new migration: %v\n", err)
		return 1
	}
	r.printf("Created %s", path)
	return 0
}
