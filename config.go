package ledgrator

import (
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Logger is the leveled sink used by clients and migrators.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds settings shared by clients and migrators.
type Config struct {
	// Driver is the database driver: "sqlite3", "pg" or "mysql".
	Driver string

	// SchemaPath is the root of the migration tree. Scripts for a driver live
	// in SchemaPath/<driver name>, e.g. schema/sqlite.
	SchemaPath string

	// MigrationsDir overrides the per-driver directory under SchemaPath.
	MigrationsDir string

	// Newline normalises script line endings ("LF", "CR" or "CRLF") before
	// checksumming. Changing it changes every checksum.
	Newline string

	// EchoSQL logs every statement at debug level.
	EchoSQL bool

	// EchoErrorSQL logs failing statements at error level.
	EchoErrorSQL bool

	// Transactional runs each migration and its ledger row in one transaction
	// when the data source supports it.
	Transactional bool

	// UnitTimeout bounds the execution of a single migration. Zero means no
	// deadline besides the caller's context.
	UnitTimeout time.Duration

	// LockKey names the advisory lock held during Synchronize when Locker is set.
	LockKey string

	Logger Logger `json:"-"`
	Locker Locker `json:"-"`
}

// DefaultConfig provides default values for configuration.
var DefaultConfig = Config{
	SchemaPath: "schema",
	LockKey:    "ledgrator",
}

// withDefaults merges DefaultConfig into zero fields.
func (c Config) withDefaults() Config {
	if c.SchemaPath == "" {
		c.SchemaPath = DefaultConfig.SchemaPath
	}
	if c.LockKey == "" {
		c.LockKey = DefaultConfig.LockKey
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// migrationsDir returns the directory holding scripts for driverName.
func (c Config) migrationsDir(driverName string) string {
	if c.MigrationsDir != "" {
		return c.MigrationsDir
	}
	return filepath.Join(c.SchemaPath, driverName)
}

// canonicalDriver maps accepted driver aliases to a driver name.
func canonicalDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite"
	case "pg", "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	default:
		return ""
	}
}
