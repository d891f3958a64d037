// SPDX-License-Identifier: MIT

// Package ledgrator keeps a relational database in step with a directory of
// versioned SQL scripts.
//
// Every applied script is recorded in a ledger table together with a
// checksum of its file name and contents. On each run the ledger is compared
// with the scripts on disk: scripts that were applied must still exist and
// must not have changed, and the remaining scripts are applied one at a time
// in version order. The first failure stops the run.
//
// A small SQL statement compiler (package sqlgen) and a row validation layer
// (package entity) sit underneath, so the ledger is read and written through
// the same generic Repository any other table can use.
//
// # Install
//
//	go get github.com/bcomnes/ledgrator@latest
//
// # Quick start
//
//	import (
//	    "context"
//	    "database/sql"
//
//	    _ "github.com/jackc/pgx/v5/stdlib" // or sqlite3
//	    "github.com/bcomnes/ledgrator"
//	)
//
//	func main() {
//	    db, _ := sql.Open("pgx", os.Getenv("DATABASE_URL"))
//	    cfg := ledgrator.Config{Driver: "pg", SchemaPath: "schema"}
//
//	    client, _ := ledgrator.NewClient(cfg, db)
//	    report, err := ledgrator.NewMigrator(cfg, client, nil).Synchronize(context.Background())
//	    ...
//	}
//
// # Migration files
//
// Scripts are named VERSION__NAME.sql and live in <SchemaPath>/<driver>,
// where driver is one of sqlite, postgres or mysql:
//
//	schema/postgres/V01__Initial_Schema.sql
//	schema/postgres/V02__Add_Widgets.sql
//
// Versions are compared as plain strings, so V10 sorts before V2. Pad
// numbers or use timestamps; the CLI's new command does either.
//
// # Configuration
//
//   - Driver        - "sqlite3", "pg" or "mysql"
//   - SchemaPath    - root of the migration tree (default "schema")
//   - MigrationsDir - explicit script directory, overrides SchemaPath
//   - Newline       - normalise line endings before checksumming
//   - Transactional - run each script and its ledger row in one transaction
//   - UnitTimeout   - deadline for a single script
//   - Locker        - hold an advisory lock (LockKey) for the whole run
//   - EchoSQL, EchoErrorSQL - log statements through Logger
//
// # Errors
//
// Drift is reported as *ChecksumMismatchError, which matches
// ErrChecksumMismatch. A ledger that is longer than the script list fails
// with ErrLedgerAheadOfFilesystem, and a ledger version without a script
// with ErrMigrationMissingLocally.
//
// # CLI helpers
//
// Driver specific binaries live in the sqlite, pg and mysql sub-packages:
//
//	go get -tool github.com/bcomnes/ledgrator/pg@latest
//
// # Versioning
//
// The build version is exposed as Version and GitCommit, regenerated with
// go generate.
package ledgrator
