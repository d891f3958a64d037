// SPDX-License-Identifier: MIT

// Package main provides ledgrator-sqlite, a SQLite-specific command line interface for the
// ledgrator migration library.
//
// # Install
//
//	go install github.com/bcomnes/ledgrator/sqlite@latest
//
// # Synopsis
//
//	ledgrator-sqlite [options] [command] [arguments]
//
// # Commands
//
//	migrate             Apply every pending migration in version order.
//	status              List migrations with their applied time, pending or missing.
//	new    <desc>       Scaffold an empty VERSION__Name.sql script labelled *desc*.
//	drop-ledger         Delete the migration ledger table.
//
// # Global flags
//
//	-conn string            Connection string. Overrides $SQLITE_URL and the "conn"
//	                        field in -config.
//	-config string          Optional JSON file that mirrors ledgrator.Config plus
//	                        "conn", "logLevel" and "logFormat".
//	-schema-path string     Root of the migration tree (default "schema"); scripts
//	                        are read from <schema-path>/sqlite.
//	-migrations-dir string  Explicit script directory, overrides -schema-path.
//	-newline string         Normalise line endings before checksumming: LF, CR, CRLF.
//	-log-level string       debug, info, warn or error (default "info").
//	-log-format string      text or json (default "text").
//	-echo-sql               Log every statement at debug level.
//	-transactional          Run each migration in its own transaction.
//	-unit-timeout duration  Deadline for a single migration.
//	-lock                   Hold an advisory lock while migrating.
//	-mode string            Numbering mode for *new*: "int" or "timestamp" (default "int").
//	-help                   Show built-in help.
//	-version                Print ledgrator-sqlite version.
//
// Flags must come before the command.
//
// *Precedence:* -conn flag, then $SQLITE_URL, then "conn" in -config.
//
// # Environment
//
//	SQLITE_URL                Connection string used when -conn is omitted.
//	SQLITE_SCHEMA_PATH        Used when -schema-path is omitted.
//	SQLITE_MIGRATIONS_DIR     Used when -migrations-dir is omitted.
//
// Example:
//
//	./data/dev.sqlite
//
// # Examples
//
//	# Apply every migration in ./db/sqlite
//	ledgrator-sqlite -conn './data/dev.sqlite' -schema-path db migrate
//
//	# Create a timestamp-based migration called add-users-table
//	ledgrator-sqlite -mode timestamp new "add users table"
//
// # Exit status
//
// The program exits non-zero on any error. Each command runs with a context that
// times out after ten minutes.
//
// For driver-agnostic details see the root ledgrator package.
package main
