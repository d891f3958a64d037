// Package main implements the SQLite command line for ledgrator.
// It accepts a database path via the -conn flag, the SQLITE_URL environment
// variable or the "conn" field of the JSON config file.
package main

import (
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/bcomnes/ledgrator/internal/cli"
)

var driver = cli.Driver{
	Binary:    "ledgrator-sqlite",
	Driver:    "sqlite3",
	SQLDriver: "sqlite3",
	EnvPrefix: "SQLITE",
	ConnHelp:  "SQLite connection URL (typically a file path, e.g., \"./db.sqlite\").",
}

func main() {
	os.Exit(cli.Run(driver, os.Args[1:], os.Stdout, os.Stderr))
}
