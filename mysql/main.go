// Package main implements the MySQL command line for ledgrator.
// It accepts a DSN via the -conn flag, the MYSQL_URL environment variable or
// the "conn" field of the JSON config file
// (e.g., "user:pass@tcp(localhost:3306)/dbname").
package main

import (
	"os"

	"github.com/bcomnes/ledgrator"
	"github.com/bcomnes/ledgrator/internal/cli"
)

var driver = cli.Driver{
	Binary:    "ledgrator-mysql",
	Driver:    "mysql",
	EnvPrefix: "MYSQL",
	ConnHelp:  "MySQL DSN, e.g. \"user:pass@tcp(localhost:3306)/app\".",
	Open:      ledgrator.OpenMySQL,
}

func main() {
	os.Exit(cli.Run(driver, os.Args[1:], os.Stdout, os.Stderr))
}
