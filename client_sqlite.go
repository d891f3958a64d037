package ledgrator

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/bcomnes/ledgrator/sqlgen"
)

// NewSqlite3Client creates a Client for SQLite. db must be opened with the
// "sqlite3" driver.
func NewSqlite3Client(cfg Config, db *sql.DB) *Client {
	return newClient(cfg, db, sqlgen.SQLite{}, driverHooks{
		tableNamesSQL: `SELECT name FROM sqlite_master WHERE type='table'`,
		quoteIdent: func(name string) string {
			return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
		},
		errorAttrs: sqliteErrorAttrs,
	})
}

func sqliteErrorAttrs(err error) []any {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return []any{"code", int(se.Code), "extended_code", int(se.ExtendedCode)}
	}
	return nil
}
