package ledgrator

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/bcomnes/ledgrator/sqlgen"
)

// NewMySQLClient creates a Client for MySQL. Scripts are split into single
// statements, so multiStatements is not required on the DSN.
func NewMySQLClient(cfg Config, db *sql.DB) *Client {
	return newClient(cfg, db, sqlgen.MySQL{}, driverHooks{
		tableNamesSQL: `SELECT table_name AS name FROM information_schema.tables WHERE table_schema = DATABASE()`,
		splitBatch:    true,
		quoteIdent: func(name string) string {
			return "`" + strings.ReplaceAll(name, "`", "``") + "`"
		},
		errorAttrs: mysqlErrorAttrs,
	})
}

// OpenMySQL validates dsn and opens a pool with parseTime enabled so DATETIME
// columns decode to time.Time.
func OpenMySQL(dsn string) (*sql.DB, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	mc.ParseTime = true
	return sql.Open("mysql", mc.FormatDSN())
}

func mysqlErrorAttrs(err error) []any {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return []any{"number", me.Number, "sqlstate", string(me.SQLState[:])}
	}
	return nil
}
