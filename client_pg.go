package ledgrator

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"

	"github.com/bcomnes/ledgrator/sqlgen"
)

// NewPostgresClient creates a Client for PostgreSQL. db is expected to be
// opened with the "pgx" driver.
func NewPostgresClient(cfg Config, db *sql.DB) *Client {
	return newClient(cfg, db, sqlgen.Postgres{}, driverHooks{
		tableNamesSQL:   `SELECT table_name AS name FROM information_schema.tables WHERE table_schema = current_schema()`,
		returningInsert: true,
		quoteIdent:      pq.QuoteIdentifier,
		errorAttrs:      postgresErrorAttrs,
	})
}

func postgresErrorAttrs(err error) []any {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return []any{"sqlstate", pgErr.Code, "detail", pgErr.Detail, "position", pgErr.Position}
	}
	return nil
}
