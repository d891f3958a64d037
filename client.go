package ledgrator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"

	"github.com/bcomnes/ledgrator/entity"
	"github.com/bcomnes/ledgrator/sqlgen"
)

// NewClient creates a new Client based on the provided configuration and database connection.
func NewClient(cfg Config, db *sql.DB) (*Client, error) {
	switch canonicalDriver(cfg.Driver) {
	case "sqlite":
		return NewSqlite3Client(cfg, db), nil
	case "postgres":
		return NewPostgresClient(cfg, db), nil
	case "mysql":
		return NewMySQLClient(cfg, db), nil
	default:
		return nil, fmt.Errorf("db driver '%s' not supported. Must be one of: sqlite3, pg or mysql", cfg.Driver)
	}
}

// conn is satisfied by both *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// driverHooks holds what differs between drivers beyond the SQL dialect.
type driverHooks struct {
	// tableNamesSQL lists table names in a single "name" column.
	tableNamesSQL string

	// returningInsert fetches auto-increment ids with RETURNING instead of
	// sql.Result.LastInsertId.
	returningInsert bool

	// splitBatch executes scripts one statement at a time.
	splitBatch bool

	quoteIdent func(name string) string

	// errorAttrs extracts driver specific log attributes from an error.
	errorAttrs func(err error) []any
}

// Client implements DataSource over database/sql.
type Client struct {
	cfg      Config
	db       *sql.DB
	conn     conn
	compiler *sqlgen.Compiler
	hooks    driverHooks
	logger   Logger
}

func newClient(cfg Config, db *sql.DB, dialect sqlgen.Dialect, hooks driverHooks) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:      cfg,
		db:       db,
		compiler: sqlgen.NewCompiler(dialect),
		hooks:    hooks,
		logger:   cfg.Logger,
	}
	if db != nil {
		c.conn = db
	}
	return c
}

// DriverName returns the canonical driver name ("sqlite", "postgres", "mysql").
func (c *Client) DriverName() string {
	return c.compiler.Dialect().Name()
}

// Compiler returns the statement compiler for the client's dialect.
func (c *Client) Compiler() *sqlgen.Compiler {
	return c.compiler
}

// DB returns the underlying connection pool. It is nil inside WithTx.
func (c *Client) DB() *sql.DB {
	return c.db
}

// QuoteIdent quotes a table or column name for the client's driver.
func (c *Client) QuoteIdent(name string) string {
	return c.hooks.quoteIdent(name)
}

func (c *Client) sqlOut(query string) {
	if c.cfg.EchoSQL {
		c.logger.Debug("[SQL] " + query)
	}
}

func (c *Client) sqlOutError(query string, err error) {
	if !c.cfg.EchoErrorSQL {
		return
	}
	args := []any{"error", err}
	if c.hooks.errorAttrs != nil {
		args = append(args, c.hooks.errorAttrs(err)...)
	}
	c.logger.Error("[FAILED] [SQL] "+query, args...)
}

// TableNames lists the tables visible to the connection.
func (c *Client) TableNames(ctx context.Context) ([]string, error) {
	rows, err := c.Query(ctx, c.hooks.tableNamesSQL)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		switch v := row["name"].(type) {
		case string:
			names = append(names, v)
		case []byte:
			names = append(names, string(v))
		}
	}
	return names, nil
}

// CreateTable compiles and runs CREATE TABLE for table.
func (c *Client) CreateTable(ctx context.Context, table sqlgen.TableDefinition) error {
	return c.ExecBatch(ctx, c.compiler.CreateTable(table))
}

// DropTable drops the named table.
func (c *Client) DropTable(ctx context.Context, name string) error {
	return c.ExecBatch(ctx, "DROP TABLE "+c.QuoteIdent(name))
}

// ExecBatch executes a SQL script.
func (c *Client) ExecBatch(ctx context.Context, script string) error {
	statements := []string{script}
	if c.hooks.splitBatch {
		statements = splitStatements(script)
	}
	for _, stmt := range statements {
		c.sqlOut(stmt)
		if _, err := c.conn.ExecContext(ctx, stmt); err != nil {
			c.sqlOutError(stmt, err)
			return err
		}
	}
	return nil
}

// Exec runs a single parameterized statement.
func (c *Client) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	c.sqlOut(query)
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		c.sqlOutError(query, err)
		return Result{}, err
	}
	var out Result
	// Not every driver reports these; pgx for one has no LastInsertId.
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out, nil
}

// Query runs query and returns every row keyed by column name.
func (c *Client) Query(ctx context.Context, query string, args ...any) ([]entity.Row, error) {
	c.sqlOut(query)
	rows, err := c.conn.QueryContext(ctx, query, args...)
	if err != nil {
		c.sqlOutError(query, err)
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []entity.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(entity.Row, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		c.sqlOutError(query, err)
		return nil, err
	}
	return out, nil
}

// Insert writes row and returns it with the auto-increment column assigned.
func (c *Client) Insert(ctx context.Context, row entity.Row, schema entity.Schema, m entity.Mapping) (entity.Row, error) {
	st, err := c.compiler.Insert(entity.RecordPersist(row, schema, m))
	if err != nil {
		return nil, err
	}

	if c.hooks.returningInsert && m.AutoIncrement != "" {
		query := st.SQL + " RETURNING " + m.AutoIncrement
		c.sqlOut(query)
		var id int64
		if err := c.conn.QueryRowContext(ctx, query, st.Values...).Scan(&id); err != nil {
			c.sqlOutError(query, err)
			return nil, err
		}
		return entity.AssignAutoIncrement(id, row, m), nil
	}

	res, err := c.Exec(ctx, st.SQL, st.Values...)
	if err != nil {
		return nil, err
	}
	return entity.AssignAutoIncrement(res.LastInsertID, row, m), nil
}

// Update writes row, matching on the mapping's primary key.
func (c *Client) Update(ctx context.Context, row entity.Row, schema entity.Schema, m entity.Mapping) error {
	st, err := c.compiler.Update(entity.RecordPersist(row, schema, m))
	if err != nil {
		return err
	}
	_, err = c.Exec(ctx, st.SQL, st.Values...)
	return err
}

// Delete removes row, matching on the mapping's primary key.
func (c *Client) Delete(ctx context.Context, row entity.Row, schema entity.Schema, m entity.Mapping) error {
	st, err := c.compiler.Delete(entity.RecordPersist(row, schema, m))
	if err != nil {
		return err
	}
	_, err = c.Exec(ctx, st.SQL, st.Values...)
	return err
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
// Nested calls reuse the open transaction.
func (c *Client) WithTx(ctx context.Context, fn func(DataSource) error) error {
	if c.db == nil {
		return fn(c)
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txClient := *c
	txClient.db = nil
	txClient.conn = tx

	if err := fn(&txClient); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// splitStatements splits a MySQL script on semicolons for drivers that
// refuse multi-statement execution. A semicolon inside quotes or a comment
// does not end a statement. Inside a string a backslash escapes the next
// character. Chunks holding only comments are dropped.
func splitStatements(sqlText string) []string {
	var (
		out     []string
		current strings.Builder
		hasCode bool
		quote   rune
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if hasCode && stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
		hasCode = false
	}

	runes := []rune(sqlText)
	at := func(i int) rune {
		if i < len(runes) {
			return runes[i]
		}
		return 0
	}

	for i := 0; i < len(runes); i++ {
		r, next := runes[i], at(i+1)

		if quote != 0 {
			current.WriteRune(r)
			switch {
			case r == '\\' && quote != '`' && i+1 < len(runes):
				current.WriteRune(next)
				i++
			case r == quote && next == quote:
				current.WriteRune(next)
				i++
			case r == quote:
				quote = 0
			}
			continue
		}

		switch {
		case r == '\'' || r == '"' || r == '`':
			quote = r
			hasCode = true
			current.WriteRune(r)
		case r == '-' && next == '-', r == '#':
			for ; i < len(runes) && runes[i] != '\n'; i++ {
				current.WriteRune(runes[i])
			}
			if i < len(runes) {
				current.WriteRune('\n')
			}
		case r == '/' && next == '*':
			// /*! ... */ is executed by MySQL
			if at(i+2) == '!' {
				hasCode = true
			}
			current.WriteString("/*")
			i += 2
			for ; i < len(runes) && (runes[i] != '*' || at(i+1) != '/'); i++ {
				current.WriteRune(runes[i])
			}
			if i < len(runes) {
				current.WriteString("*/")
				i++
			}
		case r == ';':
			flush()
		default:
			if !unicode.IsSpace(r) {
				hasCode = true
			}
			current.WriteRune(r)
		}
	}
	flush()
	return out
}
