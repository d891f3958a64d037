package ledgrator

import (
	"context"
	"fmt"

	"github.com/bcomnes/ledgrator/entity"
	"github.com/bcomnes/ledgrator/sqlgen"
)

// Result is the outcome of a single parameterized statement.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// DataSource is the driver adapter consumed by repositories and migrators.
type DataSource interface {
	DriverName() string
	Compiler() *sqlgen.Compiler

	TableNames(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, table sqlgen.TableDefinition) error
	DropTable(ctx context.Context, name string) error

	// ExecBatch runs one or more statements without parameter binding.
	ExecBatch(ctx context.Context, script string) error
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	Query(ctx context.Context, query string, args ...any) ([]entity.Row, error)

	Insert(ctx context.Context, row entity.Row, schema entity.Schema, m entity.Mapping) (entity.Row, error)
	Update(ctx context.Context, row entity.Row, schema entity.Schema, m entity.Mapping) error
	Delete(ctx context.Context, row entity.Row, schema entity.Schema, m entity.Mapping) error
}

// Transactor is implemented by data sources that can run work inside a
// database transaction. fn receives a DataSource bound to the transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(DataSource) error) error
}

// QueryEntities runs query and validates every row against schema.
func QueryEntities(ctx context.Context, ds DataSource, schema entity.Schema, query string, args ...any) ([]entity.Row, error) {
	rows, err := ds.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Row, 0, len(rows))
	for i, raw := range rows {
		e, err := schema.ToEntity(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
