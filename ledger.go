package ledgrator

import (
	"fmt"
	"time"

	"github.com/bcomnes/ledgrator/entity"
	"github.com/bcomnes/ledgrator/sqlgen"
)

// LedgerTable is the fixed definition of the applied-migrations table.
var LedgerTable = sqlgen.TableDefinition{
	Name: "schema_migration",
	Columns: []sqlgen.ColumnDefinition{
		{Name: "id", Type: sqlgen.Integer, IsAutoIncrement: true, PrimaryKey: true},
		{Name: "version", Type: sqlgen.Varchar, Size: 20, NotNull: true},
		{Name: "name", Type: sqlgen.Varchar, Size: 128, NotNull: true},
		{Name: "applied", Type: sqlgen.DateTime, NotNull: true},
		{Name: "checksum", Type: sqlgen.Text, NotNull: true},
	},
}

// ledgerColumnSize returns the declared size of a ledger column.
func ledgerColumnSize(column string) int {
	for _, c := range LedgerTable.Columns {
		if c.Name == column {
			return c.Size
		}
	}
	return 0
}

// LedgerEntry is one row of the ledger.
type LedgerEntry struct {
	ID       int64
	Version  string
	Name     string
	Applied  time.Time
	Checksum string
}

// Unit returns the entry as a MigrationUnit without contents.
func (e LedgerEntry) Unit() MigrationUnit {
	return MigrationUnit{Version: e.Version, Name: e.Name, Checksum: e.Checksum}
}

var ledgerSchema = entity.Schema{Fields: []entity.Field{
	{Name: "id", Kind: entity.Integer},
	{Name: "version", Kind: entity.String, Required: true},
	{Name: "name", Kind: entity.String, Required: true},
	{Name: "applied", Kind: entity.Time, Required: true},
	{Name: "checksum", Kind: entity.String, Required: true},
}}

// LedgerMapper maps LedgerEntry to the ledger table.
var LedgerMapper = Mapper[LedgerEntry]{
	Mapping: entity.Mapping{Table: LedgerTable.Name, PrimaryKey: "id", AutoIncrement: "id"},
	Schema:  ledgerSchema,
	ToRow: func(e LedgerEntry) entity.Row {
		row := entity.Row{
			"version":  e.Version,
			"name":     e.Name,
			"applied":  e.Applied,
			"checksum": e.Checksum,
		}
		if e.ID != 0 {
			row["id"] = e.ID
		}
		return row
	},
	FromRow: func(row entity.Row) (LedgerEntry, error) {
		var e LedgerEntry
		var ok bool
		if v, present := row["id"]; present {
			if e.ID, ok = v.(int64); !ok {
				return e, fmt.Errorf("ledger id: unexpected %T", v)
			}
		}
		e.Version, _ = row["version"].(string)
		e.Name, _ = row["name"].(string)
		e.Applied, _ = row["applied"].(time.Time)
		e.Checksum, _ = row["checksum"].(string)
		return e, nil
	},
}
