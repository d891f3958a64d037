package sqlgen

// ColumnType is the abstract column type understood by every dialect.
type ColumnType string

// Abstract column types.
const (
	Boolean  ColumnType = "BOOLEAN"
	Varchar  ColumnType = "VARCHAR"
	Text     ColumnType = "TEXT"
	Integer  ColumnType = "INTEGER"
	Float    ColumnType = "FLOAT"
	Date     ColumnType = "DATE"
	DateTime ColumnType = "DATETIME"
)

// ColumnDefinition describes one column of a TableDefinition.
type ColumnDefinition struct {
	Name string
	Type ColumnType

	// Size is rendered as TYPE(Size) when greater than zero.
	Size int

	NotNull         bool
	PrimaryKey      bool
	IsAutoIncrement bool
}

// TableDefinition is a static table description used for CREATE TABLE.
type TableDefinition struct {
	Name    string
	Columns []ColumnDefinition
}

// Key is one column/value pair of a WHERE predicate. Keys are rendered and
// bound in slice order.
type Key struct {
	Name  string
	Value any
}

// RecordPersist describes an insert, update or delete before it is compiled.
//
// For a single record Values holds one value per column. When Records is
// greater than one, every element of Values must be a slice holding one
// value per column.
type RecordPersist struct {
	Table   string
	Columns []string
	Values  []any

	// Records defaults to 1 when zero.
	Records int

	Keys []Key
}

func (r RecordPersist) records() int {
	if r.Records == 0 {
		return 1
	}
	return r.Records
}

// PreparedStatement is parameterized SQL text plus its positional bind values.
type PreparedStatement struct {
	SQL    string
	Values []any
}
