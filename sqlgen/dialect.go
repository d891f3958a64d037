package sqlgen

import (
	"strconv"
	"strings"
)

// Dialect supplies the driver specific parts of statement compilation.
type Dialect interface {
	// Name returns the driver name, e.g. "sqlite".
	Name() string

	// ClosestType maps an abstract column type to the native type.
	ClosestType(t ColumnType) string

	// ColumnDefinition renders one column for CREATE TABLE.
	ColumnDefinition(c ColumnDefinition) string

	// Placeholder returns the bind placeholder for the n-th (1-based) value.
	Placeholder(n int) string
}

// columnDefinition joins the column clauses in their fixed order:
// type, primary key, auto-increment, not null.
func columnDefinition(name, nativeType string, size int, primaryKey bool, autoIncrement string, notNull bool) string {
	typ := nativeType
	if size > 0 {
		typ += "(" + strconv.Itoa(size) + ")"
	}
	parts := []string{name, typ}
	if primaryKey {
		parts = append(parts, "PRIMARY KEY")
	}
	if autoIncrement != "" {
		parts = append(parts, autoIncrement)
	}
	if notNull {
		parts = append(parts, "NOT NULL")
	}
	return strings.Join(parts, " ")
}

// SQLite is the SQLite dialect. Abstract types are used verbatim.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) ClosestType(t ColumnType) string { return string(t) }

func (d SQLite) ColumnDefinition(c ColumnDefinition) string {
	autoInc := ""
	if c.IsAutoIncrement {
		autoInc = "AUTOINCREMENT"
	}
	return columnDefinition(c.Name, d.ClosestType(c.Type), c.Size, c.PrimaryKey, autoInc, c.NotNull)
}

func (SQLite) Placeholder(int) string { return "?" }

// Postgres is the PostgreSQL dialect. Auto-increment columns become BIGSERIAL.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) ClosestType(t ColumnType) string {
	switch t {
	case Integer:
		return "BIGINT"
	case Float:
		return "DOUBLE PRECISION"
	case DateTime:
		return "TIMESTAMPTZ"
	default:
		return string(t)
	}
}

func (d Postgres) ColumnDefinition(c ColumnDefinition) string {
	if c.IsAutoIncrement {
		return columnDefinition(c.Name, "BIGSERIAL", 0, c.PrimaryKey, "", c.NotNull)
	}
	return columnDefinition(c.Name, d.ClosestType(c.Type), c.Size, c.PrimaryKey, "", c.NotNull)
}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// MySQL is the MySQL dialect.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) ClosestType(t ColumnType) string {
	switch t {
	case Integer:
		return "BIGINT"
	case Float:
		return "DOUBLE"
	default:
		return string(t)
	}
}

func (d MySQL) ColumnDefinition(c ColumnDefinition) string {
	size := c.Size
	// MySQL refuses VARCHAR without a length.
	if c.Type == Varchar && size == 0 {
		size = 255
	}
	autoInc := ""
	if c.IsAutoIncrement {
		autoInc = "AUTO_INCREMENT"
	}
	return columnDefinition(c.Name, d.ClosestType(c.Type), size, c.PrimaryKey, autoInc, c.NotNull)
}

func (MySQL) Placeholder(int) string { return "?" }
