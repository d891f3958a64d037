package sqlgen

import (
	"fmt"
	"reflect"
	"strings"
)

// Compiler turns table definitions and record descriptors into SQL text.
// It never executes anything.
type Compiler struct {
	dialect Dialect
}

// NewCompiler creates a Compiler for the given dialect. A nil dialect
// compiles SQLite syntax.
func NewCompiler(d Dialect) *Compiler {
	if d == nil {
		d = SQLite{}
	}
	return &Compiler{dialect: d}
}

// Dialect returns the compiler's dialect.
func (c *Compiler) Dialect() Dialect {
	return c.dialect
}

// CreateTable renders CREATE TABLE <name>(<col>, <col>, ...).
func (c *Compiler) CreateTable(table TableDefinition) string {
	cols := make([]string, 0, len(table.Columns))
	for _, col := range table.Columns {
		cols = append(cols, c.dialect.ColumnDefinition(col))
	}
	return fmt.Sprintf("CREATE TABLE %s(%s)", table.Name, strings.Join(cols, ", "))
}

// Insert compiles a single or multi-record INSERT.
func (c *Compiler) Insert(rec RecordPersist) (PreparedStatement, error) {
	records := rec.records()
	values, err := flatValues(records, rec)
	if err != nil {
		return PreparedStatement{}, err
	}

	n := 0
	groups := make([]string, records)
	for i := range groups {
		ph := make([]string, len(rec.Columns))
		for j := range ph {
			n++
			ph[j] = c.dialect.Placeholder(n)
		}
		groups[i] = "(" + strings.Join(ph, ", ") + ")"
	}

	return PreparedStatement{
		SQL:    fmt.Sprintf("INSERT INTO %s(%s) VALUES %s", rec.Table, strings.Join(rec.Columns, ", "), strings.Join(groups, ", ")),
		Values: values,
	}, nil
}

// Update compiles a single-record UPDATE. Key values are bound after the
// column values, in key order.
func (c *Compiler) Update(rec RecordPersist) (PreparedStatement, error) {
	records := rec.records()
	values, err := flatValues(records, rec)
	if err != nil {
		return PreparedStatement{}, err
	}
	if records != 1 {
		return PreparedStatement{}, fmt.Errorf("%w: update of %d records", ErrBatchNotSupported, records)
	}
	if len(rec.Keys) == 0 {
		return PreparedStatement{}, fmt.Errorf("%w: update on %s", ErrNoKeysProvided, rec.Table)
	}

	n := 0
	pairs := make([]string, len(rec.Columns))
	for i, col := range rec.Columns {
		n++
		pairs[i] = col + " = " + c.dialect.Placeholder(n)
	}
	where, keyValues := c.keyPredicate(rec.Keys, n)

	return PreparedStatement{
		SQL:    fmt.Sprintf("UPDATE %s SET %s WHERE %s", rec.Table, strings.Join(pairs, ", "), where),
		Values: append(values, keyValues...),
	}, nil
}

// Delete compiles a single-record DELETE.
func (c *Compiler) Delete(rec RecordPersist) (PreparedStatement, error) {
	if records := rec.records(); records != 1 {
		return PreparedStatement{}, fmt.Errorf("%w: delete of %d records", ErrBatchNotSupported, records)
	}
	if len(rec.Keys) == 0 {
		return PreparedStatement{}, fmt.Errorf("%w: delete on %s", ErrNoKeysProvided, rec.Table)
	}

	where, keyValues := c.keyPredicate(rec.Keys, 0)
	return PreparedStatement{
		SQL:    fmt.Sprintf("DELETE FROM %s WHERE %s", rec.Table, where),
		Values: keyValues,
	}, nil
}

// keyPredicate renders "k1 = ? AND k2 = ?" numbering placeholders after offset.
func (c *Compiler) keyPredicate(keys []Key, offset int) (string, []any) {
	pairs := make([]string, len(keys))
	values := make([]any, len(keys))
	for i, k := range keys {
		pairs[i] = k.Name + " = " + c.dialect.Placeholder(offset+i+1)
		values[i] = k.Value
	}
	return strings.Join(pairs, " AND "), values
}

// flatValues flattens rec.Values into one bind list, row-major.
func flatValues(records int, rec RecordPersist) ([]any, error) {
	cols := len(rec.Columns)
	if cols == 0 {
		return nil, fmt.Errorf("%w: table %s", ErrNoColumns, rec.Table)
	}

	if records == 1 {
		if len(rec.Values) != cols {
			return nil, fmt.Errorf("%w: %d columns, %d values", ErrValueCountMismatch, cols, len(rec.Values))
		}
		return append([]any(nil), rec.Values...), nil
	}

	if len(rec.Values) != records {
		return nil, fmt.Errorf("%w: persist of %d record(s) received values for %d", ErrRecordCountMismatch, records, len(rec.Values))
	}
	flat := make([]any, 0, records*cols)
	for i, entry := range rec.Values {
		row, ok := batchRow(entry)
		if !ok {
			return nil, fmt.Errorf("%w: values for record at %d is not a slice", ErrMalformedBatchEntry, i)
		}
		if len(row) != cols {
			return nil, fmt.Errorf("%w: values for record at %d has %d entries, expected %d", ErrMalformedBatchEntry, i, len(row), cols)
		}
		flat = append(flat, row...)
	}
	return flat, nil
}

// batchRow returns the values of one batch entry. Any slice kind is accepted.
func batchRow(entry any) ([]any, bool) {
	if row, ok := entry.([]any); ok {
		return row, true
	}
	v := reflect.ValueOf(entry)
	if v.Kind() != reflect.Slice {
		return nil, false
	}
	row := make([]any, v.Len())
	for i := range row {
		row[i] = v.Index(i).Interface()
	}
	return row, true
}
