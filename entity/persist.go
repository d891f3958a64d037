package entity

import "github.com/bcomnes/ledgrator/sqlgen"

// Mapping binds an entity to its table.
type Mapping struct {
	Table      string
	PrimaryKey string

	// AutoIncrement names the driver-assigned column, if any. It is never
	// written by inserts or updates.
	AutoIncrement string
}

// RecordPersist builds the single-record descriptor for row. Columns follow
// schema field order and include only fields present in row; the primary key
// becomes the only key.
func RecordPersist(row Row, schema Schema, m Mapping) sqlgen.RecordPersist {
	rec := sqlgen.RecordPersist{
		Table:   m.Table,
		Records: 1,
	}
	if m.PrimaryKey != "" {
		rec.Keys = []sqlgen.Key{{Name: m.PrimaryKey, Value: row[m.PrimaryKey]}}
	}
	for _, f := range schema.Fields {
		if f.Name == m.AutoIncrement {
			continue
		}
		v, ok := row[f.Name]
		if !ok {
			continue
		}
		rec.Columns = append(rec.Columns, f.Name)
		rec.Values = append(rec.Values, v)
	}
	return rec
}

// AssignAutoIncrement returns a copy of row with the auto-increment column
// set to id. Rows of mappings without one are returned unchanged.
func AssignAutoIncrement(id int64, row Row, m Mapping) Row {
	if m.AutoIncrement == "" {
		return row
	}
	out := row.Clone()
	out[m.AutoIncrement] = id
	return out
}
