// Package entity maps decoded database rows to validated entities and
// entities to record descriptors for the statement compiler.
//
// A Schema is an explicit, ordered list of fields. Rows are plain maps keyed
// by column name; no reflection is involved.
package entity

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ErrSchemaMismatch is returned when a row cannot be coerced to a schema.
var ErrSchemaMismatch = errors.New("object does not match schema")

// Kind is the value kind of a field.
type Kind int

const (
	Any Kind = iota
	String
	Integer
	Number
	Boolean
	Time
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case Time:
		return "time"
	default:
		return "any"
	}
}

// Field describes one entity field.
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
	Required bool
}

// Schema is the ordered field list of an entity.
type Schema struct {
	Fields []Field
}

// Field returns the field named name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Row is a decoded database row or an entity keyed by column name.
type Row map[string]any

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// ToEntity validates raw against the schema and returns a conformant copy.
//
// Null values of fields that are neither required nor nullable are dropped.
// Remaining values are coerced to the field kind; every problem found is
// reported in one error wrapping ErrSchemaMismatch.
func (s Schema) ToEntity(raw Row) (Row, error) {
	data := raw.Clone()

	for name, v := range data {
		f, ok := s.Field(name)
		if ok && v == nil && !f.Required && !f.Nullable {
			delete(data, name)
		}
	}

	var result *multierror.Error
	for _, f := range s.Fields {
		v, present := data[f.Name]
		switch {
		case !present:
			if f.Required {
				result = multierror.Append(result, fmt.Errorf("%s: required field missing", f.Name))
			}
		case v == nil:
			if !f.Nullable {
				result = multierror.Append(result, fmt.Errorf("%s: must not be null", f.Name))
			}
		default:
			cv, err := coerce(f.Kind, v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", f.Name, err))
				continue
			}
			data[f.Name] = cv
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
	}
	return data, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerce(k Kind, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}

	switch k {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case uint32:
			return int64(n), nil
		case float64:
			if n == math.Trunc(n) {
				return int64(n), nil
			}
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i, nil
			}
		}
	case Number:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case int:
			return float64(n), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, nil
			}
		}
	case Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			if b == 0 || b == 1 {
				return b == 1, nil
			}
		case string:
			if pb, err := strconv.ParseBool(b); err == nil {
				return pb, nil
			}
		}
	case Time:
		switch t := v.(type) {
		case time.Time:
			return t, nil
		case int64:
			return time.UnixMilli(t), nil
		case string:
			for _, layout := range timeLayouts {
				if pt, err := time.Parse(layout, t); err == nil {
					return pt, nil
				}
			}
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot use %T as %s", v, k)
}
