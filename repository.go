package ledgrator

import (
	"context"
	"fmt"

	"github.com/bcomnes/ledgrator/entity"
)

// Mapper converts between a Go type and validated rows of one table.
type Mapper[T any] struct {
	Mapping entity.Mapping
	Schema  entity.Schema
	ToRow   func(T) entity.Row
	FromRow func(entity.Row) (T, error)
}

// Repository offers table-level CRUD for one entity type.
type Repository[T any] struct {
	ds     DataSource
	mapper Mapper[T]
}

// NewRepository creates a Repository backed by ds.
func NewRepository[T any](ds DataSource, m Mapper[T]) *Repository[T] {
	return &Repository[T]{ds: ds, mapper: m}
}

// Find runs query and decodes every row.
func (r *Repository[T]) Find(ctx context.Context, query string, args ...any) ([]T, error) {
	rows, err := QueryEntities(ctx, r.ds, r.mapper.Schema, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		item, err := r.mapper.FromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// GetAll returns every row of the table.
func (r *Repository[T]) GetAll(ctx context.Context) ([]T, error) {
	return r.Find(ctx, "SELECT * FROM "+r.mapper.Mapping.Table)
}

// GetOne returns the row whose primary key equals id, or ErrNotFound.
func (r *Repository[T]) GetOne(ctx context.Context, id any) (T, error) {
	m := r.mapper.Mapping
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s", m.Table, m.PrimaryKey, r.ds.Compiler().Dialect().Placeholder(1))
	items, err := r.Find(ctx, query, id)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, fmt.Errorf("%w: %s %s = %v", ErrNotFound, m.Table, m.PrimaryKey, id)
	}
	return items[0], nil
}

// Insert writes item and returns it with its auto-increment id set.
func (r *Repository[T]) Insert(ctx context.Context, item T) (T, error) {
	row, err := r.ds.Insert(ctx, r.mapper.ToRow(item), r.mapper.Schema, r.mapper.Mapping)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.mapper.FromRow(row)
}

func (r *Repository[T]) Update(ctx context.Context, item T) error {
	return r.ds.Update(ctx, r.mapper.ToRow(item), r.mapper.Schema, r.mapper.Mapping)
}

func (r *Repository[T]) Delete(ctx context.Context, item T) error {
	return r.ds.Delete(ctx, r.mapper.ToRow(item), r.mapper.Schema, r.mapper.Mapping)
}

// DeleteAll empties the table.
func (r *Repository[T]) DeleteAll(ctx context.Context) error {
	_, err := r.ds.Exec(ctx, "DELETE FROM "+r.mapper.Mapping.Table)
	return err
}
