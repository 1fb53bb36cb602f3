package isolation

import (
	"fmt"
	"slices"
)

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Schema describes how a record type maps onto a tenant-partitioned table.
// Columns must include Key and TenantColumn; Values returns one value per
// column in the same order, and Scan reads them back in that order.
type Schema[T any] struct {
	Table   string
	Key     string
	Columns []string

	Values     func(T) []any
	Scan       func(Scanner) (T, error)
	WithTenant func(T, string) T
}

func (s Schema[T]) validate() error {
	if s.Table == "" || s.Key == "" {
		return fmt.Errorf("schema: table and key are required")
	}
	if !slices.Contains(s.Columns, s.Key) {
		return fmt.Errorf("schema %s: key %q not in columns", s.Table, s.Key)
	}
	if !slices.Contains(s.Columns, TenantColumn) {
		return fmt.Errorf("schema %s: %q not in columns", s.Table, TenantColumn)
	}
	if s.Values == nil || s.Scan == nil || s.WithTenant == nil {
		return fmt.Errorf("schema %s: Values, Scan and WithTenant are required", s.Table)
	}
	return nil
}

func (s Schema[T]) hasColumn(c string) bool {
	return slices.Contains(s.Columns, c)
}

func (s Schema[T]) checkFilter(f Filter) error {
	for c := range f {
		if !s.hasColumn(c) {
			return fmt.Errorf("%s.%s: %w", s.Table, c, ErrUnknownColumn)
		}
	}
	return nil
}

func (s Schema[T]) row(rec T) map[string]any {
	vals := s.Values(rec)
	out := make(map[string]any, len(s.Columns))
	for i, c := range s.Columns {
		if i < len(vals) {
			out[c] = vals[i]
		}
	}
	return out
}

// Order sorts Find results by a column.
type Order struct {
	Column string
	Desc   bool
}

type FindOptions struct {
	Order *Order
	Limit int
}

type FindOption func(*FindOptions)

func OrderBy(column string, desc bool) FindOption {
	return func(o *FindOptions) { o.Order = &Order{Column: column, Desc: desc} }
}

func Limit(n int) FindOption {
	return func(o *FindOptions) { o.Limit = n }
}
