package isolation

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

type memoryBackend[T any] struct {
	schema Schema[T]

	mu    sync.RWMutex
	rows  map[string]T
	order []string // insertion order for stable unordered reads
}

func newMemoryBackend[T any](schema Schema[T]) *memoryBackend[T] {
	return &memoryBackend[T]{schema: schema, rows: make(map[string]T)}
}

// Keys are unique per table, not per tenant, mirroring the primary keys in Postgres.
func (m *memoryBackend[T]) keyOf(rec T) string {
	return fmt.Sprint(m.schema.row(rec)[m.schema.Key])
}

func (m *memoryBackend[T]) matches(rec T, f Filter) bool {
	row := m.schema.row(rec)
	for c, want := range f {
		got := row[c]
		if want == nil {
			if !isNil(got) {
				return false
			}
			continue
		}
		if !equalValue(got, want) {
			return false
		}
	}
	return true
}

func (m *memoryBackend[T]) find(ctx context.Context, f Filter, opts FindOptions) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]T, 0)
	for _, k := range m.order {
		rec := m.rows[k]
		if m.matches(rec, f) {
			out = append(out, rec)
		}
	}
	m.mu.RUnlock()

	if opts.Order != nil {
		col := opts.Order.Column
		slices.SortStableFunc(out, func(a, b T) int {
			c := compareValue(m.schema.row(a)[col], m.schema.row(b)[col])
			if opts.Order.Desc {
				return -c
			}
			return c
		})
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memoryBackend[T]) insert(ctx context.Context, rec T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := m.keyOf(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[k]; ok {
		return ErrDuplicate
	}
	m.rows[k] = rec
	m.order = append(m.order, k)
	return nil
}

func (m *memoryBackend[T]) update(ctx context.Context, key any, tenantID string, rec T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k := fmt.Sprint(key)
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[k]
	if !ok || m.schema.row(cur)[TenantColumn] != tenantID {
		return ErrNotFound
	}
	m.rows[k] = rec
	return nil
}

func (m *memoryBackend[T]) delete(ctx context.Context, f Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	kept := m.order[:0]
	for _, k := range m.order {
		if m.matches(m.rows[k], f) {
			delete(m.rows, k)
			n++
			continue
		}
		kept = append(kept, k)
	}
	m.order = kept
	return n, nil
}

func isNil(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *time.Time:
		return x == nil
	case *string:
		return x == nil
	}
	return false
}

func deref(v any) any {
	switch x := v.(type) {
	case *time.Time:
		if x != nil {
			return *x
		}
	case *string:
		if x != nil {
			return *x
		}
	}
	return v
}

func equalValue(a, b any) bool {
	a, b = deref(a), deref(b)
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return a == b
}

func compareValue(a, b any) int {
	a, b = deref(a), deref(b)
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case string:
		if y, ok := b.(string); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case int64:
		if y, ok := b.(int64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case int:
		if y, ok := b.(int); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return 0
}
