package isolation

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"academy-platform/pkg/utils"

	"github.com/jackc/pgx/v5"
)

type postgresBackend[T any] struct {
	db     *sql.DB
	schema Schema[T]
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// whereClause renders f with placeholders starting at $start. Columns are
// emitted in sorted order so the same filter always yields the same SQL.
func whereClause(f Filter, start int) (string, []any) {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	slices.Sort(cols)

	parts := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	n := start
	for _, c := range cols {
		v := f[c]
		if v == nil {
			parts = append(parts, quote(c)+" IS NULL")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = $%d", quote(c), n))
		args = append(args, v)
		n++
	}
	return strings.Join(parts, " AND "), args
}

func buildSelect[T any](s Schema[T], f Filter, opts FindOptions) (string, []any) {
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = quote(c)
	}
	where, args := whereClause(f, 1)

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s", strings.Join(cols, ", "), quote(s.Table), where)
	if opts.Order != nil {
		dir := "ASC"
		if opts.Order.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", quote(opts.Order.Column), dir)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}
	return b.String(), args
}

func buildInsert[T any](s Schema[T], rec T) (string, []any) {
	cols := make([]string, len(s.Columns))
	ph := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = quote(c)
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(s.Table), strings.Join(cols, ", "), strings.Join(ph, ", "))
	return q, s.Values(rec)
}

func buildUpdate[T any](s Schema[T], key any, tenantID string, rec T) (string, []any) {
	vals := s.Values(rec)
	sets := make([]string, 0, len(s.Columns))
	args := make([]any, 0, len(s.Columns)+2)
	n := 1
	for i, c := range s.Columns {
		if c == s.Key || c == TenantColumn {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", quote(c), n))
		args = append(args, vals[i])
		n++
	}
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d AND %s = $%d",
		quote(s.Table), strings.Join(sets, ", "), quote(s.Key), n, quote(TenantColumn), n+1)
	args = append(args, key, tenantID)
	return q, args
}

func buildDelete[T any](s Schema[T], f Filter) (string, []any) {
	where, args := whereClause(f, 1)
	return fmt.Sprintf("DELETE FROM %s WHERE %s", quote(s.Table), where), args
}

func (p *postgresBackend[T]) find(ctx context.Context, f Filter, opts FindOptions) ([]T, error) {
	q, args := buildSelect(p.schema, f, opts)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		rec, err := p.schema.Scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *postgresBackend[T]) insert(ctx context.Context, rec T) error {
	q, args := buildInsert(p.schema, rec)
	if _, err := p.db.ExecContext(ctx, q, args...); err != nil {
		if utils.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (p *postgresBackend[T]) update(ctx context.Context, key any, tenantID string, rec T) error {
	q, args := buildUpdate(p.schema, key, tenantID, rec)
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *postgresBackend[T]) delete(ctx context.Context, f Filter) (int64, error) {
	q, args := buildDelete(p.schema, f)
	res, err := p.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
