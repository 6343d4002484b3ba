package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/nerrad567/gray-logic-driver/internal/authority"
	"github.com/nerrad567/gray-logic-driver/internal/infrastructure/database"
)

type scanner interface {
	Scan(dest ...any) error
}

// schema describes how one record kind maps onto its table.
type schema[T any] struct {
	table   string
	columns []string // excluding id
	values  func(*T) []any
	scan    func(scanner, *T) error // id first, then columns
	id      func(*T) *int64
	where   func(authority.Filter) ([]string, []any)
	check   func(*T) error
}

// table implements authority.Repository[T] over one SQLite table.
type table[T any] struct {
	db *database.DB
	s  schema[T]
}

func (t *table[T]) selectList() string {
	return "id, " + strings.Join(t.s.columns, ", ")
}

func (t *table[T]) List(ctx context.Context, filter authority.Filter, page authority.PageSpec) (*authority.Page[T], error) {
	conds, args := t.s.where(filter)
	if filter.ID != 0 {
		conds = append([]string{"id = ?"}, conds...)
		args = append([]any{filter.ID}, args...)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM " + t.s.table + where //nolint:gosec // table and columns are constants
	if err := t.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting %s: %w", t.s.table, err)
	}

	query := "SELECT " + t.selectList() + " FROM " + t.s.table + where + " ORDER BY id" //nolint:gosec // see above
	if !page.Unpaginated() {
		if page.Size <= 0 {
			return nil, fmt.Errorf("%w: page size must be positive or %d", authority.ErrInvalid, authority.SizeAll)
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Size, page.Offset())
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", t.s.table, err)
	}
	defer rows.Close()

	records := make([]T, 0)
	for rows.Next() {
		var r T
		if err := t.s.scan(rows, &r); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", t.s.table, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", t.s.table, err)
	}

	return &authority.Page[T]{Current: page.Current, Size: page.Size, Total: total, Records: records}, nil
}

func (t *table[T]) get(ctx context.Context, id int64) (*T, error) {
	query := "SELECT " + t.selectList() + " FROM " + t.s.table + " WHERE id = ?" //nolint:gosec // constants
	var r T
	if err := t.s.scan(t.db.QueryRowContext(ctx, query, id), &r); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %d", authority.ErrNotFound, t.s.table, id)
		}
		return nil, fmt.Errorf("reading %s %d: %w", t.s.table, id, err)
	}
	return &r, nil
}

func (t *table[T]) Add(ctx context.Context, record *T) (*T, error) {
	if err := t.s.check(record); err != nil {
		return nil, err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(t.s.columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.s.table, strings.Join(t.s.columns, ", "), placeholders)

	res, err := t.db.ExecContext(ctx, query, t.s.values(record)...)
	if err != nil {
		return nil, translate(t.s.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading %s id: %w", t.s.table, err)
	}
	return t.get(ctx, id)
}

func (t *table[T]) Update(ctx context.Context, record *T) (*T, error) {
	if err := t.s.check(record); err != nil {
		return nil, err
	}
	sets := make([]string, len(t.s.columns))
	for i, c := range t.s.columns {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", t.s.table, strings.Join(sets, ", "))
	id := *t.s.id(record)

	res, err := t.db.ExecContext(ctx, query, append(t.s.values(record), id)...)
	if err != nil {
		return nil, translate(t.s.table, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("%w: %s %d", authority.ErrNotFound, t.s.table, id)
	}
	return t.get(ctx, id)
}

func (t *table[T]) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.s.table+" WHERE id = ?", id) //nolint:gosec // constants
	if err != nil {
		return false, translate(t.s.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting %s %d: %w", t.s.table, id, err)
	}
	return n > 0, nil
}

// translate maps SQLite constraint failures onto authority.ErrConflict.
func translate(table string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %s: %s", authority.ErrConflict, table, se.Error())
	}
	return fmt.Errorf("writing %s: %w", table, err)
}

// conds collects "col = ?" clauses for the non-zero filter fields.
type conds struct {
	where []string
	args  []any
}

func (c *conds) add(column string, v int64) *conds {
	if v != 0 {
		c.where = append(c.where, column+" = ?")
		c.args = append(c.args, v)
	}
	return c
}
