package persistence

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows serves canned rows to code written against pgx.Rows.
type fakeRows struct {
	values [][]any
	idx    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx < len(r.values) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	return assign(r.values[r.idx-1], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.values[r.idx-1], nil
}

// fakeRow is a single-row pgx.Row.
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("fake scan: column count mismatch")
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

// fakeQuerier records statements and answers them through the configured hooks.
type fakeQuerier struct {
	mu sync.Mutex

	queryFn func(sql string, args ...any) (pgx.Rows, error)
	rowFn   func(sql string, args ...any) pgx.Row
	execFn  func(sql string, args ...any) (pgconn.CommandTag, error)

	queries []string
	execs   []string
	args    [][]any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	f.execs = append(f.execs, sql)
	f.args = append(f.args, args)
	f.mu.Unlock()
	if f.execFn == nil {
		return pgconn.NewCommandTag("OK"), nil
	}
	return f.execFn(sql, args...)
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	f.queries = append(f.queries, sql)
	f.args = append(f.args, args)
	f.mu.Unlock()
	if f.queryFn == nil {
		return &fakeRows{}, nil
	}
	return f.queryFn(sql, args...)
}

func (f *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	f.queries = append(f.queries, sql)
	f.args = append(f.args, args)
	f.mu.Unlock()
	if f.rowFn == nil {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return f.rowFn(sql, args...)
}

func (f *fakeQuerier) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.execs)
}

func (f *fakeQuerier) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func columnsQuery(names ...string) func(sql string, args ...any) (pgx.Rows, error) {
	return func(sql string, args ...any) (pgx.Rows, error) {
		if !strings.Contains(sql, "information_schema.columns") {
			return nil, errors.New("unexpected query")
		}
		values := make([][]any, 0, len(names))
		for _, n := range names {
			values = append(values, []any{n})
		}
		return &fakeRows{values: values}, nil
	}
}
