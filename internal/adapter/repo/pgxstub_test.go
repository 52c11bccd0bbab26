package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// assign copies values into scan destinations by position.
func assign(dest []any, values ...any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *int64:
			*d = v.(int64)
		case *[]byte:
			if v == nil {
				*d = nil
			} else {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

type stubRows struct {
	data [][]any
	pos  int
}

func (r *stubRows) Close() {}
func (r *stubRows) Err() error { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error) { return nil, fmt.Errorf("values not supported in test rows") }
func (r *stubRows) RawValues() [][]byte { return nil }
func (r *stubRows) Conn() *pgx.Conn { return nil }

func (r *stubRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return assign(dest, r.data[r.pos-1]...)
}

type call struct {
	query string
	args  []any
}

type stubDB struct {
	calls    []call
	row      func(query string, args []any) stubRow
	rows     [][]any
	execErr  error
	queryErr error
}

func (s *stubDB) record(query string, args []any) {
	s.calls = append(s.calls, call{query: query, args: args})
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.record(query, args)
	return pgconn.NewCommandTag("UPDATE 1"), s.execErr
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.record(query, args)
	if s.row == nil {
		return stubRow{}
	}
	return s.row(query, args)
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.record(query, args)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubRows{data: s.rows}, nil
}

func (s *stubDB) last() call {
	return s.calls[len(s.calls)-1]
}

func contains(query, fragment string) bool {
	return strings.Contains(query, fragment)
}
