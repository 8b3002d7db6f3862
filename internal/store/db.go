package store

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

// filter collects AND-ed conditions with positional parameters. A "?" in a
// clause is replaced by the next $n.
type filter struct {
	clauses []string
	args    []any
}

func newFilter(clause string, args ...any) *filter {
	f := &filter{}
	f.add(clause, args...)
	return f
}

func (f *filter) add(clause string, args ...any) {
	for _, arg := range args {
		f.args = append(f.args, arg)
		clause = strings.Replace(clause, "?", "$"+itoa(len(f.args)), 1)
	}
	f.clauses = append(f.clauses, clause)
}

func (f *filter) where() string {
	return " WHERE " + strings.Join(f.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the SQL suffix.
func (f *filter) page(limit, offset int) string {
	f.args = append(f.args, limit, offset)
	return " LIMIT $" + itoa(len(f.args)-1) + " OFFSET $" + itoa(len(f.args))
}

func itoa(value int) string {
	return strconv.Itoa(value)
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
