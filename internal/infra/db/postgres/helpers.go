package postgres

import (
    "context"
    "database/sql"
)

type querier interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
    Scan(dest ...any) error
}

// nonNil keeps TEXT[] columns from receiving NULL
func nonNil(s []string) []string {
    if s == nil {
        return []string{}
    }
    return s
}
