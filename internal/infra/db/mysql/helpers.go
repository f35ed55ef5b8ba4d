package mysql

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "strings"

    driver "github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
    Scan(dest ...any) error
}

func isDuplicateKey(err error) bool {
    var me *driver.MySQLError
    return errors.As(err, &me) && me.Number == errDuplicateEntry
}

// jsonList encodes a list column; nil becomes [] so the JSON column stays NOT NULL
func jsonList[T any](v []T) ([]byte, error) {
    if v == nil {
        v = []T{}
    }
    return json.Marshal(v)
}

func decodeList[T any](raw []byte, dst *[]T) error {
    if len(raw) == 0 {
        *dst = []T{}
        return nil
    }
    return json.Unmarshal(raw, dst)
}

// trimmedOrEmpty keeps the NOT NULL text columns happy
func trimmedOrEmpty(s string) string {
    return strings.TrimSpace(s)
}
