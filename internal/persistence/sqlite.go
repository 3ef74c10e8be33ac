package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
)

// OpenSQLite creates a SQLite backed store. path may be a file path or ":memory:".
// The pool is limited to one connection so writers never contend and an
// in-memory database is shared by every query.
func OpenSQLite(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return newStore(db, DialectSQLite, log), nil
}
