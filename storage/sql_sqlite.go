package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = Dialect{
	Name:          "sqlite",
	Placeholder:   func(int) string { return "?" },
	TryAcquireSQL: "INSERT INTO svi_locks (loc_key, acquired_at) VALUES (%s, %s) ON CONFLICT (loc_key) DO NOTHING",
}

// OpenSQLite dials a SQLite-backed SHARED store using modernc.org/sqlite,
// the pure-Go driver the teacher's own go.mod already depends on. Useful
// as the distributed backend's single-node/dev-mode stand-in.
func OpenSQLite(dsn *DSN) (*SQLBackend, error) {
	db, err := sql.Open("sqlite", BuildSQLiteDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	return newSQLBackend(db, sqliteDialect)
}
