package storage

import (
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/lib/pq"
)

var pgsqlDialect = Dialect{
	Name:          "pgsql",
	Placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
	TryAcquireSQL: "INSERT INTO svi_locks (loc_key, acquired_at) VALUES (%s, %s) ON CONFLICT (loc_key) DO NOTHING",
}

// OpenPostgres dials a Postgres-backed SHARED store using lib/pq.
func OpenPostgres(dsn *DSN) (*SQLBackend, error) {
	db, err := sql.Open("postgres", BuildPostgresDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	return newSQLBackend(db, pgsqlDialect)
}
