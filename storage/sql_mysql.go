package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = Dialect{
	Name:        "mysql",
	Placeholder: func(int) string { return "?" },
	TryAcquireSQL: "INSERT IGNORE INTO svi_locks (loc_key, acquired_at) VALUES (%s, %s)",
}

// OpenMySQL dials a MySQL-backed SHARED store using go-sql-driver/mysql.
func OpenMySQL(dsn *DSN) (*SQLBackend, error) {
	db, err := sql.Open("mysql", BuildMySQLDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("storage: open mysql: %w", err)
	}
	return newSQLBackend(db, mysqlDialect)
}
