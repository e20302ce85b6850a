package storage

import "fmt"

// Open dials the SHARED backend named by a DSN string's driver prefix
// (mysql:/sqlite:/pgsql:), used by the VM's config-driven bootstrap
// (internal/config) and the `svivm worker --store=...` flag.
func Open(dsnString string) (*SQLBackend, error) {
	dsn, err := ParseDSN(dsnString)
	if err != nil {
		return nil, err
	}
	switch dsn.Driver {
	case "mysql":
		return OpenMySQL(dsn)
	case "pgsql", "postgres", "postgresql":
		return OpenPostgres(dsn)
	case "sqlite", "sqlite3":
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", dsn.Driver)
	}
}
