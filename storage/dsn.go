package storage

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// DSN is a parsed data source name for one of the three SQL backends.
// Adapted directly from pkg/pdo/dsn.go's ParseDSN/Build*DSN family, kept
// nearly verbatim since DSN parsing has nothing SVI-specific about it —
// only the package name and the doc comment changed.
type DSN struct {
	Driver   string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Options  map[string]string
}

// ParseDSN parses a DSN string of the form:
//
//	mysql:host=localhost;port=3306;dbname=svi
//	sqlite:/path/to/store.db
//	pgsql:host=localhost;port=5432;dbname=svi
func ParseDSN(dsn string) (*DSN, error) {
	parts := strings.SplitN(dsn, ":", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("storage: invalid DSN format: %s", dsn)
	}

	d := &DSN{Driver: parts[0], Options: make(map[string]string)}

	if d.Driver == "sqlite" {
		d.Database = parts[1]
		return d, nil
	}

	for _, pair := range strings.Split(parts[1], ";") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		switch key {
		case "host", "hostname":
			d.Host = value
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("storage: invalid port: %s", value)
			}
			d.Port = port
		case "dbname", "database":
			d.Database = value
		case "user", "username":
			d.Username = value
		case "password", "pass":
			d.Password = value
		default:
			d.Options[key] = value
		}
	}

	if d.Port == 0 {
		switch d.Driver {
		case "mysql":
			d.Port = 3306
		case "pgsql":
			d.Port = 5432
		}
	}

	return d, nil
}

// BuildMySQLDSN renders a go-sql-driver/mysql DSN.
func BuildMySQLDSN(d *DSN) string {
	var b strings.Builder
	if d.Username != "" {
		b.WriteString(d.Username)
		if d.Password != "" {
			b.WriteString(":")
			b.WriteString(d.Password)
		}
		b.WriteString("@")
	}
	b.WriteString("tcp(")
	if d.Host != "" {
		b.WriteString(d.Host)
	} else {
		b.WriteString("localhost")
	}
	b.WriteString(":")
	b.WriteString(strconv.Itoa(d.Port))
	b.WriteString(")/")
	b.WriteString(d.Database)
	if len(d.Options) > 0 {
		b.WriteString("?")
		first := true
		for k, v := range d.Options {
			if !first {
				b.WriteString("&")
			}
			first = false
			b.WriteString(url.QueryEscape(k))
			b.WriteString("=")
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// BuildPostgresDSN renders a lib/pq DSN.
func BuildPostgresDSN(d *DSN) string {
	params := []string{}
	if d.Host != "" {
		params = append(params, fmt.Sprintf("host=%s", d.Host))
	} else {
		params = append(params, "host=localhost")
	}
	params = append(params, fmt.Sprintf("port=%d", d.Port))
	if d.Username != "" {
		params = append(params, fmt.Sprintf("user=%s", d.Username))
	}
	if d.Password != "" {
		params = append(params, fmt.Sprintf("password=%s", d.Password))
	}
	if d.Database != "" {
		params = append(params, fmt.Sprintf("dbname=%s", d.Database))
	}
	sslSet := false
	for k := range d.Options {
		if k == "sslmode" {
			sslSet = true
		}
		params = append(params, fmt.Sprintf("%s=%s", k, d.Options[k]))
	}
	if !sslSet {
		params = append(params, "sslmode=disable")
	}
	return strings.Join(params, " ")
}

// BuildSQLiteDSN renders a modernc.org/sqlite DSN.
func BuildSQLiteDSN(d *DSN) string {
	if d.Database == "" || d.Database == ":memory:" {
		return "file::memory:?mode=memory&cache=shared"
	}
	return d.Database
}
