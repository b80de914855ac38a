package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const (
	DriverPostgres = "postgres"
	DriverDuckDB   = "duckdb"
)

var portPattern = regexp.MustCompile(`^\d+$`)

// Config holds the connection parameters for one session. It is validated
// once at open time and never mutated afterwards; changing settings means
// opening a fresh handle.
type Config struct {
	Driver   string `json:"driver"`
	Host     string `json:"host"`
	Port     string `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// ConnectionError wraps any failure to produce a live handle, including
// validation failures detected before a network call is attempted.
type ConnectionError struct {
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connect: %s: %v", e.Reason, e.Err)
	}
	return "connect: " + e.Reason
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Validate checks the config without touching the network. PostgreSQL
// requires all five fields and a numeric port; DuckDB only needs the
// database path since it opens a local file.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		missing := []string{}
		if strings.TrimSpace(c.Host) == "" {
			missing = append(missing, "host")
		}
		if strings.TrimSpace(c.Port) == "" {
			missing = append(missing, "port")
		}
		if strings.TrimSpace(c.Username) == "" {
			missing = append(missing, "username")
		}
		if strings.TrimSpace(c.Password) == "" {
			missing = append(missing, "password")
		}
		if strings.TrimSpace(c.Database) == "" {
			missing = append(missing, "database")
		}
		if len(missing) > 0 {
			return &ConnectionError{Reason: "missing required fields: " + strings.Join(missing, ", ")}
		}
		if !portPattern.MatchString(strings.TrimSpace(c.Port)) {
			return &ConnectionError{Reason: fmt.Sprintf("invalid port %q: port must be numeric", c.Port)}
		}
		return nil
	case DriverDuckDB:
		if strings.TrimSpace(c.Database) == "" {
			return &ConnectionError{Reason: "missing required field: database"}
		}
		return nil
	default:
		return &ConnectionError{Reason: fmt.Sprintf("unsupported driver %q", c.Driver)}
	}
}

// DSN renders the driver-specific connection string. The postgres form
// URL-escapes username and password so credentials with special characters
// survive intact.
func (c Config) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
			url.QueryEscape(strings.TrimSpace(c.Username)),
			url.QueryEscape(c.Password),
			strings.TrimSpace(c.Host),
			strings.TrimSpace(c.Port),
			strings.TrimSpace(c.Database),
		)
	case DriverDuckDB:
		return strings.TrimSpace(c.Database)
	default:
		return ""
	}
}

// Redacted returns a loggable description of the target without the password.
func (c Config) Redacted() string {
	if c.Driver == DriverDuckDB {
		return "duckdb:" + strings.TrimSpace(c.Database)
	}
	return fmt.Sprintf("%s@%s:%s/%s", c.Username, c.Host, c.Port, c.Database)
}

// Open validates the config and produces a live handle. No pooling beyond
// database/sql defaults and no retry; a failed ping closes the handle and
// surfaces the driver error.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	driverName := cfg.Driver
	if driverName == DriverPostgres {
		driverName = "pgx"
	}
	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, &ConnectionError{Reason: "open handle", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, &ConnectionError{Reason: "ping " + cfg.Redacted(), Err: err}
	}

	return db, nil
}
