package dbconn

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func validPostgresConfig() Config {
	return Config{
		Driver:   DriverPostgres,
		Host:     "localhost",
		Port:     "5432",
		Username: "postgres",
		Password: "secret",
		Database: "chinook",
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	fields := []struct {
		name   string
		mutate func(*Config)
	}{
		{"host", func(c *Config) { c.Host = "" }},
		{"port", func(c *Config) { c.Port = "" }},
		{"username", func(c *Config) { c.Username = "" }},
		{"password", func(c *Config) { c.Password = "" }},
		{"database", func(c *Config) { c.Database = "" }},
	}
	for _, field := range fields {
		t.Run(field.name, func(t *testing.T) {
			cfg := validPostgresConfig()
			field.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() accepted missing field")
			}
			var connErr *ConnectionError
			if !errors.As(err, &connErr) {
				t.Fatalf("error type = %T", err)
			}
			if !strings.Contains(connErr.Reason, field.name) {
				t.Fatalf("Reason = %q, want mention of %q", connErr.Reason, field.name)
			}
		})
	}
}

func TestValidateRejectsNonNumericPort(t *testing.T) {
	cfg := validPostgresConfig()
	cfg.Port = "default"
	var connErr *ConnectionError
	if err := cfg.Validate(); !errors.As(err, &connErr) {
		t.Fatalf("Validate() = %v, want ConnectionError", err)
	}
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := validPostgresConfig()
	cfg.Driver = "oracle"
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() accepted unknown driver")
	}
}

func TestValidateDuckDBNeedsOnlyDatabase(t *testing.T) {
	cfg := Config{Driver: DriverDuckDB, Database: "analytics.db"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	cfg.Database = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() accepted empty database path")
	}
}

func TestDSNEscapesCredentials(t *testing.T) {
	cfg := validPostgresConfig()
	cfg.Password = "p@ss:word"
	dsn := cfg.DSN()
	if strings.Contains(dsn, "p@ss:word") {
		t.Fatalf("DSN() leaked raw password: %s", dsn)
	}
	if !strings.HasPrefix(dsn, "postgres://postgres:") {
		t.Fatalf("DSN() = %s", dsn)
	}
	if !strings.HasSuffix(dsn, "@localhost:5432/chinook") {
		t.Fatalf("DSN() = %s", dsn)
	}
}

func TestOpenFailsValidationBeforeDialing(t *testing.T) {
	cfg := validPostgresConfig()
	cfg.Host = ""
	// An unroutable host would hang a dial; validation must reject first.
	_, err := Open(context.Background(), cfg)
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("Open() error = %v, want ConnectionError", err)
	}
	if connErr.Err != nil {
		t.Fatalf("validation failure should carry no driver error, got %v", connErr.Err)
	}
}

func TestRedactedOmitsPassword(t *testing.T) {
	cfg := validPostgresConfig()
	if strings.Contains(cfg.Redacted(), "secret") {
		t.Fatalf("Redacted() leaked password: %s", cfg.Redacted())
	}
}
