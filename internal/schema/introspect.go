package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sqlchat/sqlchat/internal/dbconn"
)

// IntrospectionError signals that the catalog could not be read, which in
// practice means the handle is no longer valid and the session must
// reconnect.
type IntrospectionError struct {
	Err error
}

func (e *IntrospectionError) Error() string {
	return fmt.Sprintf("introspect schema: %v", e.Err)
}

func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

const listTablesQuery = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'`

const listColumnsQuery = `
SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`

// DefaultSchema returns the catalog schema that user tables live in for the
// given driver.
func DefaultSchema(driver string) string {
	if driver == dbconn.DriverDuckDB {
		return "main"
	}
	return "public"
}

// Describe enumerates tables and their columns in catalog order. A database
// with zero tables yields an empty Description, not an error.
func Describe(ctx context.Context, db *sql.DB, schemaName string) (Description, error) {
	rows, err := db.QueryContext(ctx, listTablesQuery, schemaName)
	if err != nil {
		return Description{}, &IntrospectionError{Err: fmt.Errorf("list tables: %w", err)}
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Description{}, &IntrospectionError{Err: fmt.Errorf("scan table name: %w", err)}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return Description{}, &IntrospectionError{Err: fmt.Errorf("list tables: %w", err)}
	}

	description := Description{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		columns, err := describeColumns(ctx, db, schemaName, name)
		if err != nil {
			return Description{}, err
		}
		description.Tables = append(description.Tables, Table{Name: name, Columns: columns})
	}
	return description, nil
}

func describeColumns(ctx context.Context, db *sql.DB, schemaName, tableName string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, listColumnsQuery, schemaName, tableName)
	if err != nil {
		return nil, &IntrospectionError{Err: fmt.Errorf("list columns for %s: %w", tableName, err)}
	}
	defer func() { _ = rows.Close() }()

	var columns []Column
	for rows.Next() {
		var column Column
		if err := rows.Scan(&column.Name, &column.Type); err != nil {
			return nil, &IntrospectionError{Err: fmt.Errorf("scan column for %s: %w", tableName, err)}
		}
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Err: fmt.Errorf("list columns for %s: %w", tableName, err)}
	}
	return columns, nil
}
