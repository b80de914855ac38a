package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// StatementFailure is the failure variant of an execution: the driver error
// captured as data, together with the statement that caused it.
type StatementFailure struct {
	Message   string `json:"message"`
	Statement string `json:"statement"`
}

// Result is the outcome of exactly one execution attempt. Either Rows are
// populated or Failure is set, never both.
type Result struct {
	Columns  []string          `json:"columns,omitempty"`
	Rows     [][]any           `json:"rows,omitempty"`
	Duration time.Duration     `json:"-"`
	Failure  *StatementFailure `json:"failure,omitempty"`
}

func (r Result) Failed() bool {
	return r.Failure != nil
}

// Execute runs the statement once, synchronously, with the driver's default
// autocommit behavior. Driver errors never escape: they become the failure
// variant so one bad statement cannot end the session.
func Execute(ctx context.Context, db *sql.DB, sqlText string) Result {
	start := time.Now()
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return failure(sqlText, err, start)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return failure(sqlText, err, start)
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return failure(sqlText, err, start)
		}
		for i, value := range values {
			if raw, ok := value.([]byte); ok {
				values[i] = string(raw)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return failure(sqlText, err, start)
	}

	return Result{Columns: columns, Rows: out, Duration: time.Since(start)}
}

// RenderText flattens the result into the textual form handed to the
// response model. Rendering caps at maxRows; execution itself is never
// truncated.
func (r Result) RenderText(maxRows int) string {
	if r.Failure != nil {
		return "ERROR: " + r.Failure.Message
	}
	if len(r.Rows) == 0 {
		return fmt.Sprintf("%s\n(0 rows)", strings.Join(r.Columns, " | "))
	}

	rendered := r.Rows
	omitted := 0
	if maxRows > 0 && len(rendered) > maxRows {
		omitted = len(rendered) - maxRows
		rendered = rendered[:maxRows]
	}

	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	for _, row := range rendered {
		cells := make([]string, len(row))
		for i, cell := range row {
			if cell == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprintf("%v", cell)
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, " | "))
	}
	b.WriteString(fmt.Sprintf("\n(%d rows)", len(r.Rows)))
	if omitted > 0 {
		b.WriteString(fmt.Sprintf("\n(%d rows omitted from this rendering)", omitted))
	}
	return b.String()
}

// IsReadOnly reports whether the statement is a plain SELECT or WITH query.
// Used by the optional read-only guard; it is a prefix check, not a parser.
func IsReadOnly(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if normalized == "" {
		return false
	}
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}

func failure(sqlText string, err error, start time.Time) Result {
	return Result{
		Duration: time.Since(start),
		Failure: &StatementFailure{
			Message:   err.Error(),
			Statement: sqlText,
		},
	}
}
