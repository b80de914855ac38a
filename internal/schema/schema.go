package schema

import "strings"

// Column is one column as the database catalog reports it.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is an ordered list of columns under a table name.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Description is the ordered view of the connected database used to ground
// prompts. Order is whatever the catalog reported; it is never re-sorted so
// repeated introspections of an unchanged database render identically.
type Description struct {
	Tables []Table `json:"tables"`
}

// Render produces the compact textual form injected into prompts.
func (d Description) Render() string {
	if len(d.Tables) == 0 {
		return "(no tables)"
	}
	var b strings.Builder
	for i, table := range d.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("TABLE ")
		b.WriteString(table.Name)
		b.WriteString(" (")
		for j, column := range table.Columns {
			if j > 0 {
				b.WriteString(",")
			}
			b.WriteString("\n  ")
			b.WriteString(column.Name)
			b.WriteString(" ")
			b.WriteString(column.Type)
		}
		b.WriteString("\n)\n")
	}
	return b.String()
}
