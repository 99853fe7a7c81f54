package schema

import (
	"context"
	"fmt"
	"strings"
)

type Description struct {
	Tables []Table `json:"tables"`
}

type Table struct {
	Name          string         `json:"tableName"`
	Description   string         `json:"description"`
	Columns       []Column       `json:"columns"`
	Relationships []Relationship `json:"relationships"`
}

type Column struct {
	Name             string `json:"columnName"`
	DataType         string `json:"dataType"`
	Nullable         bool   `json:"isNullable"`
	PrimaryKey       bool   `json:"isPrimaryKey"`
	ForeignKey       bool   `json:"isForeignKey"`
	ReferencedTable  string `json:"referencedTable,omitempty"`
	ReferencedColumn string `json:"referencedColumn,omitempty"`
	Description      string `json:"description"`
}

type Relationship struct {
	Type         string `json:"relationshipType"`
	RelatedTable string `json:"relatedTable"`
	ForeignKey   string `json:"foreignKey"`
	PrimaryKey   string `json:"primaryKey"`
}

// Provider describes the backing store's schema.
type Provider interface {
	Describe(ctx context.Context) (Description, error)
}

// Table returns the named table, matched case-insensitively.
func (d Description) Table(name string) (Table, bool) {
	for _, table := range d.Tables {
		if strings.EqualFold(table.Name, name) {
			return table, true
		}
	}
	return Table{}, false
}

// RenderForAI renders the schema as plain text for a language-model prompt.
func RenderForAI(d Description) string {
	var b strings.Builder
	b.WriteString("Database Schema for Asset Management System (AMS):\n\n")
	for _, table := range d.Tables {
		fmt.Fprintf(&b, "Table: %s\n", table.Name)
		fmt.Fprintf(&b, "Description: %s\n", table.Description)
		b.WriteString("Columns:\n")
		for _, column := range table.Columns {
			keyInfo := ""
			if column.PrimaryKey {
				keyInfo += " [PRIMARY KEY]"
			}
			if column.ForeignKey {
				keyInfo += fmt.Sprintf(" [FOREIGN KEY to %s.%s]", column.ReferencedTable, column.ReferencedColumn)
			}
			nullability := " [NOT NULL]"
			if column.Nullable {
				nullability = " [NULL]"
			}
			fmt.Fprintf(&b, "  - %s (%s)%s%s\n", column.Name, column.DataType, keyInfo, nullability)
			if column.Description != "" {
				fmt.Fprintf(&b, "    Description: %s\n", column.Description)
			}
		}
		if len(table.Relationships) > 0 {
			b.WriteString("Relationships:\n")
			for _, rel := range table.Relationships {
				fmt.Fprintf(&b, "  - %s with %s (%s -> %s)\n", rel.Type, rel.RelatedTable, rel.ForeignKey, rel.PrimaryKey)
			}
		}
		b.WriteString("\n")
	}
	b.WriteString("\nImportant Notes:\n")
	b.WriteString("- Use PostgreSQL syntax\n")
	b.WriteString("- Only SELECT statements are accepted\n")
	b.WriteString("- Always use appropriate JOINs for related data\n")
	b.WriteString("- Be careful with data types and NULL values\n")
	b.WriteString("- Consider performance implications for large datasets\n")
	return b.String()
}

// Summary is the short overview returned for schema questions in chat. Each
// table lists its first three columns.
func Summary(d Description) string {
	var b strings.Builder
	b.WriteString("Our Asset Management System database contains the following key tables:\n\n")
	for _, table := range d.Tables {
		fmt.Fprintf(&b, "- **%s**: %s\n", table.Name, table.Description)
		if len(table.Columns) == 0 {
			continue
		}
		b.WriteString("  It contains information such as:\n")
		for i, column := range table.Columns {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "    • %s (%s)\n", column.Name, column.DataType)
		}
		if len(table.Columns) > 3 {
			fmt.Fprintf(&b, "    ... and %d more fields.\n", len(table.Columns)-3)
		}
	}
	b.WriteString("\nWhat specific information are you looking for?")
	return b.String()
}
