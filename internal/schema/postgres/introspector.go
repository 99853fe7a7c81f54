package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nlqgate/nlqgate/internal/schema"
)

const DefaultSchema = "public"

const (
	tablesQuery = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

	columnsQuery = `
SELECT table_name, column_name, data_type, is_nullable,
	character_maximum_length, numeric_precision, numeric_scale
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

	primaryKeysQuery = `
SELECT kcu.table_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
	ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1`

	foreignKeysQuery = `
SELECT kcu.table_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
	ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
	ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.constraint_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
ORDER BY kcu.table_name, kcu.column_name`
)

type Options struct {
	Schema string
	// Exclude lists tables left out of the description, matched
	// case-insensitively.
	Exclude []string
}

// Introspector reads table, column and key metadata from information_schema.
type Introspector struct {
	db      *sql.DB
	schema  string
	exclude map[string]struct{}
}

func NewIntrospector(db *sql.DB, opts Options) (*Introspector, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if strings.TrimSpace(opts.Schema) == "" {
		opts.Schema = DefaultSchema
	}
	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, name := range opts.Exclude {
		exclude[strings.ToLower(name)] = struct{}{}
	}
	return &Introspector{db: db, schema: opts.Schema, exclude: exclude}, nil
}

type columnKey struct {
	table  string
	column string
}

type foreignKey struct {
	table            string
	column           string
	referencedTable  string
	referencedColumn string
}

func (i *Introspector) Describe(ctx context.Context) (schema.Description, error) {
	tableNames, err := i.tableNames(ctx)
	if err != nil {
		return schema.Description{}, err
	}
	primaryKeys, err := i.primaryKeys(ctx)
	if err != nil {
		return schema.Description{}, err
	}
	foreignKeys, err := i.foreignKeys(ctx)
	if err != nil {
		return schema.Description{}, err
	}
	columns, err := i.columns(ctx)
	if err != nil {
		return schema.Description{}, err
	}

	fkByColumn := make(map[columnKey]foreignKey, len(foreignKeys))
	for _, fk := range foreignKeys {
		fkByColumn[columnKey{table: fk.table, column: fk.column}] = fk
	}

	tables := make([]schema.Table, 0, len(tableNames))
	for _, name := range tableNames {
		table := schema.Table{
			Name:          name,
			Description:   schema.TableDescription(name),
			Columns:       []schema.Column{},
			Relationships: []schema.Relationship{},
		}
		for _, column := range columns[name] {
			key := columnKey{table: name, column: column.Name}
			_, column.PrimaryKey = primaryKeys[key]
			if fk, ok := fkByColumn[key]; ok {
				column.ForeignKey = true
				column.ReferencedTable = fk.referencedTable
				column.ReferencedColumn = fk.referencedColumn
			}
			column.Description = schema.ColumnDescription(name, column.Name)
			table.Columns = append(table.Columns, column)
		}
		for _, fk := range foreignKeys {
			if fk.table != name {
				continue
			}
			table.Relationships = append(table.Relationships, schema.Relationship{
				Type:         "ManyToOne",
				RelatedTable: fk.referencedTable,
				ForeignKey:   fk.column,
				PrimaryKey:   fk.referencedColumn,
			})
		}
		tables = append(tables, table)
	}
	return schema.Description{Tables: tables}, nil
}

func (i *Introspector) tableNames(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, tablesQuery, i.schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		if _, skip := i.exclude[strings.ToLower(name)]; skip {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return names, nil
}

func (i *Introspector) columns(ctx context.Context) (map[string][]schema.Column, error) {
	rows, err := i.db.QueryContext(ctx, columnsQuery, i.schema)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string][]schema.Column{}
	for rows.Next() {
		var (
			table, name, dataType, nullable string
			maxLength, precision, scale     sql.NullInt64
		)
		if err := rows.Scan(&table, &name, &dataType, &nullable, &maxLength, &precision, &scale); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out[table] = append(out[table], schema.Column{
			Name:     name,
			DataType: formatDataType(dataType, maxLength, precision, scale),
			Nullable: strings.EqualFold(nullable, "YES"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (i *Introspector) primaryKeys(ctx context.Context) (map[columnKey]struct{}, error) {
	rows, err := i.db.QueryContext(ctx, primaryKeysQuery, i.schema)
	if err != nil {
		return nil, fmt.Errorf("query primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[columnKey]struct{}{}
	for rows.Next() {
		var key columnKey
		if err := rows.Scan(&key.table, &key.column); err != nil {
			return nil, fmt.Errorf("scan primary key: %w", err)
		}
		out[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (i *Introspector) foreignKeys(ctx context.Context) ([]foreignKey, error) {
	rows, err := i.db.QueryContext(ctx, foreignKeysQuery, i.schema)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []foreignKey
	for rows.Next() {
		var fk foreignKey
		if err := rows.Scan(&fk.table, &fk.column, &fk.referencedTable, &fk.referencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		out = append(out, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// formatDataType appends length or precision the way psql displays it.
func formatDataType(dataType string, maxLength, precision, scale sql.NullInt64) string {
	switch {
	case maxLength.Valid && maxLength.Int64 > 0:
		return fmt.Sprintf("%s(%d)", dataType, maxLength.Int64)
	case dataType == "numeric" && precision.Valid && scale.Valid:
		return fmt.Sprintf("numeric(%d,%d)", precision.Int64, scale.Int64)
	default:
		return dataType
	}
}
