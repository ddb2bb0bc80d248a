// Package schema declares the SQL tables behind the document store. The
// tables are created by ent's schema migrator without code generation.
package schema

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	DocumentsTable = "documents"

	ColumnCollection = "collection"
	ColumnID         = "id"
	ColumnDoc        = "doc"
	ColumnCreatedAt  = "created_at"
	ColumnUniqueKey  = "unique_key"
)

var (
	documentColumns = []*entschema.Column{
		{Name: ColumnCollection, Type: field.TypeString, Size: 64},
		{Name: ColumnID, Type: field.TypeString, Size: 64},
		{Name: ColumnDoc, Type: field.TypeJSON},
		{Name: ColumnCreatedAt, Type: field.TypeTime},
		{Name: ColumnUniqueKey, Type: field.TypeString, Nullable: true},
	}

	// Documents holds every collection; unique_key carries the per-collection
	// unique field (lot item_no, specimen_id) so Postgres enforces it.
	Documents = &entschema.Table{
		Name:       DocumentsTable,
		Columns:    documentColumns,
		PrimaryKey: []*entschema.Column{documentColumns[0], documentColumns[1]},
		Indexes: []*entschema.Index{
			{
				Name:    "documents_collection_unique_key",
				Unique:  true,
				Columns: []*entschema.Column{documentColumns[0], documentColumns[4]},
			},
			{
				Name:    "documents_collection_created_at",
				Columns: []*entschema.Column{documentColumns[0], documentColumns[3]},
			},
		},
	}

	Tables = []*entschema.Table{Documents}
)

// Create migrates the document tables on drv.
func Create(ctx context.Context, drv dialect.Driver) error {
	m, err := entschema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("schema: new migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("schema: create tables: %w", err)
	}
	return nil
}
