package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	entschema "entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema"

	dbschema "github.com/joseph-ayodele/contracts-extractor/db/ent/schema"
)

// ExtractionTable is the migration table built from dbschema.Extraction.
var ExtractionTable = mustTable(dbschema.Extraction{})

type entSchema interface {
	Fields() []ent.Field
	Indexes() []ent.Index
	Annotations() []schema.Annotation
}

// Migrate creates or updates the tables used by this package.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	m, err := entschema.NewMigrate(db.drv, entschema.WithDropIndex(false), entschema.WithDropColumn(false))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Create(ctx, ExtractionTable); err != nil {
		logger.Error("schema migration failed", "error", err)
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("schema migrated", "dialect", db.Dialect(), "table", ExtractionTable.Name)
	return nil
}

func mustTable(s entSchema) *entschema.Table {
	t, err := tableFrom(s)
	if err != nil {
		panic(err)
	}
	return t
}

// tableFrom derives a migration table from an ent schema's field and index
// descriptors, so the schema package stays the single source of columns.
func tableFrom(s entSchema) (*entschema.Table, error) {
	name := ""
	for _, a := range s.Annotations() {
		switch an := a.(type) {
		case entsql.Annotation:
			name = an.Table
		case *entsql.Annotation:
			name = an.Table
		}
	}
	if name == "" {
		return nil, fmt.Errorf("schema %T has no table annotation", s)
	}

	t := entschema.NewTable(name)
	for _, f := range s.Fields() {
		d := f.Descriptor()
		if d.Err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, d.Name, d.Err)
		}
		col := &entschema.Column{
			Name:       d.Name,
			Type:       d.Info.Type,
			Size:       int64(d.Size),
			Unique:     d.Unique,
			Nullable:   d.Optional,
			SchemaType: d.SchemaType,
		}
		switch v := d.Default.(type) {
		case string, bool, int, int64, float64:
			col.Default = v
		}
		if d.Name == "id" {
			t.AddPrimary(col)
			continue
		}
		t.AddColumn(col)
	}
	for _, ix := range s.Indexes() {
		d := ix.Descriptor()
		t.AddIndex(name+"_"+strings.Join(d.Fields, "_"), d.Unique, d.Fields)
	}
	return t, nil
}
