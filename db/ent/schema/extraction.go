package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/contracts-extractor/constants"
	"github.com/joseph-ayodele/contracts-extractor/db/ent/schema/utils"
)

// Extraction is one processed document: options, text metrics, the eight
// fields and the outcome status.
type Extraction struct{ ent.Schema }

func (Extraction) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "extraction"},
	}
}

func (Extraction) Fields() []ent.Field {
	unknown := constants.Unknown
	return []ent.Field{
		field.UUID("id", uuid.UUID{}).Default(uuid.New).Immutable(),
		field.String("filename").NotEmpty(),
		field.String("content_hash").MaxLen(64),
		field.String("status").
			Validate(utils.EnumValidator(constants.RunStatuses...)),
		field.Int("dpi").Default(constants.DefaultDPI),
		field.Bool("enhanced").Default(false),
		field.Bool("force_ocr").Default(false),
		field.Int("max_pages").Default(constants.DefaultMaxPages),
		field.Int("pages_processed").Default(0),
		field.Int("pages_total").Default(0),
		field.Int("ocr_pages").Default(0),
		field.Int("text_chars").Default(0),
		field.Text("document_text").Optional().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.String("contract_number").Default(unknown),
		field.String("contract_date").Default(unknown),
		field.String("expiration_date").Default(unknown),
		field.String("counterparty").Default(unknown),
		field.String("country").Default(unknown),
		field.Float("contract_amount").Optional().Nillable(),
		field.String("contract_currency").Default(unknown),
		field.String("payment_currency").Default(unknown),
		field.Int("fields_found").Default(0),
		field.String("model").Optional(),
		field.Text("raw_output").Optional().
			SchemaType(map[string]string{dialect.Postgres: "text"}),
		field.Strings("warnings").Optional(),
		field.String("error_message").Optional().Nillable(),
		field.Int64("duration_ms").Default(0),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Extraction) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("created_at"),
		index.Fields("content_hash"),
		index.Fields("status", "created_at"),
	}
}
