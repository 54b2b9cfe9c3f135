package llm

import "github.com/joseph-ayodele/contracts-extractor/constants"

// BuildContractJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// Value types are loose; NormalizeFields coerces numbers and dates afterwards.
func BuildContractJSONSchema() map[string]any {
	text := map[string]any{"type": []string{"string", "null"}}
	props := map[string]any{
		constants.FieldContractNumber:   map[string]any{"type": []string{"string", "number", "null"}},
		constants.FieldContractDate:     text,
		constants.FieldExpirationDate:   text,
		constants.FieldCounterparty:     text,
		constants.FieldCountry:          text,
		constants.FieldContractAmount:   map[string]any{"type": []string{"number", "string", "null"}},
		constants.FieldContractCurrency: text,
		constants.FieldPaymentCurrency:  text,
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   constants.Fields,
	}
}
