package constants

// Unknown marks a field the model could not find.
const Unknown = "unknown"

const (
	FieldContractNumber   = "contract_number"
	FieldContractDate     = "contract_date"
	FieldExpirationDate   = "expiration_date"
	FieldCounterparty     = "counterparty"
	FieldCountry          = "country"
	FieldContractAmount   = "contract_amount"
	FieldContractCurrency = "contract_currency"
	FieldPaymentCurrency  = "payment_currency"
)

// Fields lists the extracted keys in display order.
var Fields = []string{
	FieldContractNumber,
	FieldContractDate,
	FieldExpirationDate,
	FieldCounterparty,
	FieldCountry,
	FieldContractAmount,
	FieldContractCurrency,
	FieldPaymentCurrency,
}

// IsField reports whether name is one of the extracted keys.
func IsField(name string) bool {
	for _, f := range Fields {
		if f == name {
			return true
		}
	}
	return false
}
