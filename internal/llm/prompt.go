package llm

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars caps the document text sent to the model.
const DefaultMaxChars = 2000

// BuildSystemPrompt describes the eight fields and the output rules.
// The field descriptions carry the Russian labels used in bank contracts.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a strict JSON extractor for bank contracts and agreements (Russian or English).",
		"Extract these fields from the document text:",
		"- contract_number: contract or agreement number (look for \"№\", \"номер\", \"contract\", \"договор\"); digits and letters only, without the \"№\" sign.",
		"- contract_date: date the contract was concluded (дата заключения), YYYY-MM-DD.",
		"- expiration_date: end of the contract term (срок действия, дата окончания), YYYY-MM-DD.",
		"- counterparty: name of the foreign counterparty (контрагент, инопартнер), in readable form.",
		"- country: country of the counterparty (страна).",
		"- contract_amount: total contract amount (сумма контракта) as a number without currency.",
		"- contract_currency: currency of the contract (валюта контракта) as an ISO 4217 code such as USD, EUR, RUB, CNY.",
		"- payment_currency: currency of payment (валюта платежа) as an ISO 4217 code.",
		"Rules:",
		"Normalize dates to YYYY-MM-DD.",
		"Amounts are plain numbers with a dot as decimal separator.",
		"If a field is absent or cannot be determined, use the string \"unknown\".",
		"Output ONLY one JSON object with exactly these eight keys and no other text.",
	}
	return strings.Join(parts, "\n")
}

// BuildUserPrompt packages the document text, truncated to maxChars runes.
func BuildUserPrompt(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.WriteString("DOCUMENT_TEXT:\n")
	if utf8.RuneCountInString(text) > maxChars {
		b.WriteString(string([]rune(text)[:maxChars]))
		b.WriteString("\n...(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}
