package llm

import (
	"testing"

	"github.com/joseph-ayodele/contracts-extractor/constants"
)

func TestNormalizeDate(t *testing.T) {
	tests := map[string]string{
		"2024-01-10":           "2024-01-10",
		"2024-1-5":             "2024-01-05",
		"2024-01-10T00:00:00Z": "2024-01-10",
		"10.01.2024":           "2024-01-10",
		"10.01.2024 г.":        "2024-01-10",
		"05/03/2023":           "2023-03-05",
		"31.12.25":             "2025-12-31",
		"10 января 2024":       "2024-01-10",
		"«15» мая 2023 г.":     "2023-05-15",
		"1 марта 2022 года":    "2022-03-01",
		"January 10, 2024":     "2024-01-10",
		"10 Dec 2021":          "2021-12-10",
	}
	for in, want := range tests {
		got, ok := NormalizeDate(in)
		if !ok || got != want {
			t.Errorf("NormalizeDate(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	for _, bad := range []string{"", "31.02.2024", "soon", "2024"} {
		if got, ok := NormalizeDate(bad); ok {
			t.Errorf("NormalizeDate(%q) = %q, want failure", bad, got)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"1000":              1000,
		"1 000 000,50":      1000000.5,
		"1 250,00 руб.": 1250,
		"1,250.75 USD":      1250.75,
		"1.000.000,00":      1000000,
		"USD 1'500":         1500,
		"12,5":              12.5,
		"3,000":             3000,
		"99.9":              99.9,
	}
	for in, want := range tests {
		got, ok := ParseAmount(in)
		if !ok || !got.Known || got.Value != want {
			t.Errorf("ParseAmount(%q) = %+v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseAmount("не указано"); ok {
		t.Error("text parsed as amount")
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := map[string]string{
		"usd":             "USD",
		"RUR":             "RUB",
		"рубли РФ":        "RUB",
		"доллар США":      "USD",
		"евро":            "EUR",
		"китайский юань":  "CNY",
		"€":               "EUR",
		"USD (доллар США)": "USD",
		"белорусский рубль": "BYN",
	}
	for in, want := range tests {
		if got, ok := NormalizeCurrency(in); !ok || got != want {
			t.Errorf("NormalizeCurrency(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := NormalizeCurrency("ракушки"); ok {
		t.Error("unknown currency accepted")
	}
}

func TestNormalizeFields(t *testing.T) {
	m := map[string]any{
		"contract_number":   "№ 123/45",
		"contract_date":     "10.01.2024",
		"expiration_date":   nil,
		"counterparty":      "  Shanghai   Trading Co.  ",
		"country":           "null",
		"contract_amount":   "1 500 000,00",
		"contract_currency": "юани",
		"payment_currency":  "Rubles",
		"confidence":        0.9,
	}
	f, notes := NormalizeFields(m)
	want := ContractFields{
		ContractNumber:   "123/45",
		ContractDate:     "2024-01-10",
		ExpirationDate:   constants.Unknown,
		Counterparty:     "Shanghai Trading Co.",
		Country:          constants.Unknown,
		ContractAmount:   KnownAmount(1500000),
		ContractCurrency: "CNY",
		PaymentCurrency:  "RUB",
	}
	if f != want {
		t.Errorf("NormalizeFields =\n%+v\nwant\n%+v", f, want)
	}
	if len(notes) != 1 || notes[0] != "confidence(unknown key)" {
		t.Errorf("notes = %q", notes)
	}
}

func TestNormalizeFieldsKeepsUnparsed(t *testing.T) {
	f, notes := NormalizeFields(map[string]any{
		"contract_date":   "в течение года",
		"contract_amount": "много",
	})
	if f.ContractDate != "в течение года" || f.ContractAmount.Known {
		t.Errorf("fields = %+v", f)
	}
	if len(notes) != 2 {
		t.Errorf("notes = %q", notes)
	}
	if f.Counterparty != constants.Unknown {
		t.Errorf("missing key not unknown: %q", f.Counterparty)
	}
}
