package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-extractor/constants"
)

// Amount is a contract amount that may be unknown. It marshals as a JSON
// number or as the string "unknown".
type Amount struct {
	Value float64
	Known bool
}

func KnownAmount(v float64) Amount { return Amount{Value: v, Known: true} }

func (a Amount) String() string {
	if !a.Known {
		return constants.Unknown
	}
	return strconv.FormatFloat(a.Value, 'f', -1, 64)
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Known {
		return json.Marshal(constants.Unknown)
	}
	return []byte(strconv.FormatFloat(a.Value, 'f', -1, 64)), nil
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		amt, _ := ParseAmount(s)
		*a = amt
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = KnownAmount(v)
	return nil
}

// ContractFields is the normalized shape we want from the LLM.
// Missing values are constants.Unknown.
type ContractFields struct {
	ContractNumber   string `json:"contract_number"`
	ContractDate     string `json:"contract_date"`   // YYYY-MM-DD
	ExpirationDate   string `json:"expiration_date"` // YYYY-MM-DD
	Counterparty     string `json:"counterparty"`
	Country          string `json:"country"`
	ContractAmount   Amount `json:"contract_amount"`
	ContractCurrency string `json:"contract_currency"` // ISO 4217
	PaymentCurrency  string `json:"payment_currency"`  // ISO 4217
}

// UnknownFields returns a record with every field set to the sentinel.
func UnknownFields() ContractFields {
	u := constants.Unknown
	return ContractFields{
		ContractNumber:   u,
		ContractDate:     u,
		ExpirationDate:   u,
		Counterparty:     u,
		Country:          u,
		ContractCurrency: u,
		PaymentCurrency:  u,
	}
}

// AsMap returns exactly the eight field keys.
func (f ContractFields) AsMap() map[string]any {
	var amount any = constants.Unknown
	if f.ContractAmount.Known {
		amount = f.ContractAmount.Value
	}
	return map[string]any{
		constants.FieldContractNumber:   orUnknown(f.ContractNumber),
		constants.FieldContractDate:     orUnknown(f.ContractDate),
		constants.FieldExpirationDate:   orUnknown(f.ExpirationDate),
		constants.FieldCounterparty:     orUnknown(f.Counterparty),
		constants.FieldCountry:          orUnknown(f.Country),
		constants.FieldContractAmount:   amount,
		constants.FieldContractCurrency: orUnknown(f.ContractCurrency),
		constants.FieldPaymentCurrency:  orUnknown(f.PaymentCurrency),
	}
}

// Found counts the fields that are not unknown.
func (f ContractFields) Found() int {
	n := 0
	for k, v := range f.AsMap() {
		if k == constants.FieldContractAmount {
			if f.ContractAmount.Known {
				n++
			}
			continue
		}
		if s, _ := v.(string); s != constants.Unknown {
			n++
		}
	}
	return n
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return constants.Unknown
	}
	return s
}

// Result is the outcome of one extraction round trip.
type Result struct {
	Fields   ContractFields
	Raw      string   // model output as received
	Warnings []string // normalization and decoding notes
	Model    string
	Elapsed  time.Duration
}

// ExtractRequest carries the assembled document text.
type ExtractRequest struct {
	Text     string
	Filename string
}

// FieldExtractor is the interface our pipeline depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (Result, error)
}

// ChatRequest is a single-turn prompt.
type ChatRequest struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	JSON        bool // ask the provider for a JSON object when supported
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ChatModel is a provider client. Implementations are constructed once and
// shared; Close releases their resources.
type ChatModel interface {
	Name() string
	Generate(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Close() error
}
