package llm

import (
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/contracts-extractor/constants"
)

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reNumberSign = regexp.MustCompile(`(?i)^(№|no\.?|n°|#)\s*`)
	reISODate    = regexp.MustCompile(`^(\d{4})[-./](\d{1,2})[-./](\d{1,2})`)
	reDMYDate    = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{4}|\d{2})\b`)
	reWordDate   = regexp.MustCompile(`^(\d{1,2})\s+(\p{L}+)\.?,?\s+(\d{4})`)
	reMonthFirst = regexp.MustCompile(`^(\p{L}+)\.?\s+(\d{1,2}),?\s+(\d{4})`)
	reAmountBody = regexp.MustCompile(`-?[\d][\d\s.,']*`)
	reISOCode    = regexp.MustCompile(`\b[A-Z]{3}\b`)
)

// month stems cover Russian nominative and genitive forms and English names.
var monthStems = []struct {
	stem  string
	month time.Month
}{
	{"январ", time.January}, {"феврал", time.February}, {"март", time.March},
	{"апрел", time.April}, {"ма", time.May}, {"июн", time.June},
	{"июл", time.July}, {"август", time.August}, {"сентябр", time.September},
	{"октябр", time.October}, {"ноябр", time.November}, {"декабр", time.December},
	{"jan", time.January}, {"feb", time.February}, {"mar", time.March},
	{"apr", time.April}, {"may", time.May}, {"jun", time.June},
	{"jul", time.July}, {"aug", time.August}, {"sep", time.September},
	{"oct", time.October}, {"nov", time.November}, {"dec", time.December},
}

var currencyNames = []struct {
	needle string
	code   string
}{
	{"белорусск", "BYN"},
	{"рубл", "RUB"}, {"руб", "RUB"}, {"ruble", "RUB"}, {"rouble", "RUB"}, {"₽", "RUB"},
	{"доллар", "USD"}, {"dollar", "USD"}, {"$", "USD"},
	{"евро", "EUR"}, {"euro", "EUR"}, {"€", "EUR"},
	{"юан", "CNY"}, {"yuan", "CNY"}, {"renminbi", "CNY"}, {"rmb", "CNY"}, {"¥", "CNY"},
	{"тенге", "KZT"}, {"₸", "KZT"},
	{"фунт", "GBP"}, {"pound", "GBP"}, {"£", "GBP"},
	{"франк", "CHF"}, {"franc", "CHF"},
	{"иен", "JPY"}, {"йен", "JPY"}, {"yen", "JPY"},
	{"дирхам", "AED"}, {"dirham", "AED"},
	{"лир", "TRY"}, {"lira", "TRY"},
	{"рупи", "INR"}, {"rupee", "INR"},
}

var knownCodes = map[string]bool{
	"RUB": true, "USD": true, "EUR": true, "CNY": true, "GBP": true, "CHF": true,
	"JPY": true, "KZT": true, "BYN": true, "AED": true, "TRY": true, "INR": true,
	"UZS": true, "KGS": true, "AMD": true, "AZN": true, "HKD": true, "SGD": true,
	"CAD": true, "AUD": true, "SEK": true, "NOK": true, "DKK": true, "PLN": true,
	"CZK": true, "KRW": true, "TJS": true, "GEL": true, "MDL": true, "UAH": true,
}

var nullish = map[string]bool{
	"": true, "null": true, "none": true, "nil": true, "unknown": true, "n/a": true,
	"na": true, "-": true, "—": true, "не указано": true, "не указан": true,
	"отсутствует": true, "нет": true, "неизвестно": true,
}

// NormalizeFields converts a decoded model object into ContractFields.
// Missing, null and placeholder values become unknown, dates become
// YYYY-MM-DD, amounts become numbers and currencies ISO 4217 codes.
// Unparseable values are kept verbatim and reported in the notes, unknown keys are dropped.
func NormalizeFields(m map[string]any) (ContractFields, []string) {
	out := UnknownFields()
	var notes []string

	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !constants.IsField(k) {
			notes = append(notes, k+"(unknown key)")
		}
	}

	str := func(key string) (string, bool) {
		v, ok := m[key]
		if !ok {
			return "", false
		}
		switch t := v.(type) {
		case nil:
			return "", false
		case string:
			s := strings.TrimSpace(reSpaces.ReplaceAllString(t, " "))
			if nullish[strings.ToLower(s)] {
				return "", false
			}
			return s, true
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64), true
		default:
			notes = append(notes, key+"(type)")
			return "", false
		}
	}

	if s, ok := str(constants.FieldContractNumber); ok {
		out.ContractNumber = strings.TrimSpace(reNumberSign.ReplaceAllString(s, ""))
		if out.ContractNumber == "" {
			out.ContractNumber = constants.Unknown
		}
	}
	for _, d := range []struct {
		key string
		dst *string
	}{
		{constants.FieldContractDate, &out.ContractDate},
		{constants.FieldExpirationDate, &out.ExpirationDate},
	} {
		s, ok := str(d.key)
		if !ok {
			continue
		}
		if iso, ok := NormalizeDate(s); ok {
			*d.dst = iso
		} else {
			*d.dst = s
			notes = append(notes, d.key+"(unparsed date)")
		}
	}
	if s, ok := str(constants.FieldCounterparty); ok {
		out.Counterparty = s
	}
	if s, ok := str(constants.FieldCountry); ok {
		out.Country = s
	}

	switch v := m[constants.FieldContractAmount].(type) {
	case float64:
		out.ContractAmount = KnownAmount(v)
	case string:
		if s, ok := str(constants.FieldContractAmount); ok {
			if amt, ok := ParseAmount(s); ok {
				out.ContractAmount = amt
			} else {
				notes = append(notes, constants.FieldContractAmount+"(unparsed amount)")
			}
		}
	case nil:
	default:
		notes = append(notes, constants.FieldContractAmount+"(type)")
	}

	for _, c := range []struct {
		key string
		dst *string
	}{
		{constants.FieldContractCurrency, &out.ContractCurrency},
		{constants.FieldPaymentCurrency, &out.PaymentCurrency},
	} {
		s, ok := str(c.key)
		if !ok {
			continue
		}
		if code, ok := NormalizeCurrency(s); ok {
			*c.dst = code
		} else {
			*c.dst = s
			notes = append(notes, c.key+"(unrecognized currency)")
		}
	}
	return out, notes
}

// NormalizeDate converts common contract date spellings to YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("«", "", "»", "", "\"", "", "“", "", "”", "").Replace(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	if m := reISODate.FindStringSubmatch(s); m != nil {
		return ymd(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := reDMYDate.FindStringSubmatch(s); m != nil {
		y := atoi(m[3])
		if len(m[3]) == 2 {
			y += 2000
		}
		return ymd(y, atoi(m[2]), atoi(m[1]))
	}
	if m := reWordDate.FindStringSubmatch(s); m != nil {
		if mon, ok := monthFromWord(m[2]); ok {
			return ymd(atoi(m[3]), int(mon), atoi(m[1]))
		}
	}
	if m := reMonthFirst.FindStringSubmatch(s); m != nil {
		if mon, ok := monthFromWord(m[1]); ok {
			return ymd(atoi(m[3]), int(mon), atoi(m[2]))
		}
	}
	return "", false
}

func monthFromWord(w string) (time.Month, bool) {
	w = strings.ToLower(w)
	for _, ms := range monthStems {
		// "ма" must not match "март"
		if ms.stem == "ма" {
			if w == "мая" || w == "май" {
				return ms.month, true
			}
			continue
		}
		if strings.HasPrefix(w, ms.stem) {
			return ms.month, true
		}
	}
	return 0, false
}

func ymd(y, m, d int) (string, bool) {
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d || y < 1900 || y > 2200 {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// ParseAmount reads amounts such as "1 000 000,50", "1,250.00 USD" or
// "USD 1'500". The rightmost of '.' and ',' is the decimal separator when both appear.
func ParseAmount(s string) (Amount, bool) {
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u2009", " ").Replace(s)
	body := reAmountBody.FindString(s)
	if body == "" {
		return Amount{}, false
	}
	body = strings.NewReplacer(" ", "", "'", "").Replace(strings.TrimSpace(body))
	body = strings.TrimRight(body, ".,")

	lastDot := strings.LastIndexByte(body, '.')
	lastComma := strings.LastIndexByte(body, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			body = strings.ReplaceAll(body, ".", "")
			body = strings.Replace(body, ",", ".", 1)
		} else {
			body = strings.ReplaceAll(body, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(body, ",") > 1 || len(body)-lastComma-1 == 3 {
			body = strings.ReplaceAll(body, ",", "")
		} else {
			body = strings.Replace(body, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(body, ".") > 1 {
			body = strings.ReplaceAll(body, ".", "")
		}
	}
	v, err := strconv.ParseFloat(body, 64)
	if err != nil {
		return Amount{}, false
	}
	return KnownAmount(v), true
}

// NormalizeCurrency maps codes, symbols and Russian or English currency names to ISO 4217.
func NormalizeCurrency(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	up := strings.ToUpper(s)
	if up == "RUR" {
		return "RUB", true
	}
	if len(up) == 3 && knownCodes[up] {
		return up, true
	}
	for _, c := range reISOCode.FindAllString(up, -1) {
		if knownCodes[c] {
			return c, true
		}
		if c == "RUR" {
			return "RUB", true
		}
	}
	low := strings.ToLower(s)
	for _, cn := range currencyNames {
		if strings.Contains(low, cn.needle) {
			return cn.code, true
		}
	}
	if len(up) == 3 && isUpperASCII(up) {
		return up, true
	}
	return "", false
}

func isUpperASCII(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
