package pdftext

import (
	"strings"
	"testing"

	"github.com/joseph-ayodele/contracts-extractor/internal/testutil"
)

func TestAssess(t *testing.T) {
	cfg := DefaultQualityConfig()
	cases := []struct {
		name   string
		text   string
		broken bool
		reason string
	}{
		{"empty", "   \n ", true, ReasonEmpty},
		{"short", "Page 1", true, ReasonTooShort},
		{"clean latin", "Contract No. 123 dated 2024-01-10 between Bank and Buyer", false, ""},
		{"clean cyrillic", "КОНТРАКТ № 45/2023 от 10.01.2024, Контрагент: ООО Ромашка", false, ""},
		{"confusables", "IIll|IlIl IIlI lIIl Il|I IlIlI lIIlI IIIl", true, ReasonConfusables},
		{"low diversity", strings.Repeat("ab", 40), true, ReasonLowDiversity},
		{"missing cyrillic", "Дата " + strings.Repeat("abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNOPQRSTUVWXYZ0123456789 ", 4), true, ReasonNoCyrillic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := Assess(tc.text, cfg)
			if v.Broken != tc.broken {
				t.Fatalf("Broken = %v, want %v (stats %+v)", v.Broken, tc.broken, v.Stats)
			}
			if v.Reason != tc.reason {
				t.Errorf("Reason = %q, want %q", v.Reason, tc.reason)
			}
		})
	}
}

func TestAssessThresholdsAreConfigurable(t *testing.T) {
	text := "Contract No. 123 dated 2024-01-10"
	cfg := DefaultQualityConfig()
	if v := Assess(text, cfg); v.Broken {
		t.Fatalf("default config should accept, got %+v", v)
	}
	cfg.MinTextChars = 100
	if v := Assess(text, cfg); !v.Broken || v.Reason != ReasonTooShort {
		t.Fatalf("raised MinTextChars should reject, got %+v", v)
	}
}

func TestUsableNeedsMinDirectChars(t *testing.T) {
	cfg := DefaultQualityConfig()
	// 22 chars: passes Assess (>=20) but not the direct-text minimum (25)
	ok, v := Usable("Agreement 77 of 2024ab", cfg)
	if ok || v.Reason != ReasonTooShort {
		t.Fatalf("Usable = %v %+v", ok, v)
	}
	ok, _ = Usable("Contract No. 123 dated 2024-01-10", cfg)
	if !ok {
		t.Fatalf("expected usable")
	}
}

func TestMeasure(t *testing.T) {
	st := Measure("Дата\nDate", 0)
	if st.Chars != 8 || st.Letters != 8 {
		t.Fatalf("stats = %+v", st)
	}
	if st.CyrillicRatio != 0.5 {
		t.Errorf("cyrillic ratio = %v", st.CyrillicRatio)
	}
}

func TestAssessLongCleanPages(t *testing.T) {
	cfg := DefaultQualityConfig()
	pages := map[string]string{
		"latin": testutil.ContractPage,
		"cyrillic": "КОНТРАКТ № 45/2023 от 10 января 2024 года. Банк и Покупатель заключили настоящий договор о нижеследующем. " +
			"Продавец обязуется поставить оборудование, а Покупатель принять и оплатить его. Сумма контракта составляет " +
			"1 250 000,00 долларов США. Валюта платежа: евро по курсу на дату оплаты. Контрагент: ООО Ромашка, страна Германия. " +
			"Срок действия договора истекает 31 декабря 2025 года. Споры разрешаются в арбитражном суде по месту нахождения истца.",
	}
	for name, text := range pages {
		t.Run(name, func(t *testing.T) {
			if n := len([]rune(text)); n < 400 {
				t.Fatalf("fixture too short: %d runes", n)
			}
			if ok, v := Usable(text, cfg); !ok {
				t.Fatalf("clean page rejected: %+v", v)
			}
		})
	}
}

func TestDiversityWindow(t *testing.T) {
	if st := Measure(testutil.ContractPage, 0); st.UniqueRatio >= 0.2 {
		t.Fatalf("whole-page ratio = %v, expected it to fall below 0.2", st.UniqueRatio)
	}
	if st := Measure(testutil.ContractPage, 80); st.UniqueRatio < 0.2 {
		t.Errorf("windowed ratio = %v", st.UniqueRatio)
	}

	cfg := DefaultQualityConfig()
	garbage := strings.Repeat("ab ", 300)
	if v := Assess(garbage, cfg); !v.Broken || v.Reason != ReasonLowDiversity {
		t.Errorf("repetitive page accepted: %+v", v)
	}
	cfg.DiversityWindow = 0
	if v := Assess(testutil.ContractPage, cfg); !v.Broken || v.Reason != ReasonLowDiversity {
		t.Errorf("unbounded window should reject long prose, got %+v", v)
	}
}
