package pdftext

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// QualityConfig holds the thresholds for judging a direct text layer.
type QualityConfig struct {
	MinDirectChars     int     // trimmed length below which direct text is not trusted
	MinTextChars       int     // length (newlines removed) below which text counts as missing
	MaxConfusableRatio float64 // share of I/l/| lookalikes among letters that flags a broken font map
	MinUniqueRatio     float64 // distinct/total characters below which text is garbage
	DiversityWindow    int     // leading non-space runes the unique ratio is measured over; 0 means all
	MinCyrillicRatio   float64 // required Cyrillic share when Russian keywords are present
}

// DefaultQualityConfig returns the thresholds tuned on scanned bank contracts.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		MinDirectChars:     25,
		MinTextChars:       20,
		MaxConfusableRatio: 0.5,
		MinUniqueRatio:     0.20,
		DiversityWindow:    80,
		MinCyrillicRatio:   0.02,
	}
}

// Reasons a page is routed to OCR.
const (
	ReasonEmpty        = "empty"
	ReasonTooShort     = "too_short"
	ReasonConfusables  = "confusable_glyphs"
	ReasonLowDiversity = "low_diversity"
	ReasonNoCyrillic   = "missing_cyrillic"
)

// Verdict is the outcome of Assess.
type Verdict struct {
	Broken bool
	Reason string
	Stats  TextStats
}

// TextStats are the measurements behind a verdict.
type TextStats struct {
	Chars           int
	Letters         int
	UniqueRatio     float64
	ConfusableRatio float64
	CyrillicRatio   float64
}

// Keywords expected in Russian contract templates. Their presence together
// with almost no Cyrillic letters means the font lacks a Unicode map.
var contractKeywords = []string{"КОНТРАКТ", "Дата", "Контрагент", "Страна", "Валюта", "Сумма"}

func isConfusable(r rune) bool {
	switch r {
	case 'I', 'l', '|', 'ı', 'İ':
		return true
	}
	return false
}

func isCyrillic(r rune) bool {
	return (r >= 'А' && r <= 'я') || r == 'Ё' || r == 'ё'
}

// Measure computes TextStats over text with newlines removed. UniqueRatio
// covers the first window non-space runes, or all of them when window <= 0.
func Measure(text string, window int) TextStats {
	s := strings.ReplaceAll(text, "\n", "")
	total := utf8.RuneCountInString(s)
	if total == 0 {
		return TextStats{}
	}
	uniq := make(map[rune]struct{}, 64)
	var letters, confusable, cyr, sampled int
	for _, r := range s {
		if !unicode.IsSpace(r) && (window <= 0 || sampled < window) {
			uniq[r] = struct{}{}
			sampled++
		}
		// '|' counts as a letter here
		if unicode.IsLetter(r) || r == '|' {
			letters++
			if isConfusable(r) {
				confusable++
			}
		}
		if isCyrillic(r) {
			cyr++
		}
	}
	st := TextStats{
		Chars:         total,
		Letters:       letters,
		CyrillicRatio: float64(cyr) / float64(total),
	}
	if sampled > 0 {
		st.UniqueRatio = float64(len(uniq)) / float64(sampled)
	}
	if letters > 0 {
		st.ConfusableRatio = float64(confusable) / float64(letters)
	}
	return st
}

// Assess decides whether text looks like a corrupted or missing text layer.
func Assess(text string, cfg QualityConfig) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{Broken: true, Reason: ReasonEmpty}
	}
	st := Measure(text, cfg.DiversityWindow)
	switch {
	case st.Chars < cfg.MinTextChars:
		return Verdict{Broken: true, Reason: ReasonTooShort, Stats: st}
	case st.Letters > 0 && st.ConfusableRatio >= cfg.MaxConfusableRatio:
		return Verdict{Broken: true, Reason: ReasonConfusables, Stats: st}
	case st.Letters > 0 && st.UniqueRatio < cfg.MinUniqueRatio:
		return Verdict{Broken: true, Reason: ReasonLowDiversity, Stats: st}
	case hasKeyword(text) && st.CyrillicRatio < cfg.MinCyrillicRatio:
		return Verdict{Broken: true, Reason: ReasonNoCyrillic, Stats: st}
	}
	return Verdict{Stats: st}
}

// Usable reports whether direct text can be used as-is: long enough and not broken.
func Usable(text string, cfg QualityConfig) (bool, Verdict) {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < cfg.MinDirectChars {
		v := Assess(text, cfg)
		if !v.Broken {
			v.Broken, v.Reason = true, ReasonTooShort
		}
		return false, v
	}
	v := Assess(text, cfg)
	return !v.Broken, v
}

func hasKeyword(text string) bool {
	for _, kw := range contractKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
