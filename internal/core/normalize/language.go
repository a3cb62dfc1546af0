package normalize

import "strings"

// Language tags returned by DetectLanguage.
const (
	LangEnglish    = "en"
	LangChineseCN  = "zh-CN"
	LangChineseTW  = "zh-TW"
	LangJapanese   = "ja"
	LangKorean     = "ko"
	LangThai       = "th"
	LangArabic     = "ar"
	LangGerman     = "de"
	LangFrench     = "fr"
	LangSpanish    = "es"
	LangPortuguese = "pt"
)

// DetectLanguage returns a short language tag for the text. Detection is
// deterministic and total: script ranges are checked in a fixed priority
// order (CJK before Latin-diacritic heuristics) and the result defaults
// to "en" when nothing matches.
func DetectLanguage(text string) string {
	if hasHan(text) {
		if hasTraditionalMarker(text) {
			return LangChineseTW
		}

		return LangChineseCN
	}

	if hasKana(text) {
		return LangJapanese
	}

	if hasHangul(text) {
		return LangKorean
	}

	if hasRuneInRange(text, 0x0E00, 0x0E7F) {
		return LangThai
	}

	if hasRuneInRange(text, 0x0600, 0x06FF) {
		return LangArabic
	}

	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, "ä", "ö", "ü", "ß"):
		return LangGerman
	case containsAny(lower, "é", "è", "ê", "ë", "à", "â", "ù", "û", "œ", "æ"):
		return LangFrench
	case containsAny(lower, "ñ", "¿", "¡"):
		return LangSpanish
	case containsAny(lower, "ã", "õ"):
		return LangPortuguese
	}

	return LangEnglish
}

func hasHan(text string) bool {
	return hasRuneInRange(text, 0x4E00, 0x9FFF)
}

// hasTraditionalMarker checks characters that exist only in traditional
// Chinese orthography. Rough heuristic, same as the screening corpus uses.
func hasTraditionalMarker(text string) bool {
	return strings.ContainsAny(text, "繁體")
}

func hasKana(text string) bool {
	return hasRuneInRange(text, 0x3040, 0x309F) || hasRuneInRange(text, 0x30A0, 0x30FF)
}

func hasHangul(text string) bool {
	return hasRuneInRange(text, 0xAC00, 0xD7AF)
}

func hasRuneInRange(text string, lo, hi rune) bool {
	for _, r := range text {
		if r >= lo && r <= hi {
			return true
		}
	}

	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}
