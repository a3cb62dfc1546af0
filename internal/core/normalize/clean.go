package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Clean strips markup tags, collapses whitespace, removes control
// characters and trims. Idempotent: Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	text = stripTags(text)
	text = stripControl(text)
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

// stripTags removes HTML markup that slipped through extraction, keeping
// only text content. Input that is not markup passes through unchanged.
func stripTags(text string) string {
	if !strings.ContainsRune(text, '<') {
		return text
	}

	var sb strings.Builder

	tokenizer := html.NewTokenizer(strings.NewReader(text))

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}

		if tt == html.TextToken {
			sb.WriteString(tokenizer.Token().Data)
			sb.WriteByte(' ')
		}
	}

	return sb.String()
}

func stripControl(text string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7F {
			return -1
		}

		return r
	}, text)
}

// Truncate cuts text to maxLen characters, backing up to the previous
// word boundary when one falls in the last fifth of the limit.
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:maxLen])

	if idx := strings.LastIndex(cut, " "); idx > maxLen*4/5 {
		return cut[:idx] + "..."
	}

	return cut + "..."
}
