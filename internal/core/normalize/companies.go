package normalize

import (
	"regexp"
	"strings"
)

const maxCompanyNames = 5

var companyPatterns = []*regexp.Regexp{
	// Capitalized names followed by a corporate or insurance suffix.
	regexp.MustCompile(`\b([A-Z][A-Za-z0-9&\-]*(?:\s+[A-Z][A-Za-z0-9&\-]*){0,3})\s+(?:Insurance|Insurtech|Assurance|Mutual|Underwriters|Re|Group|Holdings|Inc\.?|Corp\.?|Ltd\.?|LLC)\b`),
	// Well known insurtech brands that appear without a suffix.
	regexp.MustCompile(`\b(Lemonade|Root|Oscar|Hippo|Metromile|Clover|Bright Health|Devoted Health)\b`),
	// Chinese insurers: two to six han characters ending in 保险 or 人寿.
	regexp.MustCompile(`([\p{Han}]{2,6}(?:保险|人寿|财险|再保险))`),
}

// ExtractCompanyNames pulls likely insurer and insurtech names out of
// free text. Results are deduplicated in first-seen order and capped at
// five names.
func ExtractCompanyNames(text string) []string {
	seen := make(map[string]struct{})
	var names []string

	for _, pattern := range companyPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			name := strings.TrimSpace(match[1])
			if name == "" {
				continue
			}

			key := strings.ToLower(name)
			if _, ok := seen[key]; ok {
				continue
			}

			seen[key] = struct{}{}

			names = append(names, name)
			if len(names) >= maxCompanyNames {
				return names
			}
		}
	}

	return names
}
