package normalize

import "strings"

// RegionGlobal is the fallback when no rule matches.
const RegionGlobal = "global"

type regionRule struct {
	needles []string
	region  string
}

// URL rules are checked before content rules; within each list the first
// match wins, so ordering is part of the contract.
var urlRegionRules = []regionRule{
	{[]string{".cn", "china"}, "china"},
	{[]string{".hk", "hongkong"}, "hong_kong"},
	{[]string{".tw", "taiwan"}, "taiwan"},
	{[]string{".jp", "japan"}, "japan"},
	{[]string{".kr", "korea"}, "south_korea"},
	{[]string{".sg", "singapore"}, "singapore"},
	{[]string{".in", "india"}, "india"},
	{[]string{".uk", "britain"}, "uk"},
	{[]string{".de", "germany"}, "germany"},
	{[]string{".fr", "france"}, "france"},
	{[]string{".au", "australia"}, "australia"},
}

var contentRegionRules = []regionRule{
	{[]string{"china", "中国"}, "china"},
	{[]string{"hong kong", "香港"}, "hong_kong"},
	{[]string{"japan", "日本"}, "japan"},
	{[]string{"india"}, "india"},
	{[]string{"singapore"}, "singapore"},
	{[]string{"united states", "u.s."}, "usa"},
	{[]string{"united kingdom", "u.k."}, "uk"},
	{[]string{"germany", "deutschland"}, "germany"},
}

// InferRegion maps a source URL and content to a region tag using an
// ordered rule list. URL-domain rules run first, then content keywords;
// default is "global".
func InferRegion(url, content string) string {
	urlLower := strings.ToLower(url)

	for _, rule := range urlRegionRules {
		if containsAny(urlLower, rule.needles...) {
			return rule.region
		}
	}

	contentLower := strings.ToLower(content)

	for _, rule := range contentRegionRules {
		if containsAny(contentLower, rule.needles...) {
			return rule.region
		}
	}

	return RegionGlobal
}
