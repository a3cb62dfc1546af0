package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_CosmeticVariantsCollide(t *testing.T) {
	base := Hash("Lemonade launches parametric flood cover")

	variants := []string{
		"lemonade launches parametric flood cover",
		"  Lemonade   launches\tparametric\nflood cover  ",
		"LEMONADE LAUNCHES PARAMETRIC FLOOD COVER",
	}
	for _, v := range variants {
		assert.Equal(t, base, Hash(v), "variant %q", v)
	}
}

func TestHash_Length(t *testing.T) {
	require.Len(t, Hash("anything"), 32)
	require.Len(t, Hash(""), 32)
}

func TestHash_DistinctContent(t *testing.T) {
	assert.NotEqual(t, Hash("premium holidays for life policies"), Hash("premium holidays for auto policies"))
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "plain text", "plain text"},
		{"strips markup", "<p>Usage-based <b>motor</b> cover</p>", "Usage-based motor cover"},
		{"collapses whitespace", "a \t b\n\n c", "a b c"},
		{"drops control characters", "claims\x00 triage\x07 bot", "claims triage bot"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Clean(got), "Clean must be idempotent")
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))

	got := Truncate("alpha beta gamma delta", 12)
	assert.LessOrEqual(t, len([]rune(got)), 15)
	assert.Contains(t, got, "...")
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simplified chinese", "平安保险推出新的健康险产品", "zh-CN"},
		{"traditional marker", "繁體中文的保險新聞內容", "zh-TW"},
		{"japanese", "あたらしいほけんサービスがスタートしました", "ja"},
		{"korean", "삼성화재가 새로운 보험 상품을 출시했다", "ko"},
		{"english default", "Lemonade launches a new renters product", "en"},
		{"empty defaults to english", "", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.in))
		})
	}
}

func TestInferRegion(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		content string
		want    string
	}{
		{"cn domain", "https://news.example.cn/article", "", "china"},
		{"url beats content", "https://insurance.jp/item", "a story about China", "japan"},
		{"content keyword", "https://example.com/a", "Regulators in Singapore approved the product", "singapore"},
		{"us phrasing", "https://example.com/b", "carriers across the United States", "usa"},
		{"default global", "https://example.com/c", "a generic story", "global"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferRegion(tt.url, tt.content))
		})
	}
}

func TestExtractCompanyNames(t *testing.T) {
	names := ExtractCompanyNames("Ping An Insurance and Lemonade announced a pilot; 平安保险 also confirmed it.")
	assert.Contains(t, names, "Ping An")
	assert.Contains(t, names, "Lemonade")
	assert.Contains(t, names, "平安保险")
}

func TestExtractCompanyNames_DedupAndCap(t *testing.T) {
	names := ExtractCompanyNames("Lemonade, Lemonade, Root, Oscar, Hippo, Metromile, Clover announced things")
	assert.LessOrEqual(t, len(names), 5)

	seen := map[string]int{}
	for _, n := range names {
		seen[n]++
	}
	for n, c := range seen {
		assert.Equal(t, 1, c, "duplicate %q", n)
	}
}

func TestParsePublishedDate(t *testing.T) {
	got := ParsePublishedDate("2025-03-01T10:00:00Z")
	require.NotNil(t, got)
	assert.Equal(t, 2025, got.Year())

	assert.Nil(t, ParsePublishedDate(""))
	assert.Nil(t, ParsePublishedDate("not a date at all ???"))
}
