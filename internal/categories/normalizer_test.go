package categories

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCanonicalAnyCase(t *testing.T) {
	for _, name := range Canonical() {
		for _, variant := range []string{name, strings.ToLower(name), strings.ToUpper(name)} {
			assert.Equal(t, name, Normalize(variant), "Normalize(%q)", variant)
		}
	}
}

func TestNormalizeAliases(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"techno", "Electronic Music"},
		{"TECHNO", "Electronic Music"},
		{"konzerte", "Live-Konzerte"},
		{"live music", "Live-Konzerte"},
		{"nightlife", "Clubs/Discos"},
		{"opera", "Klassik & Oper"},
		{"ausstellung", "Kunst & Ausstellungen"},
		{"open air", "Festivals & Märkte"},
		{"queer", "LGBTQ+"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestNormalizeFuzzySingleEdit(t *testing.T) {
	// Single insertion, deletion and substitution against canonical names.
	tests := []struct {
		input string
		want  string
	}{
		{"Sports", "Sport"}, // insertion (also an alias, same result)
		{"Spor", "Sport"},   // deletion
		{"Spurt", "Sport"},  // substitution
		{"Clubs/Disco", "Clubs/Discos"},
		{"Live-Konzert", "Live-Konzerte"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestNormalizeFuzzyMultibyteRunes(t *testing.T) {
	// Umlaut names: one rune of edit distance can be two bytes, which must
	// not trip the length pre-check.
	tests := []struct {
		input string
		want  string
	}{
		{"Festivals & Mrkte", "Festivals & Märkte"},  // deleted "ä"
		{"Festivals & Markte", "Festivals & Märkte"}, // "ä" substituted with "a"
		{"Festivals & Märkt", "Festivals & Märkte"},  // ASCII deletion after the umlaut
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestNormalizeUnknownReturnsTrimmedInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Puppet Slam Vienna  ", "Puppet Slam Vienna"},
		{"zzqx", "zzqx"},
		{"  weird   spacing  here ", "weird spacing here"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.input), "Normalize(%q)", tt.input)
	}
}

func TestNormalizeAllDedupsAndPreservesOrder(t *testing.T) {
	input := []string{"techno", "Electronic Music", "konzerte", "", "  ", "Live-Konzerte", "zzqx"}
	want := []string{"Electronic Music", "Live-Konzerte", "zzqx"}

	assert.Equal(t, want, NormalizeAll(input))
}

func TestNormalizeAllIdempotent(t *testing.T) {
	once := NormalizeAll([]string{"techno", "clubs", "konzert"})
	twice := NormalizeAll(once)

	require.Equal(t, len(once), len(twice))
	assert.Equal(t, once, twice)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"a", "", 1},
		{"sport", "sport", 0},
		{"sport", "spurt", 1},
		{"sport", "sports", 1},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "levenshtein(%q, %q)", tt.a, tt.b)
	}
}
