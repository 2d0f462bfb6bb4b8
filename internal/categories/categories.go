// Package categories maps free-text category labels from provider output or
// client requests onto the fixed canonical category set.
package categories

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

type categoryDef struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type categoryFile struct {
	Categories []categoryDef `yaml:"categories"`
}

var (
	// canonical holds the category names in declaration order. Ties in
	// alias or fuzzy matching resolve to the earliest entry.
	canonical []string

	// lowerCanonical maps lowercased canonical name to canonical name.
	lowerCanonical map[string]string

	// aliasIndex maps lowercased alias to canonical name. First declaration
	// wins; duplicate aliases across categories are ignored after that.
	aliasIndex map[string]string
)

func init() {
	var file categoryFile
	if err := yaml.Unmarshal(categoriesYAML, &file); err != nil {
		panic(fmt.Sprintf("categories: invalid embedded table: %v", err))
	}

	lowerCanonical = make(map[string]string, len(file.Categories))
	aliasIndex = make(map[string]string)

	for _, def := range file.Categories {
		name := strings.TrimSpace(def.Name)
		if name == "" {
			continue
		}
		canonical = append(canonical, name)
		lowerCanonical[strings.ToLower(name)] = name

		for _, alias := range def.Aliases {
			key := strings.ToLower(strings.TrimSpace(alias))
			if key == "" {
				continue
			}
			if _, exists := aliasIndex[key]; !exists {
				aliasIndex[key] = name
			}
		}
	}
}

// Canonical returns the canonical category names in declaration order.
// The returned slice is a copy.
func Canonical() []string {
	out := make([]string, len(canonical))
	copy(out, canonical)
	return out
}

// IsCanonical reports whether the label exactly matches a canonical
// category (case-insensitive).
func IsCanonical(label string) bool {
	_, ok := lowerCanonical[strings.ToLower(strings.TrimSpace(label))]
	return ok
}
