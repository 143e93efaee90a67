package templates

import (
	"regexp"
	"strings"
)

// Well-known regulatory categories
const (
	CategoryTextile   = "TEXTILE"
	CategoryFurniture = "FURNITURE"
	CategoryOther     = "OTHER"
)

var categoryAliases = map[string]string{
	"MÖBEL":     CategoryFurniture,
	"MOEBEL":    CategoryFurniture,
	"TEXTIL":    CategoryTextile,
	"TEXTILIEN": CategoryTextile,
	"SONSTIGE":  CategoryOther,
}

var categoryLabels = map[string]string{
	CategoryTextile:   "Textiles",
	CategoryFurniture: "Furniture",
	CategoryOther:     "Other",
}

var categoryPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// NormalizeCategory upper-cases a category key and resolves German aliases.
// It does not validate; see validCategory.
func NormalizeCategory(category string) string {
	c := strings.ToUpper(strings.TrimSpace(category))
	if canonical, ok := categoryAliases[c]; ok {
		return canonical
	}
	return c
}

// DefaultCategoryLabel returns the display label of a well-known category
func DefaultCategoryLabel(category string) string {
	if label, ok := categoryLabels[category]; ok {
		return label
	}
	return category
}

func validCategory(category string) bool {
	return categoryPattern.MatchString(category)
}
