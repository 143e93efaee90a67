package templates

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// KeyStrategy derives a stable field key from a label. Implementations must
// be deterministic; an empty result means no key could be derived.
type KeyStrategy interface {
	Key(label string) string
}

// KeyStrategyFunc adapts a function to KeyStrategy
type KeyStrategyFunc func(label string) string

func (f KeyStrategyFunc) Key(label string) string { return f(label) }

var transliterations = strings.NewReplacer(
	"ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss",
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
)

// CamelCaseKeys turns a label into an ASCII lowerCamelCase key, e.g.
// "Rücknahme angeboten" becomes "ruecknahmeAngeboten".
var CamelCaseKeys KeyStrategy = KeyStrategyFunc(camelCaseKey)

func camelCaseKey(label string) string {
	words := strings.FieldsFunc(transliterations.Replace(label), func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})

	var b strings.Builder
	for i, w := range words {
		w = strings.ToLower(w)
		if i > 0 {
			w = strings.ToUpper(w[:1]) + w[1:]
		}
		b.WriteString(w)
	}

	key := b.String()
	if key != "" && unicode.IsDigit(rune(key[0])) {
		key = "field" + strings.ToUpper(key[:1]) + key[1:]
	}
	return key
}

// TranslatedKeys maps known labels to canonical English keys and falls back
// to another strategy for everything else. Lookups ignore case, surrounding
// whitespace, umlaut spelling and space/underscore differences.
type TranslatedKeys struct {
	table    map[string]string
	fallback KeyStrategy
}

// NewTranslatedKeys builds a strategy from a label-to-key table
func NewTranslatedKeys(table map[string]string, fallback KeyStrategy) *TranslatedKeys {
	if fallback == nil {
		fallback = CamelCaseKeys
	}
	t := &TranslatedKeys{table: make(map[string]string, len(table)), fallback: fallback}
	for label, key := range table {
		t.table[normalizeLabel(label)] = key
	}
	return t
}

// LoadTranslatedKeys reads a YAML mapping of label to key, e.g.
//
//	produktname: name
//	herstellungsland: countryOfOrigin
func LoadTranslatedKeys(r io.Reader, fallback KeyStrategy) (*TranslatedKeys, error) {
	table := make(map[string]string)
	if err := yaml.NewDecoder(r).Decode(&table); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode key translations: %w", err)
	}
	for label, key := range table {
		if err := validateKey(key); err != nil {
			return nil, fmt.Errorf("invalid translation for %q: %w", label, err)
		}
	}
	return NewTranslatedKeys(table, fallback), nil
}

// Key implements KeyStrategy
func (t *TranslatedKeys) Key(label string) string {
	if key, ok := t.table[normalizeLabel(label)]; ok {
		return key
	}
	return t.fallback.Key(label)
}

func normalizeLabel(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = transliterations.Replace(s)
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

// DefaultKeyTranslations holds the German labels used by the seeded templates
var DefaultKeyTranslations = map[string]string{
	"produktname":               "name",
	"beschreibung":              "description",
	"herstellungsland":          "countryOfOrigin",
	"ean":                       "gtin",
	"materialliste":             "materials",
	"materialien":               "materials",
	"datenquelle":               "materialSource",
	"materialquelle":            "materialSource",
	"pflegehinweise":            "careInstructions",
	"lebensdauer":               "lifespan",
	"reparierbarkeit":           "isRepairable",
	"reparierbar":               "isRepairable",
	"ersatzteile verfügbar":     "sparePartsAvailable",
	"konformitätserklärung":     "conformityDeclaration",
	"entsorgungsinformationen":  "disposalInfo",
	"rücknahme angeboten":       "takebackOffered",
	"rücknahmekontakt":          "takebackContact",
	"second life informationen": "secondLifeInfo",
}

// DefaultKeyStrategy translates the known German labels and camel-cases the rest
func DefaultKeyStrategy() KeyStrategy {
	return NewTranslatedKeys(DefaultKeyTranslations, CamelCaseKeys)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// reservedTerms may not appear in field keys or labels: category is a
// template-level property and never a field.
var reservedTerms = []string{"category", "kategorie"}

func containsReservedTerm(s string) bool {
	lower := strings.ToLower(s)
	for _, term := range reservedTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("field key %q must start with a letter and contain only letters, digits or underscores (max 64)", key)
	}
	return nil
}
