package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCamelCaseKeys(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Product name", "productName"},
		{"Rücknahme angeboten", "ruecknahmeAngeboten"},
		{"  GTIN / EAN  ", "gtinEan"},
		{"Größe", "groesse"},
		{"2nd life", "field2ndLife"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, CamelCaseKeys.Key(tt.label))
		})
	}
}

func TestTranslatedKeys(t *testing.T) {
	keys := DefaultKeyStrategy()

	assert.Equal(t, "name", keys.Key("Produktname"))
	assert.Equal(t, "takebackOffered", keys.Key("Rücknahme angeboten"))
	assert.Equal(t, "takebackOffered", keys.Key("ruecknahme_angeboten"))
	assert.Equal(t, "conformityDeclaration", keys.Key("Konformitaetserklaerung"))
	assert.Equal(t, "washingTemperature", keys.Key("Washing temperature"))
}

func TestLoadTranslatedKeys(t *testing.T) {
	keys, err := LoadTranslatedKeys(strings.NewReader("farbe: color\nhöhe: height\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "color", keys.Key("Farbe"))
	assert.Equal(t, "height", keys.Key("Hoehe"))
	assert.Equal(t, "breite", keys.Key("Breite"))

	empty, err := LoadTranslatedKeys(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Equal(t, "farbe", empty.Key("Farbe"))

	_, err = LoadTranslatedKeys(strings.NewReader("farbe: 'not a key'\n"), nil)
	assert.Error(t, err)

	_, err = LoadTranslatedKeys(strings.NewReader("- a\n- b\n"), nil)
	assert.Error(t, err)
}

func TestReservedTerms(t *testing.T) {
	assert.True(t, containsReservedTerm("productCategory"))
	assert.True(t, containsReservedTerm("Produktkategorie"))
	assert.False(t, containsReservedTerm("material"))
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, validateKey("countryOfOrigin"))
	assert.NoError(t, validateKey("a_1"))
	assert.Error(t, validateKey("1abc"))
	assert.Error(t, validateKey("with space"))
	assert.Error(t, validateKey(strings.Repeat("a", 65)))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, CategoryFurniture, NormalizeCategory("möbel"))
	assert.Equal(t, CategoryFurniture, NormalizeCategory(" MOEBEL "))
	assert.Equal(t, CategoryTextile, NormalizeCategory("textil"))
	assert.Equal(t, CategoryOther, NormalizeCategory("sonstige"))
	assert.Equal(t, "ELECTRONICS", NormalizeCategory("electronics"))
	assert.Equal(t, "", NormalizeCategory("  "))

	assert.Equal(t, "Textiles", DefaultCategoryLabel(CategoryTextile))
	assert.Equal(t, "ELECTRONICS", DefaultCategoryLabel("ELECTRONICS"))
	assert.True(t, validCategory("BATTERY_2"))
	assert.False(t, validCategory("bad-category"))
}
