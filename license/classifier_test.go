package license_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/license"
)

func TestScore(t *testing.T) {
	medical := license.RuleSet{
		Category: license.CategorySickLeave,
		Must:     []license.KeywordGroup{{Keywords: []string{"certificado", "medico", "reposo"}, MinCount: 2}},
		Could: []license.KeywordGroup{
			{Keywords: []string{"diagnostico"}},
			{Keywords: []string{"tratamiento"}},
		},
	}

	tests := []struct {
		name string
		text string
		rs   license.RuleSet
		want float64
	}{
		{"no groups", "certificado medico", license.RuleSet{}, 0},
		{"must unmet", "certificado de estudios", medical, 0},
		{"must met, no could", "Certificado Médico", license.RuleSet{Must: medical.Must}, 1},
		{"must met, no could satisfied", "certificado medico", medical, 0.5},
		{"must met, half could", "certificado médico, diagnóstico gripe", medical, 0.75},
		{"must met, all could", "reposo medico diagnostico y tratamiento", medical, 1},
		{"only could, none", "nada", license.RuleSet{Could: medical.Could}, 0},
		{"only could, one of two", "tratamiento", license.RuleSet{Could: medical.Could}, 0.75},
		{"keywords are whole tokens", "certificadores medicos", medical, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, license.Score(tt.text, tt.rs), 1e-9)
		})
	}
}

func TestScore_MultiWordKeyword(t *testing.T) {
	rs := license.RuleSet{Must: []license.KeywordGroup{{Keywords: []string{"registro civil", "acta"}, MinCount: 2}}}

	assert.Equal(t, 1.0, license.Score("Acta del Registro Civil", rs))
	assert.Equal(t, 0.0, license.Score("acta del registro", rs))
}

func TestTopCategories(t *testing.T) {
	k := license.NewKeywordClassifier()

	top := k.TopCategories("Certificado médico. Dr. Gómez indica reposo por 3 días. Diagnóstico: gripe.")
	require.NotEmpty(t, top)
	assert.Equal(t, license.CategorySickLeave, top[0].Category)
	assert.InDelta(t, 1.0, top[0].Confidence, 1e-9)

	assert.Empty(t, k.TopCategories("sin palabras clave"))
}

func TestTopCategories_AtMostThreeOrderedByScore(t *testing.T) {
	group := func(kw string) []license.KeywordGroup {
		return []license.KeywordGroup{{Keywords: []string{kw}}}
	}
	k := license.NewKeywordClassifier(
		license.RuleSet{Category: "a", Must: group("alfa"), Could: group("zeta")},
		license.RuleSet{Category: "b", Must: group("alfa")},
		license.RuleSet{Category: "c", Must: group("beta"), Could: append(group("zeta"), group("omega")...)},
		license.RuleSet{Category: "d", Must: group("alfa"), Could: group("omega")},
		license.RuleSet{Category: "e", Must: group("gamma")},
	)

	top := k.TopCategories("alfa beta zeta")
	require.Len(t, top, 3)
	// a and b: 1, c: 0.75, d: 0.5
	assert.Equal(t, license.Category("a"), top[0].Category)
	assert.Equal(t, license.Category("b"), top[1].Category)
	assert.Equal(t, license.Category("c"), top[2].Category)
	assert.InDelta(t, 0.75, top[2].Confidence, 1e-9)
}
