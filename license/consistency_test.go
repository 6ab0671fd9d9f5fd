package license_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/license-engine/generic"
	"github.com/warp/license-engine/license"
)

func march10to15() generic.Period {
	return generic.Period{Start: date(2024, time.March, 10), End: date(2024, time.March, 15)}
}

// =============================================================================
// DATE AND IDENTITY PREDICATES
// =============================================================================

func TestConsistency_MatchingCertificate(t *testing.T) {
	// GIVEN: Text dated 12/03/2024 naming ana perez with her national ID
	// WHEN: Checked against [2024-03-10, 2024-03-15]
	// THEN: Consistent, with the date it found
	checker := license.NewConsistencyChecker()
	txt := "Certifico que ana perez, DNI 30111222, fue atendida el 12/03/2024."

	v := checker.Check(txt, ana(), march10to15())
	assert.True(t, v.Consistent)
	assert.Empty(t, v.Reason)
	require.NotNil(t, v.FoundDate)
	assert.Equal(t, "2024-03-12", v.FoundDate.String())
	assert.True(t, checker.IsConsistent(txt, ana(), march10to15()))
}

func TestConsistency_Mismatches(t *testing.T) {
	checker := license.NewConsistencyChecker()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty text", "   ", license.MismatchNoText},
		{"no date", "Ana Perez 30111222 asistió a consulta", license.MismatchNoDate},
		{"impossible date", "Ana Perez 30111222 el 31/02/2024", license.MismatchInvalidDate},
		{"month 13", "Ana Perez 30111222 el 12/13/2024", license.MismatchInvalidDate},
		{"date after interval", "Ana Perez 30111222 el 16/03/2024", license.MismatchDateOutside},
		{"date before interval", "Ana Perez 30111222 el 09-03-2024", license.MismatchDateOutside},
		{"only first date counts", "Emitido 01/01/2024. Ana Perez 30111222 reposo 12/03/2024", license.MismatchDateOutside},
		{"missing national id", "Ana Perez el 12/03/2024", license.MismatchIdentity},
		{"national id inside longer number", "Ana Perez 301112229 el 12/03/2024", license.MismatchIdentity},
		{"missing last name", "Ana 30111222 el 12/03/2024", license.MismatchIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := checker.Check(tt.text, ana(), march10to15())
			assert.False(t, v.Consistent)
			assert.Equal(t, tt.want, v.Reason)
		})
	}
}

func TestConsistency_DashSeparatorsAndBoundaries(t *testing.T) {
	checker := license.NewConsistencyChecker()

	assert.True(t, checker.IsConsistent("Ana Perez 30111222 10-03-2024", ana(), march10to15()))
	assert.True(t, checker.IsConsistent("Ana Perez 30111222 15/03/2024", ana(), march10to15()))
}

func TestConsistency_NamesIgnoreCaseAndAccents(t *testing.T) {
	checker := license.NewConsistencyChecker()

	assert.True(t, checker.IsConsistent("PACIENTE: ANA PÉREZ - D.N.I. 30111222 - 12/03/2024", ana(), march10to15()))
	assert.True(t, checker.IsConsistent("paciente perez,  ana (30111222) 12/03/2024", ana(), march10to15()))
}

func TestConsistency_EmptyIdentityFieldNeverMatches(t *testing.T) {
	checker := license.NewConsistencyChecker()
	emp := ana()
	emp.NationalID = ""

	v := checker.Check("Ana Perez 30111222 12/03/2024", emp, march10to15())
	assert.Equal(t, license.MismatchIdentity, v.Reason)
}

// =============================================================================
// EXEMPT CATEGORIES
// =============================================================================

func TestConsistency_ExemptCategories(t *testing.T) {
	checker := license.NewConsistencyChecker()

	for _, cat := range []license.Category{
		license.CategoryChildMarriage,
		license.CategoryFamilyAssistance,
		license.CategoryBereavementA,
		license.CategoryBereavementB,
		license.CategoryRelocation,
	} {
		assert.True(t, checker.Exempt(cat), cat)
	}
	assert.False(t, checker.Exempt(license.CategorySickLeave))
	assert.False(t, checker.Exempt(license.CategoryVacation))

	custom := license.NewConsistencyChecker(license.CategorySickLeave)
	assert.True(t, custom.Exempt(license.CategorySickLeave))
	assert.False(t, custom.Exempt(license.CategoryRelocation))
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Ana  PÉREZ, D.N.I.": "ana perez dni",
		"Muñoz\tGarcía\n":      "munoz garcia",
		"":                     "",
		"...":                  "",
		"Día 12/03/2024":       "dia 12032024",
	}
	for in, want := range tests {
		assert.Equal(t, want, license.Normalize(in), "Normalize(%q)", in)
	}
}
