package license

import (
	"sort"
	"strings"
)

// =============================================================================
// KEYWORD CLASSIFIER - Advisory certificate type suggestions
// =============================================================================

// KeywordGroup is satisfied when at least MinCount of its keywords appear.
type KeywordGroup struct {
	Keywords []string
	MinCount int
}

// RuleSet scores one category. Every Must group has to be satisfied for a
// non-zero score; Could groups only raise it.
type RuleSet struct {
	Category Category
	Must     []KeywordGroup
	Could    []KeywordGroup
}

// CategoryScore is one suggestion, Confidence in [0, 1].
type CategoryScore struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Score is a pure function of text and rule set. Text and keywords are
// normalized before matching.
//
// A rule set with unmet Must groups scores 0. Otherwise the score is 0.5 for
// the Must groups plus 0.5 scaled by the share of satisfied Could groups.
func Score(text string, rs RuleSet) float64 {
	normalized := " " + Normalize(text) + " "
	for _, g := range rs.Must {
		if !groupSatisfied(normalized, g) {
			return 0
		}
	}
	if len(rs.Must) == 0 && len(rs.Could) == 0 {
		return 0
	}

	if len(rs.Could) == 0 {
		return 1
	}
	satisfied := 0
	for _, g := range rs.Could {
		if groupSatisfied(normalized, g) {
			satisfied++
		}
	}
	if len(rs.Must) == 0 && satisfied == 0 {
		return 0
	}
	return 0.5 + 0.5*float64(satisfied)/float64(len(rs.Could))
}

func groupSatisfied(normalized string, g KeywordGroup) bool {
	need := g.MinCount
	if need <= 0 {
		need = 1
	}
	found := 0
	for _, kw := range g.Keywords {
		nk := Normalize(kw)
		if nk != "" && strings.Contains(normalized, " "+nk+" ") {
			found++
			if found >= need {
				return true
			}
		}
	}
	return false
}

// KeywordClassifier ranks categories for a certificate text. It holds only
// its rule sets.
type KeywordClassifier struct {
	Rules []RuleSet
}

func NewKeywordClassifier(rules ...RuleSet) *KeywordClassifier {
	if len(rules) == 0 {
		rules = DefaultRuleSets()
	}
	return &KeywordClassifier{Rules: rules}
}

// TopCategories returns up to three categories with a positive score, best
// first. Ties are broken by category name.
func (k *KeywordClassifier) TopCategories(text string) []CategoryScore {
	var scores []CategoryScore
	for _, rs := range k.Rules {
		if s := Score(text, rs); s > 0 {
			scores = append(scores, CategoryScore{Category: rs.Category, Confidence: s})
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Confidence != scores[j].Confidence {
			return scores[i].Confidence > scores[j].Confidence
		}
		return scores[i].Category < scores[j].Category
	})
	if len(scores) > 3 {
		scores = scores[:3]
	}
	return scores
}

// DefaultRuleSets covers the categories whose certificates have a
// recognizable vocabulary.
func DefaultRuleSets() []RuleSet {
	return []RuleSet{
		{
			Category: CategorySickLeave,
			Must:     []KeywordGroup{{Keywords: []string{"certificado", "medico", "doctor", "dr", "reposo"}, MinCount: 2}},
			Could:    []KeywordGroup{{Keywords: []string{"diagnostico", "enfermedad", "dias", "tratamiento"}, MinCount: 1}},
		},
		{
			Category: CategoryWorkAccident,
			Must:     []KeywordGroup{{Keywords: []string{"accidente", "art", "laboral", "trabajo"}, MinCount: 2}},
			Could:    []KeywordGroup{{Keywords: []string{"lesion", "denuncia", "siniestro"}, MinCount: 1}},
		},
		{
			Category: CategoryMarriage,
			Must:     []KeywordGroup{{Keywords: []string{"matrimonio", "casamiento", "registro civil", "acta"}, MinCount: 2}},
			Could:    []KeywordGroup{{Keywords: []string{"contrayentes", "conyuge", "libreta"}, MinCount: 1}},
		},
		{
			Category: CategoryBirth,
			Must:     []KeywordGroup{{Keywords: []string{"nacimiento", "nacido", "partida", "recien"}, MinCount: 2}},
			Could:    []KeywordGroup{{Keywords: []string{"madre", "padre", "hospital", "maternidad"}, MinCount: 1}},
		},
		{
			Category: CategoryStudy,
			Must:     []KeywordGroup{{Keywords: []string{"examen", "universidad", "facultad", "alumno", "constancia"}, MinCount: 2}},
			Could:    []KeywordGroup{{Keywords: []string{"materia", "mesa", "catedra", "regular"}, MinCount: 1}},
		},
		{
			Category: CategoryBereavementA,
			Must:     []KeywordGroup{{Keywords: []string{"defuncion", "fallecimiento", "deceso"}, MinCount: 1}},
			Could:    []KeywordGroup{{Keywords: []string{"acta", "registro civil", "sepelio"}, MinCount: 1}},
		},
		{
			Category: CategoryBloodDonation,
			Must:     []KeywordGroup{{Keywords: []string{"donacion", "sangre", "donante", "hemoterapia"}, MinCount: 2}},
		},
		{
			Category: CategoryRelocation,
			Must:     []KeywordGroup{{Keywords: []string{"domicilio", "mudanza", "cambio"}, MinCount: 2}},
			Could:    []KeywordGroup{{Keywords: []string{"contrato", "alquiler", "locacion"}, MinCount: 1}},
		},
	}
}
