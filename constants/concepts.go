package constants

import "strings"

// ConceptCategory identifies one of the billing line-item buckets surfaced in
// the flat record. Unmatched concepts stay in the document but get no bucket.
type ConceptCategory string

const (
	ConceptCargoFijo      ConceptCategory = "CargoFijo"
	ConceptEnergia        ConceptCategory = "Energia"
	ConceptVarCombustible ConceptCategory = "VarCombustible"
	ConceptVarTransmision ConceptCategory = "VarTransmision"
	ConceptVarGeneracion  ConceptCategory = "VarGeneracion"
	ConceptInteresMora    ConceptCategory = "InteresMora"
	ConceptSubsidio       ConceptCategory = "Subsidio"
	ConceptCompensacion   ConceptCategory = "Compensacion"
)

// ConceptRule maps a keyword set to a category. Rules are evaluated in order
// and the first rule whose keywords match the concept label decides the
// category for that line item.
type ConceptRule struct {
	Category ConceptCategory
	Keywords []string
}

// ConceptRules is the ordered rule list for classifying line-item labels.
// The order mirrors the invoice layout: the fixed charge and energy rows come
// first, variation rows next, penalties and credits last. Keywords are matched
// against a lowercased, diacritic-folded label, so "Energía" and "energia"
// both hit the Energia rule.
var ConceptRules = []ConceptRule{
	{Category: ConceptCargoFijo, Keywords: []string{"fijo"}},
	{Category: ConceptEnergia, Keywords: []string{"energia"}},
	{Category: ConceptVarCombustible, Keywords: []string{"combustible"}},
	{Category: ConceptVarTransmision, Keywords: []string{"transmision"}},
	{Category: ConceptVarGeneracion, Keywords: []string{"generacion"}},
	{Category: ConceptInteresMora, Keywords: []string{"interes", "mora"}},
	{Category: ConceptSubsidio, Keywords: []string{"subsidio", "ley 15"}},
	{Category: ConceptCompensacion, Keywords: []string{"compensacion", "incumplimiento"}},
}

var diacritics = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
	"Á", "a", "É", "e", "Í", "i", "Ó", "o", "Ú", "u", "Ü", "u", "Ñ", "n",
)

// FoldConceptLabel lowercases and strips Spanish diacritics so keyword
// matching is insensitive to both case and accents.
func FoldConceptLabel(label string) string {
	return strings.ToLower(diacritics.Replace(label))
}

// ClassifyConcept returns the category for a line-item label, or false when
// no rule matches.
func ClassifyConcept(label string) (ConceptCategory, bool) {
	folded := FoldConceptLabel(label)
	for _, rule := range ConceptRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(folded, kw) {
				return rule.Category, true
			}
		}
	}
	return "", false
}
