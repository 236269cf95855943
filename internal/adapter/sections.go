package adapter

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/health-content-resolver/internal/content"
)

type sectionSpec struct {
	title          string
	titleLocalized string
	field          content.Field
	list           bool
}

// sectionTable fixes which record fields become sections, their titles and
// their order.
var sectionTable = []sectionSpec{
	{"Overview", "Descripción general", content.FieldDescription, false},
	{"Symptoms", "Síntomas", content.FieldSymptoms, true},
	{"Causes", "Causas", content.FieldCauses, true},
	{"Risk Factors", "Factores de riesgo", content.FieldRiskFactors, true},
	{"Diagnosis", "Diagnóstico", content.FieldDiagnosis, false},
	{"Treatment", "Tratamiento", content.FieldTreatment, false},
	{"Complications", "Complicaciones", content.FieldComplications, true},
	{"Prevention", "Prevención", content.FieldPrevention, true},
	{"When to See a Doctor", "Cuándo consultar al médico", content.FieldWhenToSeeDoctor, false},
}

// BuildSections converts the paired fields of rec into content sections.
// Fields with no text in either language produce no section.
func BuildSections(rec content.LocalizedRecord) []content.Section {
	sections := make([]content.Section, 0, len(sectionTable))
	for _, row := range sectionTable {
		pair := rec.Field(row.field)
		if pair.IsEmpty() {
			continue
		}
		canonical := render(pair.Canonical, row.list)
		localized := render(pair.Localized, row.list)
		if canonical == "" {
			canonical = localized
		}
		s := content.Section{
			Title:          row.title,
			TitleLocalized: row.titleLocalized,
			Levels:         content.Levels{Intermediate: canonical},
		}
		if localized != "" {
			s.Localized = content.Levels{Intermediate: localized}
		}
		sections = append(sections, s)
	}
	return sections
}

func render(values content.Strings, list bool) string {
	if list {
		return values.Prose()
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
