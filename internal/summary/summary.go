// Package summary derives the review view from current form state. Rendering
// is a pure function of (snapshot, confirmations, schema) and recomputes in
// full on every call; it is cheap relative to typing cadence.
package summary

import (
	"strings"

	"visaprep/api/internal/confirm"
	"visaprep/api/internal/form"
	"visaprep/api/internal/schema"
)

type FieldRow struct {
	Name      string
	Label     string
	Value     string
	Filled    bool
	Confirmed bool
}

type SectionView struct {
	ID     string
	Title  string
	Fields []FieldRow
}

type Stats struct {
	TotalFields int
	Filled      int
	Empty       int
	Confirmed   int
}

type View struct {
	Sections []SectionView
	Stats    Stats
}

// Render builds the grouped per-section view plus aggregate counts. Every
// schema field is counted exactly once, in the section the schema assigns it
// to.
func Render(snapshot form.Snapshot, confirmations confirm.Set) View {
	view := View{}
	for _, section := range schema.Sections() {
		sectionView := SectionView{ID: section.ID, Title: section.Title}
		for _, field := range section.Fields {
			value := snapshot[field.Name]
			filled := form.IsFilled(value)
			confirmed := confirmations.Confirmed(field.Name)
			sectionView.Fields = append(sectionView.Fields, FieldRow{
				Name:      field.Name,
				Label:     field.Label,
				Value:     DisplayValue(value),
				Filled:    filled,
				Confirmed: confirmed,
			})
			view.Stats.TotalFields++
			if filled {
				view.Stats.Filled++
			} else {
				view.Stats.Empty++
			}
			if confirmed {
				view.Stats.Confirmed++
			}
		}
		view.Sections = append(view.Sections, sectionView)
	}
	return view
}

// DisplayValue flattens a snapshot value for presentation; list entries are
// joined with a comma.
func DisplayValue(value any) string {
	return strings.Join(form.Values(value), ", ")
}
