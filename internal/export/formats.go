package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"visaprep/api/internal/form"
	"visaprep/api/internal/schema"
	"visaprep/api/internal/summary"
)

// exportJSON emits the raw snapshot as pretty-printed JSON, the same shape
// the import endpoint accepts back.
func exportJSON(snapshot form.Snapshot, basename string) (*Result, error) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return &Result{
		Data:     data,
		Filename: basename + ".json",
		MimeType: "application/json",
	}, nil
}

// exportCSV emits a header row of schema field names and a single value row
// in schema order. List values are joined before quoting so each field stays
// one cell.
func exportCSV(snapshot form.Snapshot, basename string) (*Result, error) {
	names := schema.FieldNames()
	row := make([]string, len(names))
	for i, name := range names {
		row[i] = summary.DisplayValue(snapshot[name])
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(names); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.Write(row); err != nil {
		return nil, fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: basename + ".csv",
		MimeType: "text/csv",
	}, nil
}

// exportText emits a human-readable report grouped by section, flagging
// unanswered and confirmed fields.
func exportText(view summary.View, title, basename string) (*Result, error) {
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	for _, section := range view.Sections {
		b.WriteString(section.Title + "\n")
		b.WriteString(strings.Repeat("-", len(section.Title)) + "\n")
		for _, field := range section.Fields {
			value := field.Value
			if !field.Filled {
				value = "(not answered)"
			}
			marker := " "
			if field.Confirmed {
				marker = "*"
			}
			fmt.Fprintf(&b, "%s %s: %s\n", marker, field.Label, value)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Answered %d of %d fields, %d confirmed.\n",
		view.Stats.Filled, view.Stats.TotalFields, view.Stats.Confirmed)

	return &Result{
		Data:     []byte(b.String()),
		Filename: basename + ".txt",
		MimeType: "text/plain; charset=utf-8",
	}, nil
}
