package export

import (
	"bytes"
	"html/template"
	"time"

	"visaprep/api/internal/summary"
)

var printTemplate = template.Must(template.New("print").Funcs(template.FuncMap{
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).Parse(printTemplateText))

// TemplateData holds data for the print template.
type TemplateData struct {
	Title     string
	OwnerName string
	SavedAt   time.Time
	View      summary.View
}

// RenderPrintHTML renders the printable summary page.
func RenderPrintHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const printTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.5; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; border-bottom: 1px solid #ccc; padding-bottom: 0.25rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    table { width: 100%; border-collapse: collapse; }
    td { padding: 0.3rem 0.5rem; vertical-align: top; border-bottom: 1px solid #eee; }
    td.label { width: 40%; color: #444; }
    .empty { color: #999; font-style: italic; }
    .confirmed { color: #1a7a2e; font-weight: bold; }
    .stats { margin-top: 2rem; padding: 1rem; background: #f5f5f5; border-left: 3px solid #333; }
    @media print { body { margin: 0; } }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{if .OwnerName}}{{.OwnerName}} | {{end}}{{if not .SavedAt.IsZero}}Saved {{formatDate .SavedAt "Jan 2, 2006 15:04 MST"}}{{end}}</div>
  {{range .View.Sections}}
  <h2>{{.Title}}</h2>
  <table>
    {{range .Fields}}
    <tr>
      <td class="label">{{.Label}}{{if .Confirmed}} <span class="confirmed">&#10003;</span>{{end}}</td>
      <td>{{if .Filled}}{{.Value}}{{else}}<span class="empty">Not answered</span>{{end}}</td>
    </tr>
    {{end}}
  </table>
  {{end}}
  <div class="stats">
    Answered {{.View.Stats.Filled}} of {{.View.Stats.TotalFields}} fields &middot; {{.View.Stats.Confirmed}} confirmed
  </div>
</body>
</html>`
