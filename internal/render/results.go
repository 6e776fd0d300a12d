package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"

	"github.com/poku-e/ecopack/internal/api"
)

// ResultsAnchor is the id of the results region; the page jumps to it after a
// new batch is rendered.
const ResultsAnchor = "resultsSection"

var funcs = template.FuncMap{
	"f1":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"f2":   func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"f4":   func(v float64) string { return fmt.Sprintf("%.4f", v) },
	"rank": func(i int) int { return i + 1 },
	"mark": mark,
}

var resultsTmpl = template.Must(template.New("results").Funcs(funcs).Parse(`
<div class="results-header">
  <h2 class="section-title">✨ Your Recommendations (Sorted by {{.SortBy}})</h2>
  <div class="results-actions">
    <form method="post" action="/export/pdf"><button id="generatePdfBtn" class="btn-secondary" type="submit">📄 Download PDF</button></form>
    <form method="post" action="/export/excel"><button id="exportExcelBtn" class="btn-secondary" type="submit">📊 Export Excel</button></form>
  </div>
</div>
{{with .Best}}
<div class="best-recommendation-card">
  <div class="best-rec-header">
    <span class="best-rec-icon">🏆</span>
    <h3 class="best-rec-title">{{.MaterialName}}</h3>
  </div>
  <div class="best-rec-metrics">
    <div class="best-metric"><div class="best-metric-label">🌱 Sustainability</div><div class="best-metric-value">{{f4 .Sustainability}}</div></div>
    <div class="best-metric"><div class="best-metric-label">💨 CO₂</div><div class="best-metric-value">{{f2 .PredCO2}} kg</div></div>
    <div class="best-metric"><div class="best-metric-label">💲 Cost</div><div class="best-metric-value">${{f2 .PredCost}}</div></div>
  </div>
  <div class="best-rec-properties">
    <div class="property-badge {{if .Biodegradable}}true{{else}}false{{end}}">{{mark .Biodegradable}} Biodegradable</div>
    <div class="property-badge true">💪 {{f1 .TensileStrength}} MPa</div>
  </div>
</div>
{{end}}
<div class="recommendations-table card">
  <h3 class="table-title">📊 All Recommendations</h3>
  <table class="recs-table">
    <thead>
      <tr><th>#</th><th>Material</th><th>CO₂ (kg)</th><th>Cost ($)</th><th>Sustainability</th><th>Biodegradable</th></tr>
    </thead>
    <tbody>
    {{- range $i, $r := .Rows}}
      <tr class="{{if eq $i 0}}best-row{{end}}"><td>{{rank $i}}</td><td>{{$r.MaterialName}}</td><td>{{f2 $r.PredCO2}}</td><td>{{f2 $r.PredCost}}</td><td>{{f4 $r.Sustainability}}</td><td>{{mark $r.Biodegradable}}</td></tr>
    {{- end}}
    </tbody>
  </table>
</div>
`))

var cardTmpl = template.Must(template.New("card").Parse(`<div class="material-card">
  <div class="material-id">ID: {{.ID}}</div>
  <div class="material-name">{{.Name}}</div>
  <div class="material-category">Category: {{.Category}}</div>
  <div class="material-metrics">
    <div><strong>Density:</strong> {{.Density}} kg/m³</div>
    <div><strong>Tensile:</strong> {{.Tensile}} MPa</div>
    <div><strong>Cost:</strong> ${{.Cost}}/kg</div>
    <div><strong>CO₂:</strong> {{.CO2}} kg</div>
  </div>
  <div class="badge {{if .Biodegradable}}green{{else}}red{{end}}">{{if .Biodegradable}}✔ Biodegradable{{else}}✖ Non-Biodegradable{{end}}</div>
</div>`))

// Results renders the header, the best pick card and the full table. Order is
// kept exactly as given. An empty list renders nothing.
func Results(recs []api.Recommendation, sortBy string) (template.HTML, error) {
	if len(recs) == 0 {
		return "", nil
	}
	var buf bytes.Buffer
	err := resultsTmpl.Execute(&buf, struct {
		SortBy string
		Best   api.Recommendation
		Rows   []api.Recommendation
	}{sortBy, recs[0], recs})
	if err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// CardFields is a catalog entry with display fallbacks applied.
type CardFields struct {
	ID            string
	Name          string
	Category      string
	Density       string
	Tensile       string
	Cost          string
	CO2           string
	Biodegradable bool
}

func Card(m api.Material) CardFields {
	c := CardFields{
		ID:            string(m.ID),
		Name:          "Unknown",
		Category:      "N/A",
		Density:       number(m.Density, "N/A"),
		Tensile:       number(m.TensileStrength, "N/A"),
		Cost:          number(m.CostPerKg, "0.00"),
		CO2:           number(m.CO2PerKg, "0.00"),
		Biodegradable: bool(m.Biodegradable),
	}
	if c.ID == "" {
		c.ID = "N/A"
	}
	if m.Name != nil && *m.Name != "" {
		c.Name = *m.Name
	}
	if m.Category != nil && *m.Category != "" {
		c.Category = *m.Category
	}
	return c
}

func MaterialCard(m api.Material) (template.HTML, error) {
	var buf bytes.Buffer
	if err := cardTmpl.Execute(&buf, Card(m)); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func number(v *float64, fallback string) string {
	if v == nil {
		return fallback
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
