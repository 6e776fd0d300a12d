package render

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/poku-e/ecopack/internal/api"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	bestColor  = color.New(color.FgGreen, color.Bold)
	okColor    = color.New(color.FgGreen)
	errColor   = color.New(color.FgRed)
	dimColor   = color.New(color.FgYellow)
)

// WriteResults prints a batch the way Results lays it out: title, best pick,
// then every entry in the order received.
func WriteResults(w io.Writer, recs []api.Recommendation, sortBy string) error {
	if len(recs) == 0 {
		return nil
	}
	best := recs[0]
	titleColor.Fprintf(w, "✨ Your Recommendations (Sorted by %s)\n\n", sortBy)
	bestColor.Fprintf(w, "🏆 %s\n", best.MaterialName)
	fmt.Fprintf(w, "   🌱 Sustainability %.4f   💨 CO₂ %.2f kg   💲 Cost $%.2f\n", best.Sustainability, best.PredCO2, best.PredCost)
	fmt.Fprintf(w, "   %s Biodegradable   💪 %.1f MPa\n\n", mark(best.Biodegradable), best.TensileStrength)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMaterial\tCO₂ (kg)\tCost ($)\tSustainability\tBiodegradable")
	for i, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.4f\t%s\n", i+1, r.MaterialName, r.PredCO2, r.PredCost, r.Sustainability, mark(r.Biodegradable))
	}
	return tw.Flush()
}

// WriteMaterials prints catalog entries with the card fallbacks.
func WriteMaterials(w io.Writer, ms []api.Material) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tName\tCategory\tDensity (kg/m³)\tTensile (MPa)\tCost ($/kg)\tCO₂ (kg)\tBiodegradable")
	for _, m := range ms {
		c := Card(m)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Category, c.Density, c.Tensile, c.Cost, c.CO2, mark(api.Flag(c.Biodegradable)))
	}
	return tw.Flush()
}

// WriteNotice prints one line in the color of its severity.
func WriteNotice(w io.Writer, text string, isError bool) {
	if isError {
		errColor.Fprintln(w, text)
		return
	}
	okColor.Fprintln(w, text)
}

func WriteHint(w io.Writer, format string, args ...interface{}) {
	dimColor.Fprintf(w, format+"\n", args...)
}

func mark(b api.Flag) string {
	if b {
		return "✓"
	}
	return "✗"
}
