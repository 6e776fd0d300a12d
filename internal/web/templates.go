package web

import (
	"embed"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var tmplFS embed.FS

var indexTmpl = template.Must(template.ParseFS(tmplFS, "templates/index.html"))

// Form choices offered by the page.
var (
	Categories    = []string{"Electronics", "Food", "Cosmetics", "Pharmaceuticals", "Apparel", "Furniture", "Toys"}
	ShippingModes = []string{"Air", "Sea", "Road", "Rail"}
	SortModes     = []string{"Sustainability", "CO2", "Cost"}
)

type renderer struct {
	tmpl *template.Template
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}
