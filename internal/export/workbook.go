package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/poku-e/ecopack/internal/api"
	"github.com/poku-e/ecopack/internal/render"
)

// WorkbookSummary describes the first sheet of a downloaded spreadsheet.
type WorkbookSummary struct {
	Sheet  string
	Header []string
	Rows   int // data rows, header excluded
}

// SummarizeWorkbook opens a saved .xlsx report.
func SummarizeWorkbook(path string) (WorkbookSummary, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return WorkbookSummary{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return summarize(f)
}

// Summarize reads a report held in memory.
func Summarize(r io.Reader) (WorkbookSummary, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return WorkbookSummary{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return summarize(f)
}

func summarize(f *excelize.File) (WorkbookSummary, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return WorkbookSummary{}, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return WorkbookSummary{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	s := WorkbookSummary{Sheet: sheets[0]}
	if len(rows) > 0 {
		s.Header = rows[0]
		for _, row := range rows[1:] {
			if !blank(row) {
				s.Rows++
			}
		}
	}
	return s, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var catalogHeader = []string{
	"Material_ID", "Material_Name", "Category", "Density_kg_m3",
	"Tensile_Strength_MPa", "Cost_per_kg", "CO2_Emission_kg", "Biodegradable",
}

func catalogRow(m api.Material) []string {
	c := render.Card(m)
	bio := "No"
	if c.Biodegradable {
		bio = "Yes"
	}
	return []string{c.ID, c.Name, c.Category, c.Density, c.Tensile, c.Cost, c.CO2, bio}
}

// WriteCatalog saves browsed catalog entries as .csv or .xlsx, chosen by the
// extension of path.
func WriteCatalog(path string, ms []api.Material) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return writeCatalogCSV(path, ms)
	case ".xlsx":
		return writeCatalogXLSX(path, ms)
	default:
		return errors.New("catalog output must end with .csv or .xlsx")
	}
}

func writeCatalogCSV(path string, ms []api.Material) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(catalogHeader); err != nil {
		return err
	}
	for _, m := range ms {
		if err := w.Write(catalogRow(m)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeCatalogXLSX(path string, ms []api.Material) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", cells(catalogHeader)); err != nil {
		return err
	}
	for i, m := range ms {
		addr, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(addr, cells(catalogRow(m))); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}

func cells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
