// Package export renders analysis history to CSV and XLSX files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/aliscan/aliscan-cli/internal/model"
)

// Header is the exported column set, shared by both formats.
var Header = []string{
	"id", "created_at", "status", "supplier", "country", "rating", "reviews",
	"delivery_rate", "verified", "trade_assurance", "certifications",
	"score", "label",
}

// Rows flattens analyses into string records in Header order.
func Rows(analyses []model.Analysis) [][]string {
	rows := make([][]string, 0, len(analyses))
	for _, a := range analyses {
		rows = append(rows, row(a))
	}
	return rows
}

func row(a model.Analysis) []string {
	r := []string{
		a.ID,
		a.CreatedAt.UTC().Format(time.RFC3339),
		string(a.Status),
	}

	sup := a.Supplier
	if sup == nil {
		sup = &model.Supplier{}
	}
	r = append(r,
		sup.Name,
		sup.Country,
		floatCol(sup.Rating),
		intCol(sup.Reviews),
		sup.DeliveryRateString(),
		boolCol(sup.Verified),
		strconv.FormatBool(sup.TradeAssurance),
		certCol(sup.Certifications),
	)

	if a.Result != nil {
		r = append(r, strconv.Itoa(a.Result.Score), string(a.Result.Label))
	} else {
		r = append(r, "", "")
	}
	return r
}

// WriteCSV writes the header plus one record per analysis.
func WriteCSV(w io.Writer, analyses []model.Analysis) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, rec := range Rows(analyses) {
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "export: write csv record")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteXLSX writes the history to a single-sheet workbook at path.
func WriteXLSX(path string, analyses []model.Analysis) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Analyses")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	hr := sheet.AddRow()
	for _, h := range Header {
		hr.AddCell().Value = h
	}
	for _, rec := range Rows(analyses) {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().Value = v
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}

func floatCol(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func intCol(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func boolCol(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func certCol(certs []model.Certification) string {
	if len(certs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(certs))
	for _, c := range certs {
		if c.Number != "" {
			parts = append(parts, c.Type+" "+c.Number)
			continue
		}
		parts = append(parts, c.Type)
	}
	return strings.Join(parts, "; ")
}
