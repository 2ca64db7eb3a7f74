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

// ReadCSV parses a history export back into analyses. The first record must
// be the Header row.
func ReadCSV(r io.Reader) ([]model.Analysis, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, eris.New("export: empty csv")
	}
	if err != nil {
		return nil, eris.Wrap(err, "export: read csv header")
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var analyses []model.Analysis
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "export: read csv record")
		}
		a, err := parseRow(rec)
		if err != nil {
			return nil, eris.Wrapf(err, "export: csv line %d", line)
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

// ReadXLSX parses a workbook produced by WriteXLSX. It reads the "Analyses"
// sheet, falling back to the first sheet.
func ReadXLSX(path string) ([]model.Analysis, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open xlsx")
	}

	sheet, ok := f.Sheet["Analyses"]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.New("export: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("export: empty sheet")
	}

	if err := checkHeader(rowToStrings(sheet.Rows[0])); err != nil {
		return nil, err
	}

	var analyses []model.Analysis
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if len(cells) == 0 {
			continue
		}
		a, err := parseRow(cells)
		if err != nil {
			return nil, eris.Wrapf(err, "export: xlsx row %d", i+2)
		}
		analyses = append(analyses, a)
	}
	return analyses, nil
}

func checkHeader(got []string) error {
	if len(got) < len(Header) {
		return eris.Errorf("export: header has %d columns, want %d", len(got), len(Header))
	}
	for i, h := range Header {
		if strings.TrimSpace(got[i]) != h {
			return eris.Errorf("export: unexpected column %q, want %q", got[i], h)
		}
	}
	return nil
}

// parseRow is the inverse of row. Supplier and result are reconstructed only
// from the exported columns; the raw capture is not part of the export.
func parseRow(rec []string) (model.Analysis, error) {
	if len(rec) < len(Header) {
		return model.Analysis{}, eris.Errorf("record has %d columns, want %d", len(rec), len(Header))
	}

	a := model.Analysis{
		ID:     rec[0],
		Status: model.AnalysisStatus(rec[2]),
	}
	if rec[1] != "" {
		ts, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			return model.Analysis{}, eris.Wrap(err, "parse created_at")
		}
		a.CreatedAt = ts.UTC()
	}

	sup := &model.Supplier{
		Name:    rec[3],
		Country: rec[4],
	}
	var err error
	if sup.Rating, err = parseFloatCol(rec[5]); err != nil {
		return model.Analysis{}, eris.Wrap(err, "parse rating")
	}
	if sup.Reviews, err = parseIntCol(rec[6]); err != nil {
		return model.Analysis{}, eris.Wrap(err, "parse reviews")
	}
	if sup.DeliveryRate, err = parseFloatCol(strings.TrimSuffix(rec[7], "%")); err != nil {
		return model.Analysis{}, eris.Wrap(err, "parse delivery_rate")
	}
	if sup.Verified, err = parseBoolCol(rec[8]); err != nil {
		return model.Analysis{}, eris.Wrap(err, "parse verified")
	}
	if rec[9] != "" {
		ta, err := strconv.ParseBool(rec[9])
		if err != nil {
			return model.Analysis{}, eris.Wrap(err, "parse trade_assurance")
		}
		sup.TradeAssurance = ta
	}
	sup.Certifications = parseCertCol(rec[10])

	if supplierPresent(sup) {
		a.Supplier = sup
	}

	if rec[11] != "" {
		score, err := strconv.Atoi(rec[11])
		if err != nil {
			return model.Analysis{}, eris.Wrap(err, "parse score")
		}
		a.Result = &model.ReliabilityResult{
			Score: score,
			Label: model.ReliabilityLabel(rec[12]),
		}
	}
	return a, nil
}

// supplierPresent reports whether any exported supplier column was set. A
// rejected analysis exports empty supplier columns and stays supplier-less.
func supplierPresent(s *model.Supplier) bool {
	return s.Name != "" || s.Country != "" || s.Rating != nil || s.Reviews != nil ||
		s.DeliveryRate != nil || s.Verified != nil || s.TradeAssurance ||
		len(s.Certifications) > 0
}

func parseFloatCol(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseIntCol(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseBoolCol(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// parseCertCol reverses certCol: entries are "; "-separated, with an optional
// trailing certificate number after the last space.
func parseCertCol(s string) []model.Certification {
	if s == "" {
		return nil
	}
	var certs []model.Certification
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c := model.Certification{Type: part}
		if i := strings.LastIndex(part, " "); i > 0 {
			if tail := part[i+1:]; strings.IndexFunc(tail, isDigit) >= 0 {
				c.Type = part[:i]
				c.Number = tail
			}
		}
		certs = append(certs, c)
	}
	return certs
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
