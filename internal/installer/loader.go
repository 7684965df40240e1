// Package installer loads the installer reference dataset and ranks
// installers by proximity to a resolved address.
package installer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/solar-cli/internal/model"
)

// Columns is the header row used by WriteCSV and expected by Load.
var Columns = []string{"name", "address", "phone", "rating", "reviews", "latitude", "longitude", "url"}

var headerAliases = map[string]string{
	"lat":          "latitude",
	"lng":          "longitude",
	"lon":          "longitude",
	"long":         "longitude",
	"website":      "url",
	"web":          "url",
	"review_count": "reviews",
	"telephone":    "phone",
	"company":      "name",
}

var folder = cases.Fold()

// Load reads installers from a .csv, .xlsx, .yaml or .yml file. Rows whose
// coordinates are missing or out of range are skipped with a warning.
func Load(path string) ([]model.Installer, error) {
	var (
		rows [][]string
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".yaml", ".yml":
		rows, err = readYAML(path)
	default:
		return nil, eris.Errorf("installer: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	return parseRows(path, rows[0], rows[1:])
}

func parseRows(path string, header []string, rows [][]string) ([]model.Installer, error) {
	idx := columnIndex(header)
	for _, required := range []string{"name", "latitude", "longitude"} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Errorf("installer: %s: missing column %q", path, required)
		}
	}

	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	out := make([]model.Installer, 0, len(rows))
	for n, row := range rows {
		name := get(row, "name")
		if name == "" {
			continue
		}

		loc, ok := parseLocation(get(row, "latitude"), get(row, "longitude"))
		if !ok {
			zap.L().Warn("installer: skipping row without valid coordinates",
				zap.String("path", path),
				zap.Int("row", n+2),
				zap.String("name", name),
			)
			continue
		}

		summary := get(row, "reviews")
		rating, _ := strconv.ParseFloat(strings.ReplaceAll(get(row, "rating"), ",", "."), 64)

		out = append(out, model.Installer{
			Name:          name,
			Address:       get(row, "address"),
			Phone:         get(row, "phone"),
			Rating:        rating,
			ReviewSummary: summary,
			Reviews:       ParseReviewCount(summary),
			Location:      loc,
			URL:           get(row, "url"),
		})
	}

	return out, nil
}

func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if alias, ok := headerAliases[key]; ok {
			key = alias
		}
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

func normalizeHeader(h string) string {
	h = folder.String(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.Join(strings.Fields(h), "_")
}

func parseLocation(latText, lngText string) (model.Coordinates, bool) {
	lat, err := strconv.ParseFloat(latText, 64)
	if err != nil {
		return model.Coordinates{}, false
	}
	lng, err := strconv.ParseFloat(lngText, 64)
	if err != nil {
		return model.Coordinates{}, false
	}
	c := model.Coordinates{Lat: lat, Lng: lng}
	return c, c.Valid()
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, eris.Wrap(err, "installer: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "installer: read csv row")
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "installer: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("installer: %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// readYAML accepts a top-level list of mappings, or a mapping with an
// "installers" list, and flattens it into header plus rows.
func readYAML(path string) ([][]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, eris.Wrap(err, "installer: read yaml")
	}

	var doc struct {
		Installers []map[string]any `yaml:"installers"`
	}
	var list []map[string]any
	if err := yaml.Unmarshal(data, &list); err != nil {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "installer: parse yaml")
		}
		list = doc.Installers
	}
	if len(list) == 0 {
		return nil, nil
	}

	var header []string
	seen := make(map[string]bool)
	for _, item := range list {
		for k := range item {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}

	rows := [][]string{header}
	for _, item := range list {
		row := make([]string, len(header))
		for i, k := range header {
			if v, ok := item[k]; ok && v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
