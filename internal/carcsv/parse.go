// Package carcsv parses uploaded car batch CSVs into domain rows.
package carcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"

	"carstudio/internal/domain"
)

// MaxRows caps a single batch upload.
const MaxRows = 50

var (
	ErrTooFewRows  = errors.New("csv must contain at least 2 data rows")
	ErrTooManyRows = fmt.Errorf("csv exceeds the %d row limit", MaxRows)
)

var headerFolder = cases.Fold()

// ParseRows reads a CSV with a header line and returns one Row per data
// record. Headers are matched case-insensitively and tolerate spaces and
// dashes ("Body Style", "body-style" and "BODY_STYLE" all map to
// body_style). Unknown columns are ignored. Row.Line is the 1-based CSV
// line number, so the first data row is line 2.
func ParseRows(r io.Reader) ([]domain.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrTooFewRows
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[foldHeader(name)] = i
	}

	var rows []domain.Row
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line+1, err)
		}
		line++
		if len(rows) >= MaxRows {
			return nil, ErrTooManyRows
		}
		rows = append(rows, domain.Row{
			Make:        field(record, cols, "make"),
			Model:       field(record, cols, "model"),
			BodyStyle:   field(record, cols, "body_style"),
			Trim:        field(record, cols, "trim"),
			Year:        field(record, cols, "year"),
			Color:       field(record, cols, "color"),
			Background:  strings.ToLower(field(record, cols, "background")),
			AspectRatio: field(record, cols, "aspect_ratio"),
			Line:        line,
		})
	}

	if len(rows) < 2 {
		return nil, ErrTooFewRows
	}
	return rows, nil
}

func foldHeader(name string) string {
	name = strings.TrimSpace(headerFolder.String(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

func field(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
