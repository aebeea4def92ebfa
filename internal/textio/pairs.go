package textio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/guregu/null.v3"

	"github.com/roman-kulish/edxrd/internal/twotheta"
)

// pairRow is the on-disk layout of a reference table row. Values stay text
// so that blank or malformed cells become missing values instead of errors.
type pairRow struct {
	D       string `csv:"d"`
	E       string `csv:"E"`
	Remarks string `csv:"remarks"`
}

// ReadPairs reads a tab-separated reference table with a "d", "E" and
// "remarks" header. Cells that are blank or not numbers are read as missing.
func ReadPairs(r io.Reader) ([]twotheta.Pair, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var rows []*pairRow
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, fmt.Errorf("reading reference pairs: %w", err)
	}

	pairs := make([]twotheta.Pair, len(rows))
	for i, row := range rows {
		pairs[i] = twotheta.Pair{
			D:       parseCell(row.D),
			E:       parseCell(row.E),
			Remarks: strings.TrimSpace(row.Remarks),
		}
	}
	return pairs, nil
}

// WritePairs writes every pair, complete or not, in the layout ReadPairs reads.
func WritePairs(w io.Writer, pairs []twotheta.Pair) error {
	rows := make([]*pairRow, len(pairs))
	for i, p := range pairs {
		rows[i] = &pairRow{D: formatCell(p.D), E: formatCell(p.E), Remarks: p.Remarks}
	}

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("writing reference pairs: %w", err)
	}
	return nil
}

func parseCell(s string) null.Float {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

func formatCell(f null.Float) string {
	if !f.Valid {
		return ""
	}
	return strconv.FormatFloat(f.Float64, 'g', -1, 64)
}
