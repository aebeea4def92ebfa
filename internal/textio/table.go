// Package textio reads and writes the flat text tables exchanged with users:
// acquisition traces, converted spectra, 2θ reference tables and fit reports.
package textio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/csimplestring/go-csv/detector"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

// whitespace selects splitting on runs of blanks instead of a single delimiter.
const whitespace rune = 0

// delimiters are the single-character separators ReadTable accepts, in order
// of preference when the detector reports several.
var delimiters = []rune{'\t', ',', ';'}

// ReadTable reads a numeric table. Lines starting with '#' and blank lines
// are skipped. Columns are split on a detected tab, comma or semicolon, or on
// whitespace when none is consistent across lines.
func ReadTable(r io.Reader) ([][]float64, error) {
	lines, err := dataLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &spectrum.FormatError{Row: -1, Msg: "no data lines"}
	}

	delim := DetectDelimiter(lines)

	table := make([][]float64, 0, len(lines))
	for i, line := range lines {
		fields := split(line, delim)

		row := make([]float64, len(fields))
		for j, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, &spectrum.FormatError{Row: i, Msg: fmt.Sprintf("column %d: %q is not a number", j+1, field)}
			}
			row[j] = v
		}
		table = append(table, row)
	}

	return table, nil
}

// ReadDataset reads a table and builds a dataset from it.
func ReadDataset(name string, r io.Reader) (*spectrum.Dataset, error) {
	table, err := ReadTable(r)
	if err != nil {
		var fe *spectrum.FormatError
		if errors.As(err, &fe) {
			fe.Dataset = name
		}
		return nil, err
	}
	return spectrum.NewDataset(name, table)
}

// DetectDelimiter returns the delimiter shared by the lines, or 0 for
// whitespace-separated columns.
func DetectDelimiter(lines []string) rune {
	sample := strings.Join(lines[:min(len(lines), 64)], "\n")
	candidates := detector.New().DetectDelimiter(strings.NewReader(sample), '"')

	for _, d := range delimiters {
		for _, c := range candidates {
			if c == string(d) && inEveryLine(lines, d) {
				return d
			}
		}
	}

	// A single line gives the detector nothing to compare; fall back to the
	// first separator present.
	for _, d := range delimiters {
		if strings.ContainsRune(lines[0], d) {
			return d
		}
	}
	return whitespace
}

func inEveryLine(lines []string, d rune) bool {
	for _, line := range lines {
		if !strings.ContainsRune(line, d) {
			return false
		}
	}
	return true
}

func dataLines(r io.Reader) ([]string, error) {
	var lines []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(string(bytes.TrimPrefix(scanner.Bytes(), []byte("\xef\xbb\xbf"))))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading table: %w", err)
	}

	return lines, nil
}

// split breaks line into trimmed fields. Tabs are blanks, so runs of them
// separate a single pair of fields as in whitespace tables.
func split(line string, delim rune) []string {
	if delim == whitespace || delim == '\t' {
		return strings.Fields(line)
	}

	fields := strings.Split(line, string(delim))
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}
