package textio

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/roman-kulish/edxrd/internal/spectrum"
	"github.com/roman-kulish/edxrd/internal/twotheta"
)

const (
	spectrumHeader    = "# Energy(keV)\tCounts"
	calibrationHeader = "# 2θ Calibration Data"
	pairsHeader       = "d (Å)\tE (keV)\tRemarks"
)

// ConvertedFileName returns the export file name for a spectrum read from src,
// e.g. "run_042.txt" becomes "run_042_converted.txt".
func ConvertedFileName(src string) string {
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_converted.txt"
}

// CalibrationFileName returns the export file name for a 2θ calibration
// made at t.
func CalibrationFileName(t time.Time) string {
	return "2theta cal_" + t.Format("20060102_150405") + ".txt"
}

// WriteSpectrum writes the dataset's adjusted series as space-separated
// (energy, counts) rows with five decimal places under a tab-separated
// comment header.
func WriteSpectrum(w io.Writer, ds *spectrum.Dataset) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, spectrumHeader)
	for _, row := range ds.ExportTable() {
		fmt.Fprintf(bw, "%.5f %.5f\n", row[0], row[1])
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing spectrum %s: %w", ds.Name, err)
	}
	return nil
}

// WriteCalibration writes the complete reference pairs with the calibration
// status as a comment header.
func WriteCalibration(w io.Writer, pairs []twotheta.Pair, result twotheta.Result) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, calibrationHeader)
	fmt.Fprintf(bw, "# %s\n", result.Status())
	fmt.Fprintln(bw, pairsHeader)
	for _, p := range pairs {
		if !p.Complete() {
			continue
		}
		fmt.Fprintf(bw, "%.5f\t%.5f\t%s\n", p.D.Float64, p.E.Float64, p.Remarks)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing calibration: %w", err)
	}
	return nil
}
