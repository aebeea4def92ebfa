package textio

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

// RegionLabel names a region for reports and plot legends, e.g.
// "ROI 2 (5.12-5.86 keV)". n is one-based.
func RegionLabel(n int, r *spectrum.Region, unit string) string {
	return fmt.Sprintf("ROI %d (%.2f-%.2f %s)", n, r.XMin, r.XMax, unit)
}

// WriteFitReport writes one aligned row per region of the dataset with the
// peak centre, FWHM, integral, R² and fit status.
func WriteFitReport(w io.Writer, ds *spectrum.Dataset) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "# %s\n", ds.Name)
	fmt.Fprintln(tw, "Region\tCenter\tFWHM\tIntegral\tR²\tStatus\t")

	unit := ds.Unit()
	for i, r := range ds.Regions() {
		label := RegionLabel(i+1, r, unit)

		switch {
		case r.Fit == nil:
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\tunfitted\t\n", label)
		case r.Fit.Status == spectrum.FitEmpty:
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t%s\t\n", label, r.Fit.Status)
		case r.Fit.Status == spectrum.FitFailed:
			fmt.Fprintf(tw, "%s\t%.5f\t%.5f\t%.5f\t%.5f\t%s: %v\t\n",
				label, r.Fit.Center(), r.Fit.FWHM, r.Fit.Integral, r.Fit.RSquared, r.Fit.Status, r.Fit.Reason)
		default:
			fmt.Fprintf(tw, "%s\t%.5f\t%.5f\t%.5f\t%.5f\t%s\t\n",
				label, r.Fit.Center(), r.Fit.FWHM, r.Fit.Integral, r.Fit.RSquared, r.Fit.Status)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing fit report %s: %w", ds.Name, err)
	}
	return nil
}
