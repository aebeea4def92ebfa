package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

const (
	dpi     float64 = 72
	spacing float64 = 1.3
)

// annotator writes the information block under the plot.
type annotator struct {
	context  *freetype.Context
	fontSize float64
	margin   int
}

func newAnnotator(fontSize float64, textColor color.Color) (*annotator, error) {
	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	context := freetype.NewContext()
	context.SetDPI(dpi)
	context.SetFont(parsedFont)
	context.SetFontSize(fontSize)
	context.SetSrc(image.NewUniform(textColor))
	context.SetHinting(font.HintingFull)

	return &annotator{context: context, fontSize: fontSize, margin: int(fontSize / 2)}, nil
}

// lineHeight returns the height of one text line in pixels.
func (a *annotator) lineHeight() int {
	return int(a.fontSize*spacing + 0.5)
}

func (a *annotator) annotate(img *image.RGBA, area image.Rectangle, lines []string) error {
	a.context.SetClip(area)
	a.context.SetDst(img)

	pt := freetype.Pt(area.Min.X+a.margin, area.Min.Y+a.margin+int(a.fontSize))
	for _, s := range lines {
		if _, err := a.context.DrawString(s, pt); err != nil {
			return fmt.Errorf("drawing %q: %w", s, err)
		}
		pt.Y += a.context.PointToFixed(a.fontSize * spacing)
	}

	return nil
}

// infoLines describes the dataset in the information block.
func infoLines(ds *spectrum.Dataset, calibration string) []string {
	series := ds.CurrentSeries()

	axis := "channel (uncalibrated)"
	if ds.XAxisAdjusted() {
		axis = "energy, keV"
		if calibration != "" {
			axis += ": " + calibration
		}
	}

	var peak float64
	for _, s := range series {
		peak = max(peak, s.Y)
	}

	var fitted, failed int
	for _, r := range ds.Regions() {
		switch {
		case r.Fit == nil:
		case r.Fit.Status == spectrum.FitOK:
			fitted++
		case r.Fit.Status == spectrum.FitFailed:
			failed++
		}
	}

	lines := []string{
		"Dataset: " + ds.Name,
		"X axis: " + axis,
		fmt.Sprintf("Samples: %s, peak counts: %s", humanize.Comma(int64(len(series))), humanize.SIWithDigits(peak, 2, "")),
		fmt.Sprintf("Regions: %d, fitted: %d, failed: %d", ds.RegionCount(), fitted, failed),
	}
	if len(series) > 0 {
		lines = append(lines, fmt.Sprintf("Range: %s to %s %s",
			humanX(series[0].X), humanX(series[len(series)-1].X), ds.Unit()))
	}
	return lines
}

func humanX(x float64) string {
	v, suffix := humanize.ComputeSI(x)
	return fmt.Sprintf("%0.2f%s", v, suffix)
}
