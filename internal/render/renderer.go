package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/roman-kulish/edxrd/internal/peakfit"
	"github.com/roman-kulish/edxrd/internal/spectrum"
)

const (
	fontSize = 12.0

	defaultWidth       = 1200
	defaultHeight      = 700
	defaultCurvePoints = 100
	defaultBackground  = "#ffffff"

	plotDPI = 96
)

// ErrEmptySeries is returned for a dataset without samples to draw.
var ErrEmptySeries = errors.New("empty series")

// Config holds the options of the spectrum plot.
type Config struct {
	Width       int     // Plot width in pixels
	Height      int     // Plot height in pixels, without the information bar
	FontSize    float64 // Font size of the information bar in points
	CurvePoints int     // Number of points drawn for each fitted curve
	Background  string  // Hex background colour

	// Calibration describes the energy calibration in the information bar.
	// Empty when the caller has nothing to report.
	Calibration string

	NoInfoBar bool // Omit the information bar
}

// Renderer draws datasets with their regions and fitted peaks.
type Renderer struct {
	config     Config
	background colorful.Color
}

// NewRenderer creates a renderer with the given configuration.
func NewRenderer(config Config) (*Renderer, error) {
	// Set defaults for zero values
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.CurvePoints == 0 {
		config.CurvePoints = defaultCurvePoints
	}
	if config.Background == "" {
		config.Background = defaultBackground
	}

	if config.Width < 0 || config.Height < 0 {
		return nil, fmt.Errorf("invalid plot size %dx%d", config.Width, config.Height)
	}
	if config.CurvePoints < 2 {
		return nil, fmt.Errorf("at least 2 curve points required, got %d", config.CurvePoints)
	}

	background, err := ParseColor(config.Background)
	if err != nil {
		return nil, err
	}

	return &Renderer{config: config, background: background}, nil
}

// Render draws the current series of ds and its regions. Unfitted regions
// are shaded; fitted regions show the model curve, the centre and the FWHM
// span. An information bar with dataset details is drawn below the plot.
func (r *Renderer) Render(ds *spectrum.Dataset) (*image.RGBA, error) {
	p, err := r.plot(ds)
	if err != nil {
		return nil, err
	}

	c := vgimg.NewWith(
		vgimg.UseWH(pixels(r.config.Width), pixels(r.config.Height)),
		vgimg.UseDPI(plotDPI),
		vgimg.UseBackgroundColor(r.background),
	)
	p.Draw(vgdraw.New(c))

	var info *annotator
	var lines []string
	barHeight := 0
	if !r.config.NoInfoBar {
		if info, err = newAnnotator(r.config.FontSize, TextColor(r.background)); err != nil {
			return nil, err
		}
		lines = infoLines(ds, r.config.Calibration)
		barHeight = len(lines)*info.lineHeight() + 2*info.margin + info.lineHeight()/2
	}

	plotImg := c.Image()
	bounds := plotImg.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()+barHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(0, 0, bounds.Dx(), bounds.Dy()), plotImg, bounds.Min, draw.Src)

	if info != nil {
		area := image.Rect(0, bounds.Dy(), bounds.Dx(), bounds.Dy()+barHeight)
		if err = info.annotate(img, area, lines); err != nil {
			return nil, fmt.Errorf("annotating: %w", err)
		}
	}

	return img, nil
}

// Encode renders ds and writes it to w as PNG.
func (r *Renderer) Encode(w io.Writer, ds *spectrum.Dataset) error {
	img, err := r.Render(ds)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func (r *Renderer) plot(ds *spectrum.Dataset) (*plot.Plot, error) {
	series := ds.CurrentSeries()
	if len(series) == 0 {
		return nil, fmt.Errorf("dataset %q: %w", ds.Name, ErrEmptySeries)
	}

	p := plot.New()
	p.Title.Text = ds.Name
	p.X.Label.Text = xLabel(ds)
	p.Y.Label.Text = "Counts"
	p.BackgroundColor = r.background
	p.Add(plotter.NewGrid())

	ys := series.Ys()
	yMin, yMax := ys[0], ys[0]
	for _, y := range ys {
		yMin, yMax = min(yMin, y), max(yMax, y)
	}
	if yMin == yMax {
		yMax = yMin + 1
	}

	for i, region := range ds.Regions() {
		if err := r.addRegion(p, i+1, region, ds.Unit(), yMin, yMax); err != nil {
			return nil, fmt.Errorf("region %d: %w", i+1, err)
		}
	}

	trace, err := plotter.NewLine(series)
	if err != nil {
		return nil, fmt.Errorf("creating trace: %w", err)
	}
	trace.LineStyle.Color = color.Black
	trace.LineStyle.Width = vg.Points(1)
	p.Add(trace)
	p.Legend.Add("Data", trace)
	p.Legend.Top = true

	return p, nil
}

func (r *Renderer) addRegion(p *plot.Plot, n int, region *spectrum.Region, unit string, yMin, yMax float64) error {
	regionColor, err := ParseColor(region.Color)
	if err != nil {
		return err
	}
	label := regionLabel(n, region, unit)

	if region.Fit == nil || region.Fit.Status != spectrum.FitOK {
		if region.Fit != nil {
			label += " " + string(region.Fit.Status)
		}
		shade, err := band(region.XMin, region.XMax, yMin, yMax, WithAlpha(regionColor, regionAlpha))
		if err != nil {
			return err
		}
		p.Add(shade)
		p.Legend.Add(label, shade)
		return nil
	}

	fit := region.Fit
	half := fit.FWHM / 2
	span, err := band(fit.Center()-half, fit.Center()+half, yMin, yMax, WithAlpha(regionColor, spanAlpha))
	if err != nil {
		return err
	}

	curve, err := plotter.NewLine(peakfit.Curve(fit.Params, region.XMin, region.XMax, r.config.CurvePoints))
	if err != nil {
		return fmt.Errorf("creating fit curve: %w", err)
	}
	curve.LineStyle.Color = regionColor
	curve.LineStyle.Width = vg.Points(2)
	curve.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}

	center, err := plotter.NewLine(plotter.XYs{{X: fit.Center(), Y: yMin}, {X: fit.Center(), Y: yMax}})
	if err != nil {
		return fmt.Errorf("creating centre line: %w", err)
	}
	center.LineStyle.Color = regionColor
	center.LineStyle.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}

	p.Add(span, curve, center)
	p.Legend.Add(fmt.Sprintf("%s x0=%.3f FWHM=%.3f", label, fit.Center(), fit.FWHM), curve)
	return nil
}

// band returns a filled rectangle covering [x0, x1] on the X axis.
func band(x0, x1, y0, y1 float64, fill color.Color) (*plotter.Polygon, error) {
	poly, err := plotter.NewPolygon(plotter.XYs{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1},
	})
	if err != nil {
		return nil, fmt.Errorf("creating band: %w", err)
	}
	poly.Color = fill
	poly.LineStyle.Width = 0
	return poly, nil
}

// regionLabel names a region in the legend, e.g. "Region 2 (5.12-5.86 keV)".
func regionLabel(n int, r *spectrum.Region, unit string) string {
	return fmt.Sprintf("Region %d (%.2f-%.2f %s)", n, r.XMin, r.XMax, unit)
}

func xLabel(ds *spectrum.Dataset) string {
	if ds.XAxisAdjusted() {
		return "Energy (" + ds.Unit() + ")"
	}
	return "Channel"
}

// pixels converts a pixel count to a plot length at plotDPI.
func pixels(n int) vg.Length {
	return vg.Length(n) * vg.Inch / plotDPI
}
