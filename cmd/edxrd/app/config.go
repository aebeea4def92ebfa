package app

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/edxrd/internal/energy"
	"github.com/roman-kulish/edxrd/internal/lsq"
	"github.com/roman-kulish/edxrd/internal/peakfit"
	"github.com/roman-kulish/edxrd/internal/roi"
)

const defaultOutputDir = "out"

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Inputs      InputsConfig      `yaml:"inputs"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Regions     []RegionConfig    `yaml:"regions"`
	Fit         FitConfig         `yaml:"fit"`
	TwoTheta    TwoThetaConfig    `yaml:"twoTheta"`
	Output      OutputConfig      `yaml:"output"`
	Plot        PlotConfig        `yaml:"plot"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level returns the configured log level, info when unset.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("app.Settings: invalid log level: %s", s.LogLevel)
	}
	return level, nil
}

// InputsConfig lists the spectra to analyse. Text tables and database
// acquisitions are loaded in that order.
type InputsConfig struct {
	Files  []string      `yaml:"files"`
	Sqlite *SqliteConfig `yaml:"sqlite"`
}

// SqliteConfig selects acquisitions from a detector database
type SqliteConfig struct {
	Path         string  `yaml:"path"`
	Acquisitions []int64 `yaml:"acquisitions"` // All acquisitions when empty
	MinChannel   *int64  `yaml:"minChannel"`
	MaxChannel   *int64  `yaml:"maxChannel"`
}

// CalibrationConfig holds the quadratic energy calibration. Coefficients are
// strings so that malformed values are reported by name.
type CalibrationConfig struct {
	Enabled bool   `yaml:"enabled"`
	A       string `yaml:"a"`
	B       string `yaml:"b"`
	C       string `yaml:"c"`
}

// Quadratic parses the coefficients, falling back to the default
// calibration for any that are unset.
func (c *CalibrationConfig) Quadratic() (energy.Quadratic, error) {
	a, b, cc := c.A, c.B, c.C
	if a == "" {
		a = fmt.Sprint(energy.Default.A)
	}
	if b == "" {
		b = fmt.Sprint(energy.Default.B)
	}
	if cc == "" {
		cc = fmt.Sprint(energy.Default.C)
	}
	return energy.ParseQuadratic(a, b, cc)
}

// RegionConfig is a region of interest in the units of the current axis
type RegionConfig struct {
	XMin float64 `yaml:"xMin"`
	XMax float64 `yaml:"xMax"`
}

// FitConfig represents peak fitting settings
type FitConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxEvaluations int  `yaml:"maxEvaluations"`
	GridPoints     int  `yaml:"gridPoints"`
}

// TwoThetaConfig represents the 2θ calibration settings
type TwoThetaConfig struct {
	Enabled         bool   `yaml:"enabled"`
	PairsFile       string `yaml:"pairsFile"` // Tab-separated d, E, remarks table
	SkipOutOfDomain bool   `yaml:"skipOutOfDomain"`
}

// OutputConfig represents output settings
type OutputConfig struct {
	Directory     string `yaml:"directory"`
	ExportSpectra bool   `yaml:"exportSpectra"`
	FitReport     bool   `yaml:"fitReport"`
}

// PlotConfig represents the plot image settings
type PlotConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"`
	NoInfoBar  bool   `yaml:"noInfoBar"`
}

func NewConfig() *Config {
	return &Config{
		Fit: FitConfig{
			Enabled:        true,
			MaxEvaluations: lsq.DefaultMaxEvaluations,
			GridPoints:     peakfit.DefaultGridPoints,
		},
		Output: OutputConfig{
			Directory:     defaultOutputDir,
			ExportSpectra: true,
			FitReport:     true,
		},
		Plot: PlotConfig{
			Enabled: true,
		},
	}
}

// LoadConfig reads a yaml configuration file on top of the defaults and
// validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	c := NewConfig()
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err = c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewConfigFromCLI loads the configuration file named by -c and applies
// command line overrides.
func NewConfigFromCLI() (*Config, error) {
	var configPath, outputDir string
	var noPlot bool
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&outputDir, "o", "", "Output directory, overrides output.directory")
	flag.BoolVar(&noPlot, "no-plot", false, "Do not render plot images")
	flag.Parse()

	if configPath == "" {
		flag.Usage()
		return nil, errors.New("no configuration file provided")
	}

	c, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", configPath, err)
	}

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "o" {
			c.Output.Directory = outputDir
		}
		if f.Name == "no-plot" {
			c.Plot.Enabled = !noPlot
		}
	})

	if c.Output.Directory == "" {
		flag.Usage()
		return nil, errors.New("output directory is required")
	}
	return c, nil
}

func (c *Config) Validate() error {
	if _, err := c.Settings.Level(); err != nil {
		return err
	}

	if len(c.Inputs.Files) == 0 && c.Inputs.Sqlite == nil {
		return errors.New("app.Config: no inputs configured")
	}
	for i, f := range c.Inputs.Files {
		if f == "" {
			return fmt.Errorf("app.Config: input file %d: empty path", i)
		}
	}
	if s := c.Inputs.Sqlite; s != nil {
		if s.Path == "" {
			return errors.New("app.Config: sqlite path is required")
		}
		for _, id := range s.Acquisitions {
			if id <= 0 {
				return fmt.Errorf("app.Config: invalid acquisition id: %d", id)
			}
		}
		if s.MinChannel != nil && s.MaxChannel != nil && *s.MinChannel > *s.MaxChannel {
			return fmt.Errorf("app.Config: min channel %d is greater than max channel %d", *s.MinChannel, *s.MaxChannel)
		}
	}

	if c.Calibration.Enabled {
		if _, err := c.Calibration.Quadratic(); err != nil {
			return fmt.Errorf("app.Config: calibration: %w", err)
		}
	}

	if c.TwoTheta.Enabled && c.TwoTheta.PairsFile == "" {
		return errors.New("app.Config: 2θ pairs file is required")
	}

	for i, r := range c.Regions {
		if !(math.Abs(r.XMax-r.XMin) > roi.Epsilon) {
			return fmt.Errorf("app.Config: region %d is narrower than %g", i, roi.Epsilon)
		}
	}

	if c.Fit.MaxEvaluations < 0 {
		return fmt.Errorf("app.Config: max evaluations must not be negative: %d", c.Fit.MaxEvaluations)
	}
	if c.Fit.GridPoints != 0 && c.Fit.GridPoints < 3 {
		return fmt.Errorf("app.Config: grid points must be at least 3: %d given", c.Fit.GridPoints)
	}

	if c.Plot.Width < 0 || c.Plot.Height < 0 {
		return fmt.Errorf("app.Config: invalid plot size: %dx%d", c.Plot.Width, c.Plot.Height)
	}

	return nil
}
