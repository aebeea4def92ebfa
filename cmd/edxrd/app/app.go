package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/edxrd/internal/energy"
	"github.com/roman-kulish/edxrd/internal/peakfit"
	"github.com/roman-kulish/edxrd/internal/render"
	"github.com/roman-kulish/edxrd/internal/roi"
	"github.com/roman-kulish/edxrd/internal/spectrum"
	"github.com/roman-kulish/edxrd/internal/storage"
	"github.com/roman-kulish/edxrd/internal/textio"
	"github.com/roman-kulish/edxrd/internal/twotheta"
)

// Run loads the configured spectra, calibrates and fits each of them, writes
// the per-dataset outputs and, when enabled, the 2θ calibration.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if err := os.MkdirAll(config.Output.Directory, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	collection, err := loadDatasets(ctx, config, logger)
	if err != nil {
		return err
	}

	if err = analyse(ctx, collection, config, logger); err != nil {
		return err
	}

	if config.TwoTheta.Enabled {
		if err = calibrateTwoTheta(config, time.Now(), logger); err != nil {
			return fmt.Errorf("2θ calibration: %w", err)
		}
	}

	return nil
}

func loadDatasets(ctx context.Context, config *Config, logger *slog.Logger) (*spectrum.Collection, error) {
	collection := spectrum.NewCollection()

	for _, path := range config.Inputs.Files {
		ds, err := readFile(path)
		if err != nil {
			return nil, err
		}
		collection.Add(ds)
		logger.Info("dataset loaded",
			slog.String("dataset", ds.Name),
			slog.String("source", path),
			slog.String("samples", humanize.Comma(int64(len(ds.Raw())))))
	}

	if config.Inputs.Sqlite != nil {
		if err := loadAcquisitions(ctx, config.Inputs.Sqlite, collection, logger); err != nil {
			return nil, err
		}
	}

	if collection.Len() == 0 {
		return nil, spectrum.ErrNoDataset
	}
	return collection, nil
}

func readFile(path string) (ds *spectrum.Dataset, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	return textio.ReadDataset(filepath.Base(path), f)
}

func loadAcquisitions(ctx context.Context, config *SqliteConfig, collection *spectrum.Collection, logger *slog.Logger) error {
	if _, err := os.Stat(config.Path); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.Path, err)
	}

	source := storage.NewSqliteSource(config.Path)
	defer source.Close()

	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.MinChannel != nil && config.MaxChannel != nil:
		opts = append(opts, storage.WithChannelRange(*config.MinChannel, *config.MaxChannel))
		filters = append(filters, slog.Int64("minChannel", *config.MinChannel), slog.Int64("maxChannel", *config.MaxChannel))

	case config.MinChannel != nil:
		opts = append(opts, storage.WithMinChannel(*config.MinChannel))
		filters = append(filters, slog.Int64("minChannel", *config.MinChannel))

	case config.MaxChannel != nil:
		opts = append(opts, storage.WithMaxChannel(*config.MaxChannel))
		filters = append(filters, slog.Int64("maxChannel", *config.MaxChannel))
	}
	logger.Info("reader configuration", filters...)

	ids := config.Acquisitions
	if len(ids) == 0 {
		acquisitions, err := source.Acquisitions(ctx)
		if err != nil {
			return fmt.Errorf("listing acquisitions: %w", err)
		}
		for _, acq := range acquisitions {
			ids = append(ids, acq.ID)
		}
	}

	for _, id := range ids {
		ds, err := source.Dataset(ctx, id, opts...)
		if err != nil {
			return fmt.Errorf("loading acquisition %d: %w", id, err)
		}
		collection.Add(ds)
		logger.Info("dataset loaded",
			slog.String("dataset", ds.Name),
			slog.Int64("acquisition", id),
			slog.String("samples", humanize.Comma(int64(len(ds.Raw())))))
	}

	return nil
}

func analyse(ctx context.Context, collection *spectrum.Collection, config *Config, logger *slog.Logger) error {
	var calibration energy.Quadratic
	if config.Calibration.Enabled {
		var err error
		if calibration, err = config.Calibration.Quadratic(); err != nil {
			return err
		}
	}

	fitter := peakfit.NewFitter(
		peakfit.WithLogger(logger),
		peakfit.WithMaxEvaluations(config.Fit.MaxEvaluations),
		peakfit.WithGridPoints(config.Fit.GridPoints))

	var renderer *render.Renderer
	if config.Plot.Enabled {
		var description string
		if config.Calibration.Enabled {
			description = calibration.String()
		}

		var err error
		renderer, err = render.NewRenderer(render.Config{
			Width:       config.Plot.Width,
			Height:      config.Plot.Height,
			Background:  config.Plot.Background,
			Calibration: description,
			NoInfoBar:   config.Plot.NoInfoBar,
		})
		if err != nil {
			return fmt.Errorf("creating renderer: %w", err)
		}
	}

	names := outputNames(collection.All())

	for i, n := 0, collection.Len(); i < n; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := collection.Select(i); err != nil {
			return err
		}
		ds, err := collection.Active()
		if err != nil {
			return err
		}
		name := names[i]
		if name != filepath.Base(ds.Name) {
			logger.Warn("dataset name already used, renaming outputs",
				slog.String("dataset", ds.Name), slog.String("output", baseName(name)))
		}

		steps := []struct {
			msg     string
			enabled func() bool
			fn      func(*spectrum.Dataset) error
		}{
			{msg: "calibrating", enabled: func() bool { return config.Calibration.Enabled }, fn: func(ds *spectrum.Dataset) error {
				return energy.Calibrate(ds, calibration)
			}},
			{msg: "adding regions", enabled: func() bool { return true }, fn: func(ds *spectrum.Dataset) error {
				addRegions(ds, config.Regions, logger)
				return nil
			}},
			{msg: "fitting", enabled: func() bool { return config.Fit.Enabled && ds.RegionCount() > 0 }, fn: func(ds *spectrum.Dataset) error {
				summary := fitter.FitDataset(ds)
				logger.Info("dataset fitted", slog.String("dataset", ds.Name),
					slog.Group("regions",
						slog.Int("total", summary.Total()),
						slog.Int("fitted", summary.Fitted),
						slog.Int("failed", summary.Failed),
						slog.Int("empty", summary.Empty)))
				return nil
			}},
			{msg: "exporting spectrum", enabled: func() bool { return config.Output.ExportSpectra }, fn: func(ds *spectrum.Dataset) error {
				return writeOutput(config.Output.Directory, textio.ConvertedFileName(name), logger, func(w io.Writer) error {
					return textio.WriteSpectrum(w, ds)
				})
			}},
			{msg: "writing fit report", enabled: func() bool { return config.Output.FitReport && ds.RegionCount() > 0 }, fn: func(ds *spectrum.Dataset) error {
				return writeOutput(config.Output.Directory, baseName(name)+"_fit.txt", logger, func(w io.Writer) error {
					return textio.WriteFitReport(w, ds)
				})
			}},
			{msg: "rendering plot", enabled: func() bool { return renderer != nil }, fn: func(ds *spectrum.Dataset) error {
				return writeOutput(config.Output.Directory, baseName(name)+".png", logger, func(w io.Writer) error {
					return renderer.Encode(w, ds)
				})
			}},
		}

		for _, s := range steps {
			if !s.enabled() {
				continue
			}
			if err = ds.WithLock(s.fn); err != nil {
				return fmt.Errorf("%s %s: %w", s.msg, ds.Name, err)
			}
		}
	}

	return nil
}

func addRegions(ds *spectrum.Dataset, regions []RegionConfig, logger *slog.Logger) {
	for i, r := range regions {
		if _, ok := roi.Add(ds, r.XMin, r.XMax); !ok {
			logger.Warn("region ignored", slog.String("dataset", ds.Name), slog.Int("region", i+1))
		}
	}
}

func calibrateTwoTheta(config *Config, now time.Time, logger *slog.Logger) error {
	pairs, err := readPairs(config.TwoTheta.PairsFile)
	if err != nil {
		return err
	}

	var opts []twotheta.Option
	if config.TwoTheta.SkipOutOfDomain {
		opts = append(opts, twotheta.SkipOutOfDomain())
	}

	result, err := twotheta.Calibrate(pairs, opts...)
	if err != nil {
		return err
	}

	logger.Info("2θ calibrated",
		slog.Group("twoTheta",
			slog.Float64("mean", result.MeanTwoThetaDeg),
			slog.Float64("std", result.StdTwoThetaDeg),
			slog.Int("pairs", result.NPairs),
			slog.Any("skipped", result.Skipped)))

	return writeOutput(config.Output.Directory, textio.CalibrationFileName(now), logger, func(w io.Writer) error {
		return textio.WriteCalibration(w, pairs, result)
	})
}

func readPairs(path string) (pairs []twotheta.Pair, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	return textio.ReadPairs(f)
}

func writeOutput(dir, name string, logger *slog.Logger, write func(io.Writer) error) (err error) {
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithError(f, &err)

	if err = write(f); err != nil {
		return err
	}

	logger.Debug("output written", slog.String("path", path))
	return nil
}

// outputNames returns the name each dataset's output files are derived from.
// A dataset whose name is already taken by an earlier one gets its 1-based
// collection position appended.
func outputNames(datasets []*spectrum.Dataset) []string {
	names := make([]string, len(datasets))
	used := make(map[string]bool, len(datasets))
	for i, ds := range datasets {
		name := filepath.Base(ds.Name)
		for used[baseName(name)] {
			name = fmt.Sprintf("%s_%d%s", baseName(name), i+1, filepath.Ext(name))
		}
		used[baseName(name)] = true
		names[i] = name
	}
	return names
}

func baseName(name string) string {
	name = filepath.Base(name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func closeWithError(cl io.Closer, err *error) {
	if cerr := cl.Close(); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}
