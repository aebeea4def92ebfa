package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roman-kulish/edxrd/internal/textio"
	"github.com/roman-kulish/edxrd/internal/twotheta"
)

// Run calibrates 2θ from the configured reference table and writes the
// calibration file, or writes the default reference table as a template to
// be completed with measured energies.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if config.WriteTemplate != "" {
		if err := writeFile(config.WriteTemplate, func(w io.Writer) error {
			return textio.WritePairs(w, twotheta.DefaultPairs())
		}); err != nil {
			return fmt.Errorf("writing template: %w", err)
		}
		logger.Info("reference table written", slog.String("path", config.WriteTemplate))
		return nil
	}

	pairs, err := readPairs(config.PairsFile)
	if err != nil {
		return err
	}
	logger.Info("reference table loaded", slog.String("path", config.PairsFile), slog.Int("rows", len(pairs)))

	if err = ctx.Err(); err != nil {
		return err
	}

	var opts []twotheta.Option
	if config.SkipOutOfDomain {
		opts = append(opts, twotheta.SkipOutOfDomain())
	}

	result, err := twotheta.Calibrate(pairs, opts...)
	if err != nil {
		return fmt.Errorf("calibrating: %w", err)
	}

	for _, row := range result.Skipped {
		logger.Warn("pair skipped", slog.Int("row", row+1), slog.String("remarks", pairs[row].Remarks))
	}

	path := filepath.Join(config.OutputDir, textio.CalibrationFileName(time.Now()))
	if err = writeFile(path, func(w io.Writer) error {
		return textio.WriteCalibration(w, pairs, result)
	}); err != nil {
		return fmt.Errorf("writing calibration: %w", err)
	}

	logger.Info(result.Status(), slog.String("destination", path))
	return nil
}

func readPairs(path string) (pairs []twotheta.Pair, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer closeWithError(f, &err)

	return textio.ReadPairs(f)
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithError(f, &err)

	return write(f)
}

func closeWithError(cl io.Closer, err *error) {
	if cerr := cl.Close(); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}
