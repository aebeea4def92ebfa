package spectrum

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat is returned when an imported table cannot form a dataset
	ErrInvalidFormat = errors.New("invalid format")

	// ErrInvalidParameter is returned for non-numeric or non-finite calibration coefficients
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrFitNonConvergence is recorded on a region whose fit did not converge
	ErrFitNonConvergence = errors.New("fit did not converge")

	// ErrNoDataset is returned when an operation needs an active dataset and there is none
	ErrNoDataset = errors.New("no dataset")
)

// FormatError describes why an imported table was rejected.
type FormatError struct {
	Dataset string // Dataset name, usually the source file
	Row     int    // Zero-based row index, -1 when the table as a whole is at fault
	Msg     string
}

func (e *FormatError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidFormat, e.Dataset, e.Msg)
	}
	return fmt.Sprintf("%s: %s: row %d: %s", ErrInvalidFormat, e.Dataset, e.Row+1, e.Msg)
}

func (e *FormatError) Unwrap() error {
	return ErrInvalidFormat
}

// ParameterError names a calibration coefficient that could not be used.
type ParameterError struct {
	Name  string
	Value string
	Err   error // Underlying parse error, if any
}

func (e *ParameterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s=%q: %s", ErrInvalidParameter, e.Name, e.Value, e.Err)
	}
	return fmt.Sprintf("%s: %s=%q", ErrInvalidParameter, e.Name, e.Value)
}

func (e *ParameterError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidParameter, e.Err}
	}
	return []error{ErrInvalidParameter}
}
