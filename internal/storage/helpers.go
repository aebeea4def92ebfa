package storage

import (
	"database/sql"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	return &n.Float64
}

func fromNullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	return &n.String
}

// zeroRows returns (channel, 0) rows for every channel in [from, to].
func zeroRows(from, to int64) [][]float64 {
	if to < from {
		return nil
	}
	rows := make([][]float64, 0, to-from+1)
	for ch := from; ch <= to; ch++ {
		rows = append(rows, []float64{float64(ch), 0})
	}
	return rows
}
