package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoData indicates that no counts exist for the given acquisition and filters.
var ErrNoData = fmt.Errorf("no data available")

// ReaderOption configures a table read with channel filters.
type ReaderOption func(*tableReader)

// WithMinChannel excludes channels below ch.
func WithMinChannel(ch int64) ReaderOption {
	return func(r *tableReader) {
		r.minChannel = &ch
	}
}

// WithMaxChannel excludes channels above ch.
func WithMaxChannel(ch int64) ReaderOption {
	return func(r *tableReader) {
		r.maxChannel = &ch
	}
}

// WithChannelRange sets both channel filters.
// This is a convenience function equivalent to applying both WithMinChannel
// and WithMaxChannel.
func WithChannelRange(lo, hi int64) ReaderOption {
	return func(r *tableReader) {
		r.minChannel = &lo
		r.maxChannel = &hi
	}
}

type tableReader struct {
	db *sql.DB

	acquisitionID int64

	minChannel *int64 // Optional lower channel filter
	maxChannel *int64 // Optional upper channel filter

	table [][]float64
}

func newTableReader(db *sql.DB, acquisitionID int64, opts ...ReaderOption) *tableReader {
	r := &tableReader{
		db:            db,
		acquisitionID: acquisitionID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *tableReader) read(ctx context.Context) ([][]float64, error) {
	if r.acquisitionID <= 0 {
		return nil, errors.New("acquisition ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "initializing filters", fn: r.initFilters},
		{msg: "reading counts", fn: r.readCounts},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return r.table, nil
}

func (r *tableReader) initFilters(ctx context.Context) (err error) {
	if r.minChannel != nil && r.maxChannel != nil {
		if *r.minChannel > *r.maxChannel {
			return fmt.Errorf("min channel %d is greater than max channel %d", *r.minChannel, *r.maxChannel)
		}
		return nil
	}

	stmt, err := r.db.PrepareContext(ctx, selectChannelBoundsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var lo, hi sql.NullInt64
	if err = stmt.QueryRowContext(ctx, r.acquisitionID).Scan(&lo, &hi); err != nil {
		return fmt.Errorf("scanning channel bounds: %w", err)
	}
	if !lo.Valid || !hi.Valid {
		return fmt.Errorf("acquisition %d: %w", r.acquisitionID, ErrNoData)
	}

	if r.minChannel == nil {
		r.minChannel = &lo.Int64
	}
	if r.maxChannel == nil {
		r.maxChannel = &hi.Int64
	}
	if *r.minChannel > *r.maxChannel {
		return fmt.Errorf("channel range [%d, %d]: %w", *r.minChannel, *r.maxChannel, ErrNoData)
	}

	return nil
}

func (r *tableReader) readCounts(ctx context.Context) (err error) {
	stmt, err := r.db.PrepareContext(ctx, selectCountsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	rows, err := stmt.QueryContext(ctx, r.acquisitionID, *r.minChannel, *r.maxChannel)
	if err != nil {
		return fmt.Errorf("querying counts: %w", err)
	}
	defer closeWithError(rows, &err)

	r.table = make([][]float64, 0, *r.maxChannel-*r.minChannel+1)

	next := *r.minChannel
	for rows.Next() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var channel int64
		var counts float64
		if err = rows.Scan(&channel, &counts); err != nil {
			return fmt.Errorf("scanning counts: %w", err)
		}

		// Fill the gap between the previous channel (or the lower filter) and this one
		r.table = append(r.table, zeroRows(next, channel-1)...)
		r.table = append(r.table, []float64{float64(channel), counts})
		next = channel + 1
	}
	if err = rows.Err(); err != nil {
		return err
	}

	if len(r.table) == 0 {
		return fmt.Errorf("acquisition %d: %w", r.acquisitionID, ErrNoData)
	}

	// Fill the gap between the last channel read and the upper filter
	r.table = append(r.table, zeroRows(next, *r.maxChannel)...)
	return nil
}
