package storage

import (
	"context"
)

// Source provides read-only access to acquisitions recorded by the
// detector software. It never writes to the database.
type Source interface {
	// Acquisitions returns all acquisitions stored in the database.
	// Results are ordered by start time in ascending order.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//
	// Returns:
	//   - acquisitions: Slice of pointers to acquisition metadata
	//   - error: If retrieval fails or context is cancelled
	Acquisitions(ctx context.Context) ([]*Acquisition, error)

	// Acquisition retrieves a specific acquisition by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique acquisition identifier
	//
	// Returns:
	//   - acquisition: Pointer to acquisition metadata
	//   - error: ErrNoData if the acquisition does not exist, or if retrieval fails
	Acquisition(ctx context.Context, id int64) (*Acquisition, error)

	// ReadTable returns the (channel, counts) rows of an acquisition in
	// channel order, in the same layout a text import produces. Channels
	// missing from the database inside the selected range are filled with
	// zero counts.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique acquisition identifier
	//   - opts: Optional channel filters (WithMinChannel, WithMaxChannel, WithChannelRange)
	//
	// Returns:
	//   - table: Rows of two columns
	//   - error: ErrNoData if the acquisition has no counts, or if reading fails
	ReadTable(ctx context.Context, id int64, opts ...ReaderOption) ([][]float64, error)

	// Close releases the database connection.
	// It is safe to call Close multiple times.
	Close() error
}
