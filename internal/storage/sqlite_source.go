package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/edxrd/internal/spectrum"
)

// SqliteSource reads acquisitions from an SQLite database written by the
// detector software. The database is opened read-only on first use.
type SqliteSource struct {
	dbPath string

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Source = (*SqliteSource)(nil)

// NewSqliteSource creates a source for the database at dbPath. No connection
// is made until the first query.
func NewSqliteSource(dbPath string) *SqliteSource {
	return &SqliteSource{dbPath: dbPath}
}

func (s *SqliteSource) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAcquisition(row rowScanner) (*Acquisition, error) {
	var acq Acquisition
	var liveTime sql.NullFloat64
	var notes sql.NullString
	if err := row.Scan(&acq.ID, &acq.Name, &acq.StartTime, &acq.Detector, &liveTime, &notes); err != nil {
		return nil, err
	}
	acq.LiveTime = fromNullFloat(liveTime)
	acq.Notes = fromNullString(notes)
	return &acq, nil
}

func (s *SqliteSource) Acquisition(ctx context.Context, id int64) (acq *Acquisition, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectAcquisitionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	acq, err = scanAcquisition(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("acquisition %d: %w", id, ErrNoData)
	}
	if err != nil {
		err = fmt.Errorf("scanning acquisition: %w", err)
	}
	return
}

func (s *SqliteSource) Acquisitions(ctx context.Context) (acquisitions []*Acquisition, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectAcquisitionsSQL)
	if err != nil {
		err = fmt.Errorf("querying acquisitions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var acq *Acquisition
		if acq, err = scanAcquisition(rows); err != nil {
			err = fmt.Errorf("scanning acquisition: %w", err)
			return
		}
		acquisitions = append(acquisitions, acq)
	}
	err = rows.Err()
	return
}

// ReadTable reads the counts of an acquisition as (channel, counts) rows.
//
// Parameters:
//   - ctx: Context for cancellation and timeouts
//   - id: Unique identifier of the acquisition to read from
//   - opts: Optional channel filters (WithMinChannel, WithMaxChannel, WithChannelRange)
//
// Channels absent from the database inside the selected range are filled
// with zero counts, so the table has one row per channel.
func (s *SqliteSource) ReadTable(ctx context.Context, id int64, opts ...ReaderOption) ([][]float64, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newTableReader(db, id, opts...).read(ctx)
}

// Dataset reads an acquisition into a dataset named after it. The table goes
// through the same construction as a text import, including the removal of
// the final record.
func (s *SqliteSource) Dataset(ctx context.Context, id int64, opts ...ReaderOption) (*spectrum.Dataset, error) {
	acq, err := s.Acquisition(ctx, id)
	if err != nil {
		return nil, err
	}

	table, err := s.ReadTable(ctx, id, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading acquisition %d: %w", id, err)
	}

	return spectrum.NewDataset(acq.Name, table)
}

func (s *SqliteSource) Close() error {
	s.closeOnce.Do(func() {
		if s.readDB != nil {
			s.closeErr = s.readDB.Close()
			s.readDB = nil
		}
	})

	return s.closeErr
}
