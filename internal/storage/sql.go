package storage

const (
	schemaSQL = `
CREATE TABLE IF NOT EXISTS acquisitions
(
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT     NOT NULL,
    start_time DATETIME NOT NULL,
    detector   TEXT     NOT NULL,
    live_time  REAL,
    notes      TEXT
);

CREATE TABLE IF NOT EXISTS channel_counts
(
    acquisition_id INTEGER NOT NULL REFERENCES acquisitions (id),
    channel        INTEGER NOT NULL,
    counts         REAL    NOT NULL,
    PRIMARY KEY (acquisition_id, channel)
);`

	selectAcquisitionSQL = `
SELECT
    id,
    name,
    start_time,
    detector,
    live_time,
    notes
FROM acquisitions
WHERE
    id = ?`

	selectAcquisitionsSQL = `
SELECT
    id,
    name,
    start_time,
    detector,
    live_time,
    notes
FROM acquisitions
ORDER BY start_time, id`

	selectChannelBoundsSQL = `
SELECT
    MIN(channel),
    MAX(channel)
FROM channel_counts
WHERE
    acquisition_id = ?`

	selectCountsSQL = `
SELECT
    channel,
    counts
FROM channel_counts
WHERE
    acquisition_id = ?
    AND channel BETWEEN ? AND ?
ORDER BY channel`
)
