package storage

import (
	"time"
)

// Acquisition describes one detector trace stored in the database.
type Acquisition struct {
	ID        int64     `json:"ID"`                 // Unique identifier of the acquisition
	Name      string    `json:"name"`               // Name the trace was recorded under, used as the dataset name
	StartTime time.Time `json:"startTime"`          // When the acquisition began
	Detector  string    `json:"detector"`           // Detector identifier
	LiveTime  *float64  `json:"liveTime,omitempty"` // Live time in seconds, if recorded
	Notes     *string   `json:"notes,omitempty"`    // Free-form operator notes
}
