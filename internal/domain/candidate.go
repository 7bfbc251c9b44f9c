package domain

import "time"

// Candidate is one normalized feed record, ready for reconciliation.
type Candidate struct {
	ExternalID   int64
	Title        string
	Description  string
	Location     string
	Lat, Long    *float64
	Start, End   time.Time
	Tags         []string
	ContactEmail *string
}
