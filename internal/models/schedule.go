package models

import "time"

// Schedule is a persisted cron-style job definition. JobID is the
// registration key in the live scheduler; re-registering the same JobID
// replaces the live trigger instead of duplicating it.
type Schedule struct {
	ID       uint64  `boltholdKey:"ID"`
	JobID    string  `boltholdIndex:"JobID"`
	FuncName string // pipeline entry point to invoke

	// Not indexed: bolthold gob-encodes index values and gob cannot
	// encode a nil pointer
	SearchID *uint64

	// Cron fields, each a literal or "*"
	Year      string
	Month     string
	Day       string
	Hour      string
	Minute    string
	DayOfWeek string

	Enabled bool   `boltholdIndex:"Enabled"`
	Kwargs  string // JSON-encoded parameters passed to the pipeline call

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CronSpec assembles the standard five-field cron expression. The Year
// field has no cron equivalent and is guarded at fire time instead.
func (s *Schedule) CronSpec() string {
	return s.Minute + " " + s.Hour + " " + s.Day + " " + s.Month + " " + s.DayOfWeek
}

// Setting is one persisted configuration value, keyed by (Group, Name)
type Setting struct {
	ID    uint64 `boltholdKey:"ID"`
	Group string `boltholdIndex:"Group"`
	Name  string

	Value       *string // nil means "use the registered default"
	Type        string
	Description string

	CreatedAt time.Time
	UpdatedAt time.Time
}
