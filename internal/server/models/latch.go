package models

import "time"

// Latch is the in-memory view of a one-way phase seal. The persisted column
// stays a nullable timestamp for compatibility; Latch gives business logic an
// explicit Open|Locked variant instead of raw nil comparisons.
type Latch struct {
	at     time.Time
	locked bool
}

// LatchFrom builds a Latch from a nullable timestamp column.
func LatchFrom(at *time.Time) Latch {
	if at == nil {
		return Latch{}
	}
	return Latch{at: *at, locked: true}
}

// Locked reports whether the latch has been sealed.
func (l Latch) Locked() bool { return l.locked }

// At returns the seal timestamp; zero while the latch is open.
func (l Latch) At() time.Time { return l.at }
