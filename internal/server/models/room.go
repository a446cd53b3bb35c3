package models

import "time"

// Room groups evidence within a case (e.g. "kitchen", "bathroom"). Rooms
// become immutable once the case's check-in phase is sealed.
type Room struct {
	ID        string
	CaseID    string
	Name      string
	CreatedAt time.Time
}
