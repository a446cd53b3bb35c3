// Package models defines the server-side data model persisted in the
// database: cases, their evidence assets, rooms, pack purchases and the
// append-only audit log.
package models

import "time"

// StayType distinguishes long-term tenancies from short stays. Short stays
// have an ordering constraint between the two phase locks: departure cannot
// be sealed before arrival.
type StayType string

const (
	StayLongTerm  StayType = "long_term"
	StayShortStay StayType = "short_stay"
)

// Retention windows applied at case creation.
const (
	RetentionDefault = 365 * 24 * time.Hour      // 12 months
	RetentionAdmin   = 10 * 365 * 24 * time.Hour // 10 years
	// RetentionShortStayGrace is the fallback window after key handover for
	// short stays that carry no explicit retention value.
	RetentionShortStayGrace = 30 * 24 * time.Hour
)

// Case is one tracked tenancy record owned by a user. Lock columns are
// nullable timestamps in the store; business logic reads them through the
// Latch type instead of sprinkling nil checks around.
type Case struct {
	ID     string
	UserID string
	Label  string
	Status string

	StayType StayType

	CheckinLockedAt  *time.Time
	HandoverLockedAt *time.Time
	KeysReturnedAt   *time.Time

	RetentionUntil *time.Time
	CreatedAt      time.Time
}

// CheckinLatch returns the check-in seal state.
func (c *Case) CheckinLatch() Latch { return LatchFrom(c.CheckinLockedAt) }

// HandoverLatch returns the handover seal state.
func (c *Case) HandoverLatch() Latch { return LatchFrom(c.HandoverLockedAt) }

// KeysLatch returns the keys-returned confirmation state.
func (c *Case) KeysLatch() Latch { return LatchFrom(c.KeysReturnedAt) }

// RetentionDeadline resolves the effective retention timestamp. Rows written
// by current code always carry RetentionUntil; for legacy rows without it,
// short stays fall back to key handover plus a grace period, everything else
// to creation plus the default window.
func (c *Case) RetentionDeadline() time.Time {
	if c.RetentionUntil != nil {
		return *c.RetentionUntil
	}
	if c.StayType == StayShortStay && c.KeysReturnedAt != nil {
		return c.KeysReturnedAt.Add(RetentionShortStayGrace)
	}
	return c.CreatedAt.Add(RetentionDefault)
}
