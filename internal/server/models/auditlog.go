package models

import "time"

// Audit action tags written by the lifecycle and upload flows.
const (
	AuditCheckinLocked         = "checkin_locked"
	AuditCheckinLockEmailSent  = "checkin_lock_email_sent"
	AuditHandoverLocked        = "handover_locked"
	AuditHandoverLockEmailSent = "handover_lock_email_sent"
	AuditKeysReturned          = "keys_returned"
	AuditUploadInitiated       = "upload_initiated"
	AuditUploadCompleted       = "upload_completed"
	AuditAssetDeleted          = "asset_deleted"
	AuditRoomDeleted           = "room_deleted"
	AuditCaseCreated           = "case_created"
	AuditCaseDeleted           = "case_deleted"
	AuditPackGranted           = "pack_granted"
	AuditCheckoutCreated       = "checkout_created"
)

// AuditLogEntry is one append-only record of a state-changing or
// security-relevant action. Entries are never updated or deleted; per-case
// ordering is timestamp order with the serial id breaking ties.
type AuditLogEntry struct {
	ID      int64
	CaseID  string
	UserID  string
	Action  string
	Details []byte // JSON document
	CreatedAt time.Time
}
