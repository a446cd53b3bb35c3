package models

import "time"

// AssetType classifies the evidence object.
type AssetType string

const (
	AssetPhoto            AssetType = "photo"
	AssetCheckinPhoto     AssetType = "checkin_photo"
	AssetHandoverPhoto    AssetType = "handover_photo"
	AssetWalkthroughVideo AssetType = "walkthrough_video"
	AssetDocument         AssetType = "document"
)

// Phase tags which lifecycle stage an asset belongs to. Assets whose phase is
// sealed on the parent case are immutable.
type Phase string

const (
	PhaseCheckin  Phase = "check-in"
	PhaseHandover Phase = "handover"
)

// PhaseForType derives the lifecycle phase implied by an asset type, if any.
func PhaseForType(t AssetType) *Phase {
	switch t {
	case AssetCheckinPhoto:
		p := PhaseCheckin
		return &p
	case AssetHandoverPhoto:
		p := PhaseHandover
		return &p
	}
	return nil
}

// Asset is one uploaded evidence object. The record is created at
// upload-intent time; ServerHash, SizeBytes and MimeType are populated once
// the binary is confirmed in object storage. ServerHash is written at most
// once and never from user input.
type Asset struct {
	ID     string
	CaseID string
	UserID string

	Type   AssetType
	Phase  *Phase
	RoomID *string

	FileName    string
	MimeType    string
	SizeBytes   *int64
	ClientHash  *string
	ServerHash  *string
	StoragePath string

	CreatedAt time.Time
}

// Verified reports whether the client-claimed hash matches the hash the
// server recomputed after upload. False when either hash is absent.
func (a *Asset) Verified() bool {
	return a.ClientHash != nil && a.ServerHash != nil && *a.ClientHash == *a.ServerHash
}
