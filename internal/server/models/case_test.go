package models

import (
	"testing"
	"time"
)

func ts(v time.Time) *time.Time { return &v }

func TestLatchFrom(t *testing.T) {
	if LatchFrom(nil).Locked() {
		t.Fatal("nil timestamp must be an open latch")
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := LatchFrom(&at)
	if !l.Locked() {
		t.Fatal("timestamp must yield a locked latch")
	}
	if !l.At().Equal(at) {
		t.Fatalf("latch time mismatch: got %v want %v", l.At(), at)
	}
}

func TestCase_RetentionDeadline(t *testing.T) {
	created := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	handover := created.Add(72 * time.Hour)
	explicit := created.Add(2 * RetentionDefault)

	tests := []struct {
		name string
		c    Case
		want time.Time
	}{
		{
			name: "explicit value wins",
			c:    Case{StayType: StayShortStay, CreatedAt: created, KeysReturnedAt: ts(handover), RetentionUntil: ts(explicit)},
			want: explicit,
		},
		{
			name: "short stay falls back to handover plus grace",
			c:    Case{StayType: StayShortStay, CreatedAt: created, KeysReturnedAt: ts(handover)},
			want: handover.Add(RetentionShortStayGrace),
		},
		{
			name: "long term falls back to creation plus default",
			c:    Case{StayType: StayLongTerm, CreatedAt: created},
			want: created.Add(RetentionDefault),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.c.RetentionDeadline(); !got.Equal(tc.want) {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestAsset_Verified(t *testing.T) {
	h1, h2 := "aaa", "bbb"

	tests := []struct {
		name   string
		client *string
		server *string
		want   bool
	}{
		{"both match", &h1, &h1, true},
		{"mismatch", &h1, &h2, false},
		{"no client hash", nil, &h1, false},
		{"not yet confirmed", &h1, nil, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := Asset{ClientHash: tc.client, ServerHash: tc.server}
			if a.Verified() != tc.want {
				t.Fatalf("Verified() = %v, want %v", a.Verified(), tc.want)
			}
		})
	}
}

func TestPhaseForType(t *testing.T) {
	if p := PhaseForType(AssetCheckinPhoto); p == nil || *p != PhaseCheckin {
		t.Fatalf("checkin photo must map to check-in phase, got %v", p)
	}
	if p := PhaseForType(AssetHandoverPhoto); p == nil || *p != PhaseHandover {
		t.Fatalf("handover photo must map to handover phase, got %v", p)
	}
	if p := PhaseForType(AssetDocument); p != nil {
		t.Fatalf("document must not carry a phase, got %v", *p)
	}
}
