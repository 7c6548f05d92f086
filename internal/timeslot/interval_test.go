package timeslot

import (
	"testing"
	"time"
)

func iv(t *testing.T, start, end string) Interval {
	t.Helper()
	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		t.Fatalf("parse start: %v", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		t.Fatalf("parse end: %v", err)
	}
	return New(s, e)
}

func TestOverlaps(t *testing.T) {
	base := iv(t, "2025-01-06T10:00:00Z", "2025-01-06T10:30:00Z")

	cases := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", iv(t, "2025-01-06T10:00:00Z", "2025-01-06T10:30:00Z"), true},
		{"contained", iv(t, "2025-01-06T10:10:00Z", "2025-01-06T10:20:00Z"), true},
		{"straddles start", iv(t, "2025-01-06T09:45:00Z", "2025-01-06T10:15:00Z"), true},
		{"straddles end", iv(t, "2025-01-06T10:15:00Z", "2025-01-06T10:45:00Z"), true},
		{"back to back before", iv(t, "2025-01-06T09:30:00Z", "2025-01-06T10:00:00Z"), false},
		{"back to back after", iv(t, "2025-01-06T10:30:00Z", "2025-01-06T11:00:00Z"), false},
		{"disjoint", iv(t, "2025-01-06T12:00:00Z", "2025-01-06T12:30:00Z"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := base.Overlaps(tc.other); got != tc.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", base, tc.other, got, tc.want)
			}
			// the predicate is symmetric
			if got := tc.other.Overlaps(base); got != tc.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", tc.other, base, got, tc.want)
			}
		})
	}
}

func TestOverlapsAny(t *testing.T) {
	busy := []Interval{
		iv(t, "2025-01-06T09:00:00Z", "2025-01-06T09:30:00Z"),
		iv(t, "2025-01-06T14:00:00Z", "2025-01-06T15:00:00Z"),
	}
	if iv(t, "2025-01-06T10:00:00Z", "2025-01-06T10:30:00Z").OverlapsAny(busy) {
		t.Error("free slot reported busy")
	}
	if !iv(t, "2025-01-06T14:30:00Z", "2025-01-06T15:00:00Z").OverlapsAny(busy) {
		t.Error("busy slot reported free")
	}
}

func TestValid(t *testing.T) {
	if !iv(t, "2025-01-06T10:00:00Z", "2025-01-06T10:30:00Z").Valid() {
		t.Error("ordered interval reported invalid")
	}
	empty := New(time.Unix(100, 0), time.Unix(100, 0))
	if empty.Valid() {
		t.Error("empty interval reported valid")
	}
	inverted := New(time.Unix(200, 0), time.Unix(100, 0))
	if inverted.Valid() {
		t.Error("inverted interval reported valid")
	}
}
