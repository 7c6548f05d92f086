package availability

import (
	"testing"
	"time"

	"agenda-service/internal/apperr"
	"agenda-service/internal/timeslot"
)

func firstOccurrence() timeslot.Interval {
	return timeslot.New(
		time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC),
	)
}

func TestExpandWeeklyByCount(t *testing.T) {
	occs, err := Expand(firstOccurrence(), &Recurrence{Type: RecurWeekly, OccurrenceCount: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{
		time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC),
	}
	if len(occs) != len(want) {
		t.Fatalf("expected %d occurrences, got %d", len(want), len(occs))
	}
	for i, w := range want {
		if !occs[i].Start.Equal(w) {
			t.Errorf("occurrence %d start = %s, want %s", i, occs[i].Start, w)
		}
		if got := occs[i].Duration(); got != 30*time.Minute {
			t.Errorf("occurrence %d duration = %s", i, got)
		}
	}
}

func TestExpandDailyByEndDate(t *testing.T) {
	end := time.Date(2025, 1, 8, 23, 59, 59, 0, time.UTC)
	occs, err := Expand(firstOccurrence(), &Recurrence{Type: RecurDaily, EndDate: &end})
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 3 { // Jan 6, 7, 8
		t.Fatalf("expected 3 occurrences, got %d", len(occs))
	}
}

func TestExpandWhicheverBoundComesFirst(t *testing.T) {
	end := time.Date(2025, 1, 7, 23, 59, 59, 0, time.UTC)
	occs, err := Expand(firstOccurrence(), &Recurrence{Type: RecurDaily, EndDate: &end, OccurrenceCount: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 2 {
		t.Errorf("end date should win over count: got %d occurrences", len(occs))
	}

	occs, err = Expand(firstOccurrence(), &Recurrence{Type: RecurDaily, EndDate: &end, OccurrenceCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != 1 {
		t.Errorf("count should win over end date: got %d occurrences", len(occs))
	}
}

func TestExpandNoBoundsIsSingleOccurrence(t *testing.T) {
	for _, rec := range []*Recurrence{nil, {Type: RecurWeekly}} {
		occs, err := Expand(firstOccurrence(), rec)
		if err != nil {
			t.Fatal(err)
		}
		if len(occs) != 1 {
			t.Errorf("unbounded recurrence %+v expanded to %d occurrences", rec, len(occs))
		}
	}
}

func TestExpandMonthlyClampsShortMonths(t *testing.T) {
	first := timeslot.New(
		time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 31, 10, 30, 0, 0, time.UTC),
	)
	occs, err := Expand(first, &Recurrence{Type: RecurMonthly, OccurrenceCount: 4})
	if err != nil {
		t.Fatal(err)
	}
	wantDays := []struct {
		month time.Month
		day   int
	}{
		{time.January, 31}, {time.February, 28}, {time.March, 31}, {time.April, 30},
	}
	for i, w := range wantDays {
		if occs[i].Start.Month() != w.month || occs[i].Start.Day() != w.day {
			t.Errorf("occurrence %d = %s, want %s %d", i, occs[i].Start.Format("2006-01-02"), w.month, w.day)
		}
	}
}

func TestExpandCapsRunawayCounts(t *testing.T) {
	occs, err := Expand(firstOccurrence(), &Recurrence{Type: RecurDaily, OccurrenceCount: 100000})
	if err != nil {
		t.Fatal(err)
	}
	if len(occs) != maxOccurrences {
		t.Errorf("expected cap of %d, got %d", maxOccurrences, len(occs))
	}
}

func TestExpandRejectsUnknownType(t *testing.T) {
	_, err := Expand(firstOccurrence(), &Recurrence{Type: "yearly", OccurrenceCount: 2})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
