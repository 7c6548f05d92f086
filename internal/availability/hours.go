// Package availability turns weekly working-hours configuration into
// concrete bookable slots and expands recurring booking requests.
package availability

import (
	"fmt"
	"sort"
	"time"

	"agenda-service/internal/apperr"
	"agenda-service/internal/model"
	"agenda-service/internal/timeslot"
)

// OpenIntervals resolves the open intervals for one civil date in the
// professional's timezone, returned as UTC intervals. Resolution order:
// administrative closed toggle wins over everything, then the 24h
// override, then the weekly rules. A weekday with no rule, or a rule
// marked non-working, yields no intervals.
func OpenIntervals(settings model.ProfessionalSettings, rules []model.WorkingHoursRule, year int, month time.Month, day int) ([]timeslot.Interval, error) {
	if !settings.CalendarOpen {
		return nil, nil
	}
	loc, err := location(settings.Timezone)
	if err != nil {
		return nil, err
	}

	if settings.Is24h {
		start := time.Date(year, month, day, 0, 0, 0, 0, loc)
		return []timeslot.Interval{timeslot.New(start, start.AddDate(0, 0, 1))}, nil
	}

	weekday := int(time.Date(year, month, day, 0, 0, 0, 0, loc).Weekday())
	var open []timeslot.Interval
	for _, r := range rules {
		if r.DayOfWeek != weekday || !r.IsWorkingDay {
			continue
		}
		startTOD, err := parseHHMM(r.StartTime)
		if err != nil {
			return nil, err
		}
		endTOD, err := parseHHMM(r.EndTime)
		if err != nil {
			return nil, err
		}
		if !endTOD.After(startTOD) {
			return nil, apperr.Validation("end_time must be after start_time for rule %d", r.ID)
		}
		start := time.Date(year, month, day, startTOD.Hour(), startTOD.Minute(), 0, 0, loc)
		end := time.Date(year, month, day, endTOD.Hour(), endTOD.Minute(), 0, 0, loc)
		open = append(open, timeslot.New(start, end))
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Start.Before(open[j].Start) })
	return open, nil
}

func location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, apperr.Validation("unknown timezone %q", name)
	}
	return loc, nil
}

func parseHHMM(s string) (time.Time, error) {
	// accept "09:00:00" style values by taking the first 5 chars
	if len(s) < 5 {
		return time.Time{}, apperr.Validation("invalid time string: %s", s)
	}
	tt, err := time.Parse("15:04", s[:5])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", apperr.ErrValidation, s)
	}
	return tt, nil
}
