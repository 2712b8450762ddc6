// Package availability shapes raw clinic availability slots for the
// booking wizard: filtering out past dates, grouping by calendar date,
// and checking that a service fits inside a slot.
package availability

import (
	"fmt"
	"sort"
	"time"

	"github.com/odontosys/booking-wizard/internal/clinicapi"
)

const dateLayout = "2006-01-02"

// Day groups the slots offered on one calendar date, start times ascending.
type Day struct {
	Date  string                      `json:"date"`
	Slots []clinicapi.AvailabilitySlot `json:"slots"`
}

// Upcoming filters out slots dated before today. The server can return
// stale rows; the wizard must never offer a past slot regardless.
func Upcoming(slots []clinicapi.AvailabilitySlot, today time.Time) []clinicapi.AvailabilitySlot {
	cutoff := today.Format(dateLayout)
	out := make([]clinicapi.AvailabilitySlot, 0, len(slots))
	for _, s := range slots {
		if s.Date >= cutoff {
			out = append(out, s)
		}
	}
	return out
}

// GroupByDate groups slots by date with dates ascending; within a date,
// slots are ordered by start time ascending. Lexicographic comparison is
// sufficient because dates are YYYY-MM-DD and times are HH:MM.
func GroupByDate(slots []clinicapi.AvailabilitySlot) []Day {
	byDate := make(map[string][]clinicapi.AvailabilitySlot)
	for _, s := range slots {
		byDate[s.Date] = append(byDate[s.Date], s)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	days := make([]Day, 0, len(dates))
	for _, d := range dates {
		group := byDate[d]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].StartTime < group[j].StartTime
		})
		days = append(days, Day{Date: d, Slots: group})
	}
	return days
}

// SlotMinutes returns the slot length in minutes.
func SlotMinutes(s clinicapi.AvailabilitySlot) (int, error) {
	start, err := minutesOfDay(s.StartTime)
	if err != nil {
		return 0, fmt.Errorf("availability: slot %d start time: %w", s.ID, err)
	}
	end, err := minutesOfDay(s.EndTime)
	if err != nil {
		return 0, fmt.Errorf("availability: slot %d end time: %w", s.ID, err)
	}
	if end <= start {
		return 0, fmt.Errorf("availability: slot %d ends at or before it starts (%s-%s)", s.ID, s.StartTime, s.EndTime)
	}
	return end - start, nil
}

// CheckDurationFit verifies the service duration fits inside the slot. The
// error names both durations so the caller can surface them verbatim.
func CheckDurationFit(serviceMinutes int, s clinicapi.AvailabilitySlot) error {
	slotMinutes, err := SlotMinutes(s)
	if err != nil {
		return err
	}
	if serviceMinutes > slotMinutes {
		return fmt.Errorf("availability: the service requires %d minutes but the selected slot only lasts %d minutes", serviceMinutes, slotMinutes)
	}
	return nil
}

// FindSlot locates a slot by id across day groups.
func FindSlot(days []Day, id int64) (clinicapi.AvailabilitySlot, bool) {
	for _, day := range days {
		for _, s := range day.Slots {
			if s.ID == id {
				return s, true
			}
		}
	}
	return clinicapi.AvailabilitySlot{}, false
}

func minutesOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
