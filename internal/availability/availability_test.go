package availability

import (
	"strings"
	"testing"
	"time"

	"github.com/odontosys/booking-wizard/internal/clinicapi"
)

func slot(id int64, date, start, end string) clinicapi.AvailabilitySlot {
	return clinicapi.AvailabilitySlot{ID: id, Date: date, StartTime: start, EndTime: end}
}

func TestGroupByDateOrdering(t *testing.T) {
	slots := []clinicapi.AvailabilitySlot{
		slot(1, "2025-01-02", "09:00", "10:00"),
		slot(2, "2025-01-01", "10:00", "11:00"),
		slot(3, "2025-01-01", "09:00", "10:00"),
	}

	days := GroupByDate(slots)

	if len(days) != 2 {
		t.Fatalf("expected 2 day groups, got %d", len(days))
	}
	if days[0].Date != "2025-01-01" || days[1].Date != "2025-01-02" {
		t.Fatalf("dates not ascending: %s, %s", days[0].Date, days[1].Date)
	}
	if days[0].Slots[0].StartTime != "09:00" || days[0].Slots[1].StartTime != "10:00" {
		t.Fatalf("start times not ascending within 2025-01-01: %s, %s",
			days[0].Slots[0].StartTime, days[0].Slots[1].StartTime)
	}
}

func TestUpcomingFiltersPastDates(t *testing.T) {
	today := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	slots := []clinicapi.AvailabilitySlot{
		slot(1, "2025-05-31", "09:00", "10:00"),
		slot(2, "2025-06-01", "09:00", "10:00"),
		slot(3, "2025-06-02", "09:00", "10:00"),
	}

	got := Upcoming(slots, today)

	if len(got) != 2 {
		t.Fatalf("expected 2 upcoming slots, got %d", len(got))
	}
	for _, s := range got {
		if s.Date < "2025-06-01" {
			t.Fatalf("past slot %d leaked through", s.ID)
		}
	}
}

func TestSlotMinutes(t *testing.T) {
	min, err := SlotMinutes(slot(1, "2025-06-01", "09:00", "10:30"))
	if err != nil {
		t.Fatalf("SlotMinutes error: %v", err)
	}
	if min != 90 {
		t.Fatalf("expected 90 minutes, got %d", min)
	}

	if _, err := SlotMinutes(slot(2, "2025-06-01", "10:00", "09:00")); err == nil {
		t.Fatal("expected error for inverted slot")
	}
	if _, err := SlotMinutes(slot(3, "2025-06-01", "9am", "10:00")); err == nil {
		t.Fatal("expected error for malformed time")
	}
}

func TestCheckDurationFit(t *testing.T) {
	s := slot(1, "2025-06-01", "09:00", "10:00")

	if err := CheckDurationFit(60, s); err != nil {
		t.Fatalf("60 minutes should fit a 60-minute slot: %v", err)
	}

	err := CheckDurationFit(90, s)
	if err == nil {
		t.Fatal("expected duration-fit error")
	}
	if !strings.Contains(err.Error(), "90") || !strings.Contains(err.Error(), "60") {
		t.Fatalf("error should name both durations: %v", err)
	}
}

func TestFindSlot(t *testing.T) {
	days := GroupByDate([]clinicapi.AvailabilitySlot{
		slot(7, "2025-06-01", "09:00", "10:00"),
		slot(8, "2025-06-02", "09:00", "10:00"),
	})

	if s, ok := FindSlot(days, 8); !ok || s.Date != "2025-06-02" {
		t.Fatalf("expected to find slot 8 on 2025-06-02, got %+v ok=%v", s, ok)
	}
	if _, ok := FindSlot(days, 99); ok {
		t.Fatal("expected slot 99 to be absent")
	}
}
