// Package schedule derives publish slots and assigns batches of videos to
// them. Slots are never persisted; they are recomputed from the calendar.
package schedule

import "time"

// Each calendar day carries one publish slot per hour from FirstSlotHour
// through LastSlotHour inclusive.
const (
	FirstSlotHour = 11
	LastSlotHour  = 22
	SlotsPerDay   = LastSlotHour - FirstSlotHour + 1
)

// SlotsForDay returns the day's publish slots in ascending order. Only the
// calendar date of t matters; its time of day is discarded.
func SlotsForDay(t time.Time) []time.Time {
	year, month, day := t.Date()
	slots := make([]time.Time, 0, SlotsPerDay)
	for hour := FirstSlotHour; hour <= LastSlotHour; hour++ {
		slots = append(slots, time.Date(year, month, day, hour, 0, 0, 0, t.Location()))
	}
	return slots
}

// NextAvailableSlot returns the first slot on now's date strictly after
// now. ok is false when all of the day's slots have passed; callers then
// advance to the next calendar day and regenerate.
func NextAvailableSlot(now time.Time) (time.Time, bool) {
	for _, slot := range SlotsForDay(now) {
		if slot.After(now) {
			return slot, true
		}
	}
	return time.Time{}, false
}

// RemainingSlots returns the slots on now's date strictly after now.
func RemainingSlots(now time.Time) []time.Time {
	slots := SlotsForDay(now)
	for i, slot := range slots {
		if slot.After(now) {
			return slots[i:]
		}
	}
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
