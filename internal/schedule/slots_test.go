package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotsForDay(t *testing.T) {
	day := time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC)
	slots := SlotsForDay(day)

	require.Len(t, slots, SlotsPerDay)
	assert.Equal(t, 12, SlotsPerDay)

	for i, slot := range slots {
		assert.Equal(t, FirstSlotHour+i, slot.Hour())
		assert.Equal(t, 0, slot.Minute())
		assert.Equal(t, day.Day(), slot.Day())
		assert.Equal(t, time.UTC, slot.Location())
	}
	assert.Equal(t, LastSlotHour, slots[len(slots)-1].Hour())
}

func TestNextAvailableSlot(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		wantHour int
		wantOK   bool
	}{
		{
			name:     "Before first slot",
			now:      time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
			wantHour: 11,
			wantOK:   true,
		},
		{
			name:     "Mid-day between slots",
			now:      time.Date(2026, 3, 14, 14, 25, 0, 0, time.UTC),
			wantHour: 15,
			wantOK:   true,
		},
		{
			name:     "Exactly on a slot moves to the next",
			now:      time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
			wantHour: 16,
			wantOK:   true,
		},
		{
			name:   "After the last slot",
			now:    time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, ok := NextAvailableSlot(tt.now)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantHour, slot.Hour())
				assert.True(t, slot.After(tt.now))
			}
		})
	}
}

func TestRemainingSlots(t *testing.T) {
	now := time.Date(2026, 3, 14, 19, 10, 0, 0, time.UTC)
	slots := RemainingSlots(now)

	// 20, 21 and 22 are still ahead
	require.Len(t, slots, 3)
	assert.Equal(t, 20, slots[0].Hour())
	assert.Equal(t, 22, slots[2].Hour())

	late := time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)
	assert.Empty(t, RemainingSlots(late))
}
