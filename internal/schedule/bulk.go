package schedule

import (
	"time"

	"github.com/AliBars19/apollova-publisher/pkg/models"
)

// Assign walks the videos in their given order and books them one-to-one
// into future slots starting on start's date, rolling over to full
// subsequent days as each day fills. Every assigned video gets its
// ScheduledAt and status=scheduled set; the caller persists the records.
//
// For N videos exactly ceil(N/SlotsPerDay) distinct days are used, input
// order is preserved, and no slot is booked twice within one call.
func Assign(videos []*models.Video, start, now time.Time) ([]models.ScheduleAssignment, error) {
	if len(videos) == 0 {
		return nil, models.ErrNoVideosToSchedule
	}

	day := start
	slots := SlotsForDay(day)
	if sameDay(day, now) {
		slots = RemainingSlots(now)
		if len(slots) == 0 {
			// Every slot today has passed; the batch starts tomorrow.
			day = day.AddDate(0, 0, 1)
			slots = SlotsForDay(day)
		}
	}

	assignments := make([]models.ScheduleAssignment, 0, len(videos))
	next := 0
	for _, video := range videos {
		if next == len(slots) {
			day = day.AddDate(0, 0, 1)
			slots = SlotsForDay(day)
			next = 0
		}

		slot := slots[next]
		next++

		video.ScheduledAt = &slot
		video.Status = models.VideoStatusScheduled
		assignments = append(assignments, models.ScheduleAssignment{
			VideoID:     video.ID,
			ScheduledAt: slot,
		})
	}

	return assignments, nil
}

// DaysUsed counts the distinct calendar days across the assignments.
func DaysUsed(assignments []models.ScheduleAssignment) int {
	days := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		days[a.ScheduledAt.Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}
