package models

import "time"

// PublishRequest asks the orchestrator to publish one video to one or both
// platforms.
type PublishRequest struct {
	Platform    string       `json:"platform" binding:"required"`
	PublishData *PublishData `json:"publish_data,omitempty"`
}

// PublishData carries platform-specific compliance options supplied by the
// operator at publish time.
type PublishData struct {
	PrivacyLevel          string `json:"privacy_level,omitempty"`
	DisableComment        bool   `json:"disable_comment,omitempty"`
	DisableDuet           bool   `json:"disable_duet,omitempty"`
	DisableStitch         bool   `json:"disable_stitch,omitempty"`
	CommercialContentOwn  bool   `json:"commercial_content_own,omitempty"`
	CommercialContentPaid bool   `json:"commercial_content_paid,omitempty"`
	CategoryID            string `json:"category_id,omitempty"`
}

// Platforms expands the requested platform selector into the concrete list
// of platforms to attempt.
func (r PublishRequest) Platforms() []string {
	switch r.Platform {
	case PlatformBoth:
		return []string{PlatformTikTok, PlatformYouTube}
	case PlatformTikTok, PlatformYouTube:
		return []string{r.Platform}
	}
	return nil
}

// PlatformResult is the structured outcome of one publisher attempt.
type PlatformResult struct {
	Success   bool   `json:"success"`
	VideoID   string `json:"video_id,omitempty"`
	PublishID string `json:"publish_id,omitempty"`
	PostID    string `json:"post_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// PublishResult aggregates the per-platform outcomes of one orchestrated
// publish. Video is the record as persisted, or nil when the record was
// cleaned up after full success.
type PublishResult struct {
	Video   *Video                     `json:"video"`
	Results map[string]*PlatformResult `json:"results"`
	Cleaned bool                       `json:"cleaned"`
}

// ScheduleAssignment reports the slot given to one video by a bulk schedule.
type ScheduleAssignment struct {
	VideoID     string    `json:"video_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// BulkScheduleSummary is the response body of a bulk-schedule request.
type BulkScheduleSummary struct {
	TotalScheduled int                  `json:"total_scheduled"`
	DaysUsed       int                  `json:"days_used"`
	StartDate      string               `json:"start_date"`
	Assignments    []ScheduleAssignment `json:"assignments"`
}
