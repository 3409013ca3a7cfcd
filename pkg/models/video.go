package models

import (
	"time"
)

// Video represents one short-form video moving through the publishing pipeline.
type Video struct {
	ID          string               `json:"id"`
	Account     string               `json:"account"`
	Title       string               `json:"title"`
	Description string               `json:"description,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
	MediaRef    string               `json:"media_ref"`
	Status      string               `json:"status"`
	ScheduledAt *time.Time           `json:"scheduled_at,omitempty"`
	TikTok      *PlatformPublication `json:"tiktok,omitempty"`
	YouTube     *PlatformPublication `json:"youtube,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// PlatformPublication is the publish state of one video on one platform,
// independent of the other platform.
type PlatformPublication struct {
	Status      string     `json:"status"`
	VideoID     string     `json:"video_id,omitempty"`   // platform-assigned id (YouTube)
	PublishID   string     `json:"publish_id,omitempty"` // upload session id (TikTok)
	PostID      string     `json:"post_id,omitempty"`    // final post id (TikTok)
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Overall video lifecycle states.
const (
	VideoStatusDraft      = "draft"
	VideoStatusScheduled  = "scheduled"
	VideoStatusPublishing = "publishing"
	VideoStatusPublished  = "published"
	VideoStatusPartial    = "partial"
	VideoStatusFailed     = "failed"
)

// Per-platform publication states.
const (
	PublicationStatusPending    = "pending"
	PublicationStatusProcessing = "processing"
	PublicationStatusPublished  = "published"
	PublicationStatusFailed     = "failed"
)

// Platform identifiers.
const (
	PlatformTikTok  = "tiktok"
	PlatformYouTube = "youtube"
	PlatformBoth    = "both"
)

// Publication returns the sub-record for the given platform, or nil.
func (v *Video) Publication(platform string) *PlatformPublication {
	switch platform {
	case PlatformTikTok:
		return v.TikTok
	case PlatformYouTube:
		return v.YouTube
	}
	return nil
}

// SetPublication stores the sub-record for the given platform.
func (v *Video) SetPublication(platform string, pub *PlatformPublication) {
	switch platform {
	case PlatformTikTok:
		v.TikTok = pub
	case PlatformYouTube:
		v.YouTube = pub
	}
}

// OverallStatus derives the video-level status from the sub-statuses of the
// platforms that were attempted. Both published means published; a mix of
// published and anything else means partial; no successes means failed.
func OverallStatus(attempted []*PlatformPublication) string {
	published := 0
	for _, pub := range attempted {
		if pub != nil && pub.Status == PublicationStatusPublished {
			published++
		}
	}

	switch {
	case len(attempted) == 0:
		return VideoStatusFailed
	case published == len(attempted):
		return VideoStatusPublished
	case published > 0:
		return VideoStatusPartial
	default:
		return VideoStatusFailed
	}
}
