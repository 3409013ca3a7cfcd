// Package events fans publish-lifecycle events out to interested
// consumers, primarily the admin dashboard's live view.
package events

import (
	"context"
	"time"

	"github.com/AliBars19/apollova-publisher/pkg/models"
)

// Event names emitted by the publishing core.
const (
	VideoScheduled = "video.scheduled"
	VideoPublished = "video.published"
	VideoPartial   = "video.partial"
	VideoFailed    = "video.failed"
)

// Event is the envelope delivered to consumers.
type Event struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	VideoID   string    `json:"video_id"`
	Account   string    `json:"account"`
	Timestamp time.Time `json:"timestamp"`
	Video     any       `json:"video,omitempty"`
}

// Publisher delivers lifecycle events. Delivery is best-effort; the
// publishing pipeline never blocks or fails on an event error.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventName maps a final video status to its lifecycle event.
func EventName(status string) string {
	switch status {
	case models.VideoStatusPublished:
		return VideoPublished
	case models.VideoStatusPartial:
		return VideoPartial
	default:
		return VideoFailed
	}
}

// Noop discards every event, for deployments without a broker.
type Noop struct{}

func (Noop) Publish(ctx context.Context, event Event) error { return nil }
