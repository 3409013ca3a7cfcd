// Package publish orchestrates one video's journey to its platforms:
// per-platform upload attempts, status derivation, quota accounting and
// cleanup of fully published records.
package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AliBars19/apollova-publisher/internal/events"
	"github.com/AliBars19/apollova-publisher/internal/logging"
	"github.com/AliBars19/apollova-publisher/internal/media"
	"github.com/AliBars19/apollova-publisher/internal/metrics"
	"github.com/AliBars19/apollova-publisher/internal/quota"
	"github.com/AliBars19/apollova-publisher/internal/store"
	"github.com/AliBars19/apollova-publisher/internal/tracing"
	"github.com/AliBars19/apollova-publisher/pkg/models"
	"github.com/google/uuid"
)

// PlatformPublisher uploads one video to one platform.
type PlatformPublisher interface {
	Publish(ctx context.Context, video *models.Video, data *models.PublishData) (*models.PlatformResult, error)
}

// Orchestrator coordinates publishes across platforms. All record writes
// for a publish happen under one mutex so concurrent publishes of
// different videos cannot interleave read-modify-write cycles.
type Orchestrator struct {
	mu         sync.Mutex
	store      store.VideoStore
	media      media.Store
	quota      quota.Tracker
	events     events.Publisher
	log        *logging.Logger
	publishers map[string]PlatformPublisher
	now        func() time.Time
}

// NewOrchestrator wires an orchestrator. The publishers map is keyed by
// platform identifier.
func NewOrchestrator(videoStore store.VideoStore, mediaStore media.Store, tracker quota.Tracker, eventPub events.Publisher, log *logging.Logger, publishers map[string]PlatformPublisher) *Orchestrator {
	if eventPub == nil {
		eventPub = events.Noop{}
	}
	return &Orchestrator{
		store:      videoStore,
		media:      mediaStore,
		quota:      tracker,
		events:     eventPub,
		log:        log,
		publishers: publishers,
		now:        time.Now,
	}
}

// Publish attempts the requested platforms for one video. Platform
// failures are captured in the result, not returned; the only errors
// returned are an unknown video, an invalid platform selector, or a
// store write failure.
func (o *Orchestrator) Publish(ctx context.Context, videoID string, req models.PublishRequest) (*models.PublishResult, error) {
	platforms := req.Platforms()
	if len(platforms) == 0 {
		return nil, fmt.Errorf("invalid platform %q", req.Platform)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	span, ctx := tracing.StartSpan(ctx, "publish.video")
	defer span.Finish()
	tracing.SetTag(span, "video.id", videoID)
	tracing.SetTag(span, "platform", req.Platform)

	video, err := o.store.Get(ctx, videoID)
	if err != nil {
		tracing.LogError(span, err)
		return nil, err
	}
	tracing.SetTag(span, "account", video.Account)

	// A video with a published sub-record already consumed a quota slot on
	// its first counted outcome; retries must not consume another.
	alreadyCounted := hasPublishedPublication(video)

	start := o.now()
	video.Status = models.VideoStatusPublishing
	if err := o.store.Upsert(ctx, video); err != nil {
		tracing.LogError(span, err)
		return nil, fmt.Errorf("failed to mark video publishing: %w", err)
	}

	size, err := o.media.Size(ctx, video.MediaRef)
	if err != nil {
		size = 0
	}

	results := make(map[string]*models.PlatformResult, len(platforms))
	attempted := make([]*models.PlatformPublication, 0, len(platforms))
	for _, platform := range platforms {
		pub := o.attempt(ctx, video, platform, req.PublishData, size)
		video.SetPublication(platform, pub)
		attempted = append(attempted, pub)
		results[platform] = resultFromPublication(pub)
	}

	video.Status = models.OverallStatus(attempted)
	duration := o.now().Sub(start)

	if !alreadyCounted && (video.Status == models.VideoStatusPublished || video.Status == models.VideoStatusPartial) {
		if err := o.quota.Record(ctx, video.Account, o.now()); err != nil {
			o.log.WithVideoID(video.ID).ErrorWithErr("Failed to record quota", err)
		}
	}

	result := &models.PublishResult{Video: video, Results: results}

	if video.Status == models.VideoStatusPublished {
		// Every requested platform accepted the upload, so the media and
		// its record have served their purpose.
		if err := o.cleanup(ctx, video); err != nil {
			o.log.WithVideoID(video.ID).ErrorWithErr("Failed to clean up published video", err)
		} else {
			result.Cleaned = true
			result.Video = nil
			metrics.VideosCleanedTotal.Inc()
		}
	}

	if !result.Cleaned {
		if err := o.store.Upsert(ctx, video); err != nil {
			tracing.LogError(span, err)
			return nil, fmt.Errorf("failed to persist publish outcome: %w", err)
		}
	}

	o.emit(ctx, video, result.Cleaned)
	o.log.LogPublishOutcome(video.ID, video.Account, video.Status, result.Cleaned, duration)
	tracing.SetTag(span, "status", video.Status)

	return result, nil
}

// attempt runs one platform publisher and folds its outcome into a
// publication sub-record. Errors never escape; they become the
// publication's failed state.
func (o *Orchestrator) attempt(ctx context.Context, video *models.Video, platform string, data *models.PublishData, size int64) *models.PlatformPublication {
	// A platform that already went through keeps its record untouched.
	if prev := video.Publication(platform); prev != nil && prev.Status == models.PublicationStatusPublished {
		return prev
	}

	publisher, ok := o.publishers[platform]
	if !ok {
		return &models.PlatformPublication{
			Status: models.PublicationStatusFailed,
			Error:  fmt.Sprintf("no publisher configured for %s", platform),
		}
	}

	span, ctx := tracing.StartSpan(ctx, "publish."+platform)
	defer span.Finish()

	start := o.now()
	res, err := publisher.Publish(ctx, video, data)
	duration := o.now().Sub(start).Seconds()

	if err != nil {
		tracing.LogError(span, err)
		metrics.RecordPublishAttempt(platform, "failure", duration, size)
		o.log.WithVideoID(video.ID).WithPlatform(platform).ErrorWithErr("Platform publish failed", err)
		return &models.PlatformPublication{
			Status: models.PublicationStatusFailed,
			Error:  err.Error(),
		}
	}

	metrics.RecordPublishAttempt(platform, "success", duration, size)
	publishedAt := o.now()
	return &models.PlatformPublication{
		Status:      models.PublicationStatusPublished,
		VideoID:     res.VideoID,
		PublishID:   res.PublishID,
		PostID:      res.PostID,
		PublishedAt: &publishedAt,
	}
}

// cleanup removes the media file first, then the record. A media delete
// failure leaves the record in place so the next look at the store still
// explains what happened.
func (o *Orchestrator) cleanup(ctx context.Context, video *models.Video) error {
	if err := o.media.DeleteFile(ctx, video.MediaRef); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	if err := o.store.Delete(ctx, video.ID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (o *Orchestrator) emit(ctx context.Context, video *models.Video, cleaned bool) {
	event := events.Event{
		ID:        uuid.New().String(),
		Name:      events.EventName(video.Status),
		VideoID:   video.ID,
		Account:   video.Account,
		Timestamp: o.now(),
	}
	if !cleaned {
		event.Video = video
	}
	if err := o.events.Publish(ctx, event); err != nil {
		o.log.WithVideoID(video.ID).ErrorWithErr("Failed to publish event", err)
	}
}

// hasPublishedPublication reports whether any platform sub-record is
// already published. Quota counts videos, not attempts, so this marks a
// video that has been counted before.
func hasPublishedPublication(v *models.Video) bool {
	for _, pub := range []*models.PlatformPublication{v.TikTok, v.YouTube} {
		if pub != nil && pub.Status == models.PublicationStatusPublished {
			return true
		}
	}
	return false
}

func resultFromPublication(pub *models.PlatformPublication) *models.PlatformResult {
	return &models.PlatformResult{
		Success:   pub.Status == models.PublicationStatusPublished,
		VideoID:   pub.VideoID,
		PublishID: pub.PublishID,
		PostID:    pub.PostID,
		Error:     pub.Error,
	}
}
