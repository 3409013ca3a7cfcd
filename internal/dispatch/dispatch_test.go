package dispatch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliBars19/apollova-publisher/internal/logging"
	"github.com/AliBars19/apollova-publisher/internal/quota"
	"github.com/AliBars19/apollova-publisher/internal/store"
	"github.com/AliBars19/apollova-publisher/pkg/models"
)

type fakePublisher struct {
	published []string
	store     store.VideoStore
}

func (f *fakePublisher) Publish(ctx context.Context, videoID string, req models.PublishRequest) (*models.PublishResult, error) {
	f.published = append(f.published, videoID)
	// Mimic the orchestrator's cleanup of a fully published video
	if err := f.store.Delete(ctx, videoID); err != nil {
		return nil, err
	}
	return &models.PublishResult{Cleaned: true, Results: map[string]*models.PlatformResult{}}, nil
}

func newTestLoop(t *testing.T, opts Options) (*Loop, *store.JSONStore, *fakePublisher, *quota.MemoryTracker) {
	t.Helper()

	videoStore := store.NewJSONStore(filepath.Join(t.TempDir(), "videos.json"))
	publisher := &fakePublisher{store: videoStore}
	tracker := quota.NewMemoryTracker()

	log, err := logging.NewDefaultLogger()
	require.NoError(t, err)

	loop := NewLoop(videoStore, publisher, tracker, log, opts)
	loop.sleep = func(ctx context.Context, d time.Duration) {}
	return loop, videoStore, publisher, tracker
}

func seed(t *testing.T, s store.VideoStore, id, account string, scheduledAt time.Time) {
	t.Helper()
	require.NoError(t, s.Upsert(context.Background(), &models.Video{
		ID:          id,
		Account:     account,
		Title:       id,
		MediaRef:    id + ".mp4",
		Status:      models.VideoStatusScheduled,
		ScheduledAt: &scheduledAt,
	}))
}

func TestTickPublishesEarliestDueVideo(t *testing.T) {
	loop, videoStore, publisher, _ := newTestLoop(t, Options{PerTickCap: 1})

	now := time.Now()
	seed(t, videoStore, "late", "apollova", now.Add(-10*time.Minute))
	seed(t, videoStore, "early", "apollova-clips", now.Add(-2*time.Hour))
	seed(t, videoStore, "future", "apollova", now.Add(3*time.Hour))

	summary := loop.Tick(context.Background())

	assert.False(t, summary.Skipped)
	assert.Equal(t, 2, summary.Due)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, []string{"early"}, publisher.published)

	// The future video is untouched
	v, err := videoStore.Get(context.Background(), "future")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusScheduled, v.Status)
}

func TestTickIgnoresUnscheduledVideos(t *testing.T) {
	loop, videoStore, publisher, _ := newTestLoop(t, Options{})

	past := time.Now().Add(-time.Hour)
	require.NoError(t, videoStore.Upsert(context.Background(), &models.Video{
		ID: "draft", Account: "apollova", Status: models.VideoStatusDraft,
	}))
	require.NoError(t, videoStore.Upsert(context.Background(), &models.Video{
		ID: "failed", Account: "apollova", Status: models.VideoStatusFailed, ScheduledAt: &past,
	}))

	summary := loop.Tick(context.Background())
	assert.Equal(t, 0, summary.Due)
	assert.Empty(t, publisher.published)
}

func TestTickQuotaSkipDoesNotConsumeCap(t *testing.T) {
	loop, videoStore, publisher, tracker := newTestLoop(t, Options{PerTickCap: 1, DailyQuota: 2})

	// Account A is at its quota; its earlier video must defer to B's
	ctx := context.Background()
	require.NoError(t, tracker.Record(ctx, "acct-a", time.Now()))
	require.NoError(t, tracker.Record(ctx, "acct-a", time.Now()))

	now := time.Now()
	seed(t, videoStore, "a-vid", "acct-a", now.Add(-2*time.Hour))
	seed(t, videoStore, "b-vid", "acct-b", now.Add(-time.Hour))

	summary := loop.Tick(ctx)

	assert.Equal(t, 1, summary.QuotaSkipped)
	assert.Equal(t, 1, summary.Published)
	assert.Equal(t, []string{"b-vid"}, publisher.published)

	// The deferred video stays scheduled for a later tick
	v, err := videoStore.Get(ctx, "a-vid")
	require.NoError(t, err)
	assert.Equal(t, models.VideoStatusScheduled, v.Status)
}

func TestTickHonorsPerTickCap(t *testing.T) {
	loop, videoStore, publisher, _ := newTestLoop(t, Options{PerTickCap: 2})

	now := time.Now()
	seed(t, videoStore, "v1", "apollova", now.Add(-3*time.Hour))
	seed(t, videoStore, "v2", "apollova", now.Add(-2*time.Hour))
	seed(t, videoStore, "v3", "apollova", now.Add(-1*time.Hour))

	summary := loop.Tick(context.Background())

	assert.Equal(t, 3, summary.Due)
	assert.Equal(t, 2, summary.Published)
	assert.Equal(t, []string{"v1", "v2"}, publisher.published)
}

func TestTickSkipsWhenPreviousTickRunning(t *testing.T) {
	loop, _, _, _ := newTestLoop(t, Options{})

	loop.tickMu.Lock()
	defer loop.tickMu.Unlock()

	summary := loop.Tick(context.Background())
	assert.True(t, summary.Skipped)
}

func TestStartStopIdempotent(t *testing.T) {
	loop, _, _, _ := newTestLoop(t, Options{TickInterval: time.Hour})

	ctx := context.Background()
	loop.Start(ctx)
	loop.Start(ctx) // second Start is a no-op

	loop.Stop()
	loop.Stop() // second Stop is a no-op
}
