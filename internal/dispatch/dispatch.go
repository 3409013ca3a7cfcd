// Package dispatch runs the background loop that publishes scheduled
// videos when their slot arrives. Each tick drains at most a handful of
// due videos, respecting per-account daily quotas, so a backlog bleeds
// out gradually instead of flooding the platforms.
package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AliBars19/apollova-publisher/internal/logging"
	"github.com/AliBars19/apollova-publisher/internal/metrics"
	"github.com/AliBars19/apollova-publisher/internal/quota"
	"github.com/AliBars19/apollova-publisher/internal/store"
	"github.com/AliBars19/apollova-publisher/pkg/models"
)

// VideoPublisher runs one orchestrated publish.
type VideoPublisher interface {
	Publish(ctx context.Context, videoID string, req models.PublishRequest) (*models.PublishResult, error)
}

// Options tune the loop. Zero values fall back to the defaults the
// dashboard was built around.
type Options struct {
	TickInterval time.Duration
	PerTickCap   int
	DailyQuota   int
	PublishDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = 5 * time.Minute
	}
	if o.PerTickCap <= 0 {
		o.PerTickCap = 1
	}
	if o.DailyQuota <= 0 {
		o.DailyQuota = 12
	}
	if o.PublishDelay < 0 {
		o.PublishDelay = 0
	}
	return o
}

// TickSummary reports what one tick did.
type TickSummary struct {
	Skipped      bool `json:"skipped"`
	Due          int  `json:"due"`
	Published    int  `json:"published"`
	QuotaSkipped int  `json:"quota_skipped"`
}

// Loop owns the dispatch ticker. Start and Stop are idempotent; ticks
// never overlap, a tick arriving while the previous one still runs is
// dropped.
type Loop struct {
	store     store.VideoStore
	publisher VideoPublisher
	quota     quota.Tracker
	log       *logging.Logger
	opts      Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	tickMu  sync.Mutex
	tickSeq uint64

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewLoop wires a dispatch loop.
func NewLoop(videoStore store.VideoStore, publisher VideoPublisher, tracker quota.Tracker, log *logging.Logger, opts Options) *Loop {
	return &Loop{
		store:     videoStore,
		publisher: publisher,
		quota:     tracker,
		log:       log,
		opts:      opts.withDefaults(),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// Start launches the ticker goroutine. Calling Start on a running loop
// does nothing.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.stop = make(chan struct{})
	l.done = make(chan struct{})

	go l.run(ctx, l.stop, l.done)
	l.log.Infof("Dispatch loop started, ticking every %s", l.opts.TickInterval)
}

// Stop halts the ticker and waits for an in-flight tick to finish.
// Calling Stop on a stopped loop does nothing.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stop)
	done := l.done
	l.mu.Unlock()

	<-done
	l.log.Info("Dispatch loop stopped")
}

func (l *Loop) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one dispatch pass. It is safe to call concurrently with the
// ticker; the overlapping call is dropped and reported as skipped.
func (l *Loop) Tick(ctx context.Context) TickSummary {
	if !l.tickMu.TryLock() {
		metrics.RecordTick("skipped_overlap", -1)
		l.log.Warn("Dispatch tick skipped, previous tick still running")
		return TickSummary{Skipped: true}
	}
	defer l.tickMu.Unlock()

	l.tickSeq++
	log := l.log.WithTick(l.tickSeq)

	summary := l.drain(ctx, log)
	metrics.RecordTick("completed", summary.Due)

	if summary.Due > 0 {
		log.Infof("Dispatch tick done: %d due, %d published, %d quota-deferred",
			summary.Due, summary.Published, summary.QuotaSkipped)
	}
	return summary
}

func (l *Loop) drain(ctx context.Context, log *logging.Logger) TickSummary {
	var summary TickSummary

	due, err := l.dueVideos(ctx)
	if err != nil {
		log.ErrorWithErr("Failed to list scheduled videos", err)
		return summary
	}
	summary.Due = len(due)

	for i := 0; i < len(due) && summary.Published < l.opts.PerTickCap; i++ {
		video := due[i]

		count, err := l.quota.CountToday(ctx, video.Account)
		if err != nil {
			log.WithVideoID(video.ID).ErrorWithErr("Failed to read quota", err)
			continue
		}
		if count >= l.opts.DailyQuota {
			// Deferred, not failed; the video stays scheduled and does
			// not consume this tick's cap.
			summary.QuotaSkipped++
			metrics.RecordQuotaSkip(video.Account)
			log.WithVideoID(video.ID).WithAccount(video.Account).
				Debugf("Daily quota reached (%d), deferring", count)
			continue
		}

		if summary.Published > 0 {
			l.sleep(ctx, l.opts.PublishDelay)
		}
		if ctx.Err() != nil {
			return summary
		}

		if _, err := l.publisher.Publish(ctx, video.ID, models.PublishRequest{Platform: models.PlatformBoth}); err != nil {
			log.WithVideoID(video.ID).ErrorWithErr("Dispatch publish failed", err)
		}
		summary.Published++
	}

	return summary
}

// dueVideos returns scheduled videos whose slot has passed, oldest slot
// first.
func (l *Loop) dueVideos(ctx context.Context) ([]*models.Video, error) {
	videos, err := l.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := l.now()
	due := make([]*models.Video, 0, len(videos))
	for _, v := range videos {
		if v.Status != models.VideoStatusScheduled || v.ScheduledAt == nil {
			continue
		}
		if v.ScheduledAt.After(now) {
			continue
		}
		due = append(due, v)
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(*due[j].ScheduledAt)
	})
	return due, nil
}
