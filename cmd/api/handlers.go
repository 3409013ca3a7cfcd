package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AliBars19/apollova-publisher/internal/events"
	"github.com/AliBars19/apollova-publisher/internal/metrics"
	"github.com/AliBars19/apollova-publisher/internal/schedule"
	"github.com/AliBars19/apollova-publisher/pkg/models"
)

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if _, err := api.store.List(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Create video endpoint ingests one draft: the media file plus its metadata.
func (api *API) createVideo(c *gin.Context) {
	file, err := c.FormFile("video")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file provided"})
		return
	}

	account := c.PostForm("account")
	if !api.cfg.HasAccount(account) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown account %q", account)})
		return
	}

	title := c.PostForm("title")
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer src.Close()

	id := uuid.New().String()
	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".mp4"
	}
	mediaRef := id + ext

	if err := api.media.WriteFile(c.Request.Context(), mediaRef, src); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to store media: %v", err)})
		return
	}

	video := &models.Video{
		ID:          id,
		Account:     account,
		Title:       title,
		Description: c.PostForm("description"),
		Tags:        tags,
		MediaRef:    mediaRef,
		Status:      models.VideoStatusDraft,
	}

	if err := api.store.Upsert(c.Request.Context(), video); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to create video: %v", err)})
		return
	}

	c.JSON(http.StatusCreated, video)
}

// List videos endpoint, optionally filtered by status and account.
func (api *API) listVideos(c *gin.Context) {
	videos, err := api.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := c.Query("status")
	account := c.Query("account")

	filtered := make([]*models.Video, 0, len(videos))
	for _, v := range videos {
		if status != "" && v.Status != status {
			continue
		}
		if account != "" && v.Account != account {
			continue
		}
		filtered = append(filtered, v)
	}

	c.JSON(http.StatusOK, gin.H{
		"videos": filtered,
		"count":  len(filtered),
	})
}

// Get video endpoint
func (api *API) getVideo(c *gin.Context) {
	video, err := api.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}

	c.JSON(http.StatusOK, video)
}

// Delete video endpoint removes the record and its media file.
func (api *API) deleteVideo(c *gin.Context) {
	videoID := c.Param("id")

	video, err := api.store.Get(c.Request.Context(), videoID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}

	if err := api.media.DeleteFile(c.Request.Context(), video.MediaRef); err != nil {
		api.log.WithVideoID(videoID).ErrorWithErr("Failed to delete media file", err)
		// The record still goes; an orphaned file beats a ghost record
	}

	if err := api.store.Delete(c.Request.Context(), videoID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to delete video: %v", err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Video deleted successfully", "video_id": videoID})
}

// Bulk schedule endpoint books a batch of drafts into the next free hourly
// slots. The batch is either an explicit id list or every draft (optionally
// filtered by account).
func (api *API) bulkSchedule(c *gin.Context) {
	var req struct {
		VideoIDs  []string `json:"video_ids"`
		Account   string   `json:"account"`
		StartDate string   `json:"start_date"`
	}
	// An empty body means schedule everything starting today
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	now := api.now()
	start := now
	if req.StartDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.StartDate, now.Location())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date, expected YYYY-MM-DD"})
			return
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if parsed.Before(today) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date is in the past"})
			return
		}
		start = parsed
	}

	var drafts []*models.Video
	if len(req.VideoIDs) > 0 {
		// Explicit batch: the ids are scheduled in the order given
		for _, id := range req.VideoIDs {
			v, err := api.store.Get(c.Request.Context(), id)
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Video %s not found", id)})
				return
			}
			if v.Status != models.VideoStatusDraft {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Video %s is not a draft", id)})
				return
			}
			drafts = append(drafts, v)
		}
	} else {
		videos, err := api.store.List(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, v := range videos {
			if v.Status != models.VideoStatusDraft {
				continue
			}
			if req.Account != "" && v.Account != req.Account {
				continue
			}
			drafts = append(drafts, v)
		}
	}

	assignments, err := schedule.Assign(drafts, start, now)
	if err != nil {
		if errors.Is(err, models.ErrNoVideosToSchedule) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No videos to schedule"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	for _, v := range drafts {
		if err := api.store.Upsert(c.Request.Context(), v); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to persist schedule: %v", err)})
			return
		}
		api.emitScheduled(c.Request.Context(), v)
	}
	metrics.VideosScheduledTotal.Add(float64(len(assignments)))

	c.JSON(http.StatusOK, models.BulkScheduleSummary{
		TotalScheduled: len(assignments),
		DaysUsed:       schedule.DaysUsed(assignments),
		StartDate:      assignments[0].ScheduledAt.Format("2006-01-02"),
		Assignments:    assignments,
	})
}

// Schedule overview endpoint reports pipeline counts, the upcoming booked
// slots and what remains of today's slot grid.
func (api *API) scheduleOverview(c *gin.Context) {
	videos, err := api.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	draftCount := 0
	scheduledCount := 0
	assignments := make([]models.ScheduleAssignment, 0, len(videos))
	for _, v := range videos {
		switch v.Status {
		case models.VideoStatusDraft:
			draftCount++
		case models.VideoStatusScheduled:
			scheduledCount++
			if v.ScheduledAt != nil {
				assignments = append(assignments, models.ScheduleAssignment{
					VideoID:     v.ID,
					ScheduledAt: *v.ScheduledAt,
				})
			}
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].ScheduledAt.Before(assignments[j].ScheduledAt)
	})

	now := api.now()
	var nextSlot *time.Time
	if slot, ok := schedule.NextAvailableSlot(now); ok {
		nextSlot = &slot
	}

	c.JSON(http.StatusOK, gin.H{
		"draft_count":           draftCount,
		"scheduled_count":       scheduledCount,
		"next_available_slot":   nextSlot,
		"available_slots_today": len(schedule.RemainingSlots(now)),
		"slots_per_day":         schedule.SlotsPerDay,
		"assignments":           assignments,
	})
}

// Schedule video endpoint books one video into an explicit slot.
func (api *API) scheduleVideo(c *gin.Context) {
	var req struct {
		ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !req.ScheduledAt.After(api.now()) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at must be in the future"})
		return
	}

	video, err := api.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
		return
	}

	video.ScheduledAt = &req.ScheduledAt
	video.Status = models.VideoStatusScheduled

	if err := api.store.Upsert(c.Request.Context(), video); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Failed to persist schedule: %v", err)})
		return
	}

	api.emitScheduled(c.Request.Context(), video)
	metrics.VideosScheduledTotal.Inc()

	c.JSON(http.StatusOK, video)
}

// Publish video endpoint runs one orchestrated publish right now.
func (api *API) publishVideo(c *gin.Context) {
	var req models.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := api.orch.Publish(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		if errors.Is(err, models.ErrVideoNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Video not found"})
			return
		}
		if len(req.Platforms()) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Trigger tick endpoint runs one dispatch pass outside the timer.
func (api *API) triggerTick(c *gin.Context) {
	summary := api.loop.Tick(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}

func (api *API) emitScheduled(ctx context.Context, video *models.Video) {
	event := events.Event{
		ID:        uuid.New().String(),
		Name:      events.VideoScheduled,
		VideoID:   video.ID,
		Account:   video.Account,
		Timestamp: api.now(),
		Video:     video,
	}
	if err := api.events.Publish(ctx, event); err != nil {
		api.log.WithVideoID(video.ID).ErrorWithErr("Failed to publish event", err)
	}
}
