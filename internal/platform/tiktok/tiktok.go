// Package tiktok publishes videos through the TikTok direct-post protocol:
// an init call declaring total size and chunking, a sequence of byte-range
// chunk uploads, and one status poll after a short delay.
//
// A poll that comes back anything other than complete is reported as a
// success carrying only the publish id: TikTok's moderation pipeline is
// asynchronous and routinely finishes after this call returns.
package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/AliBars19/apollova-publisher/internal/media"
	"github.com/AliBars19/apollova-publisher/pkg/models"
)

const defaultBaseURL = "https://open.tiktokapis.com"

const (
	// MaxVideoSize is TikTok's hard ceiling; larger uploads are rejected
	// locally before any network call.
	MaxVideoSize = 4 << 30 // 4 GiB

	// ChunkSize is the fixed upload chunk size; the last chunk carries the
	// remainder.
	ChunkSize = 10 * 1024 * 1024 // 10 MiB

	statusComplete = "PUBLISH_COMPLETE"
	statusFailed   = "FAILED"
)

// TokenProvider hands out a valid access token for an account.
type TokenProvider interface {
	Valid(ctx context.Context, account, platform string) (string, error)
}

// Publisher uploads one video to TikTok for one account. Stateless; all
// record-store writes belong to the orchestrator.
type Publisher struct {
	client      *http.Client
	tokens      TokenProvider
	media       media.Store
	baseURL     string
	statusDelay time.Duration
}

// NewPublisher creates a TikTok publisher.
func NewPublisher(tokens TokenProvider, mediaStore media.Store) *Publisher {
	return &Publisher{
		client:      &http.Client{Timeout: 10 * time.Minute},
		tokens:      tokens,
		media:       mediaStore,
		baseURL:     defaultBaseURL,
		statusDelay: 5 * time.Second,
	}
}

type postInfo struct {
	Title                 string `json:"title"`
	PrivacyLevel          string `json:"privacy_level"`
	DisableComment        bool   `json:"disable_comment"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableStitch         bool   `json:"disable_stitch"`
	BrandContentToggle    bool   `json:"brand_content_toggle"`
	BrandOrganicToggle    bool   `json:"brand_organic_toggle"`
	VideoCoverTimestampMs int    `json:"video_cover_timestamp_ms,omitempty"`
}

type sourceInfo struct {
	Source          string `json:"source"`
	VideoSize       int64  `json:"video_size"`
	ChunkSize       int64  `json:"chunk_size"`
	TotalChunkCount int    `json:"total_chunk_count"`
}

type initRequest struct {
	PostInfo   postInfo   `json:"post_info"`
	SourceInfo sourceInfo `json:"source_info"`
}

type apiEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type initData struct {
	PublishID string `json:"publish_id"`
	UploadURL string `json:"upload_url"`
}

type statusData struct {
	Status                   string  `json:"status"`
	FailReason               string  `json:"fail_reason"`
	PubliclyAvailablePostIDs []int64 `json:"publicaly_available_post_id"`
	UploadedBytes            int64   `json:"uploaded_bytes"`
	DownloadedBytes          int64   `json:"downloaded_bytes"`
}

// Publish runs the three-step chunked upload protocol.
func (p *Publisher) Publish(ctx context.Context, video *models.Video, data *models.PublishData) (*models.PlatformResult, error) {
	accessToken, err := p.tokens.Valid(ctx, video.Account, models.PlatformTikTok)
	if err != nil {
		return nil, err
	}

	body, err := p.media.ReadFile(ctx, video.MediaRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	size := int64(len(body))
	if size > MaxVideoSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", models.ErrSizeExceeded, size, int64(MaxVideoSize))
	}

	init, err := p.initUpload(ctx, accessToken, video, data, size)
	if err != nil {
		return nil, err
	}

	if err := p.uploadChunks(ctx, init.UploadURL, body); err != nil {
		return nil, err
	}

	// The platform processes the upload asynchronously; one short poll
	// catches fast completions, everything else stays optimistic.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(p.statusDelay):
	}

	st, err := p.fetchStatus(ctx, accessToken, init.PublishID)
	if err != nil {
		return &models.PlatformResult{Success: true, PublishID: init.PublishID}, nil
	}

	switch st.Status {
	case statusComplete:
		result := &models.PlatformResult{Success: true, PublishID: init.PublishID}
		if len(st.PubliclyAvailablePostIDs) > 0 {
			result.PostID = strconv.FormatInt(st.PubliclyAvailablePostIDs[0], 10)
		}
		return result, nil
	case statusFailed:
		return nil, fmt.Errorf("%w: publish failed: %s", models.ErrPlatformRejected, st.FailReason)
	default:
		// Accepted, moderation still running.
		return &models.PlatformResult{Success: true, PublishID: init.PublishID}, nil
	}
}

func chunkCount(size int64) int {
	n := int(size / ChunkSize)
	if size%ChunkSize != 0 {
		n++
	}
	if n == 0 {
		n = 1
	}
	return n
}

func (p *Publisher) initUpload(ctx context.Context, accessToken string, video *models.Video, opts *models.PublishData, size int64) (*initData, error) {
	info := postInfo{
		Title:        video.Title,
		PrivacyLevel: "PUBLIC_TO_EVERYONE",
	}
	if opts != nil {
		if opts.PrivacyLevel != "" {
			info.PrivacyLevel = opts.PrivacyLevel
		}
		info.DisableComment = opts.DisableComment
		info.DisableDuet = opts.DisableDuet
		info.DisableStitch = opts.DisableStitch
		info.BrandOrganicToggle = opts.CommercialContentOwn
		info.BrandContentToggle = opts.CommercialContentPaid
	}

	reqBody := initRequest{
		PostInfo: info,
		SourceInfo: sourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       size,
			ChunkSize:       ChunkSize,
			TotalChunkCount: chunkCount(size),
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode init request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v2/post/publish/video/init/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload init request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("upload init", resp)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode init response: %w", err)
	}
	if env.Error.Code != "" && env.Error.Code != "ok" {
		return nil, fmt.Errorf("%w: upload init error %s: %s", models.ErrPlatformRejected, env.Error.Code, env.Error.Message)
	}

	var init initData
	if err := json.Unmarshal(env.Data, &init); err != nil {
		return nil, fmt.Errorf("failed to decode init data: %w", err)
	}
	if init.UploadURL == "" || init.PublishID == "" {
		return nil, fmt.Errorf("%w: upload init returned no upload URL", models.ErrPlatformRejected)
	}
	return &init, nil
}

// uploadChunks streams the body to the upload URL in sequential fixed-size
// byte ranges.
func (p *Publisher) uploadChunks(ctx context.Context, uploadURL string, body []byte) error {
	total := int64(len(body))
	for start := int64(0); start < total; start += ChunkSize {
		end := start + ChunkSize
		if end > total {
			end = total
		}
		chunk := body[start:end]

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(chunk))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "video/mp4")
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end-1, total))
		req.ContentLength = int64(len(chunk))

		resp, err := p.client.Do(req)
		if err != nil {
			return fmt.Errorf("chunk upload request failed: %w", err)
		}

		// 201 for intermediate chunks, 200/201 when the final chunk lands.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated &&
			resp.StatusCode != http.StatusPartialContent {
			err := apiError("chunk upload", resp)
			resp.Body.Close()
			return err
		}
		resp.Body.Close()
	}
	return nil
}

func (p *Publisher) fetchStatus(ctx context.Context, accessToken, publishID string) (*statusData, error) {
	payload, err := json.Marshal(map[string]string{"publish_id": publishID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v2/post/publish/status/fetch/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("status fetch", resp)
	}

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	var st statusData
	if err := json.Unmarshal(env.Data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode status data: %w", err)
	}
	return &st, nil
}

func apiError(step string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("%w: %s returned %d: %s", models.ErrPlatformRejected, step, resp.StatusCode, msg)
}
