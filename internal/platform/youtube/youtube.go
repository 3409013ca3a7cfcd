// Package youtube publishes videos through the YouTube resumable upload
// protocol: an init call that declares metadata and byte length, followed
// by a single upload of the whole body to the returned session URL.
package youtube

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

const defaultUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"

// DefaultCategoryID is "People & Blogs", the category the dashboard uses
// when the operator picks none.
const DefaultCategoryID = "22"

// TokenProvider hands out a valid access token for an account.
type TokenProvider interface {
	Valid(ctx context.Context, account, platform string) (string, error)
}

// Publisher uploads one video to YouTube for one account. It is stateless
// and performs no record-store writes; the orchestrator owns all state.
type Publisher struct {
	client    *http.Client
	tokens    TokenProvider
	media     media.Store
	uploadURL string
	privacy   string
}

// NewPublisher creates a YouTube publisher. privacy is the default privacy
// status for uploads ("public", "unlisted" or "private").
func NewPublisher(tokens TokenProvider, mediaStore media.Store, privacy string) *Publisher {
	if privacy == "" {
		privacy = "public"
	}
	return &Publisher{
		client:    &http.Client{Timeout: 10 * time.Minute},
		tokens:    tokens,
		media:     mediaStore,
		uploadURL: defaultUploadURL,
		privacy:   privacy,
	}
}

type snippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	CategoryID  string   `json:"categoryId"`
}

type status struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
}

type uploadMetadata struct {
	Snippet snippet `json:"snippet"`
	Status  status  `json:"status"`
}

type uploadResponse struct {
	ID string `json:"id"`
}

// Publish runs the two-step resumable upload. A non-success HTTP status at
// either step fails this attempt; the dispatch loop's next tick is the
// retry mechanism.
func (p *Publisher) Publish(ctx context.Context, video *models.Video, data *models.PublishData) (*models.PlatformResult, error) {
	accessToken, err := p.tokens.Valid(ctx, video.Account, models.PlatformYouTube)
	if err != nil {
		return nil, err
	}

	body, err := p.media.ReadFile(ctx, video.MediaRef)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}

	sessionURL, err := p.initUpload(ctx, accessToken, video, data, int64(len(body)))
	if err != nil {
		return nil, err
	}

	videoID, err := p.uploadBody(ctx, accessToken, sessionURL, body)
	if err != nil {
		return nil, err
	}

	return &models.PlatformResult{Success: true, VideoID: videoID}, nil
}

// initUpload declares the video metadata and byte length and returns the
// resumable session URL from the Location header.
func (p *Publisher) initUpload(ctx context.Context, accessToken string, video *models.Video, data *models.PublishData, size int64) (string, error) {
	categoryID := DefaultCategoryID
	if data != nil && data.CategoryID != "" {
		categoryID = data.CategoryID
	}

	meta := uploadMetadata{
		Snippet: snippet{
			Title:       video.Title,
			Description: video.Description,
			Tags:        video.Tags,
			CategoryID:  categoryID,
		},
		Status: status{PrivacyStatus: p.privacy},
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode upload metadata: %w", err)
	}

	url := p.uploadURL + "?uploadType=resumable&part=snippet,status"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(size, 10))
	req.Header.Set("X-Upload-Content-Type", "video/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload init request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError("upload init", resp)
	}

	sessionURL := resp.Header.Get("Location")
	if sessionURL == "" {
		return "", fmt.Errorf("%w: upload init returned no session URL", models.ErrPlatformRejected)
	}
	return sessionURL, nil
}

// uploadBody streams the full media body to the session URL and returns
// the platform-assigned video id.
func (p *Publisher) uploadBody(ctx context.Context, accessToken, sessionURL string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "video/mp4")
	req.ContentLength = int64(len(body))

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError("upload", resp)
	}

	var ur uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if ur.ID == "" {
		return "", fmt.Errorf("%w: upload response carried no video id", models.ErrPlatformRejected)
	}
	return ur.ID, nil
}

func apiError(step string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("%w: %s returned %d: %s", models.ErrPlatformRejected, step, resp.StatusCode, msg)
}
