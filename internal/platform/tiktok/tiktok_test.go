package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliBars19/apollova-publisher/internal/media"
	"github.com/AliBars19/apollova-publisher/pkg/models"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Valid(ctx context.Context, account, platform string) (string, error) {
	return s.token, s.err
}

// tiktokStub fakes the init, chunk upload and status endpoints.
type tiktokStub struct {
	t             *testing.T
	initCalls     int
	chunkRanges   []string
	uploaded      []byte
	status        string
	failReason    string
	postIDs       []int64
	statusErrCode int
}

func (s *tiktokStub) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/post/publish/video/init/":
			s.initCalls++
			assert.Equal(s.t, "Bearer tok", r.Header.Get("Authorization"))

			var req initRequest
			require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(s.t, "FILE_UPLOAD", req.SourceInfo.Source)

			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]string{
					"publish_id": "pub-42",
					"upload_url": "http://" + r.Host + "/upload",
				},
				"error": map[string]string{"code": "ok"},
			})
		case "/upload":
			s.chunkRanges = append(s.chunkRanges, r.Header.Get("Content-Range"))
			b, err := io.ReadAll(r.Body)
			require.NoError(s.t, err)
			s.uploaded = append(s.uploaded, b...)
			w.WriteHeader(http.StatusCreated)
		case "/v2/post/publish/status/fetch/":
			if s.statusErrCode != 0 {
				w.WriteHeader(s.statusErrCode)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"status":                      s.status,
					"fail_reason":                 s.failReason,
					"publicaly_available_post_id": s.postIDs,
				},
				"error": map[string]string{"code": "ok"},
			})
		default:
			s.t.Fatalf("unexpected request %s %s", r.Method, r.URL)
		}
	}
}

func newTestPublisher(t *testing.T, stub *tiktokStub, body []byte) (*Publisher, *models.Video) {
	t.Helper()

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), body, 0o644))

	p := NewPublisher(staticTokens{token: "tok"}, media.NewLocalStore(dir))
	p.baseURL = server.URL
	p.statusDelay = 0

	video := &models.Video{
		ID:       "vid-1",
		Account:  "apollova",
		Title:    "My clip",
		MediaRef: "clip.mp4",
	}
	return p, video
}

func TestPublishComplete(t *testing.T) {
	content := []byte("fake-video-bytes")
	stub := &tiktokStub{t: t, status: statusComplete, postIDs: []int64{7345678901234567890}}
	p, video := newTestPublisher(t, stub, content)

	result, err := p.Publish(context.Background(), video, nil)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "pub-42", result.PublishID)
	assert.Equal(t, "7345678901234567890", result.PostID)
	assert.Equal(t, content, stub.uploaded)
	assert.Equal(t, []string{fmt.Sprintf("bytes 0-%d/%d", len(content)-1, len(content))}, stub.chunkRanges)
}

func TestPublishChunksLargeBody(t *testing.T) {
	// 25 MiB splits into two full chunks plus a 5 MiB remainder
	size := 25 * 1024 * 1024
	content := make([]byte, size)
	stub := &tiktokStub{t: t, status: statusComplete}
	p, video := newTestPublisher(t, stub, content)

	result, err := p.Publish(context.Background(), video, nil)
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Len(t, stub.chunkRanges, 3)
	assert.Equal(t, fmt.Sprintf("bytes 0-%d/%d", ChunkSize-1, size), stub.chunkRanges[0])
	assert.Equal(t, fmt.Sprintf("bytes %d-%d/%d", ChunkSize, 2*ChunkSize-1, size), stub.chunkRanges[1])
	assert.Equal(t, fmt.Sprintf("bytes %d-%d/%d", 2*ChunkSize, size-1, size), stub.chunkRanges[2])
	assert.Len(t, stub.uploaded, size)
}

func TestPublishNonTerminalStatusIsOptimistic(t *testing.T) {
	stub := &tiktokStub{t: t, status: "PROCESSING_UPLOAD"}
	p, video := newTestPublisher(t, stub, []byte("x"))

	result, err := p.Publish(context.Background(), video, nil)
	require.NoError(t, err)

	// Moderation may still finish later, so the upload counts as published
	assert.True(t, result.Success)
	assert.Equal(t, "pub-42", result.PublishID)
	assert.Empty(t, result.PostID)
}

func TestPublishStatusFetchErrorIsOptimistic(t *testing.T) {
	stub := &tiktokStub{t: t, statusErrCode: http.StatusInternalServerError}
	p, video := newTestPublisher(t, stub, []byte("x"))

	result, err := p.Publish(context.Background(), video, nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "pub-42", result.PublishID)
}

func TestPublishFailedStatus(t *testing.T) {
	stub := &tiktokStub{t: t, status: statusFailed, failReason: "video_format_check_failed"}
	p, video := newTestPublisher(t, stub, []byte("x"))

	_, err := p.Publish(context.Background(), video, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPlatformRejected)
	assert.Contains(t, err.Error(), "video_format_check_failed")
}

func TestPublishInitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{},
			"error": map[string]string{
				"code":    "spam_risk_too_many_posts",
				"message": "daily post cap reached",
			},
		})
	}))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("x"), 0o644))
	p := NewPublisher(staticTokens{token: "tok"}, media.NewLocalStore(dir))
	p.baseURL = server.URL
	p.statusDelay = 0

	_, err := p.Publish(context.Background(), &models.Video{MediaRef: "clip.mp4"}, nil)
	assert.ErrorIs(t, err, models.ErrPlatformRejected)
	assert.Contains(t, err.Error(), "spam_risk_too_many_posts")
}

func TestPublishDataMapsToPostInfo(t *testing.T) {
	var info postInfo
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/post/publish/video/init/":
			var req initRequest
			json.NewDecoder(r.Body).Decode(&req)
			info = req.PostInfo
			json.NewEncoder(w).Encode(map[string]any{
				"data":  map[string]string{"publish_id": "p", "upload_url": "http://" + r.Host + "/upload"},
				"error": map[string]string{"code": "ok"},
			})
		case "/upload":
			w.WriteHeader(http.StatusCreated)
		default:
			json.NewEncoder(w).Encode(map[string]any{
				"data":  map[string]any{"status": statusComplete},
				"error": map[string]string{"code": "ok"},
			})
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("x"), 0o644))
	p := NewPublisher(staticTokens{token: "tok"}, media.NewLocalStore(dir))
	p.baseURL = server.URL
	p.statusDelay = 0

	_, err := p.Publish(context.Background(), &models.Video{Title: "T", MediaRef: "clip.mp4"}, &models.PublishData{
		PrivacyLevel:         "SELF_ONLY",
		DisableComment:       true,
		CommercialContentOwn: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "SELF_ONLY", info.PrivacyLevel)
	assert.True(t, info.DisableComment)
	assert.True(t, info.BrandOrganicToggle)
	assert.False(t, info.BrandContentToggle)
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		size int64
		want int
	}{
		{size: 1, want: 1},
		{size: ChunkSize, want: 1},
		{size: ChunkSize + 1, want: 2},
		{size: 3*ChunkSize - 1, want: 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, chunkCount(tt.size), "size %d", tt.size)
	}
}

func TestPublishTokenErrorPropagates(t *testing.T) {
	p := NewPublisher(staticTokens{err: models.ErrCredentialsMissing}, media.NewLocalStore(t.TempDir()))

	_, err := p.Publish(context.Background(), &models.Video{MediaRef: "clip.mp4"}, nil)
	assert.ErrorIs(t, err, models.ErrCredentialsMissing)
}
