package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliBars19/apollova-publisher/pkg/models"
)

func newTestProvider(t *testing.T) (*Provider, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	provider := NewProvider(store,
		ClientCredentials{ClientID: "yt-id", ClientSecret: "yt-secret"},
		ClientCredentials{ClientID: "tt-key", ClientSecret: "tt-secret"},
	)
	return provider, store
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))

	_, ok, err := store.Get("apollova", models.PlatformTikTok)
	require.NoError(t, err)
	assert.False(t, ok)

	token := Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
		OpenID:       "open-123",
	}
	require.NoError(t, store.Put("apollova", models.PlatformTikTok, token))

	got, ok, err := store.Get("apollova", models.PlatformTikTok)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "open-123", got.OpenID)
	assert.True(t, got.ExpiresAt.Equal(token.ExpiresAt))
}

func TestValidReturnsFreshTokenWithoutRefresh(t *testing.T) {
	provider, store := newTestProvider(t)

	require.NoError(t, store.Put("apollova", models.PlatformYouTube, Token{
		AccessToken:  "fresh",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))

	got, err := provider.Valid(context.Background(), "apollova", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got)
}

func TestValidRefreshesNearExpiry(t *testing.T) {
	provider, store := newTestProvider(t)

	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "renewed",
			"expires_in":   3600,
		})
	}))
	defer server.Close()
	provider.youtubeTokenURL = server.URL

	// Expires inside the refresh buffer, so Valid must hit the endpoint
	require.NoError(t, store.Put("apollova", models.PlatformYouTube, Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(2 * time.Minute),
	}))

	got, err := provider.Valid(context.Background(), "apollova", models.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, "renewed", got)

	assert.Equal(t, "refresh_token", form["grant_type"][0])
	assert.Equal(t, "refresh-1", form["refresh_token"][0])
	assert.Equal(t, "yt-id", form["client_id"][0])
	assert.Equal(t, "yt-secret", form["client_secret"][0])

	// The renewed grant is persisted; Google does not rotate refresh tokens
	stored, ok, err := store.Get("apollova", models.PlatformYouTube)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "renewed", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestValidPersistsRotatedTikTokRefreshToken(t *testing.T) {
	provider, store := newTestProvider(t)

	var form map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "renewed",
			"refresh_token": "rotated",
			"expires_in":    86400,
			"open_id":       "open-456",
		})
	}))
	defer server.Close()
	provider.tiktokTokenURL = server.URL

	require.NoError(t, store.Put("apollova", models.PlatformTikTok, Token{
		AccessToken:  "stale",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))

	got, err := provider.Valid(context.Background(), "apollova", models.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, "renewed", got)

	// TikTok sends client_key, not client_id
	assert.Equal(t, "tt-key", form["client_key"][0])

	stored, _, err := store.Get("apollova", models.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, "rotated", stored.RefreshToken)
	assert.Equal(t, "open-456", stored.OpenID)
}

func TestValidMissingCredentials(t *testing.T) {
	provider, _ := newTestProvider(t)

	_, err := provider.Valid(context.Background(), "apollova", models.PlatformYouTube)
	assert.ErrorIs(t, err, models.ErrCredentialsMissing)
}

func TestValidExpiredWithoutRefreshToken(t *testing.T) {
	provider, store := newTestProvider(t)

	require.NoError(t, store.Put("apollova", models.PlatformYouTube, Token{
		AccessToken: "stale",
		ExpiresAt:   time.Now().Add(-time.Hour),
	}))

	_, err := provider.Valid(context.Background(), "apollova", models.PlatformYouTube)
	assert.ErrorIs(t, err, models.ErrCredentialsMissing)
}

func TestValidRefreshEndpointError(t *testing.T) {
	provider, store := newTestProvider(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"revoked"}`))
	}))
	defer server.Close()
	provider.youtubeTokenURL = server.URL

	require.NoError(t, store.Put("apollova", models.PlatformYouTube, Token{
		AccessToken:  "stale",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}))

	_, err := provider.Valid(context.Background(), "apollova", models.PlatformYouTube)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestIsExpired(t *testing.T) {
	provider, store := newTestProvider(t)

	assert.True(t, provider.IsExpired("apollova", models.PlatformYouTube))

	require.NoError(t, store.Put("apollova", models.PlatformYouTube, Token{
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))
	assert.False(t, provider.IsExpired("apollova", models.PlatformYouTube))

	// Inside the refresh buffer counts as expired
	require.NoError(t, store.Put("apollova", models.PlatformYouTube, Token{
		AccessToken: "a",
		ExpiresAt:   time.Now().Add(time.Minute),
	}))
	assert.True(t, provider.IsExpired("apollova", models.PlatformYouTube))
}
