package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AliBars19/apollova-publisher/pkg/models"
)

// Tokens are refreshed when they expire within this buffer, so an upload
// that starts just before expiry never runs with a stale token.
const expiryBuffer = 5 * time.Minute

// Default OAuth token-refresh endpoints.
const (
	YouTubeTokenURL = "https://oauth2.googleapis.com/token"
	TikTokTokenURL  = "https://open.tiktokapis.com/v2/oauth/token/"
)

// ClientCredentials is one platform's app registration.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

// Provider hands out valid access tokens for account/platform pairs.
type Provider struct {
	store   *FileStore
	client  *http.Client
	youtube ClientCredentials
	tiktok  ClientCredentials

	youtubeTokenURL string
	tiktokTokenURL  string

	now func() time.Time
}

// NewProvider creates a token provider over the given store.
func NewProvider(store *FileStore, youtube, tiktok ClientCredentials) *Provider {
	return &Provider{
		store:           store,
		client:          &http.Client{Timeout: 30 * time.Second},
		youtube:         youtube,
		tiktok:          tiktok,
		youtubeTokenURL: YouTubeTokenURL,
		tiktokTokenURL:  TikTokTokenURL,
		now:             time.Now,
	}
}

// IsExpired reports whether the stored token for the account and platform
// is missing or within the refresh buffer of its expiry.
func (p *Provider) IsExpired(account, platform string) bool {
	t, ok, err := p.store.Get(account, platform)
	if err != nil || !ok {
		return true
	}
	return p.now().After(t.ExpiresAt.Add(-expiryBuffer))
}

// Valid returns an access token for the account and platform, refreshing
// through the platform's OAuth endpoint when the stored token is near
// expiry and persisting the rotated grant.
func (p *Provider) Valid(ctx context.Context, account, platform string) (string, error) {
	t, ok, err := p.store.Get(account, platform)
	if err != nil {
		return "", err
	}
	if !ok || t.RefreshToken == "" && t.AccessToken == "" {
		return "", fmt.Errorf("%w: %s/%s", models.ErrCredentialsMissing, account, platform)
	}

	if p.now().Before(t.ExpiresAt.Add(-expiryBuffer)) {
		return t.AccessToken, nil
	}
	if t.RefreshToken == "" {
		return "", fmt.Errorf("%w: %s/%s token expired with no refresh token", models.ErrCredentialsMissing, account, platform)
	}

	refreshed, err := p.refresh(ctx, platform, t)
	if err != nil {
		return "", fmt.Errorf("failed to refresh %s token for %s: %w", platform, account, err)
	}
	if err := p.store.Put(account, platform, refreshed); err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	OpenID           string `json:"open_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p *Provider) refresh(ctx context.Context, platform string, t Token) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", t.RefreshToken)

	var endpoint string
	switch platform {
	case models.PlatformYouTube:
		endpoint = p.youtubeTokenURL
		form.Set("client_id", p.youtube.ClientID)
		form.Set("client_secret", p.youtube.ClientSecret)
	case models.PlatformTikTok:
		endpoint = p.tiktokTokenURL
		form.Set("client_key", p.tiktok.ClientID)
		form.Set("client_secret", p.tiktok.ClientSecret)
	default:
		return Token{}, fmt.Errorf("unknown platform %q", platform)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Token{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.Error != "" {
		return Token{}, fmt.Errorf("token endpoint error %s: %s", tr.Error, tr.ErrorDescription)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("token endpoint returned no access token")
	}

	refreshed := Token{
		AccessToken:  tr.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    p.now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		OpenID:       t.OpenID,
	}
	// TikTok rotates refresh tokens on every refresh.
	if tr.RefreshToken != "" {
		refreshed.RefreshToken = tr.RefreshToken
	}
	if tr.OpenID != "" {
		refreshed.OpenID = tr.OpenID
	}
	return refreshed, nil
}
