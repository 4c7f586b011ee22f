// Package spotify_client picks playable tracks for music rounds through the
// Spotify web API using the client-credentials flow.
package spotify_client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/encorequiz/encore/go/clients"
)

// SpotifyClient is safe for concurrent use: every room's round fetch and the
// song route share one instance.
type SpotifyClient struct {
	api      *clients.BaseClient
	accounts *clients.BaseClient

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewSpotifyClient(clientID, clientSecret string) *SpotifyClient {
	c := &SpotifyClient{
		api:      clients.NewBaseClient(APIBaseURL),
		accounts: clients.NewBaseClient(AccountsBaseURL),
	}

	creds := base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
	c.accounts.SetHeader(AuthorizationHeader, "Basic "+creds)
	c.accounts.SetHeader(ContentTypeHeader, ContentTypeForm)

	return c
}

// SetBaseURLs points both clients at a test server.
func (c *SpotifyClient) SetBaseURLs(apiURL, accountsURL string) {
	c.api.SetBaseURL(apiURL)
	c.accounts.SetBaseURL(accountsURL)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ensureToken returns a valid Authorization value, refreshing the cached token
// when it is missing or about to expire. The mutex serializes refreshes so
// concurrent callers trigger at most one token request.
func (c *SpotifyClient) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return "Bearer " + c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	body, err := c.accounts.Post(ctx, TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("token response contained no access token")
	}

	c.token = resp.AccessToken
	// Refresh a minute early so in-flight requests never race expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - time.Minute)
	return "Bearer " + c.token, nil
}

type Track struct {
	Title      string
	Artist     string
	Album      string
	PreviewURL string
}

type recommendationsResponse struct {
	Tracks []struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			Name string `json:"name"`
		} `json:"album"`
		PreviewURL string `json:"preview_url"`
	} `json:"tracks"`
}

// RandomTrack picks a random previewable track seeded by genre.
func (c *SpotifyClient) RandomTrack(ctx context.Context, genre string) (*Track, error) {
	auth, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	query := url.Values{
		"seed_genres": {genre},
		"limit":       {"20"},
	}
	body, err := c.api.GetWithHeaders(ctx, RecommendationsEndpoint+"?"+query.Encode(),
		map[string]string{AuthorizationHeader: auth})
	if err != nil {
		return nil, fmt.Errorf("recommendations request failed: %w", err)
	}

	var resp recommendationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}

	playable := make([]*Track, 0, len(resp.Tracks))
	for _, t := range resp.Tracks {
		if t.PreviewURL == "" {
			continue
		}
		artist := ""
		if len(t.Artists) > 0 {
			artist = t.Artists[0].Name
		}
		playable = append(playable, &Track{
			Title:      t.Name,
			Artist:     artist,
			Album:      t.Album.Name,
			PreviewURL: t.PreviewURL,
		})
	}
	if len(playable) == 0 {
		return nil, fmt.Errorf("no previewable tracks for genre %q", genre)
	}

	return playable[rand.Intn(len(playable))], nil
}
