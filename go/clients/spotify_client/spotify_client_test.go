package spotify_client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, tokenRequests *atomic.Int32, apiHandler http.HandlerFunc) *SpotifyClient {
	t.Helper()

	accounts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests.Add(1)
		assert.NotEmpty(t, r.Header.Get(AuthorizationHeader))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "test-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(accounts.Close)

	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	c := NewSpotifyClient("id", "secret")
	c.SetBaseURLs(api.URL, accounts.URL)
	return c
}

func recommendationsHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get(AuthorizationHeader))
		json.NewEncoder(w).Encode(map[string]any{
			"tracks": []map[string]any{
				{
					"name":        "No Preview",
					"preview_url": "",
					"artists":     []map[string]string{{"name": "Ghost"}},
					"album":       map[string]string{"name": "Silent"},
				},
				{
					"name":        "Song A",
					"preview_url": "https://example.com/a.mp3",
					"artists":     []map[string]string{{"name": "Artist"}},
					"album":       map[string]string{"name": "Album"},
				},
			},
		})
	}
}

func TestRandomTrack_PicksPreviewableTrack(t *testing.T) {
	var tokenRequests atomic.Int32
	c := newTestClient(t, &tokenRequests, recommendationsHandler(t))

	track, err := c.RandomTrack(context.Background(), "rock")
	require.NoError(t, err)
	assert.Equal(t, "Song A", track.Title)
	assert.Equal(t, "Artist", track.Artist)
	assert.Equal(t, "https://example.com/a.mp3", track.PreviewURL)
}

func TestRandomTrack_ConcurrentCallsShareOneToken(t *testing.T) {
	var tokenRequests atomic.Int32
	c := newTestClient(t, &tokenRequests, recommendationsHandler(t))

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			track, err := c.RandomTrack(context.Background(), "rock")
			assert.NoError(t, err)
			assert.NotNil(t, track)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, tokenRequests.Load())
}

func TestRandomTrack_NoPreviewableTracks(t *testing.T) {
	var tokenRequests atomic.Int32
	c := newTestClient(t, &tokenRequests, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"tracks": []map[string]any{}})
	})

	_, err := c.RandomTrack(context.Background(), "polka")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "polka")
}
