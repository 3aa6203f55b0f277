package musicbrainz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/vaultify/internal/util"
)

const recordingResponse = `{
	"count": 1,
	"offset": 0,
	"recordings": [
		{
			"id": "r1",
			"title": "Kannalanae",
			"score": 100,
			"artist-credit": [
				{"name": "A.R. Rahman", "joinphrase": " feat. ", "artist": {"id": "a1", "name": "A.R. Rahman"}},
				{"name": "K.S. Chithra", "artist": {"id": "a2", "name": "K.S. Chithra"}}
			],
			"releases": [
				{"id": "rel-bootleg", "title": "Hits", "status": "Bootleg"},
				{"id": "rel-official", "title": "Bombay", "status": "Official"}
			],
			"tags": [{"name": "filmi", "count": 1}, {"name": "soundtrack", "count": 4}]
		}
	]
}`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recording", r.URL.Path)
		assert.Equal(t, "kannalanae", r.URL.Query().Get("query"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(recordingResponse))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.interval = 0

	results, err := c.Search(context.Background(), "kannalanae", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "Kannalanae", results[0].Title)
	assert.Equal(t, "A.R. Rahman feat. K.S. Chithra", results[0].Artist)
	assert.Equal(t, "Bombay", results[0].Album)
	assert.Equal(t, "soundtrack", results[0].Genre)
	assert.Equal(t, "https://coverartarchive.org/release/rel-official/front-250", results[0].CoverURL)
	assert.Equal(t, "MusicBrainz", results[0].Provider)
}

func TestSearch_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.interval = 0

	_, err := c.Search(context.Background(), "kannalanae", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrExternalService))
}

func TestClientRateLimiting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"recordings":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.interval = 50 * time.Millisecond

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), "test", 1)
		require.NoError(t, err)
	}

	// 3 requests need at least 2 intervals
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("Rate limiting not working: 3 requests took only %v", elapsed)
	}
}

func TestClientRateLimiting_Cancelled(t *testing.T) {
	c := NewClient("http://127.0.0.1:0")
	c.interval = time.Hour
	c.lastRequest = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Search(ctx, "test", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
