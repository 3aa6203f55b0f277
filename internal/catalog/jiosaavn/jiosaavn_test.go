package jiosaavn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/franz/vaultify/internal/meta"
	"github.com/franz/vaultify/internal/util"
)

func TestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/search/songs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "kannalanae a r rahman", r.URL.Query().Get("query"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"data": {
				"total": 2,
				"results": [
					{
						"id": "a1",
						"name": "Kannalanae",
						"language": "tamil",
						"album": {"id": "b1", "name": "Bombay"},
						"artists": {"primary": [{"name": "A.R. Rahman"}, {"name": "K.S. Chithra"}]},
						"image": [
							{"quality": "50x50", "url": "https://img.example/50.jpg"},
							{"quality": "500x500", "url": "https://img.example/500.jpg"}
						]
					},
					{
						"id": "a2",
						"name": "Kannalanae &amp; Reprise",
						"primaryArtists": "A.R. Rahman",
						"album": {"name": "Bombay &quot;Deluxe&quot;"},
						"image": [{"quality": "150x150", "link": "https://img.example/150.jpg"}]
					}
				]
			}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	results, err := c.Search(context.Background(), "kannalanae a r rahman", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "Kannalanae", first.Title)
	assert.Equal(t, "A.R. Rahman, K.S. Chithra", first.Artist)
	assert.Equal(t, "Bombay", first.Album)
	assert.Equal(t, "Tamil", first.Genre)
	assert.Equal(t, "https://img.example/500.jpg", first.CoverURL)
	assert.Equal(t, meta.SourceCatalog, first.Source)
	assert.Equal(t, "JioSaavn", first.Provider)

	second := results[1]
	assert.Equal(t, "Kannalanae & Reprise", second.Title)
	assert.Equal(t, "A.R. Rahman", second.Artist)
	assert.Equal(t, `Bombay "Deluxe"`, second.Album)
	assert.Equal(t, "https://img.example/150.jpg", second.CoverURL)
}

func TestSearch_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"results":[{"name":"a"},{"name":"b"},{"name":"c"}]}}`))
	}))
	defer srv.Close()

	results, err := New(srv.URL).Search(context.Background(), "x", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Search(context.Background(), "x", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrExternalService))
}

func TestSearch_EmptyQuery(t *testing.T) {
	results, err := New("http://127.0.0.1:0").Search(context.Background(), "  ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestName(t *testing.T) {
	assert.Equal(t, "jiosaavn", New("").Name())
}

func TestGenreFor(t *testing.T) {
	tests := []struct {
		language string
		expected string
	}{
		{"tamil", "Tamil"},
		{" hindi ", "Hindi"},
		{"", ""},
		{"தமிழ்", "தமிழ்"},
		{"ébène", "Ébène"},
	}

	for _, tt := range tests {
		got := genreFor(tt.language)
		assert.Equal(t, tt.expected, got, "genreFor(%q)", tt.language)
		assert.True(t, utf8.ValidString(got), "genreFor(%q) is not valid UTF-8", tt.language)
	}
}
