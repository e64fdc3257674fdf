package shorts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPexelsServer fakes the search endpoint and serves "clip-<query>" as the
// body of each download.
func newPexelsServer(t *testing.T, seen *[]*http.Request) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/videos/search", func(w http.ResponseWriter, r *http.Request) {
		*seen = append(*seen, r)
		q := r.URL.Query().Get("query")
		if q == "nothing" {
			json.NewEncoder(w).Encode(searchResponse{})
			return
		}
		if q == "quota" {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		resp := searchResponse{Page: 1, PerPage: 3, Videos: []Video{{
			ID: 42,
			VideoFiles: []VideoFile{
				{ID: 1, Width: 720, Height: 1280, Link: srv.URL + "/files/sd/" + q},
				{ID: 2, Width: 1080, Height: 1920, Link: srv.URL + "/files/hd/" + q},
			},
		}}}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "clip-%s", filepath.Base(r.URL.Path))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestPexelsClient_SearchRequest(t *testing.T) {
	var seen []*http.Request
	srv := newPexelsServer(t, &seen)

	cfg := testConfig(t)
	cfg.PexelsBaseURL = srv.URL + "/"
	client := NewPexelsClient(cfg)

	videos, err := client.Search(context.Background(), "mountain lake")
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Len(t, videos[0].VideoFiles, 2)

	require.Len(t, seen, 1)
	r := seen[0]
	assert.Equal(t, "p-key", r.Header.Get("Authorization"))
	assert.Equal(t, "mountain lake", r.URL.Query().Get("query"))
	assert.Equal(t, "3", r.URL.Query().Get("per_page"))
	assert.Equal(t, "portrait", r.URL.Query().Get("orientation"))
}

func TestPexelsClient_SearchErrors(t *testing.T) {
	var seen []*http.Request
	srv := newPexelsServer(t, &seen)
	cfg := testConfig(t)
	cfg.PexelsBaseURL = srv.URL
	client := NewPexelsClient(cfg)

	videos, err := client.Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, videos)

	_, err = client.Search(context.Background(), "quota")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestPexelsClient_Download(t *testing.T) {
	var seen []*http.Request
	srv := newPexelsServer(t, &seen)
	client := NewPexelsClient(testConfig(t))

	dest := filepath.Join(t.TempDir(), "temp_x.mp4")
	require.NoError(t, client.Download(context.Background(), srv.URL+"/files/hd/x", dest))

	body, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "clip-x", string(body))

	err = client.Download(context.Background(), srv.URL+"/missing", filepath.Join(t.TempDir(), "y.mp4"))
	assert.Error(t, err)
}

func TestFetch_AgainstPexelsServer(t *testing.T) {
	var seen []*http.Request
	srv := newPexelsServer(t, &seen)

	cfg := testConfig(t)
	cfg.PexelsBaseURL = srv.URL
	probe := fakeProber{
		"clip-surf":  {Width: 1080, Height: 1920, DurationSeconds: 6},
		"clip-waves": {Width: 1920, Height: 1080, DurationSeconds: 4},
	}

	fetcher := NewAssetFetcher(cfg, NewPexelsClient(cfg), probe)
	res, err := fetcher.Fetch(context.Background(), []string{"surf", "nothing", "quota", "waves"})
	require.NoError(t, err)

	require.Len(t, res.Clips, 2)
	assert.Equal(t, "surf", res.Clips[0].SourceQuery)
	assert.Equal(t, "waves", res.Clips[1].SourceQuery)
	assert.Equal(t, 1080, res.Clips[1].Width)
	for _, path := range res.Created {
		assert.True(t, strings.HasPrefix(filepath.Base(path), "temp_"))
	}
	for _, c := range res.Clips {
		assert.FileExists(t, c.Path)
		assert.NoFileExists(t, stagingPath(c.Path))
	}
	assert.Len(t, seen, 4)
}
