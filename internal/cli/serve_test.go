package cli

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/admincache/internal/config"
	"github.com/roach88/admincache/internal/model"
)

func newTestServer(t *testing.T, seed string) *httptest.Server {
	t.Helper()
	return newTestServerWithSchema(t, seed, "")
}

func newTestServerWithSchema(t *testing.T, seed, schema string) *httptest.Server {
	t.Helper()
	cfg := config.New()
	cfg.Store.Path = filepath.Join(t.TempDir(), "serve.db")
	if schema != "" {
		cfg.Schema.Path = schema
	}
	opts := &ServeOptions{RootOptions: &RootOptions{}, Seed: seed}

	srv, closeStore, err := opts.newServer(t.Context(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		closeStore()
	})
	return ts
}

func TestServe_SeededList(t *testing.T) {
	ts := newTestServer(t, "testdata/seed.yaml")

	q := url.Values{}
	q.Set("sort", `["id","ASC"]`)
	q.Set("range", `[0,1]`)
	resp, err := http.Get(ts.URL + "/api/posts?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "posts 0-1/3", resp.Header.Get("Content-Range"))
	var recs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "first", recs[0]["title"])
}

func TestServe_DeleteCascades(t *testing.T) {
	ts := newTestServerWithSchema(t, "testdata/seed.yaml", "testdata/cascade.cue")

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/posts/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/comments")
	require.NoError(t, err)
	defer resp.Body.Close()
	var recs []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&recs))
	assert.Empty(t, recs)
}

func TestServe_BadSchema(t *testing.T) {
	cfg := config.New()
	cfg.Store.Path = filepath.Join(t.TempDir(), "serve.db")
	cfg.Schema.Path = "testdata/syntax_error.cue"
	opts := &ServeOptions{RootOptions: &RootOptions{}}

	_, _, err := opts.newServer(t.Context(), cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServe_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestServe_BadSeed(t *testing.T) {
	cfg := config.New()
	cfg.Store.Path = filepath.Join(t.TempDir(), "serve.db")
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte("posts:\n  - {title: no id}\n"), 0644))

	opts := &ServeOptions{RootOptions: &RootOptions{}, Seed: seed}
	_, _, err := opts.newServer(t.Context(), cfg, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "posts[0]")
}

func TestReadSeed_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"users":[{"id":"u1","name":"ada"}]}`), 0644))

	seed, err := readSeed(path)
	require.NoError(t, err)
	require.Len(t, seed["users"], 1)
	id, err := seed["users"][0].ID()
	require.NoError(t, err)
	assert.Equal(t, model.ID("u1"), id)
}

func TestReadSeed_Errors(t *testing.T) {
	_, err := readSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading seed file")

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("posts: 3\n"), 0644))
	_, err = readSeed(path)
	assert.ErrorContains(t, err, "parsing seed file")
}
