package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"placesweep/internal/config"
	"placesweep/internal/here"
	"placesweep/internal/store"
	"placesweep/internal/sweep"
)

// setupWorkspace writes a config pointing at baseURL and sets the global
// flags to use it.
func setupWorkspace(t *testing.T, baseURL string) string {
	t.Helper()
	logger = zap.NewNop()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.HERE.BaseURL = baseURL
	cfg.HERE.MinInterval = "0s"
	cfg.Store.Path = filepath.Join(dir, "places.db")
	cfg.Export.OutputDir = filepath.Join(dir, "out")
	require.NoError(t, cfg.Save(filepath.Join(dir, "placesweep.yaml")))

	t.Setenv("HERE_API_KEY", "test-key")
	configPath = filepath.Join(dir, "placesweep.yaml")
	dbPath = ""
	timeout = 0
	t.Cleanup(func() {
		configPath = config.DefaultPath
		scrapeBBox, scrapeSkipTo, scrapeCategories = "", "", nil
		exportFormats, exportOut, exportName = nil, "", "places"
	})
	return dir
}

// fakeHERE answers browse requests with n places per cell, ids unique per cell.
func fakeHERE(t *testing.T, n int, failAfter int32) *httptest.Server {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/browse", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		c := atomic.AddInt32(&calls, 1)
		if failAfter > 0 && c > failAfter {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, "try later")
			return
		}
		in := r.URL.Query().Get("in")
		items := make([]string, n)
		for i := range items {
			items[i] = fmt.Sprintf(`{"id":"%s-%d","title":"Place %d","position":[52.5,13.4],"category":{"id":"eat-drink","title":"Eat & Drink"}}`, in, i, i)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":{"items":[`+strings.Join(items, ",")+`]}}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeStoresPlaces(t *testing.T) {
	srv := fakeHERE(t, 3, 0)
	dir := setupWorkspace(t, srv.URL)
	scrapeBBox = "13.0,52.0,14.0,53.0"

	output := captureOutput(t, func() {
		if err := runScrape(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runScrape failed: %v", err)
		}
	})
	assert.Contains(t, output, "Requests made: 9")
	assert.Contains(t, output, "New places: 27")

	st, err := store.Open("sqlite3", filepath.Join(dir, "places.db"))
	require.NoError(t, err)
	defer st.Close()
	n, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 27, n)

	runs, err := st.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunComplete, runs[0].Status)
	assert.Equal(t, 9, runs[0].Requests)
}

func TestScrapeAbortPrintsResumeHint(t *testing.T) {
	srv := fakeHERE(t, 1, 4)
	dir := setupWorkspace(t, srv.URL)
	scrapeBBox = "13.0,52.0,14.0,53.0"

	var runErr error
	output := captureOutput(t, func() {
		runErr = runScrape(&cobra.Command{}, nil)
	})
	require.Error(t, runErr)
	assert.True(t, errors.Is(runErr, here.ErrStatus))
	var abort *sweep.AbortError
	require.True(t, errors.As(runErr, &abort))
	assert.Equal(t, sweep.Path{4}, abort.At)
	assert.Contains(t, output, `--skip-to "3,9"`)

	st, err := store.Open("sqlite3", filepath.Join(dir, "places.db"))
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.RecentRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, store.RunAborted, runs[0].Status)
	assert.Equal(t, "3,9", runs[0].ResumePath)
}

func TestScrapeRequiresCredentials(t *testing.T) {
	setupWorkspace(t, "http://127.0.0.1:1")
	t.Setenv("HERE_API_KEY", "")
	scrapeBBox = "13.0,52.0,14.0,53.0"

	err := runScrape(&cobra.Command{}, nil)
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestScrapeRejectsBadInput(t *testing.T) {
	setupWorkspace(t, "http://127.0.0.1:1")

	scrapeBBox = "14,52,13,53"
	assert.Error(t, runScrape(&cobra.Command{}, nil))

	scrapeBBox = "13,52,14,53"
	scrapeSkipTo = "1,x"
	assert.Error(t, runScrape(&cobra.Command{}, nil))
}

func TestExportAndStats(t *testing.T) {
	srv := fakeHERE(t, 2, 0)
	dir := setupWorkspace(t, srv.URL)
	scrapeBBox = "13.0,52.0,14.0,53.0"

	captureOutput(t, func() {
		require.NoError(t, runScrape(&cobra.Command{}, nil))
	})

	exportFormats = []string{"ndjson", "csv"}
	output := captureOutput(t, func() {
		if err := runExport(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runExport failed: %v", err)
		}
	})
	assert.Contains(t, output, "ndjson")

	data, err := os.ReadFile(filepath.Join(dir, "out", "places.ndjson"))
	require.NoError(t, err)
	assert.Equal(t, 18, bytes.Count(data, []byte("\n")))

	data, err = os.ReadFile(filepath.Join(dir, "out", "places.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,title,lat,lng,"))

	output = captureOutput(t, func() {
		if err := runStats(&cobra.Command{}, nil); err != nil {
			t.Fatalf("runStats failed: %v", err)
		}
	})
	assert.Contains(t, output, "Places")
	assert.Contains(t, output, "18")
	assert.Contains(t, output, "complete")
}

func TestExportUnknownFormat(t *testing.T) {
	setupWorkspace(t, "http://127.0.0.1:1")
	exportFormats = []string{"parquet"}
	err := runExport(&cobra.Command{}, nil)
	assert.Error(t, err)
}

func TestDBFlagOverridesConfig(t *testing.T) {
	setupWorkspace(t, "http://127.0.0.1:1")
	dbPath = filepath.Join(t.TempDir(), "other.db")
	defer func() { dbPath = "" }()

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, dbPath, cfg.Store.Path)
}

func TestConfigInit(t *testing.T) {
	logger = zap.NewNop()
	configPath = filepath.Join(t.TempDir(), "placesweep.yaml")
	defer func() { configPath = config.DefaultPath }()

	output := captureOutput(t, func() {
		require.NoError(t, runConfigInit(&cobra.Command{}, nil))
	})
	assert.Contains(t, output, "Wrote")

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Sweep.Rows)

	output = captureOutput(t, func() {
		require.NoError(t, runConfigInit(&cobra.Command{}, nil))
	})
	assert.Contains(t, output, "already exists")
}

func TestRenderStatsNoRuns(t *testing.T) {
	out := renderStats("places.db", "sqlite", 0, nil)
	assert.Contains(t, out, "none")
	assert.Contains(t, out, "places.db")
	assert.Contains(t, out, "sqlite")
}

func TestRenderStatsAbortedRun(t *testing.T) {
	out := renderStats("places.db", "sqlite3", 5, []store.Run{{
		StartedAt: time.Unix(1700000000, 0), Status: store.RunAborted,
		ResumePath: "2,9", Error: "boom", BBox: "0,0,1,1",
	}})
	assert.Contains(t, out, "aborted")
	assert.Contains(t, out, `"2,9"`)
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
