package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogging(t *testing.T) {
	t.Helper()
	CloseAll()
	CloseAudit()
	optsMu.Lock()
	opts = Options{}
	optsMu.Unlock()
	t.Cleanup(func() {
		CloseAll()
		CloseAudit()
		optsMu.Lock()
		opts = Options{}
		optsMu.Unlock()
	})
}

func TestProductionModeIsNoop(t *testing.T) {
	resetLogging(t)
	dir := filepath.Join(t.TempDir(), "logs")

	require.NoError(t, Initialize(Options{Level: "debug", Dir: dir}))
	assert.False(t, IsDebugMode())

	Sweep("should not be written %d", 1)
	Get(CategoryStore).Error("nor this")

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "logs dir must not be created outside debug mode")
}

func TestCategoryFiles(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(Options{Level: "debug", Format: "json", DebugMode: true, Dir: dir}))
	Sweep("subdivision %s", "0,1")
	StoreDebug("inserted %d", 3)
	API("following page %d", 2)
	ExportDebug("writing %s", "csv")
	BootDebug("store driver=%s", "sqlite3")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	for _, cat := range []Category{CategoryBoot, CategorySweep, CategoryStore, CategoryAPI, CategoryExport} {
		data, err := os.ReadFile(filepath.Join(dir, date+"_"+string(cat)+".log"))
		require.NoError(t, err, "category %s", cat)
		assert.NotEmpty(t, data)
	}

	data, err := os.ReadFile(filepath.Join(dir, date+"_sweep.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "subdivision 0,1")
}

func TestCategoryFilter(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(Options{
		DebugMode:  true,
		Dir:        dir,
		Categories: map[string]bool{"api": false},
	}))

	assert.False(t, IsCategoryEnabled(CategoryAPI))
	assert.True(t, IsCategoryEnabled(CategorySweep), "unlisted categories default to enabled")

	API("dropped")
	CloseAll()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), "_api.log"), "api log should not exist")
	}
}

func TestLevelFiltering(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(Options{Level: "warn", DebugMode: true, Dir: dir}))
	Get(CategoryExport).Info("quiet")
	Get(CategoryExport).Warn("loud")
	CloseAll()

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+"_export.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestAuditLog(t *testing.T) {
	resetLogging(t)
	dir := t.TempDir()

	require.NoError(t, Initialize(Options{DebugMode: true, Dir: dir}))
	require.NoError(t, InitAudit())

	a := Audit("run-1")
	a.SweepStart("1,2,3,4", "")
	a.Request("0", "1,2,3,4", 12, 15*time.Millisecond, nil)
	a.Insert("0", 12, 10)
	a.SweepEnd(1, 12, 10, nil)
	CloseAudit()

	data, err := os.ReadFile(filepath.Join(dir, "audit.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"sweep_start"`)
	assert.Contains(t, lines[1], `"run":"run-1"`)
	assert.Contains(t, lines[2], `"new":10`)
}

func TestAuditDisabledOutsideDebugMode(t *testing.T) {
	resetLogging(t)
	require.NoError(t, Initialize(Options{}))
	require.NoError(t, InitAudit())

	// must not panic
	Audit("x").Request("0", "", 0, 0, nil)
}

func TestTimer(t *testing.T) {
	resetLogging(t)
	timer := StartTimer(CategoryStore, "op")
	assert.GreaterOrEqual(t, int64(timer.StopWithThreshold(time.Hour)), int64(0))
}
