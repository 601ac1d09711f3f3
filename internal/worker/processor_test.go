package worker

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCatalog records SetPayload calls.
type mockCatalog struct {
	gameID int
	path   string
	size   int64
	sha    string
	calls  int
}

func (m *mockCatalog) SetPayload(gameID int, path string, sizeBytes int64, sha256Hex string) error {
	m.gameID = gameID
	m.path = path
	m.size = sizeBytes
	m.sha = sha256Hex
	m.calls++
	return nil
}

func stageFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func stageZip(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("game.exe")
	require.NoError(t, err)
	_, err = w.Write([]byte("binary contents"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func waitForJob(t *testing.T, w *Worker, id, wantState string) JobStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := w.Tracker().Get(id); ok && (s.State == StateDone || s.State == StateFailed) {
			assert.Equal(t, wantState, s.State, "message: %s", s.Message)
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for job %s", id)
	return JobStatus{}
}

func TestPackageZipUpload(t *testing.T) {
	catalog := &mockCatalog{}
	payloadDir := t.TempDir()
	w := NewWorker(catalog, Config{PayloadDir: payloadDir})
	w.Start()
	defer w.Stop()

	staged := stageZip(t)
	job := &PackageJob{ID: "job-1", GameID: 7, StagedPath: staged, OriginalName: "build.zip"}
	require.NoError(t, w.Enqueue(job))
	assert.False(t, job.ReceivedAt.IsZero(), "enqueue stamps the job")

	waitForJob(t, w, "job-1", StateDone)

	assert.Equal(t, 7, catalog.gameID)
	assert.Equal(t, filepath.Join(payloadDir, "game_7.zip"), catalog.path)
	assert.Positive(t, catalog.size)
	assert.Len(t, catalog.sha, 64)

	// Result stays a readable archive.
	r, err := zip.OpenReader(catalog.path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	require.Len(t, r.File, 1)
	assert.Equal(t, "game.exe", r.File[0].Name)

	_, err = os.Stat(staged)
	assert.True(t, os.IsNotExist(err), "staged upload cleaned up")
}

func TestPackageRawFileGetsWrapped(t *testing.T) {
	catalog := &mockCatalog{}
	payloadDir := t.TempDir()
	w := NewWorker(catalog, Config{PayloadDir: payloadDir})
	w.Start()
	defer w.Stop()

	staged := stageFile(t, "upload.bin", []byte("not a zip at all"))
	job := &PackageJob{ID: "job-2", GameID: 3, StagedPath: staged, OriginalName: "../evil/../game.bin", ReceivedAt: time.Now()}
	require.NoError(t, w.Enqueue(job))

	waitForJob(t, w, "job-2", StateDone)

	r, err := zip.OpenReader(catalog.path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	require.Len(t, r.File, 1)
	assert.Equal(t, "game.bin", r.File[0].Name, "entry name sanitized")
}

func TestPackageMissingStagedFileFails(t *testing.T) {
	catalog := &mockCatalog{}
	w := NewWorker(catalog, Config{PayloadDir: t.TempDir()})
	w.Start()
	defer w.Stop()

	job := &PackageJob{ID: "job-3", GameID: 1, StagedPath: filepath.Join(t.TempDir(), "gone.zip"), OriginalName: "gone.zip"}
	require.NoError(t, w.Enqueue(job))

	s := waitForJob(t, w, "job-3", StateFailed)
	assert.NotEmpty(t, s.Message)
	assert.Zero(t, catalog.calls)
}

func TestEnqueueFullQueue(t *testing.T) {
	catalog := &mockCatalog{}
	// Worker never started: the queue only drains by capacity.
	w := NewWorker(catalog, Config{PayloadDir: t.TempDir(), QueueSize: 1})

	first := &PackageJob{ID: "a", GameID: 1, StagedPath: stageZip(t), OriginalName: "a.zip"}
	require.NoError(t, w.Enqueue(first))

	second := &PackageJob{ID: "b", GameID: 2, StagedPath: stageZip(t), OriginalName: "b.zip"}
	err := w.Enqueue(second)
	require.Error(t, err)

	s, ok := w.Tracker().Get("b")
	require.True(t, ok)
	assert.Equal(t, StateFailed, s.State)
}

func TestStatsWhileProcessing(t *testing.T) {
	catalog := &mockCatalog{}
	w := NewWorker(catalog, Config{PayloadDir: t.TempDir()})
	w.Start()
	defer w.Stop()

	// Poll stats the way the health endpoint does, concurrently with jobs.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = w.Stats()
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < 3; i++ {
		job := &PackageJob{
			ID:           string(rune('x' + i)),
			GameID:       i + 1,
			StagedPath:   stageZip(t),
			OriginalName: "build.zip",
		}
		require.NoError(t, w.Enqueue(job))
		waitForJob(t, w, job.ID, StateDone)
	}
	<-done

	stats := w.Stats()
	assert.EqualValues(t, 3, stats.JobsProcessed)
	assert.Zero(t, stats.JobsFailed)
	assert.False(t, stats.LastJobTime.IsZero())
}

func TestSanitizeEntryName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"game.exe", "game.exe"},
		{"dir/sub/game.exe", "game.exe"},
		{`win\path\game.exe`, "game.exe"},
		{"", "payload.bin"},
		{".", "payload.bin"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeEntryName(tt.in), "input %q", tt.in)
	}
}
