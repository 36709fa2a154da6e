package report

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recruitops/atsync/pkg/canonical"
)

func TestRecordCounts(t *testing.T) {
	r := New("run-1", false)
	r.Record(canonical.KindCandidate, OutcomeCreated)
	r.Record(canonical.KindCandidate, OutcomeCreated)
	r.Record(canonical.KindCandidate, OutcomeUpdated)
	r.RecordError(canonical.KindCandidate, OutcomeFailed, Error{
		ExternalID: "gh_candidate_9",
		Op:         "post",
		Reason:     "create_failed",
		Status:     400,
	})

	s := r.Summary(canonical.KindCandidate)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Created)
	assert.Equal(t, 1, s.Updated)
	assert.Equal(t, 1, s.Failed)

	errs := r.Errors(canonical.KindCandidate)
	require.Len(t, errs, 1)
	assert.Equal(t, "gh_candidate_9", errs[0].ExternalID)
}

func TestConcurrentRecording(t *testing.T) {
	r := New("run-1", false)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Record(canonical.KindJob, OutcomeCreated)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800, r.Summary(canonical.KindJob).Total)
}

func TestFlushWritesPerKindFiles(t *testing.T) {
	dir := t.TempDir()

	r := New("run-1", false)
	r.Record(canonical.KindCandidate, OutcomeCreated)
	r.RecordError(canonical.KindApplication, OutcomeFailed, Error{
		ExternalID: "gh_application_11",
		Reason:     "owner_not_found",
		Detail:     "candidate not found at destination",
	})
	require.NoError(t, r.Flush(dir))

	var candFile kindFile
	readJSON(t, filepath.Join(dir, "report_candidate.json"), &candFile)
	assert.Equal(t, "run-1", candFile.RunID)
	assert.Equal(t, 1, candFile.Summary.Created)
	assert.Empty(t, candFile.Errors)

	var appFile kindFile
	readJSON(t, filepath.Join(dir, "report_application.json"), &appFile)
	assert.Equal(t, 1, appFile.Summary.Failed)
	require.Len(t, appFile.Errors, 1)
	assert.Equal(t, "owner_not_found", appFile.Errors[0].Reason)

	var run runFile
	readJSON(t, filepath.Join(dir, "run_report.json"), &run)
	assert.Equal(t, "run-1", run.RunID)
	assert.False(t, run.DryRun)
	assert.Empty(t, run.Aborted)
	assert.Len(t, run.Kinds, 2)
}

func TestFlushMarksDryRunAndAbort(t *testing.T) {
	dir := t.TempDir()

	r := New("run-2", true)
	r.Record(canonical.KindJob, OutcomeCreated)
	r.Aborted("sync cancelled")
	require.NoError(t, r.Flush(dir))

	var run runFile
	readJSON(t, filepath.Join(dir, "run_report.json"), &run)
	assert.True(t, run.DryRun)
	assert.Equal(t, "sync cancelled", run.Aborted)
}

func TestFlushTwiceLastWins(t *testing.T) {
	dir := t.TempDir()

	r := New("run-3", false)
	r.Record(canonical.KindUser, OutcomeCreated)
	require.NoError(t, r.Flush(dir))

	r.Record(canonical.KindUser, OutcomeCreated)
	require.NoError(t, r.Flush(dir))

	var userFile kindFile
	readJSON(t, filepath.Join(dir, "report_user.json"), &userFile)
	assert.Equal(t, 2, userFile.Summary.Created)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
}

func readJSON(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, gojson.Unmarshal(data, v))
}
