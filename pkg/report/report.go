// Package report accumulates per-run outcome counts and error details and
// persists them as JSON report files, one per kind plus a run summary.
// A Report is safe for concurrent use; all mutation goes through its mutex
// so counts never lose increments under parallel workers.
package report

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/recruitops/atsync/pkg/canonical"
	"github.com/recruitops/atsync/pkg/errors"
)

// Outcome labels a record's terminal state within a run.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// KindSummary holds the counters for one kind.
type KindSummary struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Error is one failed or skipped record with its reason. Detail carries
// free-form context: the response body, the missing reference, the field
// name.
type Error struct {
	ExternalID string `json:"external_id"`
	Op         string `json:"op,omitempty"`
	Reason     string `json:"reason"`
	Status     int    `json:"status,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Report is the mutable run report. Construct with New, record outcomes
// during the run, Flush at the end (and on abort, so partial progress is
// never lost).
type Report struct {
	mu sync.Mutex

	runID      string
	dryRun     bool
	startedAt  time.Time
	finishedAt time.Time
	aborted    string

	summaries map[canonical.Kind]*KindSummary
	errs      map[canonical.Kind][]Error
}

// New creates an empty report for a run.
func New(runID string, dryRun bool) *Report {
	return &Report{
		runID:     runID,
		dryRun:    dryRun,
		startedAt: time.Now().UTC(),
		summaries: make(map[canonical.Kind]*KindSummary),
		errs:      make(map[canonical.Kind][]Error),
	}
}

func (r *Report) summary(kind canonical.Kind) *KindSummary {
	s := r.summaries[kind]
	if s == nil {
		s = &KindSummary{}
		r.summaries[kind] = s
	}
	return s
}

// Record tallies one outcome.
func (r *Report) Record(kind canonical.Kind, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.summary(kind)
	s.Total++
	switch outcome {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// RecordError tallies a failure or skip together with its error entry.
func (r *Report) RecordError(kind canonical.Kind, outcome Outcome, e Error) {
	r.Record(kind, outcome)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs[kind] = append(r.errs[kind], e)
}

// Aborted marks the run as cut short, with the cause.
func (r *Report) Aborted(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted = reason
}

// Summary returns a copy of one kind's counters.
func (r *Report) Summary(kind canonical.Kind) KindSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.summaries[kind]; s != nil {
		return *s
	}
	return KindSummary{}
}

// Errors returns a copy of one kind's error entries.
func (r *Report) Errors(kind canonical.Kind) []Error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Error, len(r.errs[kind]))
	copy(out, r.errs[kind])
	return out
}

// kindFile is the per-kind report file layout.
type kindFile struct {
	RunID   string      `json:"run_id"`
	Kind    string      `json:"kind"`
	DryRun  bool        `json:"dry_run,omitempty"`
	Summary KindSummary `json:"summary"`
	Errors  []Error     `json:"errors"`
}

// runFile is the run summary file layout.
type runFile struct {
	RunID      string                           `json:"run_id"`
	DryRun     bool                             `json:"dry_run,omitempty"`
	StartedAt  time.Time                        `json:"started_at"`
	FinishedAt time.Time                        `json:"finished_at"`
	Aborted    string                           `json:"aborted,omitempty"`
	Kinds      map[canonical.Kind]*KindSummary  `json:"kinds"`
}

// Flush writes the per-kind report files plus the run summary into dir.
// Each file goes through a temp file and rename, so a crash mid-flush
// leaves either the previous report or the new one, never a torn file.
// Flush is safe to call more than once; the last call wins.
func (r *Report) Flush(dir string) error {
	r.mu.Lock()
	r.finishedAt = time.Now().UTC()

	files := make(map[string]interface{}, len(r.summaries)+1)
	for kind, s := range r.summaries {
		errList := r.errs[kind]
		if errList == nil {
			errList = []Error{}
		}
		files["report_"+string(kind)+".json"] = &kindFile{
			RunID:   r.runID,
			Kind:    string(kind),
			DryRun:  r.dryRun,
			Summary: *s,
			Errors:  errList,
		}
	}
	files["run_report.json"] = &runFile{
		RunID:      r.runID,
		DryRun:     r.dryRun,
		StartedAt:  r.startedAt,
		FinishedAt: r.finishedAt,
		Aborted:    r.aborted,
		Kinds:      r.summaries,
	}
	r.mu.Unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "create report directory")
	}
	for name, v := range files {
		if err := writeJSON(filepath.Join(dir, name), v); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := gojson.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode report")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "write report")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "finalize report")
	}
	return nil
}
