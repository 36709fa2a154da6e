// Package source pulls raw entity snapshots out of the source ATS and
// persists them as JSON files, one per collection. Fetching and
// normalization are separate steps so a snapshot can be re-normalized
// offline without hammering the source API again.
package source

import (
	"context"
	"os"
	"path/filepath"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/normalize"
	"github.com/recruitops/atsync/pkg/paginate"
)

// collections maps snapshot names to source listing endpoints, in fetch
// order.
var collections = []struct {
	name string
	path string
}{
	{normalize.CollUsers, "/v1/users"},
	{normalize.CollCandidates, "/v1/candidates"},
	{normalize.CollJobs, "/v1/jobs"},
	{normalize.CollApps, "/v1/applications"},
	{normalize.CollInterviews, "/v1/scheduled_interviews"},
	{normalize.CollScorecards, "/v1/scorecards"},
	{normalize.CollOffers, "/v1/offers"},
}

// Fetcher drains source listing endpoints into snapshot files.
type Fetcher struct {
	pag    *paginate.Paginator
	dir    string
	logger *zap.Logger
}

// NewFetcher creates a fetcher writing snapshots under dir.
func NewFetcher(pag *paginate.Paginator, dir string, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		pag:    pag,
		dir:    dir,
		logger: logger.With(zap.String("component", "fetcher")),
	}
}

// FetchAll pulls every collection and writes one snapshot file each. The
// returned snapshot is ready for the normalizer. A failure on any
// collection aborts the fetch; a partial snapshot set on disk is safe to
// re-fetch over.
func (f *Fetcher) FetchAll(ctx context.Context) (normalize.Snapshot, error) {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "create snapshot directory")
	}

	snap := make(normalize.Snapshot, len(collections))
	for _, coll := range collections {
		records, err := f.pag.FetchAll(ctx, coll.path)
		if err != nil {
			return nil, errors.Wrap(err, errors.TypeOf(err), "fetch "+coll.name)
		}
		f.logger.Info("collection fetched",
			zap.String("collection", coll.name),
			zap.Int("records", len(records)))

		if err := f.writeSnapshot(coll.name, records); err != nil {
			return nil, err
		}
		snap[coll.name] = records
	}
	return snap, nil
}

func (f *Fetcher) writeSnapshot(name string, records []paginate.RawRecord) error {
	if records == nil {
		records = []paginate.RawRecord{}
	}
	data, err := gojson.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode snapshot "+name)
	}
	path := filepath.Join(f.dir, name+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "write snapshot "+name)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "finalize snapshot "+name)
	}
	return nil
}

// LoadSnapshot reads a snapshot set back from dir. Missing collection
// files load as empty; the normalizer treats absence and emptiness the
// same way.
func LoadSnapshot(dir string) (normalize.Snapshot, error) {
	snap := make(normalize.Snapshot, len(collections))
	for _, coll := range collections {
		path := filepath.Join(dir, coll.name+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "read snapshot "+coll.name)
		}
		var records []map[string]interface{}
		if err := gojson.Unmarshal(data, &records); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "parse snapshot "+coll.name).
				WithDetail("path", path)
		}
		snap[coll.name] = records
	}
	return snap, nil
}
