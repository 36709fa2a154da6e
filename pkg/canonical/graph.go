package canonical

import (
	"os"
	"path/filepath"

	gojson "github.com/goccy/go-json"

	"github.com/recruitops/atsync/pkg/errors"
)

// graphFile is the on-disk layout of an export graph: meta plus one array
// per kind. Kinds are explicit fields so the file stays stable and
// diffable across runs.
type graphFile struct {
	Meta              Meta            `json:"meta"`
	Users             []*Record       `json:"users"`
	Candidates        []*Record       `json:"candidates"`
	Jobs              []*Record       `json:"jobs"`
	Applications      []*Record       `json:"applications"`
	Interviews        []*Record       `json:"interviews"`
	Notes             []*Record       `json:"notes"`
	Offers            []*Record       `json:"offers"`
	CustomFieldValues []*Record       `json:"custom_field_values"`
	Unresolved        []UnresolvedRef `json:"unresolved,omitempty"`
}

func (f *graphFile) slot(kind Kind) *[]*Record {
	switch kind {
	case KindUser:
		return &f.Users
	case KindCandidate:
		return &f.Candidates
	case KindJob:
		return &f.Jobs
	case KindApplication:
		return &f.Applications
	case KindInterview:
		return &f.Interviews
	case KindNote:
		return &f.Notes
	case KindOffer:
		return &f.Offers
	case KindCustomFieldValue:
		return &f.CustomFieldValues
	default:
		return nil
	}
}

// WriteGraph serializes a graph to path, creating parent directories. The
// write goes through a temp file and rename so readers never see a
// half-written graph.
func WriteGraph(g *ExportGraph, path string) error {
	f := &graphFile{Meta: g.Meta, Unresolved: g.Unresolved}
	for _, kind := range Kinds() {
		*f.slot(kind) = g.Records[kind]
	}

	data, err := gojson.MarshalIndent(f, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "encode export graph")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "create graph directory")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "write export graph")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "finalize export graph")
	}
	return nil
}

// LoadGraph reads a graph file back into memory, restoring each record's
// kind tag. A malformed or version-mismatched file is a fatal data error.
func LoadGraph(path string) (*ExportGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "read export graph").WithDetail("path", path)
	}

	var f graphFile
	if err := gojson.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "parse export graph").WithDetail("path", path)
	}
	if f.Meta.Version != GraphVersion {
		return nil, errors.Newf(errors.ErrorTypeData, "unsupported graph version %d (want %d)", f.Meta.Version, GraphVersion)
	}

	g := &ExportGraph{
		Meta:       f.Meta,
		Records:    make(map[Kind][]*Record),
		Unresolved: f.Unresolved,
	}
	for _, kind := range Kinds() {
		recs := *f.slot(kind)
		for _, rec := range recs {
			rec.Kind = kind
		}
		if len(recs) > 0 {
			g.Records[kind] = recs
		}
	}
	return g, nil
}
