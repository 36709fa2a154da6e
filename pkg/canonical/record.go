// Package canonical defines the intermediate representation shared by the
// normalizer and the upsert engine: kind-tagged records keyed by
// deterministic external IDs, collected into one export graph per run.
package canonical

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies an entity kind within an export graph.
type Kind string

const (
	KindJob              Kind = "job"
	KindCandidate        Kind = "candidate"
	KindApplication      Kind = "application"
	KindInterview        Kind = "interview"
	KindNote             Kind = "note"
	KindOffer            Kind = "offer"
	KindUser             Kind = "user"
	KindCustomFieldValue Kind = "custom_field_value"
)

// Kinds lists every entity kind in upsert dependency order: reference data
// first, then candidates and jobs, then applications, then everything that
// hangs off an application. The upsert engine must process kinds in this
// order so the resolver can find records created earlier in the same run.
func Kinds() []Kind {
	return []Kind{
		KindUser,
		KindCandidate,
		KindJob,
		KindApplication,
		KindInterview,
		KindNote,
		KindOffer,
		KindCustomFieldValue,
	}
}

// Reference role names used as keys in Record.References.
const (
	RefCandidate   = "candidate"
	RefJob         = "job"
	RefApplication = "application"
	RefOwner       = "owner"
)

// Record is one normalized entity. Attributes hold kind-specific scalar or
// list values; References map role names to external IDs of other records.
// Records are build-once: the normalizer produces them and nothing mutates
// them afterwards.
type Record struct {
	ExternalID string                 `json:"external_id"`
	Kind       Kind                   `json:"-"`
	Attributes map[string]interface{} `json:"attributes"`
	References map[string]string      `json:"references,omitempty"`
}

// Ref returns the referenced external ID for a role, or empty.
func (r *Record) Ref(role string) string {
	if r.References == nil {
		return ""
	}
	return r.References[role]
}

// Attr returns an attribute value, or nil.
func (r *Record) Attr(key string) interface{} {
	if r.Attributes == nil {
		return nil
	}
	return r.Attributes[key]
}

// StringAttr returns a string attribute, or empty.
func (r *Record) StringAttr(key string) string {
	if s, ok := r.Attr(key).(string); ok {
		return s
	}
	return ""
}

// ExternalID derives the deterministic join key for a source-native ID:
// "{source}_{kind}_{nativeID}". The same source state always yields the
// same ID, which is what makes re-runs idempotent.
func ExternalID(source string, kind Kind, nativeID interface{}) string {
	return fmt.Sprintf("%s_%s_%s", source, kind, FormatNativeID(nativeID))
}

// FormatNativeID renders a native ID without a float exponent or trailing
// ".0"; JSON decoding hands numeric IDs over as float64.
func FormatNativeID(id interface{}) string {
	switch v := id.(type) {
	case float64:
		return fmt.Sprintf("%.0f", v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Meta describes the provenance of an export graph.
type Meta struct {
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source"`
	Target      string    `json:"target"`
	Version     int       `json:"version"`
}

// GraphVersion is the current export graph file format version.
const GraphVersion = 1

// UnresolvedRef records an inline reference whose target native ID had no
// corresponding raw record. These are reported, never silently dropped.
type UnresolvedRef struct {
	ExternalID string `json:"external_id"`
	Role       string `json:"role"`
	Target     string `json:"target"`
}

// ExportGraph is the complete set of canonical records for one run,
// partitioned by kind. It is flat records plus external-id edges, not a
// live object graph, so mutually-referencing shapes carry no cycle.
type ExportGraph struct {
	Meta       Meta               `json:"meta"`
	Records    map[Kind][]*Record `json:"-"`
	Unresolved []UnresolvedRef    `json:"unresolved,omitempty"`
}

// NewExportGraph creates an empty graph for a source/target pair.
func NewExportGraph(source, target string) *ExportGraph {
	return &ExportGraph{
		Meta: Meta{
			GeneratedAt: time.Now().UTC(),
			Source:      source,
			Target:      target,
			Version:     GraphVersion,
		},
		Records: make(map[Kind][]*Record),
	}
}

// Add appends a record under its kind.
func (g *ExportGraph) Add(rec *Record) {
	g.Records[rec.Kind] = append(g.Records[rec.Kind], rec)
}

// Of returns the records of one kind.
func (g *ExportGraph) Of(kind Kind) []*Record {
	return g.Records[kind]
}

// Len returns the total record count.
func (g *ExportGraph) Len() int {
	n := 0
	for _, recs := range g.Records {
		n += len(recs)
	}
	return n
}

// Index builds a lookup of every external ID present in the graph.
func (g *ExportGraph) Index() map[string]Kind {
	idx := make(map[string]Kind, g.Len())
	for kind, recs := range g.Records {
		for _, rec := range recs {
			idx[rec.ExternalID] = kind
		}
	}
	return idx
}

// Validate checks the graph invariants: external IDs are unique within the
// graph, and every reference resolves to an ID present in the graph.
// Dangling references are returned, not treated as an error; the caller
// records them for reporting.
func (g *ExportGraph) Validate() ([]UnresolvedRef, error) {
	idx := make(map[string]bool, g.Len())
	for _, kind := range Kinds() {
		for _, rec := range g.Records[kind] {
			if rec.ExternalID == "" {
				return nil, fmt.Errorf("record of kind %s has empty external_id", kind)
			}
			if idx[rec.ExternalID] {
				return nil, fmt.Errorf("duplicate external_id %s", rec.ExternalID)
			}
			idx[rec.ExternalID] = true
		}
	}

	var dangling []UnresolvedRef
	for _, kind := range Kinds() {
		for _, rec := range g.Records[kind] {
			roles := make([]string, 0, len(rec.References))
			for role := range rec.References {
				roles = append(roles, role)
			}
			sort.Strings(roles)
			for _, role := range roles {
				target := rec.References[role]
				if target == "" {
					continue
				}
				if !idx[target] {
					dangling = append(dangling, UnresolvedRef{
						ExternalID: rec.ExternalID,
						Role:       role,
						Target:     target,
					})
				}
			}
		}
	}
	return dangling, nil
}
