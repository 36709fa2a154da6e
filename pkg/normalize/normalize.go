// Package normalize converts raw source snapshots into the canonical export
// graph. Normalization is pure and deterministic: no network calls, and the
// same snapshot always yields the same graph, byte for byte aside from the
// generated-at stamp.
package normalize

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/canonical"
)

// Raw collection names as fetched from the source API.
const (
	CollCandidates = "candidates"
	CollJobs       = "jobs"
	CollApps       = "applications"
	CollInterviews = "scheduled_interviews"
	CollScorecards = "scorecards"
	CollOffers     = "offers"
	CollUsers      = "users"
)

// Snapshot is the raw input: one record list per source collection.
type Snapshot map[string][]map[string]interface{}

// Normalizer builds canonical records from raw source entities.
type Normalizer struct {
	source string
	target string
	logger *zap.Logger
}

// New creates a normalizer stamping external IDs with the given source
// label (for example "gh").
func New(source, target string, logger *zap.Logger) *Normalizer {
	return &Normalizer{
		source: source,
		target: target,
		logger: logger.With(zap.String("component", "normalizer")),
	}
}

// Run normalizes a snapshot into an export graph. Raw records without a
// native ID are dropped with a warning; dangling references survive into
// the graph's unresolved list rather than failing the run.
func (n *Normalizer) Run(snap Snapshot) (*canonical.ExportGraph, error) {
	g := canonical.NewExportGraph(n.source, n.target)

	n.users(g, snap[CollUsers])
	n.candidates(g, snap[CollCandidates])
	n.jobs(g, snap[CollJobs])
	n.applications(g, snap[CollApps], snap[CollCandidates])
	n.interviews(g, snap[CollInterviews])
	n.scorecards(g, snap[CollScorecards])
	n.offers(g, snap[CollOffers])

	unresolved, err := g.Validate()
	if err != nil {
		return nil, err
	}
	g.Unresolved = unresolved
	if len(unresolved) > 0 {
		n.logger.Warn("graph has unresolved references",
			zap.Int("count", len(unresolved)))
	}

	n.logger.Info("normalization complete",
		zap.Int("records", g.Len()),
		zap.Int("unresolved", len(unresolved)))
	return g, nil
}

// extID builds the external ID for a raw record, or empty when the native
// ID is missing.
func (n *Normalizer) extID(kind canonical.Kind, raw map[string]interface{}) string {
	id, ok := raw["id"]
	if !ok || id == nil {
		return ""
	}
	return canonical.ExternalID(n.source, kind, id)
}

// refID builds an external ID for a referenced native ID, or empty.
func (n *Normalizer) refID(kind canonical.Kind, nativeID interface{}) string {
	if nativeID == nil {
		return ""
	}
	return canonical.ExternalID(n.source, kind, nativeID)
}

func (n *Normalizer) dropMissingID(coll string, raw map[string]interface{}) bool {
	if _, ok := raw["id"]; ok && raw["id"] != nil {
		return false
	}
	n.logger.Warn("dropping record without native id", zap.String("collection", coll))
	return true
}

// dig walks nested maps, returning nil at the first miss.
func dig(m map[string]interface{}, keys ...string) interface{} {
	var cur interface{} = m
	for _, k := range keys {
		mm, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = mm[k]
		if cur == nil {
			return nil
		}
	}
	return cur
}

func digString(m map[string]interface{}, keys ...string) string {
	if s, ok := dig(m, keys...).(string); ok {
		return s
	}
	return ""
}

func asList(v interface{}) []map[string]interface{} {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]map[string]interface{}, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// orNA substitutes "N/A" for empty strings in rendered comment bodies.
func orNA(v interface{}) string {
	if v == nil {
		return "N/A"
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return "N/A"
		}
		return s
	}
	return fmt.Sprintf("%v", v)
}

// sortedKeys returns a map's keys in stable order.
func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// emptyValue reports a custom field value that carries no information.
func emptyValue(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []interface{}:
		return len(t) == 0
	default:
		return false
	}
}
