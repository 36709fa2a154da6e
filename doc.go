// Package atsync moves recruiting data from one applicant tracking system
// to another through a three-stage pipeline: fetch, normalize, sync.
//
// The fetch stage snapshots every source collection (candidates, jobs,
// applications, scheduled interviews, scorecards, offers, users) to local
// JSON files through a rate-limited, retrying HTTP client. The normalize
// stage converts the snapshot into a canonical export graph: flat records
// keyed by deterministic external IDs of the form
// "{source}_{kind}_{nativeID}", linked by external-id references instead
// of pointers. The sync stage upserts the graph into the destination's
// JSON:API surface in dependency order, creating each record at most once:
// a create that conflicts falls back to finding the existing record by its
// external ID and patching it.
//
// # Quick Start
//
// Run a full migration from a YAML run configuration:
//
//	atsync migrate --config run.yaml
//
// Or stage by stage, re-running any stage safely:
//
//	atsync fetch --config run.yaml
//	atsync normalize --config run.yaml
//	atsync sync --config run.yaml --dry-run
//
// Per-record failures never abort a run; they are collected into per-kind
// JSON report files with a reason (owner_not_found, cf_unmapped, ...) so
// a failed subset can be inspected and re-synced.
package atsync
