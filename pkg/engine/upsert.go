package engine

import (
	"context"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/canonical"
	"github.com/recruitops/atsync/pkg/destination"
	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/metrics"
	"github.com/recruitops/atsync/pkg/report"
)

// upsertable reports whether a kind supports the conflict fallback. The
// destination only filters candidates, jobs, job-applications and users by
// external ID; comments and custom field values are create-only.
func upsertable(kind canonical.Kind) bool {
	switch kind {
	case canonical.KindCandidate, canonical.KindJob, canonical.KindApplication, canonical.KindUser:
		return true
	default:
		return false
	}
}

// upsert drives one record to a terminal outcome. Every outcome, success
// or failure, is recorded in the report before returning; the returned
// error only matters for fatal classification.
func (e *Engine) upsert(ctx context.Context, rec *canonical.Record) error {
	resolved, err := e.resolveRefs(ctx, rec)
	if err != nil {
		return e.fail(rec, "resolve", err)
	}

	if e.cfg.DryRun {
		return e.dryRun(ctx, rec)
	}

	payload, err := destination.Build(rec, resolved, e.fields)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeCFUnmapped) {
			return e.skip(rec, err)
		}
		return e.fail(rec, "build", err)
	}

	resource := destination.Resource(rec.Kind)
	resp, err := e.api.Create(ctx, resource, payload)
	if err != nil {
		return e.fail(rec, "post", err)
	}

	if resp.OK() {
		if id := createdID(resp.Body); id != "" {
			e.resolver.Put(resource, rec.ExternalID, id)
		}
		e.outcome(rec, report.OutcomeCreated)
		return nil
	}

	// 409 and 422 both signal an existing record; anything else is a plain
	// create failure.
	if (resp.Status == 409 || resp.Status == 422) && upsertable(rec.Kind) {
		return e.patchExisting(ctx, rec, resource, payload)
	}

	return e.fail(rec, "post", errors.Newf(errors.ErrorTypeCreateFailed, "create returned status %d", resp.Status).
		WithDetail("status", resp.Status).
		WithDetail("body", string(resp.Body)))
}

// patchExisting handles the conflict path: a forced lookup (the cache may
// hold a stale miss from before the conflicting record appeared) followed
// by a PATCH of the match.
func (e *Engine) patchExisting(ctx context.Context, rec *canonical.Record, resource string, payload *destination.Payload) error {
	id, err := e.resolver.Resolve(ctx, resource, rec.ExternalID, true)
	if err != nil {
		return e.fail(rec, "find", err)
	}
	if id == "" {
		return e.fail(rec, "find", errors.New(errors.ErrorTypeFindFailed, "create conflicted but no record matches the external id"))
	}

	resp, err := e.api.Patch(ctx, resource, id, payload)
	if err != nil {
		return e.fail(rec, "patch", err)
	}
	if resp.Status == 200 || resp.Status == 204 {
		e.outcome(rec, report.OutcomeUpdated)
		return nil
	}
	return e.fail(rec, "patch", errors.Newf(errors.ErrorTypePatchFailed, "patch returned status %d", resp.Status).
		WithDetail("status", resp.Status).
		WithDetail("body", string(resp.Body)))
}

// resolveRefs resolves every reference the record carries into destination
// IDs, enforcing the per-kind requirements. The error's type is the report
// reason.
func (e *Engine) resolveRefs(ctx context.Context, rec *canonical.Record) (destination.Resolved, error) {
	resolved := destination.Resolved{}
	for role, target := range rec.References {
		if target == "" {
			continue
		}
		resource := refResource(rec, role)
		if resource == "" {
			continue
		}
		id, err := e.resolver.Resolve(ctx, resource, target, false)
		if err != nil {
			return nil, err
		}
		if id != "" {
			resolved[role] = id
		}
	}

	switch rec.Kind {
	case canonical.KindApplication:
		if resolved[canonical.RefCandidate] == "" {
			return nil, errors.New(errors.ErrorTypeOwnerNotFound, "candidate not found at destination").
				WithDetail("candidate", rec.Ref(canonical.RefCandidate))
		}
		if rec.Ref(canonical.RefJob) != "" && resolved[canonical.RefJob] == "" {
			return nil, errors.New(errors.ErrorTypeJobNotFound, "job not found at destination").
				WithDetail("job", rec.Ref(canonical.RefJob))
		}
	case canonical.KindInterview, canonical.KindOffer:
		if resolved[canonical.RefApplication] == "" {
			return nil, errors.New(errors.ErrorTypeOwnerNotFound, "job application not found at destination").
				WithDetail("application", rec.Ref(canonical.RefApplication))
		}
	case canonical.KindNote:
		// A note attaches to whatever resolved; it fails only when nothing
		// did.
		if len(resolved) == 0 {
			return nil, errors.New(errors.ErrorTypeOwnerNotFound, "no note target found at destination")
		}
	case canonical.KindCustomFieldValue:
		if resolved[canonical.RefOwner] == "" {
			return nil, errors.New(errors.ErrorTypeOwnerNotFound, "custom field owner not found at destination").
				WithDetail("owner", rec.Ref(canonical.RefOwner))
		}
	}
	return resolved, nil
}

// refResource maps a reference role to the destination resource it is
// looked up in.
func refResource(rec *canonical.Record, role string) string {
	switch role {
	case canonical.RefCandidate:
		return destination.ResCandidates
	case canonical.RefJob:
		return destination.ResJobs
	case canonical.RefApplication:
		return destination.ResJobApplications
	case canonical.RefOwner:
		return destination.Resource(canonical.Kind(rec.StringAttr("owner_kind")))
	default:
		return ""
	}
}

// dryRun reports what a real run would do, via reads only: an upsertable
// record that already exists would be updated, everything else created.
func (e *Engine) dryRun(ctx context.Context, rec *canonical.Record) error {
	if upsertable(rec.Kind) {
		id, err := e.resolver.Resolve(ctx, destination.Resource(rec.Kind), rec.ExternalID, false)
		if err != nil {
			return e.fail(rec, "find", err)
		}
		if id != "" {
			e.outcome(rec, report.OutcomeUpdated)
			return nil
		}
	}
	e.outcome(rec, report.OutcomeCreated)
	return nil
}

func (e *Engine) outcome(rec *canonical.Record, out report.Outcome) {
	e.rep.Record(rec.Kind, out)
	metrics.RecordsTotal.WithLabelValues(string(rec.Kind), string(out)).Inc()
	e.logger.Debug("record done",
		zap.String("kind", string(rec.Kind)),
		zap.String("external_id", rec.ExternalID),
		zap.String("outcome", string(out)))
}

func (e *Engine) fail(rec *canonical.Record, op string, err error) error {
	entry := report.Error{
		ExternalID: rec.ExternalID,
		Op:         op,
		Reason:     string(errors.TypeOf(err)),
		Detail:     err.Error(),
	}
	if appErr, ok := err.(*errors.Error); ok {
		if status, ok := appErr.Detail("status").(int); ok {
			entry.Status = status
		}
	}
	e.rep.RecordError(rec.Kind, report.OutcomeFailed, entry)
	metrics.RecordsTotal.WithLabelValues(string(rec.Kind), string(report.OutcomeFailed)).Inc()
	e.logger.Warn("record failed",
		zap.String("kind", string(rec.Kind)),
		zap.String("external_id", rec.ExternalID),
		zap.String("op", op),
		zap.String("reason", entry.Reason))
	return err
}

func (e *Engine) skip(rec *canonical.Record, err error) error {
	entry := report.Error{
		ExternalID: rec.ExternalID,
		Reason:     string(errors.TypeOf(err)),
		Detail:     err.Error(),
	}
	e.rep.RecordError(rec.Kind, report.OutcomeSkipped, entry)
	metrics.RecordsTotal.WithLabelValues(string(rec.Kind), string(report.OutcomeSkipped)).Inc()
	return nil
}

// createdID extracts data.id from a JSON:API create response.
func createdID(body []byte) string {
	var env struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := gojson.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Data.ID
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "item delay cancelled")
	}
}
