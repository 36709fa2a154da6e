// Package engine performs the idempotent upsert of an export graph into
// the destination: create first, and on a conflict find the existing
// record by external ID and patch it. Kinds are processed in dependency
// order so every reference can resolve against records written earlier in
// the same run.
package engine

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/canonical"
	"github.com/recruitops/atsync/pkg/config"
	"github.com/recruitops/atsync/pkg/destination"
	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/report"
)

// Engine drives one sync run.
type Engine struct {
	api      destination.API
	resolver *destination.Resolver
	fields   *destination.FieldMap
	rep      *report.Report
	cfg      config.EngineConfig
	logger   *zap.Logger
}

// New assembles an engine. The resolver must wrap the same API the engine
// writes through, or the write-through cache diverges from reality.
func New(api destination.API, resolver *destination.Resolver, fields *destination.FieldMap, rep *report.Report, cfg config.EngineConfig, logger *zap.Logger) *Engine {
	return &Engine{
		api:      api,
		resolver: resolver,
		fields:   fields,
		rep:      rep,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "engine")),
	}
}

// Sync upserts every record of the graph, kind by kind in dependency
// order. Per-record failures are isolated into the report; only fatal
// conditions (cancellation, authentication) abort the run. The report is
// NOT flushed here; the caller flushes so partial progress survives an
// abort too.
func (e *Engine) Sync(ctx context.Context, g *canonical.ExportGraph) error {
	for _, kind := range canonical.Kinds() {
		records := g.Of(kind)
		if len(records) == 0 {
			continue
		}
		if limit := e.cfg.KindLimit(string(kind)); limit > 0 && len(records) > limit {
			e.logger.Info("kind limit applied",
				zap.String("kind", string(kind)),
				zap.Int("limit", limit),
				zap.Int("total", len(records)))
			records = records[:limit]
		}

		e.logger.Info("syncing kind",
			zap.String("kind", string(kind)),
			zap.Int("records", len(records)),
			zap.Bool("dry_run", e.cfg.DryRun))

		if err := e.syncKind(ctx, kind, records); err != nil {
			return err
		}

		s := e.rep.Summary(kind)
		e.logger.Info("kind complete",
			zap.String("kind", string(kind)),
			zap.Int("created", s.Created),
			zap.Int("updated", s.Updated),
			zap.Int("failed", s.Failed),
			zap.Int("skipped", s.Skipped))
	}
	return nil
}

// syncKind runs one kind's records through the worker pool. Kinds never
// overlap; the pool drains completely before the next kind starts, which
// is what keeps cross-kind references resolvable.
func (e *Engine) syncKind(ctx context.Context, kind canonical.Kind, records []*canonical.Record) error {
	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	if workers == 1 {
		for _, rec := range records {
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "sync cancelled")
			}
			if err := e.checkFatal(ctx, e.upsert(ctx, rec)); err != nil {
				return err
			}
			if err := e.itemPause(ctx); err != nil {
				return err
			}
		}
		return nil
	}

	work := make(chan *canonical.Record)
	fatal := make(chan error, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range work {
				if err := e.checkFatal(ctx, e.upsert(ctx, rec)); err != nil {
					select {
					case fatal <- err:
					default:
					}
					return
				}
				if err := e.itemPause(ctx); err != nil {
					select {
					case fatal <- err:
					default:
					}
					return
				}
			}
		}()
	}

feed:
	for _, rec := range records {
		select {
		case work <- rec:
		case err := <-fatal:
			close(work)
			wg.Wait()
			return err
		case <-ctx.Done():
			break feed
		}
	}
	close(work)
	wg.Wait()

	select {
	case err := <-fatal:
		return err
	default:
	}
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "sync cancelled")
	}
	return nil
}

// checkFatal separates per-record failures, which upsert already recorded,
// from conditions that must stop the run.
func (e *Engine) checkFatal(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "sync cancelled")
	}
	if errors.IsType(err, errors.ErrorTypeAuthentication) {
		return err
	}
	return nil
}

func (e *Engine) itemPause(ctx context.Context) error {
	if e.cfg.ItemDelay <= 0 {
		return nil
	}
	return sleepCtx(ctx, e.cfg.ItemDelay)
}
