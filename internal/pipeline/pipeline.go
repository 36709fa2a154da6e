// Package pipeline wires the run stages together: fetch raw snapshots,
// normalize them into an export graph, and sync the graph into the
// destination. Each stage is also exposed on its own so operators can
// re-run one without the others.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/recruitops/atsync/pkg/canonical"
	"github.com/recruitops/atsync/pkg/config"
	"github.com/recruitops/atsync/pkg/destination"
	"github.com/recruitops/atsync/pkg/engine"
	"github.com/recruitops/atsync/pkg/errors"
	"github.com/recruitops/atsync/pkg/logger"
	"github.com/recruitops/atsync/pkg/normalize"
	"github.com/recruitops/atsync/pkg/paginate"
	"github.com/recruitops/atsync/pkg/report"
	"github.com/recruitops/atsync/pkg/source"
	"github.com/recruitops/atsync/pkg/transport"
)

// Pipeline owns the clients and configuration for one run.
type Pipeline struct {
	cfg    *config.RunConfig
	logger *zap.Logger
}

// New creates a pipeline, stamping a fresh run ID when the config carries
// none.
func New(cfg *config.RunConfig) *Pipeline {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Pipeline{
		cfg:    cfg,
		logger: logger.Get().With(zap.String("run_id", cfg.RunID)),
	}
}

// RunID returns the effective run identifier.
func (p *Pipeline) RunID() string {
	return p.cfg.RunID
}

func (p *Pipeline) sourceClient() *transport.Client {
	return transport.NewClient("source", p.cfg.Source.BaseURL,
		&transport.BasicAuth{APIKey: p.cfg.Source.APIKey},
		p.cfg.Transport, p.logger)
}

func (p *Pipeline) destinationClient(ctx context.Context) *transport.Client {
	var auth transport.Auth
	if oa := p.cfg.Destination.OAuth; oa.Enabled {
		auth = transport.NewOAuthClientCredentials(ctx, oa.TokenURL, oa.ClientID, oa.ClientSecret, oa.Scopes)
	} else {
		auth = &transport.TokenAuth{
			Token:      p.cfg.Destination.Token,
			APIVersion: p.cfg.Destination.APIVersion,
		}
	}
	return transport.NewClient("destination", p.cfg.Destination.BaseURL, auth, p.cfg.Transport, p.logger)
}

// Fetch pulls every source collection into snapshot files.
func (p *Pipeline) Fetch(ctx context.Context) error {
	pag := paginate.New(p.sourceClient(), p.cfg.Source, p.logger)
	fetcher := source.NewFetcher(pag, p.cfg.Source.SnapshotDir, p.logger)

	snap, err := fetcher.FetchAll(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, records := range snap {
		total += len(records)
	}
	p.logger.Info("fetch complete",
		zap.Int("collections", len(snap)),
		zap.Int("records", total),
		zap.String("dir", p.cfg.Source.SnapshotDir))
	return nil
}

// Normalize converts the snapshot files into the export graph file.
func (p *Pipeline) Normalize(ctx context.Context) error {
	snap, err := source.LoadSnapshot(p.cfg.Source.SnapshotDir)
	if err != nil {
		return err
	}

	norm := normalize.New(p.cfg.Source.Name, p.cfg.Destination.Name, p.logger)
	graph, err := norm.Run(snap)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "normalize snapshot")
	}

	if err := canonical.WriteGraph(graph, p.cfg.Engine.GraphPath); err != nil {
		return err
	}
	p.logger.Info("graph written",
		zap.String("path", p.cfg.Engine.GraphPath),
		zap.Int("records", graph.Len()),
		zap.Int("unresolved", len(graph.Unresolved)))
	return nil
}

// Sync loads the export graph and upserts it into the destination. The
// report is flushed on every exit path, so a cancelled or aborted run
// still leaves its partial progress on disk.
func (p *Pipeline) Sync(ctx context.Context) error {
	graph, err := canonical.LoadGraph(p.cfg.Engine.GraphPath)
	if err != nil {
		return err
	}

	client := destination.NewClient(p.destinationClient(ctx), p.logger)
	if err := client.Preflight(ctx); err != nil {
		return err
	}

	fields, err := destination.LoadFieldMap(p.cfg.Destination.CustomFieldMapPath)
	if err != nil {
		return err
	}

	rep := report.New(p.cfg.RunID, p.cfg.Engine.DryRun)
	resolver := destination.NewResolver(client, p.logger)
	eng := engine.New(client, resolver, fields, rep, p.cfg.Engine, p.logger)

	runErr := eng.Sync(ctx, graph)
	if runErr != nil {
		rep.Aborted(runErr.Error())
	}
	if err := rep.Flush(p.cfg.Engine.ReportDir); err != nil {
		if runErr == nil {
			return err
		}
		p.logger.Error("report flush failed after aborted run", zap.Error(err))
	}
	p.logger.Info("sync finished",
		zap.String("report_dir", p.cfg.Engine.ReportDir),
		zap.Bool("aborted", runErr != nil))
	return runErr
}

// Migrate runs the full pipeline end to end.
func (p *Pipeline) Migrate(ctx context.Context) error {
	if err := p.Fetch(ctx); err != nil {
		return err
	}
	if err := p.Normalize(ctx); err != nil {
		return err
	}
	return p.Sync(ctx)
}
