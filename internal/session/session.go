package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/vex/internal/catalog"
	"github.com/roach88/vex/internal/compiler"
	"github.com/roach88/vex/internal/coverage"
	"github.com/roach88/vex/internal/ir"
	"github.com/roach88/vex/internal/oracle"
	"github.com/roach88/vex/internal/registry"
	"github.com/roach88/vex/internal/results"
	"github.com/roach88/vex/internal/store"
)

// DefaultParallelism bounds concurrent harness runs when no explicit
// limit is configured.
const DefaultParallelism = 4

// Session holds everything one pipeline run needs. Construct at run
// start, Run once, read the summary.
type Session struct {
	catalog     *catalog.Catalog
	catalogPath string
	oracle      oracle.Oracle
	store       *store.Store
	logger      *slog.Logger
	ids         RunIDGenerator
	parallelism int
	discovery   registry.Options
	overrides   *registry.Overrides
}

// Option configures a Session.
type Option func(*Session)

// WithStore enables persistence of the run.
func WithStore(s *store.Store) Option {
	return func(sess *Session) { sess.store = s }
}

// WithLogger sets the structured logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(sess *Session) { sess.logger = l }
}

// WithRunIDs sets the run-id generator. Default is UUIDv7.
func WithRunIDs(g RunIDGenerator) Option {
	return func(sess *Session) { sess.ids = g }
}

// WithParallelism bounds concurrent harness runs.
func WithParallelism(n int) Option {
	return func(sess *Session) { sess.parallelism = n }
}

// WithDiscovery sets harness discovery options and overrides.
func WithDiscovery(opts registry.Options, ov *registry.Overrides) Option {
	return func(sess *Session) {
		sess.discovery = opts
		sess.overrides = ov
	}
}

// WithCatalogPath records the catalog origin for persistence.
func WithCatalogPath(path string) Option {
	return func(sess *Session) { sess.catalogPath = path }
}

// New creates a session over a loaded catalog and an oracle.
func New(cat *catalog.Catalog, orc oracle.Oracle, opts ...Option) *Session {
	s := &Session{
		catalog:     cat,
		oracle:      orc,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:         UUIDv7Generator{},
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parallelism < 1 {
		s.parallelism = 1
	}
	return s
}

// Run executes the whole pipeline once. The returned error is non-nil
// only for fatal-before-scheduling conditions (discovery failure,
// persistence setup) or context cancellation; per-harness failures are
// recorded in the summary instead.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	started := time.Now()
	runID := s.ids.Generate()
	log := s.logger.With("run", runID)

	harnesses, skips, err := registry.Discover(s.catalog, s.discovery, s.overrides)
	if err != nil {
		return nil, fmt.Errorf("session: discovery: %w", err)
	}
	log.Info("harnesses discovered", "count", len(harnesses), "skipped", len(skips))

	agg := coverage.NewAggregator()
	reports := make([]HarnessReport, len(harnesses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, h := range harnesses {
		i, h := i, h
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reports[i] = s.runHarness(gctx, log, h, agg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Harness.Name < reports[j].Harness.Name
	})

	summary := &Summary{
		RunID:    runID,
		Started:  started,
		Duration: time.Since(started),
		Reports:  reports,
		Skips:    skips,
		Coverage: agg.Report(),
	}

	if s.store != nil {
		if err := s.persist(ctx, summary); err != nil {
			return summary, fmt.Errorf("session: persist: %w", err)
		}
	}
	log.Info("run complete",
		"harnesses", len(reports),
		"failed", summary.Count(ir.OutcomeFailure),
		"inconclusive", summary.Inconclusive())
	return summary, nil
}

// runHarness carries one harness through build, instrumentation,
// verification, and interpretation. Every failure mode lands in the
// returned report; nothing here aborts the batch.
func (s *Session) runHarness(ctx context.Context, log *slog.Logger, h ir.Harness, agg *coverage.Aggregator) HarnessReport {
	report := HarnessReport{Harness: h}
	log = log.With("harness", h.Name)

	unit, err := compiler.Build(h, s.catalog)
	if err != nil {
		log.Warn("build failed", "error", err)
		report.Result = errorResult(h.Name, "build: "+err.Error())
		return report
	}
	unit, err = compiler.Instrument(unit)
	if err != nil {
		log.Warn("instrumentation failed", "error", err)
		report.Result = errorResult(h.Name, "instrument: "+err.Error())
		return report
	}

	verifyStart := time.Now()
	raw, err := s.oracle.Verify(ctx, unit, h.Config)
	elapsed := time.Since(verifyStart)
	if err != nil {
		log.Warn("oracle failed", "error", err)
		report.Result = errorResult(h.Name, err.Error())
		report.Result.Runtime = elapsed
		return report
	}

	agg.Record(h.Name, unit, results.CoveredRegions(raw, unit))

	res, err := results.Interpret(raw, unit, elapsed)
	if err != nil {
		// Reconstruction failure: the verdict stands, the
		// counterexample is withheld, and the error is surfaced.
		log.Warn("counterexample reconstruction failed", "error", err)
		report.Err = err
	}
	report.Result = res
	log.Debug("harness done", "outcome", res.Outcome, "runtime", elapsed)
	return report
}

func (s *Session) persist(ctx context.Context, sum *Summary) error {
	run := store.RunRecord{
		ID:          sum.RunID,
		CreatedAt:   sum.Started,
		CatalogPath: s.catalogPath,
	}
	if err := s.store.BeginRun(ctx, run); err != nil {
		return err
	}
	for _, r := range sum.Reports {
		if err := s.store.WriteResult(ctx, sum.RunID, r.Harness.Kind, r.Harness.Config.Expected, r.Result); err != nil {
			return err
		}
	}
	for _, sk := range sum.Skips {
		if err := s.store.WriteSkip(ctx, sum.RunID, sk.Function, string(sk.Reason)); err != nil {
			return err
		}
	}
	return s.store.WriteCoverage(ctx, sum.RunID, sum.Coverage)
}

func errorResult(harness, diagnostics string) ir.VerificationResult {
	return ir.VerificationResult{
		Harness:     harness,
		Outcome:     ir.OutcomeOracleError,
		Diagnostics: diagnostics,
	}
}
