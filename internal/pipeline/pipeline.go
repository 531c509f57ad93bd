// Package pipeline orchestrates the reconciliation run: spatial matching
// over a ball-tree index, exact-key fallback on the spatial residual,
// deduplication, and the aggregate match report. The two phases run in
// that strict order on disjoint partitions — spatial is high-recall,
// key lookup is high-precision, and reversing or merging them changes
// the match semantics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/railsafe/milepost-linkage/internal/domain"
	"github.com/railsafe/milepost-linkage/internal/observability"
	"github.com/railsafe/milepost-linkage/internal/spatial"
)

var (
	// ErrEmptyRegistry means the milepost registry had no records at all;
	// nothing could ever match, so the run aborts before processing.
	ErrEmptyRegistry = errors.New("milepost registry is empty")

	// ErrUnusableRegistry means the registry had records but none were
	// indexable and none yielded a usable fallback key. Proceeding would
	// silently produce an all-NONE result set.
	ErrUnusableRegistry = errors.New("milepost registry has no indexable coordinates and no usable keys")
)

// Options configures a Reconciler.
type Options struct {
	ThresholdM float64
	Keys       domain.KeyConfig
	Workers    int // 0 means GOMAXPROCS
	Dims       Breakdowns
}

// Reconciler runs the full linkage pipeline over an incident snapshot.
// The spatial index and fallback key map are built once at construction
// and are read-only afterwards, so Run may fan incidents out across
// workers without synchronization.
type Reconciler struct {
	spatial  *SpatialMatcher // nil in the degraded no-index mode
	fallback *FallbackMatcher
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics

	registryRecords int
	registryIndexed int

	done atomic.Bool
}

// NewReconciler validates configuration, builds the spatial index and
// the fallback key map, and fails fast on an unusable registry.
func NewReconciler(registry []domain.MilepostRecord, opts Options, logger *slog.Logger, metrics *observability.Metrics) (*Reconciler, error) {
	if opts.ThresholdM <= 0 {
		return nil, fmt.Errorf("spatial threshold must be positive, got %g", opts.ThresholdM)
	}
	if opts.Keys.Aliases == nil {
		opts.Keys.Aliases = domain.DefaultAliases()
	}
	if err := opts.Keys.Aliases.Validate(); err != nil {
		return nil, err
	}
	if len(registry) == 0 {
		return nil, ErrEmptyRegistry
	}

	r := &Reconciler{
		opts:            opts,
		logger:          logger,
		metrics:         metrics,
		registryRecords: len(registry),
	}

	indexStart := time.Now()
	sm, err := NewSpatialMatcher(registry, opts.ThresholdM)
	switch {
	case err == nil:
		r.spatial = sm
		r.registryIndexed = sm.IndexedCount()
	case errors.Is(err, spatial.ErrEmptyIndex):
		logger.Warn("no registry record has a valid coordinate, spatial matching disabled")
	default:
		return nil, fmt.Errorf("build spatial index: %w", err)
	}
	metrics.IndexBuildSeconds.Observe(time.Since(indexStart).Seconds())

	r.fallback = NewFallbackMatcher(registry, opts.Keys)
	if r.spatial == nil && r.fallback.KeyCount() == 0 {
		return nil, ErrUnusableRegistry
	}

	metrics.RegistryRecords.Set(float64(r.registryRecords))
	metrics.RegistryIndexed.Set(float64(r.registryIndexed))

	logger.Info("reconciler ready",
		"registry_records", r.registryRecords,
		"registry_indexed", r.registryIndexed,
		"fallback_keys", r.fallback.KeyCount(),
		"threshold_m", opts.ThresholdM,
	)
	return r, nil
}

// CheckReadiness reports nil once a run has completed, for the readiness
// endpoint.
func (r *Reconciler) CheckReadiness(_ context.Context) error {
	if !r.done.Load() {
		return errors.New("reconciliation has not completed yet")
	}
	return nil
}

// Run produces exactly one MatchResult per incident, in input order,
// plus the aggregate summary. Per-record data problems never fail the
// run; the only error paths are construction-time (unusable registry)
// and context cancellation, where the partial work is discarded rather
// than returned half-built.
func (r *Reconciler) Run(ctx context.Context, incidents []domain.IncidentRecord) ([]domain.MatchResult, Summary, error) {
	start := time.Now()
	r.metrics.ReconcileRunning.Set(1)
	defer r.metrics.ReconcileRunning.Set(0)
	defer func() { r.metrics.RunSeconds.Observe(time.Since(start).Seconds()) }()

	workers := r.opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(incidents) {
		workers = len(incidents)
	}
	if workers < 1 {
		workers = 1
	}

	r.logger.Info("reconciliation started", "incidents", len(incidents), "workers", workers)

	results := make([]domain.MatchResult, len(incidents))
	accs := make([]*Accumulator, workers)

	var wg sync.WaitGroup
	chunk := (len(incidents) + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(incidents))
		acc := NewAccumulator(r.opts.Dims)
		accs[w] = acc

		wg.Add(1)
		go func(lo, hi int, acc *Accumulator) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if ctx.Err() != nil {
					return
				}
				res := r.matchOne(incidents[i])
				results[i] = res
				acc.Observe(incidents[i], res)
			}
		}(lo, hi, acc)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		r.logger.Warn("reconciliation cancelled", "reason", err)
		return nil, Summary{}, err
	}

	merged := accs[0]
	for _, acc := range accs[1:] {
		merged.Merge(acc)
	}

	deduped := Dedupe(results)
	if len(deduped) != len(results) {
		r.logger.Warn("duplicate incident ids collapsed",
			"input", len(results), "kept", len(deduped))
		merged = recount(incidents, deduped, r.opts.Dims)
	}

	summary := merged.Summary(r.registryRecords, r.registryIndexed)
	r.observeRun(deduped, summary)
	r.done.Store(true)

	r.logger.Info("reconciliation complete",
		"total", summary.TotalIncidents,
		"spatial", summary.Spatial,
		"fallback", summary.Fallback,
		"unmatched", summary.Unmatched,
		"matched_pct", summary.MatchedPct,
		"duration", time.Since(start),
	)
	return deduped, summary, nil
}

// matchOne runs one incident through both phases and stamps the result.
func (r *Reconciler) matchOne(inc domain.IncidentRecord) domain.MatchResult {
	var residual domain.MatchResult
	if r.spatial != nil {
		res, matched := r.spatial.Match(inc)
		if matched {
			res.ProcessedAt = domain.Now()
			return res
		}
		residual = res
	} else {
		residual = domain.MatchResult{IncidentID: inc.ID, Method: domain.MethodNone, Reason: domain.ReasonNoCoordinate}
		if domain.NormalizeCoordinate(inc.Latitude, inc.Longitude).Valid() {
			residual.Reason = domain.ReasonIndexUnavailable
		}
	}

	res := r.fallback.Match(inc, residual)
	res.ProcessedAt = domain.Now()
	return res
}

// observeRun pushes the final tallies into the Prometheus metrics.
func (r *Reconciler) observeRun(results []domain.MatchResult, s Summary) {
	r.metrics.IncidentsProcessed.Add(float64(s.TotalIncidents))
	r.metrics.MatchesTotal.WithLabelValues(string(domain.MethodSpatial)).Add(float64(s.Spatial))
	r.metrics.MatchesTotal.WithLabelValues(string(domain.MethodFallback)).Add(float64(s.Fallback))
	for reason, n := range s.UnmatchedReasons {
		r.metrics.UnmatchedTotal.WithLabelValues(string(reason)).Add(float64(n))
	}
	for _, res := range results {
		if res.Method == domain.MethodSpatial && res.DistanceM != nil {
			r.metrics.MatchDistanceMeters.Observe(*res.DistanceM)
		}
	}
}

// recount rebuilds the report from the deduplicated result set. Cold
// path: only taken when the input carried duplicate incident ids.
func recount(incidents []domain.IncidentRecord, results []domain.MatchResult, dims Breakdowns) *Accumulator {
	byID := make(map[string]domain.IncidentRecord, len(incidents))
	for _, inc := range incidents {
		if _, ok := byID[inc.ID]; !ok {
			byID[inc.ID] = inc
		}
	}
	acc := NewAccumulator(dims)
	for _, res := range results {
		acc.Observe(byID[res.IncidentID], res)
	}
	return acc
}
