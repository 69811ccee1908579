// Package pipeline wires the IO -> Preprocess -> Correlate -> Cluster ->
// Assemble phases into the synchronous scheduling model of spec.md §5: a
// fixed-size worker pool (default GOMAXPROCS) evaluates templates in
// parallel, each worker reserving the next template index from a shared
// counter, with cooperative cancellation and coalesced progress reporting. The worker pool shape mirrors the
// teacher's optimization loop in cmd/piano-fit/optimize.go: a reservation
// counter instead of a channel of work units, atomic progress, and a
// deadline checked on every iteration.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/snid-go/internal/cluster"
	"github.com/cwbudde/snid-go/internal/config"
	"github.com/cwbudde/snid-go/internal/correlate"
	"github.com/cwbudde/snid-go/internal/grid"
	"github.com/cwbudde/snid-go/internal/preprocess"
	"github.com/cwbudde/snid-go/internal/progress"
	"github.com/cwbudde/snid-go/internal/result"
	"github.com/cwbudde/snid-go/internal/snidtypes"
	"github.com/cwbudde/snid-go/internal/template"
)

// Options bundles everything one Run call needs beyond the resolved stage
// configs: the grid, the already-open template store, a template filter,
// worker count, progress callback, and cancellation.
type Options struct {
	Grid          *grid.Grid
	Store         *template.Store
	Filter        template.Filter
	Config        config.Resolved
	Workers       int // 0 means runtime.GOMAXPROCS(0)
	Progress      progress.Callback
	ForcedRedshift *float64
}

// Run executes the full pipeline for one raw spectrum and returns the
// final AnalysisResult. ctx cancellation or deadline is checked between
// templates and between phases (spec.md §5); on cancellation, Run returns
// an AnalysisResult with Cancelled=true built from whatever Matches were
// admitted so far, and a nil error.
func Run(ctx context.Context, raw snidtypes.RawSpectrum, opts Options) (*snidtypes.AnalysisResult, error) {
	start := time.Now()

	if opts.ForcedRedshift != nil {
		opts.Config.Preprocess.ForcedRedshift = opts.ForcedRedshift
		opts.Config.Correlate.ForcedRedshift = opts.ForcedRedshift
	}

	if opts.Progress != nil {
		opts.Progress("preprocessing", 0)
	}
	ps, err := preprocess.Run(opts.Grid, raw, opts.Config.Preprocess)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return cancelledResult(ps, start), nil
	}

	templates := opts.Store.Apply(opts.Filter)
	if len(templates) == 0 {
		return nil, fmt.Errorf("correlation failed: %w", snidtypes.ErrTemplatesNotFound)
	}

	if opts.Progress != nil {
		opts.Progress("correlating", 0)
	}
	matches, cancelled := correlateAll(ctx, ps, templates, opts)

	if opts.Progress != nil {
		opts.Progress("clustering", 0.8)
	}
	var cr *snidtypes.ClusteringResult
	if !cancelled {
		cr = cluster.Run(matches, opts.Config.Cluster)
	}

	ar := result.Assemble(ps, matches, cr, start, opts.Config.Result)
	ar.Cancelled = cancelled
	if cancelled {
		ar.Success = false
	}

	if opts.Progress != nil {
		opts.Progress("done", 1.0)
	}

	if !ar.Success && !cancelled {
		return ar, fmt.Errorf("%w", snidtypes.ErrNoMatches)
	}
	return ar, nil
}

// correlateAll runs the Correlator phase across a fixed worker pool,
// reserving templates off a shared index counter (the teacher's
// reserveEval pattern) instead of a work channel, and reports whether the
// phase was cut short by cancellation.
func correlateAll(ctx context.Context, ps *snidtypes.ProcessedSpectrum, templates []*snidtypes.Template, opts Options) ([]*snidtypes.Match, bool) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(templates) {
		workers = len(templates)
	}
	if workers < 1 {
		workers = 1
	}

	var nextIdx int64
	var cancelled atomic.Bool
	counter := progress.NewCounter(len(templates), opts.Progress, 0)

	matches := make([]*snidtypes.Match, len(templates))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if ctx.Err() != nil {
					cancelled.Store(true)
					return
				}
				idx := atomic.AddInt64(&nextIdx, 1) - 1
				if idx >= int64(len(templates)) {
					return
				}
				m, err := correlate.Correlate(ps, templates[idx], opts.Config.Correlate)
				if err != nil {
					m = &snidtypes.Match{Template: templates[idx], Rejected: true, RejectReason: err.Error()}
				}
				matches[idx] = m
				counter.Add(1)
			}
		}()
	}
	// Only this goroutine invokes the progress callback; workers just bump
	// the counter.
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	ticker := time.NewTicker(50 * time.Millisecond)
	for waiting := true; waiting; {
		select {
		case <-finished:
			waiting = false
		case <-ticker.C:
			counter.MaybeEmit("correlating templates", false)
		}
	}
	ticker.Stop()
	counter.MaybeEmit("correlating templates", true)

	out := make([]*snidtypes.Match, 0, len(matches))
	for _, m := range matches {
		if m != nil {
			out = append(out, m)
		}
	}
	return out, cancelled.Load()
}

func cancelledResult(ps *snidtypes.ProcessedSpectrum, start time.Time) *snidtypes.AnalysisResult {
	return &snidtypes.AnalysisResult{
		Success:           false,
		Cancelled:         true,
		ProcessedSpectrum: ps,
		Runtime:           time.Since(start),
	}
}
