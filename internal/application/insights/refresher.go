package insights

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Refresher regenerates stale reports in the background so that readers rarely pay
// for generation. Lazy refresh in EnsureInsightForCategory still applies.
type Refresher struct {
	Service     *Service
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

// Run blocks until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.Service.logger().WithError(err).Warn("refresher: list stale reports failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// RunOnce refreshes one batch and returns how many categories were refreshed.
// A failing category is logged and does not stop the others.
func (r *Refresher) RunOnce(ctx context.Context) (int, error) {
	limit := r.BatchSize
	if limit <= 0 {
		limit = 20
	}
	stale, err := r.Service.Repo.ListStale(ctx, r.Service.now(), limit)
	if err != nil {
		return 0, err
	}

	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]bool, len(stale))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, category := range stale {
		i, category := i, category
		g.Go(func() error {
			if _, err := r.Service.EnsureInsightForCategory(gctx, category); err != nil {
				r.Service.logger().WithError(err).WithField("category", category).Warn("refresher: refresh failed")
				return nil
			}
			results[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range results {
		if ok {
			n++
		}
	}
	if len(stale) > 0 {
		r.Service.logger().WithFields(logrus.Fields{"stale": len(stale), "refreshed": n}).Info("refresher: batch done")
	}
	return n, nil
}
