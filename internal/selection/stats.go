package selection

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/patchnote/internal/models"
)

// EnrichStats fills Stats on every commit that lacks it. Lookups degrade
// to zeros on failure, so only cancellation is returned.
func (e *Engine) EnrichStats(ctx context.Context, owner, repo string, commits []models.Commit) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.StatsConcurrency)
	for i := range commits {
		if commits[i].Stats != nil {
			continue
		}
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats := e.src.CommitStats(ctx, owner, repo, commits[i].SHA)
			// a cancelled lookup degrades to zeros; do not record them
			if err := ctx.Err(); err != nil {
				return err
			}
			commits[i].Stats = &stats
			return nil
		})
	}
	return g.Wait()
}

// EstimateChanges sums line changes over the first StatsSampleSize
// commits and scales the totals by total/sampled. The result is an
// estimate whenever fewer commits were sampled than were given.
func (e *Engine) EstimateChanges(ctx context.Context, owner, repo string, commits []models.Commit) (models.StatsEstimate, error) {
	est := models.StatsEstimate{Total: len(commits)}
	if len(commits) == 0 {
		return est, nil
	}

	n := min(len(commits), e.opts.StatsSampleSize)
	sample := make([]models.Commit, n)
	copy(sample, commits[:n])
	if err := e.EnrichStats(ctx, owner, repo, sample); err != nil {
		return models.StatsEstimate{}, err
	}

	for _, c := range sample {
		est.Additions += c.Stats.Additions
		est.Deletions += c.Stats.Deletions
	}
	est.Sampled = n

	if n < est.Total {
		ratio := float64(est.Total) / float64(n)
		est.Additions = int(float64(est.Additions)*ratio + 0.5)
		est.Deletions = int(float64(est.Deletions)*ratio + 0.5)
		est.Estimated = true
	}

	e.logger.Debug("estimated changes",
		"owner", owner, "repo", repo,
		"sampled", est.Sampled, "total", est.Total, "estimated", est.Estimated)
	return est, nil
}
