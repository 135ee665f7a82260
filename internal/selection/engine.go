// Package selection resolves a normalized filter into an ordered,
// deduplicated commit list.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/patchnote/internal/config"
	"github.com/rohankatakam/patchnote/internal/filter"
	"github.com/rohankatakam/patchnote/internal/github"
	"github.com/rohankatakam/patchnote/internal/logging"
	"github.com/rohankatakam/patchnote/internal/models"
)

// Source is the slice of github.Repository the engine reads from
type Source interface {
	Commits(ctx context.Context, owner, repo string, q github.CommitQuery) ([]models.Commit, error)
	CommitsByTag(ctx context.Context, owner, repo, tag string) []models.Commit
	CommitsBetween(ctx context.Context, owner, repo, base, head string) []models.Commit
	Tags(ctx context.Context, owner, repo string) ([]models.Tag, error)
	CommitLabels(ctx context.Context, owner, repo, sha string) []string
	CommitStats(ctx context.Context, owner, repo, sha string) models.LineStats
}

// Options tunes an Engine
type Options struct {
	LabelConcurrency int           // workers for per-commit label lookups, default 1
	StatsConcurrency int           // workers for per-commit stats lookups, default 4
	StatsSampleSize  int           // commits sampled by EstimateChanges, default 50
	ReleaseLookback  time.Duration // window before publishedAt, default 30 days
	Now              func() time.Time
	Logger           *slog.Logger
}

// OptionsFromConfig maps configuration onto Options
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		LabelConcurrency: cfg.Selection.LabelConcurrency,
		StatsConcurrency: cfg.Selection.StatsConcurrency,
		StatsSampleSize:  cfg.Selection.StatsSampleSize,
		ReleaseLookback:  cfg.Selection.ReleaseLookback(),
		Logger:           logger,
	}
}

// Engine is the commit query planner. It holds no state across calls.
type Engine struct {
	src    Source
	opts   Options
	logger *slog.Logger
}

// NewEngine creates an engine reading from src
func NewEngine(src Source, opts Options) *Engine {
	if opts.LabelConcurrency <= 0 {
		opts.LabelConcurrency = 1
	}
	if opts.StatsConcurrency <= 0 {
		opts.StatsConcurrency = 4
	}
	if opts.StatsSampleSize <= 0 {
		opts.StatsSampleSize = 50
	}
	if opts.ReleaseLookback <= 0 {
		opts.ReleaseLookback = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		src:    src,
		opts:   opts,
		logger: logging.OrDiscard(opts.Logger).With("component", "selection"),
	}
}

// Select resolves f against owner/repo. Only failures of the primary
// commit fetch and of the tag listing are returned; per-selector and
// per-commit enrichment failures are absorbed. Cancellation of ctx is
// always returned, never an empty selection.
func (e *Engine) Select(ctx context.Context, owner, repo string, f filter.Filter) ([]models.Commit, error) {
	log := e.logger.With("request_id", uuid.NewString(), "owner", owner, "repo", repo, "mode", string(f.Mode))
	start := e.opts.Now()

	commits, err := e.resolve(ctx, log, owner, repo, f)
	if err != nil {
		return nil, err
	}
	resolved := len(commits)

	if f.HasTagFilter() {
		commits, err = e.filterByTags(ctx, owner, repo, commits, f.IncludeTags, f.ExcludeTags)
		if err != nil {
			return nil, err
		}
	}

	if f.HasLabelFilter() {
		commits, err = e.filterByLabels(ctx, owner, repo, commits, f.IncludeLabels, f.ExcludeLabels)
		if err != nil {
			return nil, err
		}
	}

	log.Debug("selection complete",
		"resolved", resolved,
		"selected", len(commits),
		"duration", e.opts.Now().Sub(start))
	return commits, nil
}

func (e *Engine) resolve(ctx context.Context, log *slog.Logger, owner, repo string, f filter.Filter) ([]models.Commit, error) {
	switch f.Mode {
	case filter.ModeRelease:
		return e.resolveReleases(ctx, log, owner, repo, f.Releases)

	case filter.ModePreset:
		now := e.opts.Now().UTC()
		return e.window(ctx, owner, repo, now.Add(-f.Window), now, f.Branch)

	case filter.ModeCustom:
		return e.window(ctx, owner, repo, f.Since, f.Until, f.Branch)

	default:
		return nil, fmt.Errorf("unsupported filter mode %q", f.Mode)
	}
}

// window fetches [since, until). The upstream until bound is inclusive,
// so commits authored exactly at until are dropped here.
func (e *Engine) window(ctx context.Context, owner, repo string, since, until time.Time, branch string) ([]models.Commit, error) {
	commits, err := e.src.Commits(ctx, owner, repo, github.CommitQuery{Since: since, Until: until, Branch: branch})
	if err != nil {
		return nil, err
	}
	out := make([]models.Commit, 0, len(commits))
	for _, c := range commits {
		if !c.AuthoredAt.IsZero() && !c.AuthoredAt.Before(until) {
			continue
		}
		out = append(out, c)
	}
	return merge([][]models.Commit{out}), nil
}

// resolveReleases resolves every selector with exactly one strategy and
// merges the results
func (e *Engine) resolveReleases(ctx context.Context, log *slog.Logger, owner, repo string, releases []filter.Release) ([]models.Commit, error) {
	sets := make([][]models.Commit, 0, len(releases))
	for _, r := range releases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var commits []models.Commit
		switch {
		case r.PreviousTag != "":
			commits = e.src.CommitsBetween(ctx, owner, repo, r.PreviousTag, r.Tag)

		case r.PublishedAt != nil:
			q := github.CommitQuery{
				Since:  r.PublishedAt.Add(-e.opts.ReleaseLookback),
				Until:  *r.PublishedAt,
				Branch: r.TargetBranch,
			}
			var err error
			commits, err = e.src.Commits(ctx, owner, repo, q)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				log.Warn("skipping release selector", "tag", r.Tag, "error", err)
				continue
			}

		default:
			commits = e.src.CommitsByTag(ctx, owner, repo, r.Tag)
		}
		// best-effort lookups come back empty when cancelled
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log.Debug("release selector resolved", "tag", r.Tag, "commits", len(commits))
		sets = append(sets, commits)
	}
	return merge(sets), nil
}

// merge deduplicates by SHA (first seen wins) and sorts by authored time,
// newest first, ties broken by SHA
func merge(sets [][]models.Commit) []models.Commit {
	seen := make(map[string]bool)
	out := []models.Commit{}
	for _, set := range sets {
		for _, c := range set {
			if c.SHA == "" || seen[c.SHA] {
				continue
			}
			seen[c.SHA] = true
			out = append(out, c)
		}
	}
	sortCommits(out)
	return out
}

func sortCommits(commits []models.Commit) {
	sort.SliceStable(commits, func(i, j int) bool {
		a, b := commits[i], commits[j]
		if !a.AuthoredAt.Equal(b.AuthoredAt) {
			return a.AuthoredAt.After(b.AuthoredAt)
		}
		return a.SHA < b.SHA
	})
}

func (e *Engine) filterByTags(ctx context.Context, owner, repo string, commits []models.Commit, include, exclude []string) ([]models.Commit, error) {
	tags, err := e.src.Tags(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]string)
	for _, t := range tags {
		index[t.CommitSHA] = append(index[t.CommitSHA], t.Name)
	}

	out := make([]models.Commit, 0, len(commits))
	for _, c := range commits {
		if keep(index[c.SHA], include, exclude) {
			out = append(out, c)
		}
	}
	return out, nil
}

// filterByLabels looks up labels one commit at a time, bounded by
// LabelConcurrency. Every lookup goes through the shared gateway.
func (e *Engine) filterByLabels(ctx context.Context, owner, repo string, commits []models.Commit, include, exclude []string) ([]models.Commit, error) {
	labels := make([][]string, len(commits))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.LabelConcurrency)
	for i, c := range commits {
		i, c := i, c
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			labels[i] = e.src.CommitLabels(ctx, owner, repo, c.SHA)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]models.Commit, 0, len(commits))
	for i, c := range commits {
		if keep(labels[i], include, exclude) {
			out = append(out, c)
		}
	}
	return out, nil
}

// keep applies include/exclude semantics to one commit's tokens
func keep(have, include, exclude []string) bool {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	if len(include) > 0 && !containsAny(set, include) {
		return false
	}
	if len(exclude) > 0 && containsAny(set, exclude) {
		return false
	}
	return true
}

func containsAny(set map[string]bool, tokens []string) bool {
	for _, t := range tokens {
		if set[t] {
			return true
		}
	}
	return false
}
