package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/rohankatakam/patchnote/internal/config"
	"github.com/rohankatakam/patchnote/internal/logging"
	"github.com/rohankatakam/patchnote/internal/models"
)

// CacheTTLs are the caller-side cache tiers
type CacheTTLs struct {
	Short  time.Duration // mutable listings that change often (branches, commit labels)
	Medium time.Duration // tags, releases, labels, pull requests
	Long   time.Duration // immutable data: diffs and stats of authored commits
}

// RepositoryOptions configures a Repository
type RepositoryOptions struct {
	PerPage  int
	MaxPages int
	TTLs     CacheTTLs
	Logger   *slog.Logger
}

// RepositoryOptionsFromConfig maps configuration onto RepositoryOptions
func RepositoryOptionsFromConfig(cfg *config.Config, logger *slog.Logger) RepositoryOptions {
	return RepositoryOptions{
		PerPage:  cfg.Gateway.PerPage,
		MaxPages: cfg.Gateway.MaxPages,
		TTLs: CacheTTLs{
			Short:  cfg.Cache.ShortTTL,
			Medium: cfg.Cache.MediumTTL,
			Long:   cfg.Cache.LongTTL,
		},
		Logger: logger,
	}
}

// CommitQuery selects a time window of commits
type CommitQuery struct {
	Since    time.Time // inclusive, zero = unbounded
	Until    time.Time // zero = unbounded
	Branch   string    // empty = default branch
	MaxItems int       // 0 = bounded only by MaxPages
}

// Repository provides typed accessors over a GitHub repository.
//
// Authoritative listings return (value, error). Best-effort accessors
// (CommitsByTag, CommitsBetween, CommitStats, CommitDiff, CommitLabels,
// PullRequestDetail) never fail: they log a warning and return a
// documented default.
type Repository struct {
	gw     Requester
	opts   RepositoryOptions
	logger *slog.Logger
}

// NewRepository creates a repository over gw
func NewRepository(gw Requester, opts RepositoryOptions) *Repository {
	if opts.PerPage <= 0 || opts.PerPage > DefaultPerPage {
		opts.PerPage = DefaultPerPage
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	return &Repository{
		gw:     gw,
		opts:   opts,
		logger: logging.OrDiscard(opts.Logger).With("component", "repository"),
	}
}

func (r *Repository) pages(ttl time.Duration) PageOptions {
	return PageOptions{PerPage: r.opts.PerPage, MaxPages: r.opts.MaxPages, TTL: ttl}
}

func repoPath(owner, repo string) string {
	return fmt.Sprintf("repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
}

// Branches lists branches with main and master first, the rest alphabetical
func (r *Repository) Branches(ctx context.Context, owner, repo string) ([]models.Branch, error) {
	raw, err := Paginate[*github.Branch](ctx, r.gw, repoPath(owner, repo)+"/branches", r.pages(r.opts.TTLs.Short))
	if err != nil {
		return nil, fmt.Errorf("list branches of %s/%s: %w", owner, repo, err)
	}

	branches := make([]models.Branch, 0, len(raw))
	for _, b := range raw {
		branches = append(branches, toBranch(b))
	}
	SortBranches(branches)
	return branches, nil
}

// SortBranches orders main, then master, then the rest by name
func SortBranches(branches []models.Branch) {
	rank := func(name string) int {
		switch name {
		case "main":
			return 0
		case "master":
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(branches, func(i, j int) bool {
		ri, rj := rank(branches[i].Name), rank(branches[j].Name)
		if ri != rj {
			return ri < rj
		}
		return branches[i].Name < branches[j].Name
	})
}

// Tags lists tags in remote order
func (r *Repository) Tags(ctx context.Context, owner, repo string) ([]models.Tag, error) {
	raw, err := Paginate[*github.RepositoryTag](ctx, r.gw, repoPath(owner, repo)+"/tags", r.pages(r.opts.TTLs.Medium))
	if err != nil {
		return nil, fmt.Errorf("list tags of %s/%s: %w", owner, repo, err)
	}

	tags := make([]models.Tag, 0, len(raw))
	for _, t := range raw {
		tags = append(tags, toTag(t))
	}
	return tags, nil
}

// Releases lists releases newest first. PreviousTag is the tag of the
// next-older release in that order, empty for the oldest.
func (r *Repository) Releases(ctx context.Context, owner, repo string) ([]models.Release, error) {
	raw, err := Paginate[*github.RepositoryRelease](ctx, r.gw, repoPath(owner, repo)+"/releases", r.pages(r.opts.TTLs.Medium))
	if err != nil {
		return nil, fmt.Errorf("list releases of %s/%s: %w", owner, repo, err)
	}

	releases := make([]models.Release, 0, len(raw))
	for _, rel := range raw {
		releases = append(releases, toRelease(rel))
	}
	for i := 0; i+1 < len(releases); i++ {
		releases[i].PreviousTag = releases[i+1].TagName
	}
	return releases, nil
}

// Labels lists the repository's labels
func (r *Repository) Labels(ctx context.Context, owner, repo string) ([]models.Label, error) {
	raw, err := Paginate[*github.Label](ctx, r.gw, repoPath(owner, repo)+"/labels", r.pages(r.opts.TTLs.Medium))
	if err != nil {
		return nil, fmt.Errorf("list labels of %s/%s: %w", owner, repo, err)
	}

	labels := make([]models.Label, 0, len(raw))
	for _, l := range raw {
		labels = append(labels, toLabel(l))
	}
	return labels, nil
}

// Commits fetches a time window of commits. Windows are too varied to
// cache usefully, so this always goes to the network.
func (r *Repository) Commits(ctx context.Context, owner, repo string, q CommitQuery) ([]models.Commit, error) {
	params := map[string]string{"sha": q.Branch}
	if !q.Since.IsZero() {
		params["since"] = q.Since.UTC().Format(time.RFC3339)
	}
	if !q.Until.IsZero() {
		params["until"] = q.Until.UTC().Format(time.RFC3339)
	}

	opts := r.pages(0)
	opts.MaxItems = q.MaxItems
	raw, err := Paginate[*github.RepositoryCommit](ctx, r.gw, withQuery(repoPath(owner, repo)+"/commits", params), opts)
	if err != nil {
		return nil, fmt.Errorf("list commits of %s/%s: %w", owner, repo, err)
	}
	return toCommits(raw), nil
}

// CommitsByTagResult lists commits reachable from tag, propagating failure
func (r *Repository) CommitsByTagResult(ctx context.Context, owner, repo, tag string) Result[[]models.Commit] {
	return Try(func() ([]models.Commit, error) {
		endpoint := withQuery(repoPath(owner, repo)+"/commits", map[string]string{"sha": tag})
		raw, err := Paginate[*github.RepositoryCommit](ctx, r.gw, endpoint, r.pages(r.opts.TTLs.Short))
		if err != nil {
			return nil, err
		}
		return toCommits(raw), nil
	})
}

// CommitsByTag lists commits reachable from tag; empty on failure
func (r *Repository) CommitsByTag(ctx context.Context, owner, repo, tag string) []models.Commit {
	return Safe(r.logger, "commits by tag", []models.Commit{}, r.CommitsByTagResult(ctx, owner, repo, tag).Unwrap,
		"owner", owner, "repo", repo, "tag", tag)
}

// CommitsBetweenResult lists the commits in base...head, propagating failure
func (r *Repository) CommitsBetweenResult(ctx context.Context, owner, repo, base, head string) Result[[]models.Commit] {
	return Try(func() ([]models.Commit, error) {
		endpoint := fmt.Sprintf("%s/compare/%s...%s", repoPath(owner, repo), url.PathEscape(base), url.PathEscape(head))
		raw, err := PaginateFunc[*github.RepositoryCommit](ctx, r.gw, endpoint, r.pages(r.opts.TTLs.Medium), decodeComparison)
		if err != nil {
			return nil, err
		}
		return toCommits(raw), nil
	})
}

// CommitsBetween lists the commits in base...head; empty on failure
func (r *Repository) CommitsBetween(ctx context.Context, owner, repo, base, head string) []models.Commit {
	return Safe(r.logger, "compare refs", []models.Commit{}, r.CommitsBetweenResult(ctx, owner, repo, base, head).Unwrap,
		"owner", owner, "repo", repo, "base", base, "head", head)
}

func decodeComparison(resp *Response) ([]*github.RepositoryCommit, error) {
	var cmp github.CommitsComparison
	if err := resp.Decode(&cmp); err != nil {
		return nil, err
	}
	return cmp.Commits, nil
}

// CommitStats returns added/removed line counts; zeros on failure
func (r *Repository) CommitStats(ctx context.Context, owner, repo, sha string) models.LineStats {
	return Safe(r.logger, "commit stats", models.LineStats{}, func() (models.LineStats, error) {
		resp, err := r.gw.Cached(ctx, repoPath(owner, repo)+"/commits/"+url.PathEscape(sha), RequestOptions{}, r.opts.TTLs.Long)
		if err != nil {
			return models.LineStats{}, err
		}
		var rc github.RepositoryCommit
		if err := resp.Decode(&rc); err != nil {
			return models.LineStats{}, err
		}
		return models.LineStats{
			Additions: rc.GetStats().GetAdditions(),
			Deletions: rc.GetStats().GetDeletions(),
		}, nil
	}, "owner", owner, "repo", repo, "sha", sha)
}

// CommitDiff returns the unified diff of a commit; empty on failure
func (r *Repository) CommitDiff(ctx context.Context, owner, repo, sha string) string {
	return Safe(r.logger, "commit diff", "", func() (string, error) {
		resp, err := r.gw.Cached(ctx, repoPath(owner, repo)+"/commits/"+url.PathEscape(sha),
			RequestOptions{Accept: MediaTypeDiff, Raw: true}, r.opts.TTLs.Long)
		if err != nil {
			return "", err
		}
		return resp.Text(), nil
	}, "owner", owner, "repo", repo, "sha", sha)
}

// CommitLabels returns the labels of every pull request associated with
// the commit, deduplicated in first-seen order; empty on failure
func (r *Repository) CommitLabels(ctx context.Context, owner, repo, sha string) []string {
	return Safe(r.logger, "commit labels", []string{}, func() ([]string, error) {
		prs, err := Paginate[*github.PullRequest](ctx, r.gw,
			repoPath(owner, repo)+"/commits/"+url.PathEscape(sha)+"/pulls", r.pages(r.opts.TTLs.Short))
		if err != nil {
			return nil, err
		}
		seen := make(map[string]bool)
		labels := []string{}
		for _, pr := range prs {
			for _, l := range pr.Labels {
				name := l.GetName()
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				labels = append(labels, name)
			}
		}
		return labels, nil
	}, "owner", owner, "repo", repo, "sha", sha)
}

// PullRequestDetail fetches a pull request with its conversation
// comments; nil on failure
func (r *Repository) PullRequestDetail(ctx context.Context, owner, repo string, number int) *models.PullRequestDetail {
	return Safe(r.logger, "pull request detail", (*models.PullRequestDetail)(nil), func() (*models.PullRequestDetail, error) {
		n := strconv.Itoa(number)
		resp, err := r.gw.Cached(ctx, repoPath(owner, repo)+"/pulls/"+n, RequestOptions{}, r.opts.TTLs.Medium)
		if err != nil {
			return nil, err
		}
		var pr github.PullRequest
		if err := resp.Decode(&pr); err != nil {
			return nil, err
		}

		comments, err := Paginate[*github.IssueComment](ctx, r.gw,
			repoPath(owner, repo)+"/issues/"+n+"/comments", r.pages(r.opts.TTLs.Medium))
		if err != nil {
			return nil, err
		}

		detail := &models.PullRequestDetail{
			Number:      pr.GetNumber(),
			Title:       pr.GetTitle(),
			Body:        pr.GetBody(),
			LinkedIssue: ExtractLinkedIssue(pr.GetBody()),
		}
		for _, l := range pr.Labels {
			detail.Labels = append(detail.Labels, l.GetName())
		}
		for _, c := range comments {
			detail.Comments = append(detail.Comments, toComment(c))
		}
		return detail, nil
	}, "owner", owner, "repo", repo, "number", number)
}
