package tools

import (
	"context"

	"github.com/rohankatakam/patchnote/internal/models"
)

// Repository is the read surface the tools need
type Repository interface {
	Branches(ctx context.Context, owner, repo string) ([]models.Branch, error)
	Tags(ctx context.Context, owner, repo string) ([]models.Tag, error)
	Releases(ctx context.Context, owner, repo string) ([]models.Release, error)
	Labels(ctx context.Context, owner, repo string) ([]models.Label, error)
	CommitDiff(ctx context.Context, owner, repo, sha string) string
	PullRequestDetail(ctx context.Context, owner, repo string, number int) *models.PullRequestDetail
}

// ListTool serves one of the listing endpoints
type ListTool struct {
	description string
	defaultRepo string
	list        func(ctx context.Context, owner, repo string) (interface{}, error)
}

// NewListBranchesTool lists branches, default branch first
func NewListBranchesTool(r Repository, defaultRepo string) *ListTool {
	return &ListTool{
		description: "List repository branches, main/master first",
		defaultRepo: defaultRepo,
		list: func(ctx context.Context, owner, repo string) (interface{}, error) {
			return r.Branches(ctx, owner, repo)
		},
	}
}

// NewListTagsTool lists tags with the commit they point at
func NewListTagsTool(r Repository, defaultRepo string) *ListTool {
	return &ListTool{
		description: "List repository tags with the commit each points at",
		defaultRepo: defaultRepo,
		list: func(ctx context.Context, owner, repo string) (interface{}, error) {
			return r.Tags(ctx, owner, repo)
		},
	}
}

// NewListReleasesTool lists releases, newest first, with their previous tag
func NewListReleasesTool(r Repository, defaultRepo string) *ListTool {
	return &ListTool{
		description: "List releases newest first; previous_tag can feed a release selector",
		defaultRepo: defaultRepo,
		list: func(ctx context.Context, owner, repo string) (interface{}, error) {
			return r.Releases(ctx, owner, repo)
		},
	}
}

// NewListLabelsTool lists pull-request labels
func NewListLabelsTool(r Repository, defaultRepo string) *ListTool {
	return &ListTool{
		description: "List pull-request labels usable in label filters",
		defaultRepo: defaultRepo,
		list: func(ctx context.Context, owner, repo string) (interface{}, error) {
			return r.Labels(ctx, owner, repo)
		},
	}
}

func (t *ListTool) Description() string { return t.description }

func (t *ListTool) GetSchema() map[string]interface{} {
	return objectSchema(nil, map[string]interface{}{})
}

func (t *ListTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	owner, repo, err := RepoArgs(args, t.defaultRepo)
	if err != nil {
		return nil, err
	}
	return t.list(ctx, owner, repo)
}

// CommitDiffTool returns the unified diff of one commit
type CommitDiffTool struct {
	repo        Repository
	defaultRepo string
}

// NewCommitDiffTool creates a CommitDiffTool
func NewCommitDiffTool(r Repository, defaultRepo string) *CommitDiffTool {
	return &CommitDiffTool{repo: r, defaultRepo: defaultRepo}
}

func (t *CommitDiffTool) Description() string {
	return "Unified diff of a commit; empty when unavailable"
}

func (t *CommitDiffTool) GetSchema() map[string]interface{} {
	return objectSchema([]string{"sha"}, map[string]interface{}{
		"sha": map[string]interface{}{"type": "string", "description": "Commit SHA"},
	})
}

func (t *CommitDiffTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	owner, repo, err := RepoArgs(args, t.defaultRepo)
	if err != nil {
		return nil, err
	}
	sha, err := stringArg(args, "sha")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"sha":  sha,
		"diff": t.repo.CommitDiff(ctx, owner, repo, sha),
	}, nil
}

// PullRequestTool returns pull request detail with comments
type PullRequestTool struct {
	repo        Repository
	defaultRepo string
}

// NewPullRequestTool creates a PullRequestTool
func NewPullRequestTool(r Repository, defaultRepo string) *PullRequestTool {
	return &PullRequestTool{repo: r, defaultRepo: defaultRepo}
}

func (t *PullRequestTool) Description() string {
	return "Pull request title, body, labels and comments. linked_issue is a best-effort guess from the body."
}

func (t *PullRequestTool) GetSchema() map[string]interface{} {
	return objectSchema([]string{"number"}, map[string]interface{}{
		"number": map[string]interface{}{"type": "integer", "description": "Pull request number"},
	})
}

func (t *PullRequestTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	owner, repo, err := RepoArgs(args, t.defaultRepo)
	if err != nil {
		return nil, err
	}
	number, err := intArg(args, "number")
	if err != nil {
		return nil, err
	}
	// nil encodes as null when the lookup failed
	return t.repo.PullRequestDetail(ctx, owner, repo, number), nil
}
