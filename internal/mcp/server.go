package mcp

import (
	"log/slog"

	"github.com/rohankatakam/patchnote/internal/mcp/tools"
)

// NewServer builds a handler with every patchnote tool registered.
// defaultRepo ("owner/repo", may be empty) is used when a call omits repo.
func NewServer(repo tools.Repository, selector tools.Selector, defaultRepo string, logger *slog.Logger) *Handler {
	h := NewHandler(logger)
	h.RegisterTool("list_branches", tools.NewListBranchesTool(repo, defaultRepo))
	h.RegisterTool("list_tags", tools.NewListTagsTool(repo, defaultRepo))
	h.RegisterTool("list_releases", tools.NewListReleasesTool(repo, defaultRepo))
	h.RegisterTool("list_labels", tools.NewListLabelsTool(repo, defaultRepo))
	h.RegisterTool("select_commits", tools.NewSelectCommitsTool(selector, defaultRepo))
	h.RegisterTool("commit_diff", tools.NewCommitDiffTool(repo, defaultRepo))
	h.RegisterTool("pull_request", tools.NewPullRequestTool(repo, defaultRepo))
	return h
}
