package github

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rohankatakam/patchnote/internal/errors"
)

var (
	httpsRemotePattern = regexp.MustCompile(`^(?:https?|ssh|git)://(?:[^@/]+@)?[^/]+/([^/]+)/([^/]+?)/?$`)
	scpRemotePattern   = regexp.MustCompile(`^[^@\s]+@[^:\s]+:([^/]+)/([^/]+?)/?$`)
	repoRefPattern     = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ParseRepoRef splits "owner/repo". A full remote URL is accepted too.
func ParseRepoRef(ref string) (owner, repo string, err error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "://") || strings.Contains(ref, "@") {
		return ParseRemoteURL(ref)
	}
	owner, repo, ok := strings.Cut(strings.TrimSuffix(ref, ".git"), "/")
	if !ok || !repoRefPattern.MatchString(owner) || !repoRefPattern.MatchString(repo) {
		return "", "", errors.ConfigErrorf("invalid repository %q, expected owner/repo", ref)
	}
	return owner, repo, nil
}

// ParseRemoteURL extracts owner and repo from a git remote URL.
// Handles:
//   - https://github.com/owner/repo.git
//   - git@github.com:owner/repo.git
//   - ssh://git@ghe.example.com/owner/repo
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(strings.TrimSpace(remote), ".git")

	if m := httpsRemotePattern.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := scpRemotePattern.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", errors.ConfigErrorf("unable to parse remote URL %q", remote)
}

// RepoFromGitRemote resolves owner/repo from the origin remote of the
// git checkout at dir
func RepoFromGitRemote(ctx context.Context, dir string) (owner, repo string, err error) {
	cmd := exec.CommandContext(ctx, "git", "remote", "get-url", "origin")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("git remote failed: %w", err)
	}

	remote := strings.TrimSpace(string(out))
	if remote == "" {
		return "", "", fmt.Errorf("no git remote found")
	}
	return ParseRemoteURL(remote)
}
