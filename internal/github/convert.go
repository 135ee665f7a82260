package github

import (
	"github.com/google/go-github/v57/github"

	"github.com/rohankatakam/patchnote/internal/models"
)

// Conversions from go-github schema types to the transient models.
// Loosely shaped payloads stop here.

func toCommit(rc *github.RepositoryCommit) models.Commit {
	c := models.Commit{
		SHA:     rc.GetSHA(),
		Message: rc.GetCommit().GetMessage(),
		Author: models.Author{
			Name:  rc.GetCommit().GetAuthor().GetName(),
			Login: rc.GetAuthor().GetLogin(),
		},
		AuthoredAt: rc.GetCommit().GetAuthor().GetDate().Time,
	}
	if c.Author.Name == "" {
		c.Author.Name = c.Author.Login
	}
	if rc.Stats != nil {
		c.Stats = &models.LineStats{
			Additions: rc.Stats.GetAdditions(),
			Deletions: rc.Stats.GetDeletions(),
		}
	}
	c.PullRequestNumber = PullRequestNumberFromTitle(c.Title())
	return c
}

func toCommits(rcs []*github.RepositoryCommit) []models.Commit {
	out := make([]models.Commit, 0, len(rcs))
	for _, rc := range rcs {
		if rc == nil || rc.GetSHA() == "" {
			continue
		}
		out = append(out, toCommit(rc))
	}
	return out
}

func toBranch(b *github.Branch) models.Branch {
	return models.Branch{Name: b.GetName(), Protected: b.GetProtected()}
}

func toTag(t *github.RepositoryTag) models.Tag {
	return models.Tag{Name: t.GetName(), CommitSHA: t.GetCommit().GetSHA()}
}

func toRelease(r *github.RepositoryRelease) models.Release {
	rel := models.Release{
		TagName:      r.GetTagName(),
		Name:         r.GetName(),
		TargetBranch: r.GetTargetCommitish(),
	}
	if r.PublishedAt != nil {
		t := r.PublishedAt.Time
		rel.PublishedAt = &t
	}
	return rel
}

func toLabel(l *github.Label) models.Label {
	return models.Label{Name: l.GetName(), Color: l.GetColor(), Description: l.GetDescription()}
}

func toComment(c *github.IssueComment) models.Comment {
	return models.Comment{
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		CreatedAt: c.GetCreatedAt().Time,
	}
}
