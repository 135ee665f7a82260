package models

import (
	"strings"
	"time"
)

// Author identifies who wrote a commit
type Author struct {
	Name  string `json:"name" yaml:"name"`
	Login string `json:"login,omitempty" yaml:"login,omitempty"` // Platform handle, empty when the email is not linked to an account
}

// LineStats holds added/removed line counts for a commit
type LineStats struct {
	Additions int `json:"additions" yaml:"additions"`
	Deletions int `json:"deletions" yaml:"deletions"`
}

// Commit is an immutable projection of a remote commit
type Commit struct {
	SHA               string     `json:"sha" yaml:"sha"`
	Author            Author     `json:"author" yaml:"author"`
	AuthoredAt        time.Time  `json:"authored_at" yaml:"authored_at"`
	Message           string     `json:"message" yaml:"message"`
	Stats             *LineStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	PullRequestNumber int        `json:"pull_request,omitempty" yaml:"pull_request,omitempty"`
}

// Title returns the first line of the commit message
func (c Commit) Title() string {
	title, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(title)
}

// Body returns everything after the first line, trimmed
func (c Commit) Body() string {
	_, body, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(body)
}

// ShortSHA returns the 7-character abbreviation
func (c Commit) ShortSHA() string {
	if len(c.SHA) > 7 {
		return c.SHA[:7]
	}
	return c.SHA
}

// Tag points a name at a commit
type Tag struct {
	Name      string `json:"name" yaml:"name"`
	CommitSHA string `json:"commit_sha" yaml:"commit_sha"`
}

// Release is a user-facing grouping over a tag
type Release struct {
	TagName      string     `json:"tag_name" yaml:"tag_name"`
	Name         string     `json:"name,omitempty" yaml:"name,omitempty"`
	PreviousTag  string     `json:"previous_tag,omitempty" yaml:"previous_tag,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	TargetBranch string     `json:"target_branch,omitempty" yaml:"target_branch,omitempty"`
}

// Label is a pull-request label
type Label struct {
	Name        string `json:"name" yaml:"name"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Branch is a listed branch
type Branch struct {
	Name      string `json:"name" yaml:"name"`
	Protected bool   `json:"protected" yaml:"protected"`
}

// Comment is a single pull-request conversation comment
type Comment struct {
	Author    string    `json:"author" yaml:"author"`
	Body      string    `json:"body" yaml:"body"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// PullRequestDetail is the pull request view used for note generation
type PullRequestDetail struct {
	Number   int       `json:"number" yaml:"number"`
	Title    string    `json:"title" yaml:"title"`
	Body     string    `json:"body" yaml:"body"`
	Labels   []string  `json:"labels,omitempty" yaml:"labels,omitempty"`
	Comments []Comment `json:"comments,omitempty" yaml:"comments,omitempty"`

	// LinkedIssue comes from a pattern match over Body (see github.ExtractLinkedIssue).
	// It is a heuristic: only the first reference is kept, 0 when none matched.
	LinkedIssue int `json:"linked_issue,omitempty" yaml:"linked_issue,omitempty"`
}

// StatsEstimate is an aggregate of line changes over a commit set.
// When Estimated is true the totals were extrapolated from Sampled commits
// and are an approximation, not an exact count.
type StatsEstimate struct {
	Additions int  `json:"additions" yaml:"additions"`
	Deletions int  `json:"deletions" yaml:"deletions"`
	Sampled   int  `json:"sampled" yaml:"sampled"`
	Total     int  `json:"total" yaml:"total"`
	Estimated bool `json:"estimated" yaml:"estimated"`
}
