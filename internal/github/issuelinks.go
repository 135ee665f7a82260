package github

import (
	"regexp"
	"strconv"
)

var (
	// linkedIssuePattern matches "#12", "closes #12" and "fixes #12".
	// Only the first reference in the text is used.
	linkedIssuePattern = regexp.MustCompile(`(?i)(?:\b(?:close[sd]?|fix(?:e[sd])?)\s+)?#(\d+)\b`)

	squashMergePattern = regexp.MustCompile(`\(#(\d+)\)\s*$`)
	mergeCommitPattern = regexp.MustCompile(`^Merge pull request #(\d+)`)
)

// ExtractLinkedIssue returns the first issue number referenced in a pull
// request body, or 0. This is a best-effort text heuristic: it ignores
// every reference after the first and cannot tell an issue from a pull
// request number.
func ExtractLinkedIssue(body string) int {
	m := linkedIssuePattern.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// PullRequestNumberFromTitle recognizes the two title shapes GitHub
// produces when merging: "Title (#123)" for squash merges and
// "Merge pull request #123 from ..." for merge commits.
func PullRequestNumberFromTitle(title string) int {
	for _, re := range []*regexp.Regexp{squashMergePattern, mergeCommitPattern} {
		if m := re.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
	}
	return 0
}
