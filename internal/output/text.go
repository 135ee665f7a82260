package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rohankatakam/patchnote/internal/models"
)

// TextFormatter renders results as human-readable tables
type TextFormatter struct{}

func (f *TextFormatter) Format(w io.Writer, v any) error {
	switch val := v.(type) {
	case []models.Commit:
		return writeCommits(w, val)
	case []models.Branch:
		return writeTable(w, []string{"BRANCH", "PROTECTED"}, len(val), func(i int) []string {
			return []string{val[i].Name, yesNo(val[i].Protected)}
		})
	case []models.Tag:
		return writeTable(w, []string{"TAG", "COMMIT"}, len(val), func(i int) []string {
			return []string{val[i].Name, short(val[i].CommitSHA)}
		})
	case []models.Release:
		return writeTable(w, []string{"TAG", "NAME", "PREVIOUS", "PUBLISHED", "TARGET"}, len(val), func(i int) []string {
			r := val[i]
			return []string{r.TagName, r.Name, r.PreviousTag, date(r.PublishedAt), r.TargetBranch}
		})
	case []models.Label:
		return writeTable(w, []string{"LABEL", "DESCRIPTION"}, len(val), func(i int) []string {
			return []string{val[i].Name, val[i].Description}
		})
	case *models.PullRequestDetail:
		return writePullRequest(w, val)
	case models.StatsEstimate:
		return writeEstimate(w, val)
	case string:
		_, err := io.WriteString(w, val)
		return err
	default:
		return fmt.Errorf("no text rendering for %T", v)
	}
}

func writeTable(w io.Writer, header []string, n int, row func(int) []string) error {
	if n == 0 {
		_, err := fmt.Fprintln(w, "(none)")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i := 0; i < n; i++ {
		fmt.Fprintln(tw, strings.Join(row(i), "\t"))
	}
	return tw.Flush()
}

func writeCommits(w io.Writer, commits []models.Commit) error {
	if len(commits) == 0 {
		_, err := fmt.Fprintln(w, "No commits matched")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range commits {
		author := c.Author.Name
		if c.Author.Login != "" {
			author = "@" + c.Author.Login
		}
		title := c.Title()
		if ref := fmt.Sprintf("#%d", c.PullRequestNumber); c.PullRequestNumber > 0 && !strings.Contains(title, ref) {
			title += " (" + ref + ")"
		}
		line := fmt.Sprintf("%s\t%s\t%s\t%s", c.ShortSHA(), c.AuthoredAt.UTC().Format("2006-01-02"), author, title)
		if c.Stats != nil {
			line += fmt.Sprintf("\t+%d -%d", c.Stats.Additions, c.Stats.Deletions)
		}
		fmt.Fprintln(tw, line)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d commits\n", len(commits))
	return err
}

func writePullRequest(w io.Writer, pr *models.PullRequestDetail) error {
	if pr == nil {
		_, err := fmt.Fprintln(w, "Pull request unavailable")
		return err
	}
	fmt.Fprintf(w, "#%d %s\n", pr.Number, pr.Title)
	if len(pr.Labels) > 0 {
		fmt.Fprintf(w, "Labels: %s\n", strings.Join(pr.Labels, ", "))
	}
	if pr.LinkedIssue > 0 {
		fmt.Fprintf(w, "Linked issue (best guess): #%d\n", pr.LinkedIssue)
	}
	if body := strings.TrimSpace(pr.Body); body != "" {
		fmt.Fprintf(w, "\n%s\n", body)
	}
	if len(pr.Comments) > 0 {
		fmt.Fprintf(w, "\nComments (%d):\n", len(pr.Comments))
		for _, c := range pr.Comments {
			fmt.Fprintf(w, "- %s, %s: %s\n", c.Author, c.CreatedAt.UTC().Format("2006-01-02"), firstLine(c.Body))
		}
	}
	return nil
}

func writeEstimate(w io.Writer, est models.StatsEstimate) error {
	prefix := ""
	if est.Estimated {
		prefix = "~"
	}
	fmt.Fprintf(w, "Commits: %d\n", est.Total)
	fmt.Fprintf(w, "Additions: %s%d\n", prefix, est.Additions)
	fmt.Fprintf(w, "Deletions: %s%d\n", prefix, est.Deletions)
	if est.Estimated {
		_, err := fmt.Fprintf(w, "Estimated from a sample of %d commits\n", est.Sampled)
		return err
	}
	return nil
}

func short(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
