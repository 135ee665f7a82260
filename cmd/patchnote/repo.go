package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/patchnote/internal/errors"
)

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List branches, main/master first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(a *app, owner, repo string) error {
			branches, err := a.repo.Branches(cmd.Context(), owner, repo)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), branches)
		})
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(a *app, owner, repo string) error {
			tags, err := a.repo.Tags(cmd.Context(), owner, repo)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), tags)
		})
	},
}

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "List releases, newest first, with the previous tag of each",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(a *app, owner, repo string) error {
			releases, err := a.repo.Releases(cmd.Context(), owner, repo)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), releases)
		})
	},
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "List pull-request labels",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(a *app, owner, repo string) error {
			labels, err := a.repo.Labels(cmd.Context(), owner, repo)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), labels)
		})
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff <sha>",
	Short: "Print the unified diff of a commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo(cmd.Context(), func(a *app, owner, repo string) error {
			diff := a.repo.CommitDiff(cmd.Context(), owner, repo, args[0])
			if diff == "" {
				logger.Warnf("No diff available for %s", args[0])
				return nil
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), diff)
			return err
		})
	},
}

var prCmd = &cobra.Command{
	Use:   "pr <number>",
	Short: "Show a pull request with its comments",
	Long: `Show a pull request with its comments.

The linked issue is a best guess: the first "#N", "closes #N" or
"fixes #N" reference in the description.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number <= 0 {
			return errors.ConfigErrorf("invalid pull request number %q", args[0])
		}
		return withRepo(cmd.Context(), func(a *app, owner, repo string) error {
			return render(cmd.OutOrStdout(), a.repo.PullRequestDetail(cmd.Context(), owner, repo, number))
		})
	},
}
