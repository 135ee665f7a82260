package main

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/patchnote/internal/filter"
	"github.com/rohankatakam/patchnote/internal/models"
)

// filterFlags mirrors filter.Description on the command line
type filterFlags struct {
	file          string
	preset        string
	since         string
	until         string
	releases      []string
	branch        string
	includeLabels []string
	excludeLabels []string
	includeTags   []string
	excludeTags   []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "filter", "f", "", "JSON filter description file, or - for stdin")
	fl.StringVar(&f.preset, "preset", "", "lookback window: 1day, 1week or 1month")
	fl.StringVar(&f.since, "since", "", "custom range start (YYYY-MM-DD or RFC 3339)")
	fl.StringVar(&f.until, "until", "", "custom range end, exclusive")
	fl.StringSliceVar(&f.releases, "release", nil, "release selector TAG or PREVIOUS..TAG (repeatable)")
	fl.StringVarP(&f.branch, "branch", "b", "", "branch for time-window modes")
	fl.StringSliceVar(&f.includeLabels, "include-label", nil, "keep commits whose pull request has any of these labels")
	fl.StringSliceVar(&f.excludeLabels, "exclude-label", nil, "drop commits whose pull request has any of these labels")
	fl.StringSliceVar(&f.includeTags, "include-tag", nil, "keep commits carrying any of these tags")
	fl.StringSliceVar(&f.excludeTags, "exclude-tag", nil, "drop commits carrying any of these tags")
}

// description builds the raw filter. A --filter file is the base and
// flags given explicitly override it.
func (f *filterFlags) description(stdin io.Reader) (filter.Description, error) {
	var d filter.Description
	if f.file != "" {
		r := stdin
		if f.file != "-" {
			file, err := os.Open(f.file)
			if err != nil {
				return d, err
			}
			defer file.Close()
			r = file
		}
		var err error
		if d, err = filter.Decode(r); err != nil {
			return d, err
		}
	}

	switch {
	case f.preset != "":
		d.Mode, d.Preset = string(filter.ModePreset), f.preset
	case f.since != "" || f.until != "":
		d.Mode = string(filter.ModeCustom)
		d.CustomRange = &filter.CustomRange{Since: f.since, Until: f.until}
	}

	if len(f.releases) > 0 {
		if d.Mode == "" {
			d.Mode = string(filter.ModeRelease)
		}
		for _, r := range f.releases {
			sel := filter.ReleaseSelector{Tag: r}
			if prev, tag, ok := strings.Cut(r, ".."); ok {
				sel = filter.ReleaseSelector{Tag: strings.TrimPrefix(tag, "."), PreviousTag: prev}
			}
			d.Releases = append(d.Releases, sel)
		}
	}

	if d.Mode == "" && f.file == "" {
		d.Mode, d.Preset = string(filter.ModePreset), string(filter.Preset1Week)
	}
	if f.branch != "" {
		d.Branch = f.branch
	}
	d.IncludeLabels = append(d.IncludeLabels, f.includeLabels...)
	d.ExcludeLabels = append(d.ExcludeLabels, f.excludeLabels...)
	d.IncludeTags = append(d.IncludeTags, f.includeTags...)
	d.ExcludeTags = append(d.ExcludeTags, f.excludeTags...)
	return d, nil
}

func (f *filterFlags) normalized(stdin io.Reader) (filter.Filter, error) {
	d, err := f.description(stdin)
	if err != nil {
		return filter.Filter{}, err
	}
	return filter.Normalize(d)
}

var (
	commitsFilter filterFlags
	withStats     bool
	statsFilter   filterFlags
)

var commitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Select commits, newest first",
	Long: `Select commits for a patch note, newest first.

Exactly one mode applies: --preset, --since/--until, or --release.
Without any of them the last week is used. Tag and label sets narrow
the result; label filters cost one request per commit.`,
	Example: `  patchnote commits --preset 1month --exclude-label chore
  patchnote commits --since 2024-01-01 --until 2024-02-01 -b develop
  patchnote commits --release v1.0..v1.1 --release v1.2
  patchnote commits --filter filter.json -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := commitsFilter.normalized(cmd.InOrStdin())
		if err != nil {
			return err
		}
		return withRepo(cmd.Context(), func(a *app, owner, repo string) error {
			commits, err := a.engine.Select(cmd.Context(), owner, repo, f)
			if err != nil {
				return err
			}
			if withStats {
				if err := a.engine.EnrichStats(cmd.Context(), owner, repo, commits); err != nil {
					return err
				}
			}
			return render(cmd.OutOrStdout(), commits)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Estimate additions and deletions over a commit selection",
	Long: `Estimate additions and deletions over a commit selection.

Large selections are sampled: the totals are extrapolated from the first
selection.stats_sample_size commits and marked as estimated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := statsFilter.normalized(cmd.InOrStdin())
		if err != nil {
			return err
		}
		return withRepo(cmd.Context(), func(a *app, owner, repo string) error {
			commits, err := a.engine.Select(cmd.Context(), owner, repo, f)
			if err != nil {
				return err
			}
			var est models.StatsEstimate
			if est, err = a.engine.EstimateChanges(cmd.Context(), owner, repo, commits); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), est)
		})
	},
}

func init() {
	commitsFilter.register(commitsCmd)
	commitsCmd.Flags().BoolVar(&withStats, "stats", false, "fetch line stats for every commit")
	statsFilter.register(statsCmd)
}
