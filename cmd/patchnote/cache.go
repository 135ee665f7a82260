package main

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/patchnote/internal/cache"
	"github.com/rohankatakam/patchnote/internal/github"
	"github.com/rohankatakam/patchnote/internal/output"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the response cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached response",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rc, err := cache.NewFromConfig(cmd.Context(), cfg.Cache, nil)
		if err != nil {
			return err
		}
		defer rc.Close()

		if err := rc.Clear(cmd.Context()); err != nil {
			return err
		}
		logger.Infof("Cleared %s cache", cfg.Cache.Backend)
		return nil
	},
}

// rateLimitRow is one family in `ratelimit` output
type rateLimitRow struct {
	Family    string    `json:"family" yaml:"family"`
	Limit     int       `json:"limit" yaml:"limit"`
	Remaining int       `json:"remaining" yaml:"remaining"`
	Reset     time.Time `json:"reset" yaml:"reset"`
}

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Show the remaining API quota",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		// the rate_limit endpoint itself does not count against the quota
		if _, err := a.gateway.Execute(cmd.Context(), "rate_limit", github.RequestOptions{}); err != nil {
			return err
		}

		var rows []rateLimitRow
		for family, st := range a.gateway.RateLimits() {
			rows = append(rows, rateLimitRow{Family: family, Limit: st.Limit, Remaining: st.Remaining, Reset: st.Reset})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].Family < rows[j].Family })
		for _, r := range rows {
			logger.Infof("%s: %d/%d remaining, resets %s", r.Family, r.Remaining, r.Limit, r.Reset.Local().Format(time.Kitchen))
		}
		if f, _ := output.ParseFormat(outputFlag); outputFlag != "" && f != output.FormatText {
			return render(cmd.OutOrStdout(), rows)
		}
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
