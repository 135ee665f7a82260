package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/patchnote/internal/config"
	"github.com/rohankatakam/patchnote/internal/errors"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile      string
	verbose      bool
	repoFlag     string
	outputFlag   string
	noCache      bool
	logger       *logrus.Logger
	cfg          *config.Config
	configLoaded error
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errors.UserMessage(err))
		if verbose {
			fmt.Fprint(os.Stderr, errors.Detail(err))
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "patchnote",
	Short: "Select the commits that go into a patch note",
	Long: `patchnote reads a GitHub repository's history and selects the commits
for a patch note: a time window, an explicit date range, or one or more
releases, narrowed by tag and label sets.

The repository defaults to the origin remote of the current directory.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		cfg, configLoaded = config.Load(cfgFile)
		if configLoaded != nil {
			logger.WithError(configLoaded).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}
		if verbose {
			cfg.Log.Level = "debug"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .patchnote/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "R", "", "repository as owner/repo (default: origin remote)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "", "output format: text, json or yaml")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "bypass the response cache")

	rootCmd.SetVersionTemplate(`patchnote {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(branchesCmd, tagsCmd, releasesCmd, labelsCmd)
	rootCmd.AddCommand(commitsCmd, statsCmd, diffCmd, prCmd)
	rootCmd.AddCommand(cacheCmd, configCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd)
	rootCmd.AddCommand(mcpCmd)
}
