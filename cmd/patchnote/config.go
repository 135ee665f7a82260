package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/patchnote/internal/config"
	"github.com/rohankatakam/patchnote/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage patchnote configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration (token masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		shown.GitHub.Token = config.MaskToken(cfg.GitHub.Token)
		format := output.FormatYAML
		if outputFlag == string(output.FormatJSON) {
			format = output.FormatJSON
		}
		if err := output.NewFormatter(format).Format(cmd.OutOrStdout(), &shown); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Token source: %s\n", config.NewKeyringManager().TokenSource(cfg))
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configLoaded != nil {
			return configLoaded
		}
		result := cfg.Validate()
		for _, w := range result.Warnings {
			logger.Warn(w)
		}
		if result.HasErrors() {
			return cfg.Require()
		}
		logger.Info("✅ Configuration is valid")
		return nil
	},
}

var forceInit bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := getConfigPath()

		if _, err := os.Stat(configPath); err == nil && !forceInit {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}

		if err := config.Default().Save(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "✅ Created configuration file: %s\n", configPath)
		fmt.Fprintln(cmd.OutOrStdout(), "\n💡 Next steps:")
		fmt.Fprintln(cmd.OutOrStdout(), "  1. Store your GitHub token: patchnote login")
		fmt.Fprintln(cmd.OutOrStdout(), "  2. Select commits: patchnote commits --preset 1week")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configValidateCmd, configInitCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".patchnote", "config.yaml")
}
