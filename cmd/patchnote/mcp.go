package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/patchnote/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the selection tools over MCP (JSON-RPC on stdio)",
	Long: `Serve the selection tools to an MCP client over stdio.

Tools: list_branches, list_tags, list_releases, list_labels,
select_commits, commit_diff, pull_request. The repository of the current
directory (or --repo) is the default for calls that omit "repo".
Logs go to stderr or the configured log file, never stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		defaultRepo := ""
		if owner, repo, err := resolveRepo(ctx); err == nil {
			defaultRepo = fmt.Sprintf("%s/%s", owner, repo)
		} else {
			logger.WithError(err).Debug("No default repository")
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		handler := mcp.NewServer(a.repo, a.engine, defaultRepo, a.log.Component("mcp"))
		handler.RegisterResource("patchnote://rate-limits", mcp.ResourceFunc(func(context.Context) (interface{}, error) {
			return a.gateway.RateLimits(), nil
		}))
		handler.RegisterResource("patchnote://cache-stats", mcp.ResourceFunc(func(context.Context) (interface{}, error) {
			return a.cache.Stats(), nil
		}))

		a.log.Info("mcp server started", "default_repo", defaultRepo)
		return mcp.NewStdioTransport(handler, os.Stdin, os.Stdout).Start(ctx)
	},
}
