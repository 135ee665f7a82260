package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rohankatakam/patchnote/internal/cache"
	"github.com/rohankatakam/patchnote/internal/config"
	"github.com/rohankatakam/patchnote/internal/github"
	"github.com/rohankatakam/patchnote/internal/logging"
	"github.com/rohankatakam/patchnote/internal/output"
	"github.com/rohankatakam/patchnote/internal/selection"
)

// app holds the per-invocation object graph
type app struct {
	log     *logging.Logger
	cache   *cache.ResponseCache
	gateway *github.Gateway
	repo    *github.Repository
	engine  *selection.Engine
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Require(); err != nil {
		return nil, err
	}
	for _, w := range cfg.Validate().Warnings {
		logger.Warn(w)
	}

	log, err := logging.NewLogger(logging.DefaultConfig(cfg.Log.Level, cfg.Log.File, cfg.Log.JSON))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	slogger := log.Slog()

	var rc *cache.ResponseCache
	if !noCache {
		rc, err = cache.NewFromConfig(ctx, cfg.Cache, log.Component("cache"))
		if err != nil {
			log.Close()
			return nil, err
		}
	}

	gw, err := github.NewGateway(github.GatewayOptionsFromConfig(cfg, slogger), github.NewGatewayContext(rc))
	if err != nil {
		rc.Close()
		log.Close()
		return nil, err
	}
	repo := github.NewRepository(gw, github.RepositoryOptionsFromConfig(cfg, slogger))

	return &app{
		log:     log,
		cache:   rc,
		gateway: gw,
		repo:    repo,
		engine:  selection.NewEngine(repo, selection.OptionsFromConfig(cfg, slogger)),
	}, nil
}

func (a *app) Close() {
	if stats := a.cache.Stats(); stats.Hits+stats.Misses > 0 {
		a.log.Debug("cache stats", "hits", stats.Hits, "misses", stats.Misses)
	}
	if err := a.cache.Close(); err != nil {
		a.log.Warn("failed to close cache", "error", err)
	}
	a.log.Close()
}

// resolveRepo returns owner/repo from --repo or the origin remote
func resolveRepo(ctx context.Context) (string, string, error) {
	if repoFlag != "" {
		return github.ParseRepoRef(repoFlag)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", "", err
	}
	owner, repo, err := github.RepoFromGitRemote(ctx, wd)
	if err != nil {
		return "", "", fmt.Errorf("no --repo given and the current directory has no usable origin remote: %w", err)
	}
	return owner, repo, nil
}

func render(w io.Writer, v any) error {
	format := output.DefaultFormat()
	if outputFlag != "" {
		f, err := output.ParseFormat(outputFlag)
		if err != nil {
			return err
		}
		format = f
	}
	return output.NewFormatter(format).Format(w, v)
}

// withRepo wires the common setup of repository commands
func withRepo(ctx context.Context, fn func(a *app, owner, repo string) error) error {
	owner, repo, err := resolveRepo(ctx)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a, owner, repo)
}
