package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rohankatakam/patchnote/internal/filter"
	"github.com/rohankatakam/patchnote/internal/models"
)

// Selector resolves filters into commits
type Selector interface {
	Select(ctx context.Context, owner, repo string, f filter.Filter) ([]models.Commit, error)
	EstimateChanges(ctx context.Context, owner, repo string, commits []models.Commit) (models.StatsEstimate, error)
}

// SelectCommitsTool implements select_commits
type SelectCommitsTool struct {
	selector    Selector
	defaultRepo string
}

// NewSelectCommitsTool creates a SelectCommitsTool
func NewSelectCommitsTool(s Selector, defaultRepo string) *SelectCommitsTool {
	return &SelectCommitsTool{selector: s, defaultRepo: defaultRepo}
}

func (t *SelectCommitsTool) Description() string {
	return "Select commits by time window, date range or release, narrowed by tag and label sets. Newest first."
}

func (t *SelectCommitsTool) GetSchema() map[string]interface{} {
	tokens := map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}
	return objectSchema([]string{"filter"}, map[string]interface{}{
		"filter": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"mode":   map[string]interface{}{"type": "string", "enum": []string{"preset", "custom", "release"}},
				"preset": map[string]interface{}{"type": "string", "enum": []string{"1day", "1week", "1month"}},
				"customRange": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"since": map[string]interface{}{"type": "string"},
						"until": map[string]interface{}{"type": "string"},
					},
				},
				"releases": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"tag":          map[string]interface{}{"type": "string"},
							"previousTag":  map[string]interface{}{"type": "string"},
							"publishedAt":  map[string]interface{}{"type": "string"},
							"targetBranch": map[string]interface{}{"type": "string"},
						},
					},
				},
				"branch":        map[string]interface{}{"type": "string"},
				"includeLabels": tokens,
				"excludeLabels": tokens,
				"includeTags":   tokens,
				"excludeTags":   tokens,
			},
		},
		"estimate_changes": map[string]interface{}{
			"type":        "boolean",
			"description": "Also return an additions/deletions estimate sampled from the result",
		},
	})
}

// SelectCommitsResult is the select_commits payload
type SelectCommitsResult struct {
	Commits  []models.Commit       `json:"commits"`
	Count    int                   `json:"count"`
	Estimate *models.StatsEstimate `json:"estimate,omitempty"`
}

func (t *SelectCommitsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	owner, repo, err := RepoArgs(args, t.defaultRepo)
	if err != nil {
		return nil, err
	}
	raw, ok := args["filter"]
	if !ok {
		return nil, fmt.Errorf("filter is required")
	}

	// round-trip through JSON so the same strict decoder as the CLI applies
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	desc, err := filter.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	f, err := filter.Normalize(desc)
	if err != nil {
		return nil, err
	}

	commits, err := t.selector.Select(ctx, owner, repo, f)
	if err != nil {
		return nil, err
	}
	result := &SelectCommitsResult{Commits: commits, Count: len(commits)}

	if estimate, _ := args["estimate_changes"].(bool); estimate {
		est, err := t.selector.EstimateChanges(ctx, owner, repo, commits)
		if err != nil {
			return nil, err
		}
		result.Estimate = &est
	}
	return result, nil
}
