package filter

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/patchnote/internal/errors"
)

func requireValidationError(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrFilterValidation), "want filter validation error, got %v", err)
	assert.Contains(t, err.Error(), contains)
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name     string
		desc     Description
		contains string
	}{
		{
			name: "custom range end before start",
			desc: Description{Mode: "custom", CustomRange: &CustomRange{Since: "2024-01-02", Until: "2024-01-01"}},
			contains: "must be before",
		},
		{
			name:     "custom range empty",
			desc:     Description{Mode: "custom", CustomRange: &CustomRange{Since: "2024-01-01", Until: "2024-01-01"}},
			contains: "must be before",
		},
		{
			name:     "custom missing bound",
			desc:     Description{Mode: "custom", CustomRange: &CustomRange{Since: "2024-01-01"}},
			contains: "both since and until",
		},
		{
			name:     "custom without range",
			desc:     Description{Mode: "custom"},
			contains: "both since and until",
		},
		{
			name:     "custom with bad date",
			desc:     Description{Mode: "custom", CustomRange: &CustomRange{Since: "yesterday", Until: "2024-01-01"}},
			contains: "invalid since",
		},
		{
			name: "custom combined with releases",
			desc: Description{Mode: "custom", CustomRange: &CustomRange{Since: "2024-01-01", Until: "2024-01-02"},
				Releases: []ReleaseSelector{{Tag: "v1"}}},
			contains: "cannot be combined",
		},
		{
			name: "release combined with custom range",
			desc: Description{Mode: "release", CustomRange: &CustomRange{Since: "2024-01-01", Until: "2024-01-02"},
				Releases: []ReleaseSelector{{Tag: "v1"}}},
			contains: "cannot be combined",
		},
		{
			name:     "label in include and exclude without mode",
			desc:     Description{IncludeLabels: []string{"a"}, ExcludeLabels: []string{"a"}},
			contains: "labels both included and excluded",
		},
		{
			name:     "label conflict after trimming",
			desc:     Description{Mode: "preset", Preset: "1day", IncludeLabels: []string{" bug "}, ExcludeLabels: []string{"bug"}},
			contains: "bug",
		},
		{
			name:     "tag conflict",
			desc:     Description{Mode: "preset", Preset: "1day", IncludeTags: []string{"v1", "v2"}, ExcludeTags: []string{"v2"}},
			contains: "tags both included and excluded: v2",
		},
		{
			name:     "release mode without selectors",
			desc:     Description{Mode: "release", Releases: []ReleaseSelector{}},
			contains: "at least one release selector",
		},
		{
			name:     "release selectors without tags",
			desc:     Description{Mode: "release", Releases: []ReleaseSelector{{PreviousTag: "v1"}, {Tag: "  "}}},
			contains: "at least one release selector",
		},
		{
			name:     "release bad publishedAt",
			desc:     Description{Mode: "release", Releases: []ReleaseSelector{{Tag: "v1", PublishedAt: "soon"}}},
			contains: "invalid publishedAt",
		},
		{
			name:     "unknown preset",
			desc:     Description{Mode: "preset", Preset: "1year"},
			contains: "unknown preset",
		},
		{
			name:     "missing mode",
			desc:     Description{},
			contains: "mode is required",
		},
		{
			name:     "unknown mode",
			desc:     Description{Mode: "sprint"},
			contains: "unknown mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.desc)
			requireValidationError(t, err, tt.contains)
			assert.True(t, strings.HasPrefix(errors.UserMessage(err), "invalid filter:"))
		})
	}
}

func TestNormalizePreset(t *testing.T) {
	f, err := Normalize(Description{
		Mode:        " Preset ",
		Preset:      "1WEEK",
		Branch:      " develop ",
		IncludeTags: []string{"v1.1", " v1.1", "", "v1.0"},
	})
	require.NoError(t, err)

	assert.Equal(t, ModePreset, f.Mode)
	assert.Equal(t, Preset1Week, f.Preset)
	assert.Equal(t, 7*24*time.Hour, f.Window)
	assert.Equal(t, "develop", f.Branch)
	assert.Equal(t, []string{"v1.0", "v1.1"}, f.IncludeTags)
	assert.True(t, f.HasTagFilter())
	assert.False(t, f.HasLabelFilter())
}

func TestPresetWindows(t *testing.T) {
	for preset, want := range map[Preset]time.Duration{
		Preset1Day:   24 * time.Hour,
		Preset1Week:  168 * time.Hour,
		Preset1Month: 720 * time.Hour,
	} {
		got, ok := PresetWindow(preset)
		require.True(t, ok)
		assert.Equal(t, want, got, preset)
	}
}

func TestNormalizeCustom(t *testing.T) {
	f, err := Normalize(Description{
		Mode:        "custom",
		CustomRange: &CustomRange{Since: "2024-01-01", Until: "2024-01-02T12:30:00+02:00"},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeCustom, f.Mode)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), f.Since)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC), f.Until)
}

func TestNormalizeReleasesDedupAndDrop(t *testing.T) {
	f, err := Normalize(Description{
		Mode: "release",
		Releases: []ReleaseSelector{
			{Tag: "v1.1", PreviousTag: "v1.0"},
			{Tag: ""},
			{Tag: " v1.1 ", PreviousTag: "v1.0 "},
			{Tag: "v1.2", PublishedAt: "2024-03-01", TargetBranch: "main"},
		},
	})
	require.NoError(t, err)
	require.Len(t, f.Releases, 2)

	assert.Equal(t, Release{Tag: "v1.1", PreviousTag: "v1.0"}, f.Releases[0])
	assert.Equal(t, "v1.2", f.Releases[1].Tag)
	require.NotNil(t, f.Releases[1].PublishedAt)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *f.Releases[1].PublishedAt)
	assert.Equal(t, "main", f.Releases[1].TargetBranch)
}

func TestDecode(t *testing.T) {
	d, err := Decode(strings.NewReader(`{
		"mode": "release",
		"releases": [{"tag": "v2", "previousTag": "v1"}],
		"excludeLabels": ["chore"]
	}`))
	require.NoError(t, err)
	assert.Equal(t, "release", d.Mode)
	assert.Equal(t, []ReleaseSelector{{Tag: "v2", PreviousTag: "v1"}}, d.Releases)
	assert.Equal(t, []string{"chore"}, d.ExcludeLabels)

	_, err = Decode(strings.NewReader(`{"mode": "preset", "window": "1day"}`))
	requireValidationError(t, err, "malformed filter")
}
