package main

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/patchnote/internal/errors"
	"github.com/rohankatakam/patchnote/internal/filter"
)

func TestFilterFlagsDefaultsToLastWeek(t *testing.T) {
	f, err := (&filterFlags{}).normalized(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, filter.ModePreset, f.Mode)
	assert.Equal(t, filter.Preset1Week, f.Preset)
}

func TestFilterFlagsCustomRange(t *testing.T) {
	flags := &filterFlags{since: "2024-01-01", until: "2024-02-01", branch: "develop", excludeLabels: []string{"chore"}}
	f, err := flags.normalized(nil)
	require.NoError(t, err)
	assert.Equal(t, filter.ModeCustom, f.Mode)
	assert.Equal(t, "develop", f.Branch)
	assert.Equal(t, []string{"chore"}, f.ExcludeLabels)

	_, err = (&filterFlags{since: "2024-01-01"}).normalized(nil)
	assert.Error(t, err, "missing until")
}

func TestFilterFlagsReleases(t *testing.T) {
	d, err := (&filterFlags{releases: []string{"v1.0..v1.1", "v1.1...v1.2", "v2.0"}}).description(nil)
	require.NoError(t, err)
	assert.Equal(t, string(filter.ModeRelease), d.Mode)
	assert.Equal(t, []filter.ReleaseSelector{
		{Tag: "v1.1", PreviousTag: "v1.0"},
		{Tag: "v1.2", PreviousTag: "v1.1"},
		{Tag: "v2.0"},
	}, d.Releases)
}

func TestFilterFlagsPresetIgnoresReleases(t *testing.T) {
	f, err := (&filterFlags{preset: "1day", releases: []string{"v1"}}).normalized(nil)
	require.NoError(t, err)
	assert.Equal(t, filter.ModePreset, f.Mode)
	assert.Empty(t, f.Releases)
}

func TestFilterFlagsFromStdinWithOverrides(t *testing.T) {
	stdin := strings.NewReader(`{"mode":"release","releases":[{"tag":"v3"}],"includeLabels":["feature"]}`)
	flags := &filterFlags{file: "-", includeLabels: []string{"fix"}}

	f, err := flags.normalized(stdin)
	require.NoError(t, err)
	assert.Equal(t, filter.ModeRelease, f.Mode)
	assert.Equal(t, []filter.Release{{Tag: "v3"}}, f.Releases)
	assert.Equal(t, []string{"feature", "fix"}, f.IncludeLabels)
}

func TestFilterFlagsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode":"custom","customRange":{"since":"2024-01-02","until":"2024-01-01"}}`), 0o600))

	_, err := (&filterFlags{file: path}).normalized(nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrFilterValidation))

	_, err = (&filterFlags{file: filepath.Join(t.TempDir(), "missing.json")}).normalized(nil)
	assert.Error(t, err)
}
