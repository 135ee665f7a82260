// Package filter validates and canonicalizes commit filter descriptions.
// Normalize is the only validation boundary: the selection engine trusts
// a Filter completely.
package filter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rohankatakam/patchnote/internal/errors"
)

// Mode selects how the base commit set is resolved
type Mode string

const (
	ModePreset  Mode = "preset"
	ModeCustom  Mode = "custom"
	ModeRelease Mode = "release"
)

// Preset names a fixed lookback window
type Preset string

const (
	Preset1Day   Preset = "1day"
	Preset1Week  Preset = "1week"
	Preset1Month Preset = "1month"
)

var presetWindows = map[Preset]time.Duration{
	Preset1Day:   24 * time.Hour,
	Preset1Week:  7 * 24 * time.Hour,
	Preset1Month: 30 * 24 * time.Hour,
}

// PresetWindow returns the lookback of a preset
func PresetWindow(p Preset) (time.Duration, bool) {
	d, ok := presetWindows[p]
	return d, ok
}

// CustomRange is the raw [since, until) pair
type CustomRange struct {
	Since string `json:"since" yaml:"since"`
	Until string `json:"until" yaml:"until"`
}

// ReleaseSelector is one raw release entry
type ReleaseSelector struct {
	Tag          string `json:"tag" yaml:"tag"`
	PreviousTag  string `json:"previousTag,omitempty" yaml:"previousTag,omitempty"`
	PublishedAt  string `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty"`
	TargetBranch string `json:"targetBranch,omitempty" yaml:"targetBranch,omitempty"`
}

// Description is a filter as supplied by a caller, before validation
type Description struct {
	Mode          string            `json:"mode" yaml:"mode"`
	Preset        string            `json:"preset,omitempty" yaml:"preset,omitempty"`
	CustomRange   *CustomRange      `json:"customRange,omitempty" yaml:"customRange,omitempty"`
	Releases      []ReleaseSelector `json:"releases,omitempty" yaml:"releases,omitempty"`
	Branch        string            `json:"branch,omitempty" yaml:"branch,omitempty"`
	IncludeLabels []string          `json:"includeLabels,omitempty" yaml:"includeLabels,omitempty"`
	ExcludeLabels []string          `json:"excludeLabels,omitempty" yaml:"excludeLabels,omitempty"`
	IncludeTags   []string          `json:"includeTags,omitempty" yaml:"includeTags,omitempty"`
	ExcludeTags   []string          `json:"excludeTags,omitempty" yaml:"excludeTags,omitempty"`
}

// Release is a validated release selector
type Release struct {
	Tag          string     `json:"tag"`
	PreviousTag  string     `json:"previousTag,omitempty"`
	PublishedAt  *time.Time `json:"publishedAt,omitempty"`
	TargetBranch string     `json:"targetBranch,omitempty"`
}

// Filter is a normalized, internally consistent filter
type Filter struct {
	Mode Mode `json:"mode"`

	// preset
	Preset Preset        `json:"preset,omitempty"`
	Window time.Duration `json:"window,omitempty"`

	// custom
	Since time.Time `json:"since,omitempty"`
	Until time.Time `json:"until,omitempty"`

	// release
	Releases []Release `json:"releases,omitempty"`

	// Branch scopes preset and custom windows, empty = default branch
	Branch string `json:"branch,omitempty"`

	// Token sets, trimmed, deduplicated and sorted
	IncludeLabels []string `json:"includeLabels,omitempty"`
	ExcludeLabels []string `json:"excludeLabels,omitempty"`
	IncludeTags   []string `json:"includeTags,omitempty"`
	ExcludeTags   []string `json:"excludeTags,omitempty"`
}

// HasTagFilter reports whether tag filtering applies
func (f Filter) HasTagFilter() bool {
	return len(f.IncludeTags) > 0 || len(f.ExcludeTags) > 0
}

// HasLabelFilter reports whether label filtering applies
func (f Filter) HasLabelFilter() bool {
	return len(f.IncludeLabels) > 0 || len(f.ExcludeLabels) > 0
}

// Decode reads a JSON Description
func Decode(r io.Reader) (Description, error) {
	var d Description
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Description{}, errors.FilterValidationErrorf("malformed filter: %v", err)
	}
	return d, nil
}

// Normalize validates d and returns its canonical form. Every failure is
// a filter validation error; no network access happens here.
func Normalize(d Description) (Filter, error) {
	f := Filter{
		Branch:        strings.TrimSpace(d.Branch),
		IncludeLabels: tokenSet(d.IncludeLabels),
		ExcludeLabels: tokenSet(d.ExcludeLabels),
		IncludeTags:   tokenSet(d.IncludeTags),
		ExcludeTags:   tokenSet(d.ExcludeTags),
	}

	// conflicting sets fail regardless of mode
	if both := intersect(f.IncludeLabels, f.ExcludeLabels); len(both) > 0 {
		return Filter{}, errors.FilterValidationErrorf("labels both included and excluded: %s", strings.Join(both, ", "))
	}
	if both := intersect(f.IncludeTags, f.ExcludeTags); len(both) > 0 {
		return Filter{}, errors.FilterValidationErrorf("tags both included and excluded: %s", strings.Join(both, ", "))
	}

	mode := Mode(strings.ToLower(strings.TrimSpace(d.Mode)))
	switch mode {
	case ModePreset:
		p := Preset(strings.ToLower(strings.TrimSpace(d.Preset)))
		window, ok := PresetWindow(p)
		if !ok {
			return Filter{}, errors.FilterValidationErrorf("unknown preset %q, expected one of 1day, 1week, 1month", d.Preset)
		}
		f.Preset = p
		f.Window = window

	case ModeCustom:
		if len(d.Releases) > 0 {
			return Filter{}, errors.FilterValidationError("custom range cannot be combined with release selectors")
		}
		if d.CustomRange == nil || strings.TrimSpace(d.CustomRange.Since) == "" || strings.TrimSpace(d.CustomRange.Until) == "" {
			return Filter{}, errors.FilterValidationError("custom mode requires both since and until")
		}
		since, err := ParseTime(d.CustomRange.Since)
		if err != nil {
			return Filter{}, errors.FilterValidationErrorf("invalid since: %v", err)
		}
		until, err := ParseTime(d.CustomRange.Until)
		if err != nil {
			return Filter{}, errors.FilterValidationErrorf("invalid until: %v", err)
		}
		if !since.Before(until) {
			return Filter{}, errors.FilterValidationErrorf("since (%s) must be before until (%s)",
				since.Format(time.RFC3339), until.Format(time.RFC3339))
		}
		f.Since, f.Until = since, until

	case ModeRelease:
		if d.CustomRange != nil {
			return Filter{}, errors.FilterValidationError("custom range cannot be combined with release selectors")
		}
		releases, err := normalizeReleases(d.Releases)
		if err != nil {
			return Filter{}, err
		}
		if len(releases) == 0 {
			return Filter{}, errors.FilterValidationError("release mode needs at least one release selector with a tag")
		}
		f.Releases = releases

	case "":
		return Filter{}, errors.FilterValidationError("mode is required: preset, custom or release")

	default:
		return Filter{}, errors.FilterValidationErrorf("unknown mode %q, expected preset, custom or release", d.Mode)
	}

	f.Mode = mode
	return f, nil
}

// normalizeReleases trims selectors, drops those without a tag and
// removes exact duplicates, keeping the first occurrence
func normalizeReleases(in []ReleaseSelector) ([]Release, error) {
	seen := make(map[string]bool)
	var out []Release
	for _, sel := range in {
		r := Release{
			Tag:          strings.TrimSpace(sel.Tag),
			PreviousTag:  strings.TrimSpace(sel.PreviousTag),
			TargetBranch: strings.TrimSpace(sel.TargetBranch),
		}
		if r.Tag == "" {
			continue
		}
		if p := strings.TrimSpace(sel.PublishedAt); p != "" {
			t, err := ParseTime(p)
			if err != nil {
				return nil, errors.FilterValidationErrorf("release %s: invalid publishedAt: %v", r.Tag, err)
			}
			r.PublishedAt = &t
		}

		key := releaseKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out, nil
}

func releaseKey(r Release) string {
	published := ""
	if r.PublishedAt != nil {
		published = r.PublishedAt.UTC().Format(time.RFC3339Nano)
	}
	return strings.Join([]string{r.Tag, r.PreviousTag, published, r.TargetBranch}, "\x00")
}

// ParseTime accepts YYYY-MM-DD (UTC midnight) or RFC 3339
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC 3339", s)
	}
	return t.UTC(), nil
}

// tokenSet trims, drops empties, deduplicates and sorts
func tokenSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, tok := range in {
		tok = strings.TrimSpace(tok)
		if tok == "" || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var both []string
	for _, v := range a {
		if set[v] {
			both = append(both, v)
		}
	}
	return both
}
