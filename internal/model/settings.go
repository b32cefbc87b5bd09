package model

import (
	"fmt"
	"sort"
)

// ColorScheme is the theme's default color scheme.
type ColorScheme string

const (
	ColorSchemeLight ColorScheme = "light"
	ColorSchemeDark  ColorScheme = "dark"
	ColorSchemeAuto  ColorScheme = "auto"
)

// Layout is the theme's page layout.
type Layout string

const (
	LayoutBoxed     Layout = "boxed"
	LayoutFullWidth Layout = "full-width"
)

// Feature is an optional capability a theme declares support for.
type Feature string

const (
	FeatureComments       Feature = "comments"
	FeatureSearch         Feature = "search"
	FeatureNewsletter     Feature = "newsletter"
	FeatureDarkModeToggle Feature = "dark-mode-toggle"
)

var knownFeatures = map[Feature]bool{
	FeatureComments:       true,
	FeatureSearch:         true,
	FeatureNewsletter:     true,
	FeatureDarkModeToggle: true,
}

// ThemeSettings is the typed option set a theme manifest may declare.
// The zero value is valid and means "use platform defaults".
type ThemeSettings struct {
	ColorScheme ColorScheme `json:"color_scheme,omitempty" yaml:"color_scheme,omitempty"`
	Layout      Layout      `json:"layout,omitempty" yaml:"layout,omitempty"`
	Features    []Feature   `json:"features,omitempty" yaml:"features,omitempty"`
}

// Validate reports the first unrecognized option.
func (s ThemeSettings) Validate() error {
	switch s.ColorScheme {
	case "", ColorSchemeLight, ColorSchemeDark, ColorSchemeAuto:
	default:
		return fmt.Errorf("unknown color_scheme %q", s.ColorScheme)
	}
	switch s.Layout {
	case "", LayoutBoxed, LayoutFullWidth:
	default:
		return fmt.Errorf("unknown layout %q", s.Layout)
	}
	seen := make(map[Feature]bool, len(s.Features))
	for _, f := range s.Features {
		if !knownFeatures[f] {
			return fmt.Errorf("unknown feature %q", f)
		}
		if seen[f] {
			return fmt.Errorf("duplicate feature %q", f)
		}
		seen[f] = true
	}
	return nil
}

// Normalized returns a copy with features sorted, so equal option sets
// compare and serialize identically.
func (s ThemeSettings) Normalized() ThemeSettings {
	out := s
	if len(s.Features) > 0 {
		out.Features = append([]Feature(nil), s.Features...)
		sort.Slice(out.Features, func(i, j int) bool { return out.Features[i] < out.Features[j] })
	} else {
		out.Features = nil
	}
	return out
}

// Equal reports whether two settings hold the same options.
func (s ThemeSettings) Equal(o ThemeSettings) bool {
	a, b := s.Normalized(), o.Normalized()
	if a.ColorScheme != b.ColorScheme || a.Layout != b.Layout || len(a.Features) != len(b.Features) {
		return false
	}
	for i := range a.Features {
		if a.Features[i] != b.Features[i] {
			return false
		}
	}
	return true
}

// HasFeature reports whether the feature is enabled.
func (s ThemeSettings) HasFeature(f Feature) bool {
	for _, have := range s.Features {
		if have == f {
			return true
		}
	}
	return false
}
