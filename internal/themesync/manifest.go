package themesync

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"themesync/internal/model"
)

// manifestPaths are the file names recognized as a theme manifest, in
// order of precedence. theme.json parses as YAML too.
var manifestPaths = []string{"theme.yaml", "theme.yml", "theme.json"}

// Manifest is the display metadata and typed settings a theme declares
// about itself.
type Manifest struct {
	Name        string              `yaml:"name"`
	DisplayName string              `yaml:"display_name"`
	Author      string              `yaml:"author"`
	Description string              `yaml:"description"`
	Version     string              `yaml:"version"`
	Settings    model.ThemeSettings `yaml:"settings"`
}

// ParseManifest decodes a manifest document. Unknown keys and unknown
// setting values are rejected with ErrValidation.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: parsing manifest: %v", ErrValidation, err)
	}
	if err := m.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w: manifest settings: %v", ErrValidation, err)
	}
	m.Settings = m.Settings.Normalized()
	return &m, nil
}

// findManifest locates and parses the manifest among scanned files.
// A theme without a manifest gets an empty one.
func findManifest(themeName string, files []*model.ScannedFile) (*Manifest, error) {
	byPath := make(map[string]*model.ScannedFile, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	for _, p := range manifestPaths {
		f, ok := byPath[p]
		if !ok {
			continue
		}
		m, err := ParseManifest(f.Content)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", themeName, p, err)
		}
		if m.Name != "" && m.Name != themeName {
			return nil, fmt.Errorf("%w: manifest %s/%s declares name %q", ErrValidation, themeName, p, m.Name)
		}
		return m, nil
	}
	return &Manifest{}, nil
}

// applyTo copies the manifest's metadata onto theme and reports whether
// anything changed.
func (m *Manifest) applyTo(theme *model.Theme) bool {
	changed := theme.DisplayName != m.DisplayName ||
		theme.Author != m.Author ||
		theme.Description != m.Description ||
		theme.DeclaredVersion != m.Version ||
		!theme.Settings.Equal(m.Settings)

	theme.DisplayName = m.DisplayName
	theme.Author = m.Author
	theme.Description = m.Description
	theme.DeclaredVersion = m.Version
	theme.Settings = m.Settings
	return changed
}
