package model

import "time"

// Theme is one discoverable theme. Name is the stable slug (the theme's
// directory name). At most one theme has Active set at any time.
type Theme struct {
	ID              string        `json:"id"`                         // UUID
	Name            string        `json:"name"`                       // Unique slug
	DisplayName     string        `json:"display_name,omitempty"`
	Author          string        `json:"author,omitempty"`
	Description     string        `json:"description,omitempty"`
	DeclaredVersion string        `json:"declared_version,omitempty"` // Version string from the theme manifest
	Settings        ThemeSettings `json:"settings"`
	SourceDir       string        `json:"source_dir,omitempty"`       // Set when synced from an explicit directory
	Active          bool          `json:"active"`
	ActivatedAt     *time.Time    `json:"activated_at,omitempty"`
	ActivatedBy     string        `json:"activated_by,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ThemeVersion groups every file version created by one sync pass.
// It is never mutated after creation except for IsLive, IsPreview and PublishedAt.
type ThemeVersion struct {
	ID            string     `json:"id"`     // UUID
	ThemeName     string     `json:"theme"`
	Number        int        `json:"number"` // 1, 2, 3... per theme
	Label         string     `json:"label"`
	IsLive        bool       `json:"is_live"`
	IsPreview     bool       `json:"is_preview"`
	Author        string     `json:"author"`
	ChangeSummary string     `json:"change_summary"`
	CreatedAt     time.Time  `json:"created_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// ThemeFile is the current pointer for one path within a theme.
// CurrentVersion always equals the newest ThemeFileVersion.VersionNumber.
type ThemeFile struct {
	ID             string    `json:"id"`               // UUID
	ThemeName      string    `json:"theme"`
	Path           string    `json:"path"`             // Slash-separated, relative to the theme root
	FileType       string    `json:"file_type"`        // Lowercased extension without the dot
	CurrentVersion int       `json:"current_version"`
	ThemeVersionID string    `json:"theme_version_id"` // Batch that last touched this file
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ThemeFileVersion is one immutable revision of a file. This is the only
// place file content is stored.
type ThemeFileVersion struct {
	ID             string    `json:"id"`       // UUID
	ThemeFileID    string    `json:"theme_file_id"`
	ThemeVersionID string    `json:"theme_version_id"`
	VersionNumber  int       `json:"version_number"`
	Content        []byte    `json:"-"`
	Size           int64     `json:"size"`
	Checksum       string    `json:"checksum"` // SHA-256, lowercase hex
	Author         string    `json:"author"`
	ChangeSummary  string    `json:"change_summary"`
	CreatedAt      time.Time `json:"created_at"`
}

// TrackedFile is the store's view of a path's current state, used by the
// sync and drift comparisons.
type TrackedFile struct {
	FileID         string
	Path           string
	CurrentVersion int
	Checksum       string
}

// ScannedFile is one file discovered on disk by a scanner.
type ScannedFile struct {
	ThemeName string
	Path      string
	FileType  string
	Content   []byte
}

// Operation records a mutating command run against the store.
type Operation struct {
	ID         int64      `json:"id"`
	Operation  string     `json:"operation"`
	Parameters string     `json:"parameters,omitempty"`
	Actor      string     `json:"actor"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
