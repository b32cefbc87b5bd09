package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"themesync/internal/model"
	"themesync/internal/themesync"
)

// ThemeScanner reads theme directories from the real filesystem. Each
// subdirectory of root is one theme, named after the directory.
// It never touches the version store.
type ThemeScanner struct {
	root   string
	ignore []string
}

// NewThemeScanner creates a scanner over root. ignore patterns apply to
// every theme in addition to the defaults and each theme's .themeignore.
func NewThemeScanner(root string, ignore []string) *ThemeScanner {
	return &ThemeScanner{root: root, ignore: ignore}
}

// Root returns the directory the scanner discovers themes under.
func (s *ThemeScanner) Root() string {
	return s.root
}

// Themes returns the names of the theme directories under root, sorted.
// Hidden directories are skipped.
func (s *ThemeScanner) Themes(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: themes root %s", themesync.ErrNotFound, s.root)
		}
		return nil, fmt.Errorf("%w: reading themes root: %v", themesync.ErrIO, err)
	}

	var names []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Scan reads every tracked file of the named theme under root.
func (s *ThemeScanner) Scan(ctx context.Context, themeName string) ([]*model.ScannedFile, error) {
	return s.ScanDir(ctx, themeName, filepath.Join(s.root, themeName))
}

// ScanDir reads every regular, non-ignored file beneath dir. Paths are
// returned slash-separated and relative to dir, in lexical order.
// Symlinks and other special files are skipped.
func (s *ThemeScanner) ScanDir(ctx context.Context, themeName, dir string) ([]*model.ScannedFile, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: theme directory %s", themesync.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", themesync.ErrIO, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", themesync.ErrIO, dir)
	}

	rules, err := s.rulesFor(dir)
	if err != nil {
		return nil, err
	}

	var files []*model.ScannedFile
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		if rules.Ignored(relSlash, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, &model.ScannedFile{
			ThemeName: themeName,
			Path:      relSlash,
			FileType:  themesync.FileTypeOf(relSlash),
			Content:   content,
		})
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, fmt.Errorf("scan of %s aborted: %w", themeName, err)
		}
		return nil, fmt.Errorf("%w: walking %s: %v", themesync.ErrIO, dir, err)
	}

	return files, nil
}

// rulesFor layers the built-in, configured and per-theme ignore rules, so
// a theme's .themeignore can re-include what the config excludes.
func (s *ThemeScanner) rulesFor(dir string) (*IgnoreRules, error) {
	themeRules, err := ReadIgnoreFile(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", themesync.ErrIO, err)
	}
	lines := make([]string, 0, len(builtinIgnoreRules)+len(s.ignore)+len(themeRules))
	lines = append(lines, builtinIgnoreRules...)
	lines = append(lines, s.ignore...)
	lines = append(lines, themeRules...)
	return NewIgnoreRules(lines), nil
}

var _ themesync.Scanner = (*ThemeScanner)(nil)
