package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"themesync/internal/model"
	"themesync/internal/themesync"
)

// MockThemeScanner is an in-memory theme tree for testing. Safe for
// concurrent use.
type MockThemeScanner struct {
	mu     sync.Mutex
	themes map[string]map[string][]byte
	dirs   map[string]string // dir -> theme it holds, for ScanDir
	errs   map[string]error
	flaky  map[string]*flakyScan
	scans  int
}

type flakyScan struct {
	err       error
	remaining int
}

// NewMockThemeScanner creates an empty mock scanner.
func NewMockThemeScanner() *MockThemeScanner {
	return &MockThemeScanner{
		themes: make(map[string]map[string][]byte),
		dirs:   make(map[string]string),
		errs:   make(map[string]error),
		flaky:  make(map[string]*flakyScan),
	}
}

// AddTheme registers an empty theme directory.
func (m *MockThemeScanner) AddTheme(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.themes[name]; !ok {
		m.themes[name] = make(map[string][]byte)
	}
}

// SetFile creates or overwrites a file, creating the theme if needed.
func (m *MockThemeScanner) SetFile(theme, filePath string, content []byte) {
	m.AddTheme(theme)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.themes[theme][filePath] = append([]byte(nil), content...)
}

// RemoveFile deletes a file from a theme.
func (m *MockThemeScanner) RemoveFile(theme, filePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.themes[theme], filePath)
}

// RemoveTheme deletes a theme directory entirely.
func (m *MockThemeScanner) RemoveTheme(theme string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.themes, theme)
}

// MapDir makes ScanDir(dir) return the files of theme.
func (m *MockThemeScanner) MapDir(dir, theme string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[dir] = theme
}

// SetError makes every scan of theme fail with err. A nil err clears it.
func (m *MockThemeScanner) SetError(theme string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, theme)
		return
	}
	m.errs[theme] = err
}

// FailNext makes the next n scans of theme fail with err, after which
// scans succeed again.
func (m *MockThemeScanner) FailNext(theme string, err error, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flaky[theme] = &flakyScan{err: err, remaining: n}
}

// Scans returns how many times Scan or ScanDir was called.
func (m *MockThemeScanner) Scans() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans
}

func (m *MockThemeScanner) Themes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.themes))
	for name := range m.themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockThemeScanner) Scan(ctx context.Context, themeName string) ([]*model.ScannedFile, error) {
	return m.scan(ctx, themeName, themeName)
}

func (m *MockThemeScanner) ScanDir(ctx context.Context, themeName, dir string) ([]*model.ScannedFile, error) {
	m.mu.Lock()
	source, ok := m.dirs[dir]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: theme directory %s", themesync.ErrNotFound, dir)
	}
	return m.scan(ctx, themeName, source)
}

func (m *MockThemeScanner) scan(ctx context.Context, themeName, source string) ([]*model.ScannedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++

	if err := m.errs[source]; err != nil {
		return nil, err
	}
	if f := m.flaky[source]; f != nil && f.remaining > 0 {
		f.remaining--
		return nil, f.err
	}
	files, ok := m.themes[source]
	if !ok {
		return nil, fmt.Errorf("%w: theme directory %s", themesync.ErrNotFound, source)
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]*model.ScannedFile, 0, len(paths))
	for _, p := range paths {
		out = append(out, &model.ScannedFile{
			ThemeName: themeName,
			Path:      p,
			FileType:  themesync.FileTypeOf(p),
			Content:   append([]byte(nil), files[p]...),
		})
	}
	return out, nil
}

// Compile-time check
var _ themesync.Scanner = (*MockThemeScanner)(nil)
