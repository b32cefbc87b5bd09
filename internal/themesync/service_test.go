package themesync_test

import (
	"context"
	"errors"
	"testing"

	"themesync/internal/database"
	"themesync/internal/model"
	"themesync/internal/testutil"
	"themesync/internal/themesync"
)

const actor = "ada@example.com"

type fixture struct {
	svc     *themesync.Service
	store   *database.SQLStore
	scanner *testutil.MockThemeScanner
	clock   *testutil.ManualClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewTestStore(t)
	scanner := testutil.NewMockThemeScanner()
	clock := testutil.NewManualClock()
	return &fixture{
		svc:     themesync.NewService(store, scanner, nil, clock, nil),
		store:   store,
		scanner: scanner,
		clock:   clock,
	}
}

func (f *fixture) sync(t *testing.T, name string) *themesync.SyncReport {
	t.Helper()
	report, err := f.svc.Sync(context.Background(), name, themesync.SyncOptions{Actor: actor})
	if err != nil {
		t.Fatalf("Sync(%s) error = %v", name, err)
	}
	return report
}

func (f *fixture) versions(t *testing.T, name string) []*model.ThemeVersion {
	t.Helper()
	versions, err := f.store.ListThemeVersions(context.Background(), name)
	if err != nil {
		t.Fatalf("ListThemeVersions() error = %v", err)
	}
	return versions
}

func TestService_Themes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	themes, err := f.svc.Themes(ctx)
	if err != nil {
		t.Fatalf("Themes() error = %v", err)
	}
	if len(themes) != 0 {
		t.Errorf("Themes() = %d themes, want 0", len(themes))
	}

	f.scanner.SetFile("nordic", "a.css", []byte("a"))
	f.scanner.SetFile("dawn", "b.css", []byte("b"))
	f.sync(t, "nordic")
	f.sync(t, "dawn")

	themes, err = f.svc.Themes(ctx)
	if err != nil {
		t.Fatalf("Themes() error = %v", err)
	}
	if len(themes) != 2 || themes[0].Name != "dawn" || themes[1].Name != "nordic" {
		t.Errorf("Themes() not ordered by name: %+v", themes)
	}
}

func TestService_Theme(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Theme(ctx, "nordic"); !errors.Is(err, themesync.ErrNotFound) {
		t.Errorf("Theme() unknown error = %v, want ErrNotFound", err)
	}
	if _, err := f.svc.Theme(ctx, "Bad Name"); !errors.Is(err, themesync.ErrValidation) {
		t.Errorf("Theme() invalid name error = %v, want ErrValidation", err)
	}

	f.scanner.SetFile("nordic", "a.css", []byte("a"))
	f.sync(t, "nordic")

	theme, err := f.svc.Theme(ctx, "nordic")
	if err != nil {
		t.Fatalf("Theme() error = %v", err)
	}
	if theme.Name != "nordic" || theme.Active {
		t.Errorf("Theme() = %+v", theme)
	}
	if !theme.CreatedAt.Equal(f.clock.Now()) {
		t.Errorf("CreatedAt = %v, want %v", theme.CreatedAt, f.clock.Now())
	}
}

func TestService_ActiveTheme(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.ActiveTheme(ctx); !errors.Is(err, themesync.ErrNotFound) {
		t.Errorf("ActiveTheme() before activation error = %v, want ErrNotFound", err)
	}

	f.scanner.SetFile("nordic", "a.css", []byte("a"))
	f.sync(t, "nordic")
	if _, err := f.svc.Activate(ctx, "nordic", actor); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}

	active, err := f.svc.ActiveTheme(ctx)
	if err != nil {
		t.Fatalf("ActiveTheme() error = %v", err)
	}
	if active.Name != "nordic" {
		t.Errorf("ActiveTheme() = %s, want nordic", active.Name)
	}
}

func TestService_BatchFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.scanner.SetFile("nordic", "a.css", []byte("a"))
	f.scanner.SetFile("nordic", "b.css", []byte("b"))
	first := f.sync(t, "nordic")

	f.scanner.SetFile("nordic", "b.css", []byte("b2"))
	second := f.sync(t, "nordic")

	files, err := f.svc.BatchFiles(ctx, "nordic", first.VersionID)
	if err != nil {
		t.Fatalf("BatchFiles() error = %v", err)
	}
	if len(files) != 2 {
		t.Errorf("first batch has %d files, want 2", len(files))
	}

	files, err = f.svc.BatchFiles(ctx, "nordic", second.VersionID)
	if err != nil {
		t.Fatalf("BatchFiles() error = %v", err)
	}
	if len(files) != 1 || files[0].VersionNumber != 2 {
		t.Errorf("second batch = %+v, want one file at version 2", files)
	}

	f.scanner.SetFile("dawn", "x.css", []byte("x"))
	f.sync(t, "dawn")
	if _, err := f.svc.BatchFiles(ctx, "dawn", first.VersionID); !errors.Is(err, themesync.ErrNotFound) {
		t.Errorf("BatchFiles() with another theme's version error = %v, want ErrNotFound", err)
	}
}
