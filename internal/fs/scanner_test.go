package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"themesync/internal/themesync"
)

// writeTree creates files under root from a map of slash paths to content.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for p, content := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("creating dir for %s: %v", p, err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("writing %s: %v", p, err)
		}
	}
}

func TestThemeScanner_Themes(t *testing.T) {
	t.Run("lists theme directories sorted", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{
			"nordic/theme.yaml": "name: nordic\n",
			"dawn/theme.yaml":   "name: dawn\n",
			".cache/x":          "x",
			"README.md":         "not a theme",
		})

		names, err := NewThemeScanner(root, nil).Themes(context.Background())
		if err != nil {
			t.Fatalf("Themes() error = %v", err)
		}
		if len(names) != 2 || names[0] != "dawn" || names[1] != "nordic" {
			t.Errorf("Themes() = %v, want [dawn nordic]", names)
		}
	})

	t.Run("missing root is not found", func(t *testing.T) {
		_, err := NewThemeScanner(filepath.Join(t.TempDir(), "nope"), nil).Themes(context.Background())
		if !errors.Is(err, themesync.ErrNotFound) {
			t.Errorf("Themes() error = %v, want ErrNotFound", err)
		}
	})
}

func TestThemeScanner_Scan(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"nordic/theme.yaml":              "name: nordic\n",
		"nordic/templates/index.json":    `{"sections":[]}`,
		"nordic/assets/App.CSS":          "body{}",
		"nordic/assets/app.css.map":      "{}",
		"nordic/.git/HEAD":               "ref: refs/heads/main",
		"nordic/.DS_Store":               "junk",
		"nordic/.themeignore":            "drafts\n",
		"nordic/drafts/wip.liquid":       "wip",
		"nordic/snippets/footer.liquid":  "<footer/>",
		"nordic/node_modules/pkg/x.js":   "x",
		"nordic/layout/theme.liquid.bak": "old",
	})

	scanner := NewThemeScanner(root, []string{"*.map", "node_modules", "*.bak"})
	files, err := scanner.Scan(context.Background(), "nordic")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	want := []string{"assets/App.CSS", "snippets/footer.liquid", "templates/index.json", "theme.yaml"}
	if len(files) != len(want) {
		var got []string
		for _, f := range files {
			got = append(got, f.Path)
		}
		t.Fatalf("Scan() paths = %v, want %v", got, want)
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Errorf("files[%d].Path = %q, want %q", i, f.Path, want[i])
		}
		if f.ThemeName != "nordic" {
			t.Errorf("files[%d].ThemeName = %q", i, f.ThemeName)
		}
	}
	if files[0].FileType != "css" {
		t.Errorf("FileType = %q, want lowercased css", files[0].FileType)
	}
	if string(files[2].Content) != `{"sections":[]}` {
		t.Errorf("Content = %q", files[2].Content)
	}
}

func TestThemeScanner_ScanDir(t *testing.T) {
	t.Run("explicit directory", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{"templates/page.json": "{}"})

		files, err := NewThemeScanner("/unused", nil).ScanDir(context.Background(), "custom", dir)
		if err != nil {
			t.Fatalf("ScanDir() error = %v", err)
		}
		if len(files) != 1 || files[0].Path != "templates/page.json" || files[0].ThemeName != "custom" {
			t.Errorf("ScanDir() = %+v", files)
		}
	})

	t.Run("empty files are kept", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{"assets/.keep": ""})

		files, err := NewThemeScanner("", nil).ScanDir(context.Background(), "x", dir)
		if err != nil {
			t.Fatalf("ScanDir() error = %v", err)
		}
		if len(files) != 1 || len(files[0].Content) != 0 {
			t.Errorf("ScanDir() = %+v", files)
		}
	})

	t.Run("symlinks are skipped", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{"real.css": "a"})
		if err := os.Symlink(filepath.Join(dir, "real.css"), filepath.Join(dir, "link.css")); err != nil {
			t.Skipf("symlinks unsupported: %v", err)
		}

		files, err := NewThemeScanner("", nil).ScanDir(context.Background(), "x", dir)
		if err != nil {
			t.Fatalf("ScanDir() error = %v", err)
		}
		if len(files) != 1 || files[0].Path != "real.css" {
			t.Errorf("ScanDir() = %+v, want only real.css", files)
		}
	})

	t.Run("missing directory is not found", func(t *testing.T) {
		_, err := NewThemeScanner(t.TempDir(), nil).Scan(context.Background(), "ghost")
		if !errors.Is(err, themesync.ErrNotFound) {
			t.Errorf("Scan() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("file instead of directory is an io error", func(t *testing.T) {
		root := t.TempDir()
		writeTree(t, root, map[string]string{"flat": "x"})
		_, err := NewThemeScanner(root, nil).Scan(context.Background(), "flat")
		if !errors.Is(err, themesync.ErrIO) {
			t.Errorf("Scan() error = %v, want ErrIO", err)
		}
	})

	t.Run("cancelled context aborts", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{"a.css": "a", "b.css": "b"})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewThemeScanner("", nil).ScanDir(ctx, "x", dir)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ScanDir() error = %v, want context.Canceled", err)
		}
	})
}
