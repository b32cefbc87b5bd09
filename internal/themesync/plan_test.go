package themesync

import (
	"errors"
	"reflect"
	"testing"

	"themesync/internal/model"
)

func TestPlanSync(t *testing.T) {
	scanned := []*model.ScannedFile{
		{Path: "templates/index.json", Content: []byte("v2")},
		{Path: "layout/theme.liquid", Content: []byte("same")},
		{Path: "assets/app.css", Content: []byte("new")},
	}
	tracked := map[string]*model.TrackedFile{
		"templates/index.json": {FileID: "f1", Path: "templates/index.json", CurrentVersion: 1, Checksum: Digest([]byte("v1"))},
		"layout/theme.liquid":  {FileID: "f2", Path: "layout/theme.liquid", CurrentVersion: 3, Checksum: Digest([]byte("same"))},
		"snippets/old.liquid":  {FileID: "f3", Path: "snippets/old.liquid", CurrentVersion: 1, Checksum: Digest([]byte("gone"))},
	}

	plan, err := planSync(scanned, tracked)
	if err != nil {
		t.Fatalf("planSync() error = %v", err)
	}

	if len(plan.created) != 1 || plan.created[0].file.Path != "assets/app.css" {
		t.Errorf("created = %v, want [assets/app.css]", plan.created)
	}
	if plan.created[0].tracked != nil {
		t.Error("created entry has a tracked file")
	}
	if len(plan.changed) != 1 || plan.changed[0].tracked.FileID != "f1" {
		t.Errorf("changed = %v, want [templates/index.json]", plan.changed)
	}
	if plan.changed[0].checksum != Digest([]byte("v2")) {
		t.Errorf("changed checksum = %s, want digest of new content", plan.changed[0].checksum)
	}
	if !reflect.DeepEqual(plan.unchanged, []string{"layout/theme.liquid"}) {
		t.Errorf("unchanged = %v", plan.unchanged)
	}
	if !reflect.DeepEqual(plan.missing, []string{"snippets/old.liquid"}) {
		t.Errorf("missing = %v", plan.missing)
	}
	if !plan.hasChanges() {
		t.Error("hasChanges() = false, want true")
	}
}

func TestPlanSync_NoChanges(t *testing.T) {
	scanned := []*model.ScannedFile{{Path: "a.css", Content: []byte("x")}}
	tracked := map[string]*model.TrackedFile{"a.css": {FileID: "f1", Path: "a.css", CurrentVersion: 1, Checksum: Digest([]byte("x"))}}

	plan, err := planSync(scanned, tracked)
	if err != nil {
		t.Fatalf("planSync() error = %v", err)
	}
	if plan.hasChanges() {
		t.Error("hasChanges() = true for identical content")
	}
}

func TestPlanSync_Invalid(t *testing.T) {
	t.Run("malformed path", func(t *testing.T) {
		_, err := planSync([]*model.ScannedFile{{Path: "../x"}}, nil)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("planSync() error = %v, want ErrValidation", err)
		}
	})

	t.Run("duplicate path", func(t *testing.T) {
		_, err := planSync([]*model.ScannedFile{{Path: "a"}, {Path: "a"}}, nil)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("planSync() error = %v, want ErrValidation", err)
		}
	})
}
