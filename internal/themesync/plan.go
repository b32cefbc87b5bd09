package themesync

import (
	"fmt"
	"sort"

	"themesync/internal/model"
)

// fileChange is one scanned file that differs from tracked state.
type fileChange struct {
	file     *model.ScannedFile
	checksum string
	tracked  *model.TrackedFile // nil for a new path
}

// syncPlan classifies a theme's scanned files against its tracked files.
type syncPlan struct {
	created   []fileChange
	changed   []fileChange
	unchanged []string
	missing   []string
}

func (p *syncPlan) hasChanges() bool {
	return len(p.created) > 0 || len(p.changed) > 0
}

// planSync compares disk state against tracked state without writing
// anything. Tracked paths absent from disk are reported as missing.
// The result lists paths in sorted order.
func planSync(scanned []*model.ScannedFile, tracked map[string]*model.TrackedFile) (*syncPlan, error) {
	plan := &syncPlan{}
	seen := make(map[string]bool, len(scanned))

	for _, f := range scanned {
		if err := ValidatePath(f.Path); err != nil {
			return nil, err
		}
		if seen[f.Path] {
			return nil, fmt.Errorf("%w: duplicate path %q", ErrValidation, f.Path)
		}
		seen[f.Path] = true

		digest := Digest(f.Content)
		t, ok := tracked[f.Path]
		switch {
		case !ok:
			plan.created = append(plan.created, fileChange{file: f, checksum: digest})
		case t.Checksum != digest:
			plan.changed = append(plan.changed, fileChange{file: f, checksum: digest, tracked: t})
		default:
			plan.unchanged = append(plan.unchanged, f.Path)
		}
	}

	for path := range tracked {
		if !seen[path] {
			plan.missing = append(plan.missing, path)
		}
	}

	sortChanges(plan.created)
	sortChanges(plan.changed)
	sort.Strings(plan.unchanged)
	sort.Strings(plan.missing)
	return plan, nil
}

func sortChanges(c []fileChange) {
	sort.Slice(c, func(i, j int) bool { return c[i].file.Path < c[j].file.Path })
}
