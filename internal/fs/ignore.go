package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-theme ignore file read from a theme's root.
const IgnoreFileName = ".themeignore"

// builtinIgnoreRules apply to every theme before configured and per-theme rules.
var builtinIgnoreRules = []string{IgnoreFileName, ".git/", ".DS_Store"}

type ignoreRule struct {
	glob     string
	anchored bool // matched against the whole theme-relative path
	dirOnly  bool
	negate   bool
}

// IgnoreRules decides which entries of a theme tree are left untracked.
// Rules use a subset of .gitignore syntax:
//
//	name       a file or directory with that name at any depth
//	dir/name   anchored at the theme root, as is /name
//	name/      directories only
//	!rule      re-includes what an earlier rule excluded
//
// The last matching rule wins. A skipped directory is never descended
// into, so nothing beneath it can be re-included.
type IgnoreRules struct {
	rules []ignoreRule
}

// NewIgnoreRules parses rule lines. Blank lines, comments and malformed
// globs are dropped.
func NewIgnoreRules(lines []string) *IgnoreRules {
	r := &IgnoreRules{}
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var rule ignoreRule
		if strings.HasPrefix(line, "!") {
			rule.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			rule.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		rule.anchored = strings.Contains(line, "/")
		rule.glob = strings.TrimPrefix(line, "/")
		if rule.glob == "" {
			continue
		}
		if _, err := path.Match(rule.glob, ""); err != nil {
			continue
		}
		r.rules = append(r.rules, rule)
	}
	return r
}

// Ignored reports whether the entry at relPath should be skipped. relPath
// is slash-separated and relative to the theme root, as scanned paths are.
func (r *IgnoreRules) Ignored(relPath string, isDir bool) bool {
	name := path.Base(relPath)
	ignored := false
	for _, rule := range r.rules {
		if rule.dirOnly && !isDir {
			continue
		}
		target := name
		if rule.anchored {
			target = relPath
		}
		if ok, _ := path.Match(rule.glob, target); ok {
			ignored = !rule.negate
		}
	}
	return ignored
}

// ReadIgnoreFile returns the rule lines of dir's .themeignore, or nil when
// the theme has none.
func ReadIgnoreFile(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, IgnoreFileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", IgnoreFileName, err)
	}
	return strings.Split(string(data), "\n"), nil
}
