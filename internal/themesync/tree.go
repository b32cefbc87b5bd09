package themesync

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"themesync/internal/model"
)

// TreeNode is a directory or file in a theme's tracked file tree.
type TreeNode struct {
	Name           string      `json:"name"`
	Path           string      `json:"path"`
	IsDir          bool        `json:"is_dir"`
	FileType       string      `json:"file_type,omitempty"`
	CurrentVersion int         `json:"current_version,omitempty"`
	Children       []*TreeNode `json:"children,omitempty"`
}

// Tree returns the theme's tracked files as a nested directory structure.
// The root node is named after the theme.
func (s *Service) Tree(ctx context.Context, name string) (*TreeNode, error) {
	if _, err := s.Theme(ctx, name); err != nil {
		return nil, err
	}

	files, err := s.store.ListThemeFiles(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("listing files of %s: %w", name, err)
	}

	root, err := BuildTree(files)
	if err != nil {
		return nil, err
	}
	root.Name = name
	return root, nil
}

// BuildTree groups flat file paths by segment into a tree. Directories
// sort before files, each group alphabetically. A path that is used both
// as a file and as a directory is a validation error.
func BuildTree(files []*model.ThemeFile) (*TreeNode, error) {
	root := &TreeNode{IsDir: true}
	dirs := map[string]*TreeNode{"": root}
	leaves := map[string]bool{}

	for _, f := range files {
		if err := ValidatePath(f.Path); err != nil {
			return nil, err
		}
		if leaves[f.Path] || dirs[f.Path] != nil {
			return nil, fmt.Errorf("%w: path %q conflicts with another entry", ErrValidation, f.Path)
		}

		segments := strings.Split(f.Path, "/")
		parent := root
		for i, seg := range segments[:len(segments)-1] {
			dirPath := strings.Join(segments[:i+1], "/")
			if leaves[dirPath] {
				return nil, fmt.Errorf("%w: %q is both a file and a directory", ErrValidation, dirPath)
			}
			dir, ok := dirs[dirPath]
			if !ok {
				dir = &TreeNode{Name: seg, Path: dirPath, IsDir: true}
				dirs[dirPath] = dir
				parent.Children = append(parent.Children, dir)
			}
			parent = dir
		}

		leaves[f.Path] = true
		parent.Children = append(parent.Children, &TreeNode{
			Name:           segments[len(segments)-1],
			Path:           f.Path,
			FileType:       f.FileType,
			CurrentVersion: f.CurrentVersion,
		})
	}

	sortTree(root)
	return root, nil
}

func sortTree(n *TreeNode) {
	sort.Slice(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.IsDir != b.IsDir {
			return a.IsDir
		}
		return a.Name < b.Name
	})
	for _, c := range n.Children {
		if c.IsDir {
			sortTree(c)
		}
	}
}
