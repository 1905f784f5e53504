package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrPathTraversal = fmt.Errorf("path traversal detected")
	ErrOutsideRoot   = fmt.Errorf("path is outside the allowed directory")
	ErrEmptyRoot     = fmt.Errorf("root directory is empty")
)

// Within reports an error unless path resolves to an entry strictly inside root.
func Within(root, path string) error {
	if root == "" {
		return ErrEmptyRoot
	}
	if strings.Contains(filepath.ToSlash(path), "/../") || strings.HasPrefix(filepath.ToSlash(path), "../") {
		return ErrPathTraversal
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve root: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return nil
}

// ValidateCacheName accepts only plain file names, never paths.
func ValidateCacheName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("invalid file name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return ErrPathTraversal
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("filename cannot start with hyphen")
	}
	return nil
}
