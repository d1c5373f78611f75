package utils

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ValidatePath validates that a file path is safe and does not contain
// directory traversal attempts.
func ValidatePath(path string, allowAbsolute bool) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal: %s", path)
	}

	if !allowAbsolute && filepath.IsAbs(cleanPath) {
		return fmt.Errorf("absolute paths not allowed: %s", path)
	}

	return nil
}

// ValidateAbsoluteDir validates that path is an absolute, traversal-free
// directory path. Validation never touches the filesystem; whoever uses the
// directory creates it.
func ValidateAbsoluteDir(path string) error {
	if path == "" {
		return fmt.Errorf("directory path cannot be empty")
	}
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return fmt.Errorf("directory must be an absolute path: %s", path)
	}
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("directory path contains traversal: %s", path)
	}
	return nil
}
