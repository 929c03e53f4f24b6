// Package pathutil resolves user-supplied local paths to absolute,
// symlink-free form so every entry point anchors sessions the same way.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolve converts path to an absolute path with symlinks evaluated.
// An empty path resolves to the working directory and a leading ~ to the
// user's home. When the path does not exist yet, the deepest existing
// ancestor is resolved and the missing components are appended, so a
// destination inside a symlinked folder (Downloads on Windows is often a
// junction) still lands in the real location.
func Resolve(path string) (string, error) {
	if path == "" {
		return os.Getwd()
	}

	if path == "~" || strings.HasPrefix(path, "~"+string(filepath.Separator)) || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = home + path[1:]
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	// Walk up to the deepest existing ancestor, resolve it, and graft
	// the missing tail back on.
	current := abs
	var tail []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs, nil
		}
		tail = append(tail, filepath.Base(current))
		current = parent
	}
}
