// Package localfs provides the local side of the dual-tree file manager:
// directory listings, navigation targets, and the file operations that
// mirror what remote backends offer. Consolidating this here keeps hidden
// file handling and listing shape identical everywhere the local tree
// appears.
package localfs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/halyard-dev/halyard/internal/backend"
)

// IsHiddenName returns true if the given filename (not path) represents a
// hidden file. Special entries "." and ".." are not considered hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}

// ListOptions configures List.
type ListOptions struct {
	// IncludeHidden includes dotfiles in results. Default is false.
	IncludeHidden bool
}

// Tree exposes local filesystem operations; paths are absolute. It exists
// so the session layer can hold one value for "the local side" and so
// listings come back in the same shape remote backends produce.
type Tree struct {
	Options ListOptions
}

// List lists a local directory.
func (t *Tree) List(path string) (*backend.Listing, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, backend.Classify(backend.OpList, err)
	}

	listing := &backend.Listing{Path: path}
	for _, entry := range entries {
		name := entry.Name()
		if !t.Options.IncludeHidden && IsHiddenName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Entries that cannot be statted (permissions, races)
			// are omitted rather than failing the listing.
			continue
		}
		listing.Entries = append(listing.Entries, backend.Entry{
			Name:        name,
			Path:        filepath.Join(path, name),
			IsDir:       entry.IsDir(),
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Permissions: info.Mode().String(),
		})
	}
	return listing, nil
}

// Exists reports whether path exists and whether it is a directory.
func (t *Tree) Exists(path string) (exists, isDir bool) {
	info, err := os.Stat(path)
	if err != nil {
		return false, false
	}
	return true, info.IsDir()
}

// MakeDir creates a directory (with parents).
func (t *Tree) MakeDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return backend.Classify(backend.OpMakeDir, err)
	}
	return nil
}

// DeleteFile removes a single file.
func (t *Tree) DeleteFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return backend.Classify(backend.OpDeleteFile, err)
	}
	if info.IsDir() {
		return backend.NewError(backend.OpDeleteFile, backend.ErrUnknown,
			fmt.Errorf("%s is a directory", path))
	}
	if err := os.Remove(path); err != nil {
		return backend.Classify(backend.OpDeleteFile, err)
	}
	return nil
}

// DeleteDir removes a directory tree.
func (t *Tree) DeleteDir(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return backend.Classify(backend.OpDeleteDir, err)
	}
	return nil
}

// Rename renames a file or directory.
func (t *Tree) Rename(from, to string) error {
	if err := os.Rename(from, to); err != nil {
		return backend.Classify(backend.OpRename, err)
	}
	return nil
}
