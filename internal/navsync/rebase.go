// Package navsync mirrors directory changes between the remote and local
// trees of a session, anchored at the base-path pair captured when the
// user enables mirroring.
package navsync

import (
	"path"
	"path/filepath"
	"strings"
)

// relRemote returns the slash-separated path of p relative to base. ok is
// false when p lies outside base. Navigating to the base itself yields "".
func relRemote(base, p string) (string, bool) {
	base = path.Clean(base)
	p = path.Clean(p)
	if p == base {
		return "", true
	}
	prefix := base
	if prefix != "/" {
		prefix += "/"
	}
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	return strings.TrimPrefix(p, prefix), true
}

// relLocal returns the slash-separated path of p relative to base. ok is
// false when p lies outside base.
func relLocal(base, p string) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(p))
	if err != nil {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// RemoteToLocal re-anchors a remote path onto the local base. ok is false
// when the remote path is outside the remote base, in which case no mirror
// applies. path.Join collapses duplicate separators, and an empty relative
// path yields the base itself.
func RemoteToLocal(remoteBase, localBase, remotePath string) (string, bool) {
	rel, ok := relRemote(remoteBase, remotePath)
	if !ok {
		return "", false
	}
	if rel == "" {
		return filepath.Clean(localBase), true
	}
	return filepath.Join(localBase, filepath.FromSlash(rel)), true
}

// LocalToRemote re-anchors a local path onto the remote base.
func LocalToRemote(remoteBase, localBase, localPath string) (string, bool) {
	rel, ok := relLocal(localBase, localPath)
	if !ok {
		return "", false
	}
	if rel == "" {
		return path.Clean(remoteBase), true
	}
	return path.Join(remoteBase, rel), true
}
