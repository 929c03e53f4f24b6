package navsync

import (
	"path/filepath"
	"testing"
)

func TestRemoteToLocal(t *testing.T) {
	cases := []struct {
		remotePath string
		want       string
		ok         bool
	}{
		{"/site/img", filepath.FromSlash("/home/site/img"), true},
		{"/site/img/icons", filepath.FromSlash("/home/site/img/icons"), true},
		{"/site", filepath.FromSlash("/home/site"), true}, // same as base
		{"/site/", filepath.FromSlash("/home/site"), true},
		{"/var/www", "", false}, // outside base
		{"/siteextra", "", false},
		{"/", "", false},
	}
	for _, c := range cases {
		got, ok := RemoteToLocal("/site", "/home/site", c.remotePath)
		if ok != c.ok || got != c.want {
			t.Errorf("RemoteToLocal(/site, /home/site, %q) = (%q, %v), want (%q, %v)",
				c.remotePath, got, ok, c.want, c.ok)
		}
	}
}

func TestLocalToRemote(t *testing.T) {
	cases := []struct {
		localPath string
		want      string
		ok        bool
	}{
		{filepath.FromSlash("/home/site/css"), "/site/css", true},
		{filepath.FromSlash("/home/site"), "/site", true}, // same as base
		{filepath.FromSlash("/home/other"), "", false},
		{filepath.FromSlash("/home"), "", false},
	}
	for _, c := range cases {
		got, ok := LocalToRemote("/site", filepath.FromSlash("/home/site"), c.localPath)
		if ok != c.ok || got != c.want {
			t.Errorf("LocalToRemote(%q) = (%q, %v), want (%q, %v)",
				c.localPath, got, ok, c.want, c.ok)
		}
	}
}

func TestRemoteToLocalRootBase(t *testing.T) {
	got, ok := RemoteToLocal("/", "/home/mirror", "/img")
	if !ok || got != filepath.FromSlash("/home/mirror/img") {
		t.Errorf("got (%q, %v)", got, ok)
	}
}

// Joining never produces duplicate separators, even when the base carries
// a trailing one.
func TestRebaseCollapsesSeparators(t *testing.T) {
	got, ok := LocalToRemote("/site/", filepath.FromSlash("/home/site"), filepath.FromSlash("/home/site/css"))
	if !ok || got != "/site/css" {
		t.Errorf("got (%q, %v), want (/site/css, true)", got, ok)
	}
}
