package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveEmptyReturnsWorkingDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	got, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve(\"\"): %v", err)
	}
	if got != wd {
		t.Errorf("Resolve(\"\") = %q, want %q", got, wd)
	}
}

func TestResolveTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := Resolve("~")
	if err != nil {
		t.Fatalf("Resolve(~): %v", err)
	}
	want, _ := filepath.EvalSymlinks(home)
	if want == "" {
		want = home
	}
	if got != want {
		t.Errorf("Resolve(~) = %q, want %q", got, want)
	}
}

func TestResolveNonexistentKeepsTail(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "not", "created", "yet")

	got, err := Resolve(target)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if filepath.Base(got) != "yet" {
		t.Errorf("Resolve(%q) = %q, tail lost", target, got)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("Resolve(%q) = %q, not absolute", target, got)
	}
}

func TestResolveThroughSymlink(t *testing.T) {
	base := t.TempDir()
	real := filepath.Join(base, "real")
	if err := os.Mkdir(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := Resolve(filepath.Join(link, "sub"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	resolvedReal, _ := filepath.EvalSymlinks(real)
	want := filepath.Join(resolvedReal, "sub")
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}
