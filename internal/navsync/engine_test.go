package navsync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/session"
)

// stubLegacy serves scripted remote directories.
type stubLegacy struct {
	mu    sync.Mutex
	dirs  map[string]bool
	cwd   string
	mkdir []string
}

func newStubLegacy(dirs ...string) *stubLegacy {
	s := &stubLegacy{dirs: make(map[string]bool)}
	for _, d := range dirs {
		s.dirs[d] = true
	}
	return s
}

func (s *stubLegacy) Connect(ctx context.Context) error    { return nil }
func (s *stubLegacy) Disconnect(ctx context.Context) error { return nil }
func (s *stubLegacy) Reconnect(ctx context.Context) error  { return nil }

func (s *stubLegacy) List(ctx context.Context) (*backend.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &backend.Listing{Path: s.cwd}, nil
}

func (s *stubLegacy) ChangeDir(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirs[path] {
		return backend.NewError(backend.OpChangeDir, backend.ErrNotFound, os.ErrNotExist)
	}
	s.cwd = path
	return nil
}

func (s *stubLegacy) MakeDir(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[path] = true
	s.mkdir = append(s.mkdir, path)
	return nil
}

func (s *stubLegacy) DeleteFile(ctx context.Context, path string) error { return nil }
func (s *stubLegacy) DeleteDir(ctx context.Context, path string) error  { return nil }
func (s *stubLegacy) Rename(ctx context.Context, from, to string) error { return nil }

func (s *stubLegacy) Upload(ctx context.Context, localPath, remotePath string, progress backend.ProgressFunc) error {
	return nil
}

func (s *stubLegacy) Download(ctx context.Context, remotePath, localPath string, progress backend.ProgressFunc) error {
	return nil
}

func (s *stubLegacy) UploadFolder(ctx context.Context, localDir, remoteDir string, progress backend.ProgressFunc) error {
	return nil
}

func (s *stubLegacy) DownloadFolder(ctx context.Context, remoteDir, localDir string, progress backend.ProgressFunc) error {
	return nil
}

func (s *stubLegacy) KeepAlive(ctx context.Context) error      { return nil }
func (s *stubLegacy) CheckConnection(ctx context.Context) bool { return true }

type stubDialer struct{ legacy *stubLegacy }

func (d *stubDialer) DialLegacy(params backend.ConnectionParams) (backend.LegacyCommander, error) {
	return d.legacy, nil
}

func (d *stubDialer) DialProvider(params backend.ConnectionParams) (backend.ProviderCommander, error) {
	return nil, errors.New("not used")
}

type choicePrompter struct {
	choice MissingDirChoice
	calls  int
}

func (p *choicePrompter) ResolveMissingDir(ctx context.Context, tree, path string) (MissingDirChoice, error) {
	p.calls++
	return p.choice, nil
}

// newSyncedSession builds a connected session with mirroring enabled at
// (/site, <tmp>) and the given extra remote dirs available.
func newSyncedSession(t *testing.T, e *Engine, remoteDirs ...string) (*session.Session, *stubLegacy, string) {
	t.Helper()
	localBase := t.TempDir()
	stub := newStubLegacy(append([]string{"/site"}, remoteDirs...)...)
	st := session.NewStore(&stubDialer{legacy: stub}, nil, nil, nil)

	params := backend.ConnectionParams{
		Kind: backend.KindLegacy,
		FTP:  &backend.FTPOptions{Host: "h"},
	}
	s, err := st.Create(context.Background(), "sync", params, "/site", localBase)
	if err != nil {
		t.Fatal(err)
	}
	e.Enable(s)
	return s, stub, localBase
}

func TestMirrorRemoteChange(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil)
	s, _, localBase := newSyncedSession(t, e, "/site/img")
	if err := os.Mkdir(filepath.Join(localBase, "img"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := s.NavigateRemote(ctx, "/site/img"); err != nil {
		t.Fatal(err)
	}
	if err := e.MirrorRemoteChange(ctx, s, "/site", "/site/img"); err != nil {
		t.Fatal(err)
	}
	if got, want := s.LocalPath(), filepath.Join(localBase, "img"); got != want {
		t.Errorf("localPath = %q, want %q", got, want)
	}
}

func TestMirrorLocalChange(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil)
	s, stub, localBase := newSyncedSession(t, e, "/site/css")
	if err := os.Mkdir(filepath.Join(localBase, "css"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := s.NavigateLocal(filepath.Join(localBase, "css")); err != nil {
		t.Fatal(err)
	}
	if err := e.MirrorLocalChange(ctx, s, localBase, filepath.Join(localBase, "css")); err != nil {
		t.Fatal(err)
	}
	if got := s.RemotePath(); got != "/site/css" {
		t.Errorf("remotePath = %q, want /site/css", got)
	}
	if len(stub.mkdir) != 0 {
		t.Error("existing remote directory should not be re-created")
	}
}

func TestMirrorOutsideBaseDoesNothing(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil)
	s, _, localBase := newSyncedSession(t, e, "/var")

	ctx := context.Background()
	if _, err := s.NavigateRemote(ctx, "/var"); err != nil {
		t.Fatal(err)
	}
	if err := e.MirrorRemoteChange(ctx, s, "/site", "/var"); err != nil {
		t.Fatal(err)
	}
	if got := s.LocalPath(); got != localBase {
		t.Errorf("localPath = %q, navigation outside the base must not mirror", got)
	}
}

func TestMirrorMissingDirCreate(t *testing.T) {
	p := &choicePrompter{choice: ChoiceCreate}
	e := NewEngine(p, nil, nil, nil)
	s, _, localBase := newSyncedSession(t, e, "/site/new")

	ctx := context.Background()
	if _, err := s.NavigateRemote(ctx, "/site/new"); err != nil {
		t.Fatal(err)
	}
	if err := e.MirrorRemoteChange(ctx, s, "/site", "/site/new"); err != nil {
		t.Fatal(err)
	}
	if p.calls != 1 {
		t.Errorf("prompter calls = %d, want 1", p.calls)
	}
	want := filepath.Join(localBase, "new")
	if fi, err := os.Stat(want); err != nil || !fi.IsDir() {
		t.Fatalf("missing directory was not created: %v", err)
	}
	if got := s.LocalPath(); got != want {
		t.Errorf("localPath = %q, want %q", got, want)
	}
}

func TestMirrorMissingDirCreateRemote(t *testing.T) {
	p := &choicePrompter{choice: ChoiceCreate}
	e := NewEngine(p, nil, nil, nil)
	s, stub, localBase := newSyncedSession(t, e)
	if err := os.Mkdir(filepath.Join(localBase, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := s.NavigateLocal(filepath.Join(localBase, "docs")); err != nil {
		t.Fatal(err)
	}
	if err := e.MirrorLocalChange(ctx, s, localBase, filepath.Join(localBase, "docs")); err != nil {
		t.Fatal(err)
	}
	if len(stub.mkdir) != 1 || stub.mkdir[0] != "/site/docs" {
		t.Errorf("remote mkdir calls = %v, want [/site/docs]", stub.mkdir)
	}
	if got := s.RemotePath(); got != "/site/docs" {
		t.Errorf("remotePath = %q, want /site/docs", got)
	}
}

func TestMirrorMissingDirDisable(t *testing.T) {
	p := &choicePrompter{choice: ChoiceDisable}
	e := NewEngine(p, nil, nil, nil)
	s, _, _ := newSyncedSession(t, e, "/site/gone")

	ctx := context.Background()
	if _, err := s.NavigateRemote(ctx, "/site/gone"); err != nil {
		t.Fatal(err)
	}
	if err := e.MirrorRemoteChange(ctx, s, "/site", "/site/gone"); err != nil {
		t.Fatal(err)
	}
	if enabled, _ := s.SyncState(); enabled {
		t.Error("mirroring should be disabled")
	}
}

func TestMirrorMissingDirCancel(t *testing.T) {
	p := &choicePrompter{choice: ChoiceCancel}
	e := NewEngine(p, nil, nil, nil)
	s, _, _ := newSyncedSession(t, e, "/site/gone")

	ctx := context.Background()
	if _, err := s.NavigateRemote(ctx, "/site/gone"); err != nil {
		t.Fatal(err)
	}
	err := e.MirrorRemoteChange(ctx, s, "/site", "/site/gone")
	if !errors.Is(err, ErrNavigationCancelled) {
		t.Errorf("err = %v, want ErrNavigationCancelled", err)
	}
	if enabled, _ := s.SyncState(); !enabled {
		t.Error("cancel must leave mirroring enabled")
	}
	if got := s.RemotePath(); got != "/site" {
		t.Errorf("remotePath after cancel = %q, want /site (navigation must be reverted)", got)
	}
}

func TestMirrorMissingDirCancelRevertsLocal(t *testing.T) {
	p := &choicePrompter{choice: ChoiceCancel}
	e := NewEngine(p, nil, nil, nil)
	s, _, localBase := newSyncedSession(t, e)
	if err := os.Mkdir(filepath.Join(localBase, "orphan"), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	target := filepath.Join(localBase, "orphan")
	if _, err := s.NavigateLocal(target); err != nil {
		t.Fatal(err)
	}
	err := e.MirrorLocalChange(ctx, s, localBase, target)
	if !errors.Is(err, ErrNavigationCancelled) {
		t.Errorf("err = %v, want ErrNavigationCancelled", err)
	}
	if got := s.LocalPath(); got != localBase {
		t.Errorf("localPath after cancel = %q, want %q (navigation must be reverted)", got, localBase)
	}
	if got := s.RemotePath(); got != "/site" {
		t.Errorf("remotePath = %q, the failed mirror must not move the remote tree", got)
	}
}

func TestMirrorDisabledSessionDoesNothing(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil)
	s, _, localBase := newSyncedSession(t, e, "/site/img")
	e.Disable(s)

	ctx := context.Background()
	if _, err := s.NavigateRemote(ctx, "/site/img"); err != nil {
		t.Fatal(err)
	}
	if err := e.MirrorRemoteChange(ctx, s, "/site", "/site/img"); err != nil {
		t.Fatal(err)
	}
	if got := s.LocalPath(); got != localBase {
		t.Errorf("localPath = %q, disabled engine must not mirror", got)
	}
}

func TestEnableCapturesCurrentPair(t *testing.T) {
	e := NewEngine(nil, nil, nil, nil)
	s, _, localBase := newSyncedSession(t, e)

	enabled, base := s.SyncState()
	if !enabled {
		t.Fatal("sync should be enabled")
	}
	if base.Remote != "/site" || base.Local != localBase {
		t.Errorf("base = %+v, want {/site %s}", base, localBase)
	}
}
