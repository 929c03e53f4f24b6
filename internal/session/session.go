// Package session implements connection sessions and their lifecycle: the
// store that owns them, the supervisor that keeps them alive, and the
// per-session command dispatch through the backend router.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/events"
	"github.com/halyard-dev/halyard/internal/localfs"
	"github.com/halyard-dev/halyard/internal/logging"
	"github.com/halyard-dev/halyard/internal/ratelimit"
)

// Status is the connection state of a session.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	// StatusCached means a reconnect failed but the last-known listings
	// are still available for display. The session stays open; the user
	// retries manually or closes it.
	StatusCached       Status = "cached"
	StatusDisconnected Status = "disconnected"
)

// SyncBase is the anchor path pair captured when navigation mirroring is
// enabled.
type SyncBase struct {
	Remote string
	Local  string
}

// Session is one independent connection context: a backend, a remote and a
// local working directory, and the cached listings of both trees.
//
// The backend kind is fixed at creation; switching protocols means opening
// a new session. Connection params are deep-copied in, so later edits to
// the draft they came from never reach a live session.
type Session struct {
	ID   string
	Name string

	// RemoteFiles and LocalFiles cache the last-known listing of each
	// tree so a session switch renders instantly.
	RemoteFiles *ListingCache
	LocalFiles  *ListingCache

	mu          sync.RWMutex
	params      backend.ConnectionParams
	status      Status
	remotePath  string
	localPath   string
	syncEnabled bool
	syncBase    SyncBase

	// Exactly one of these is set, matching the routed command family.
	legacy   backend.LegacyCommander
	provider backend.ProviderCommander

	// navMu serializes navigation and listing operations on this session:
	// a navigation's result is applied before the next one dispatches, so
	// a stale listing can never overwrite a newer one.
	navMu sync.Mutex

	// limiter paces provider API requests; nil for legacy backends,
	// which hold a single stateful connection and self-serialize.
	limiter *ratelimit.Limiter

	local *localfs.Tree
	bus   *events.EventBus
	log   *logging.Logger
}

// waitTurn blocks until the request limiter grants a token. Sessions
// without a limiter proceed immediately.
func (s *Session) waitTurn(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

// Kind returns the session's backend kind.
func (s *Session) Kind() backend.Kind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.Kind
}

// SubKind returns the provider sub-kind, or "" for legacy backends.
func (s *Session) SubKind() backend.SubKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.SubKind
}

// Params returns a deep copy of the connection params.
func (s *Session) Params() backend.ConnectionParams {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.Clone()
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// RemotePath returns the current remote working directory.
func (s *Session) RemotePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remotePath
}

// LocalPath returns the current local working directory.
func (s *Session) LocalPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localPath
}

// SyncState returns the navigation-mirroring state and its base paths.
func (s *Session) SyncState() (bool, SyncBase) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncEnabled, s.syncBase
}

// SetSync enables or disables navigation mirroring. The base pair is only
// written here, never by the mirroring itself.
func (s *Session) SetSync(enabled bool, base SyncBase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncEnabled = enabled
	s.syncBase = base
}

// BackendLabel returns a human-readable backend identifier for logs and
// events ("secure-legacy", "provider/s3", ...).
func (s *Session) BackendLabel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.params.Kind == backend.KindProvider {
		return string(s.params.Kind) + "/" + string(s.params.SubKind)
	}
	return string(s.params.Kind)
}

// setStatus transitions the session status and publishes the change. err is
// set on failed transitions so the frontend can surface it.
func (s *Session) setStatus(status Status, err error) {
	s.mu.Lock()
	old := s.status
	s.status = status
	id, name, label := s.ID, s.Name, ""
	if s.params.Kind == backend.KindProvider {
		label = string(s.params.Kind) + "/" + string(s.params.SubKind)
	} else {
		label = string(s.params.Kind)
	}
	s.mu.Unlock()

	if old == status {
		return
	}
	if s.bus != nil {
		s.bus.PublishSessionStatus(id, name, label, string(old), string(status), err)
	}
}

// connect establishes the backend connection for a fresh session.
func (s *Session) connect(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Connect(ctx)
	}
	return s.legacy.Connect(ctx)
}

// reconnect re-establishes the connection. Legacy backends tear down and
// redial; provider backends re-run Connect, which re-authenticates (OAuth
// token refresh included) as a side effect.
func (s *Session) reconnect(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Connect(ctx)
	}
	return s.legacy.Reconnect(ctx)
}

// disconnect closes the backend connection. Best effort; callers decide
// whether a failure matters.
func (s *Session) disconnect(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Disconnect(ctx)
	}
	return s.legacy.Disconnect(ctx)
}

// KeepAlive issues the protocol no-op used by the liveness probe.
func (s *Session) KeepAlive(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.KeepAlive(ctx)
	}
	return s.legacy.KeepAlive(ctx)
}

// CheckConnection reports whether the backend connection is usable.
func (s *Session) CheckConnection(ctx context.Context) bool {
	if s.provider != nil {
		return s.provider.CheckConnection(ctx)
	}
	return s.legacy.CheckConnection(ctx)
}

// Capabilities reports optional provider features. Legacy backends support
// none of them.
func (s *Session) Capabilities(ctx context.Context) backend.Capabilities {
	if s.provider != nil {
		return s.provider.Capabilities(ctx)
	}
	return backend.Capabilities{}
}

// listRemote lists the given remote directory through the routed command
// family. Legacy backends track the working directory server-side, so the
// change-directory command runs first; providers are addressed by path.
func (s *Session) listRemote(ctx context.Context, path string) (*backend.Listing, error) {
	if err := s.waitTurn(ctx); err != nil {
		return nil, err
	}
	if backend.Route(s.Kind(), backend.OpList) == backend.FamilyProvider {
		return s.provider.List(ctx, path)
	}
	if err := s.legacy.ChangeDir(ctx, path); err != nil {
		return nil, err
	}
	l, err := s.legacy.List(ctx)
	if err != nil {
		return nil, err
	}
	if l.Path == "" {
		l.Path = path
	}
	return l, nil
}

// NavigateRemote changes the remote working directory and refreshes the
// cached listing. A failed navigation leaves path and cache untouched.
func (s *Session) NavigateRemote(ctx context.Context, path string) (*backend.Listing, error) {
	s.navMu.Lock()
	defer s.navMu.Unlock()

	l, err := s.listRemote(ctx, path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.remotePath = path
	s.mu.Unlock()
	s.RemoteFiles.Set(l)

	s.publishNavigation("remote", path, len(l.Entries))
	return l, nil
}

// RefreshRemote re-lists the current remote directory.
func (s *Session) RefreshRemote(ctx context.Context) (*backend.Listing, error) {
	s.navMu.Lock()
	defer s.navMu.Unlock()

	l, err := s.listRemote(ctx, s.RemotePath())
	if err != nil {
		return nil, err
	}
	s.RemoteFiles.Set(l)
	return l, nil
}

// NavigateLocal changes the local working directory and refreshes the
// cached listing.
func (s *Session) NavigateLocal(path string) (*backend.Listing, error) {
	s.navMu.Lock()
	defer s.navMu.Unlock()

	l, err := s.local.List(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.localPath = path
	s.mu.Unlock()
	s.LocalFiles.Set(l)

	s.publishNavigation("local", path, len(l.Entries))
	return l, nil
}

// RefreshLocal re-lists the current local directory.
func (s *Session) RefreshLocal() (*backend.Listing, error) {
	s.navMu.Lock()
	defer s.navMu.Unlock()

	l, err := s.local.List(s.LocalPath())
	if err != nil {
		return nil, err
	}
	s.LocalFiles.Set(l)
	return l, nil
}

// MakeRemoteDir creates a directory on the remote tree.
func (s *Session) MakeRemoteDir(ctx context.Context, path string) error {
	if err := s.waitTurn(ctx); err != nil {
		return err
	}
	if backend.Route(s.Kind(), backend.OpMakeDir) == backend.FamilyProvider {
		return s.provider.MakeDir(ctx, path)
	}
	return s.legacy.MakeDir(ctx, path)
}

// DeleteRemoteFile removes a file on the remote tree.
func (s *Session) DeleteRemoteFile(ctx context.Context, path string) error {
	if err := s.waitTurn(ctx); err != nil {
		return err
	}
	if backend.Route(s.Kind(), backend.OpDeleteFile) == backend.FamilyProvider {
		return s.provider.DeleteFile(ctx, path)
	}
	return s.legacy.DeleteFile(ctx, path)
}

// DeleteRemoteDir removes a directory on the remote tree. The recursive
// flag only reaches provider backends; legacy servers decide for
// themselves.
func (s *Session) DeleteRemoteDir(ctx context.Context, path string, recursive bool) error {
	if err := s.waitTurn(ctx); err != nil {
		return err
	}
	if backend.Route(s.Kind(), backend.OpDeleteDir) == backend.FamilyProvider {
		return s.provider.DeleteDir(ctx, path, recursive)
	}
	return s.legacy.DeleteDir(ctx, path)
}

// RenameRemote renames an entry on the remote tree.
func (s *Session) RenameRemote(ctx context.Context, from, to string) error {
	if err := s.waitTurn(ctx); err != nil {
		return err
	}
	if backend.Route(s.Kind(), backend.OpRename) == backend.FamilyProvider {
		return s.provider.Rename(ctx, from, to)
	}
	return s.legacy.Rename(ctx, from, to)
}

func (s *Session) publishNavigation(tree, path string, entries int) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(&events.NavigationEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventNavigationCompleted, Time: time.Now()},
		SessionID: s.ID,
		Tree:      tree,
		Path:      path,
		Entries:   entries,
	})
}
