package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/constants"
	"github.com/halyard-dev/halyard/internal/events"
	"github.com/halyard-dev/halyard/internal/localfs"
	"github.com/halyard-dev/halyard/internal/logging"
	"github.com/halyard-dev/halyard/internal/ratelimit"
)

// Store owns every open session and the active-session pointer. All
// lifecycle mutations (create, switch, close) go through the store, which
// is the single mutation entry point; consumers read sessions through
// snapshots and never hold ambient globals.
//
// Session state itself (paths, cached listings, sync anchors) lives on the
// Session, so the snapshot a switch-away needs is already durable in memory
// before the switch proceeds. A failed reconnect on the incoming session
// can never cost the outgoing one its state.
type Store struct {
	mu       sync.Mutex
	sessions []*Session
	byID     map[string]*Session
	activeID string

	dialer backend.Dialer
	local  *localfs.Tree
	bus    *events.EventBus
	log    *logging.Logger
}

// NewStore creates an empty session store. bus may be nil in tests.
func NewStore(dialer backend.Dialer, local *localfs.Tree, bus *events.EventBus, log *logging.Logger) *Store {
	if local == nil {
		local = &localfs.Tree{}
	}
	if log == nil {
		log = logging.NewDefault()
	}
	return &Store{
		byID:   make(map[string]*Session),
		dialer: dialer,
		local:  local,
		bus:    bus,
		log:    log,
	}
}

// Create opens a new session: dials the backend, connects, loads the
// initial listings of both trees, and makes the session active. The params
// are deep-copied here. On any failure the store is left unchanged.
func (st *Store) Create(ctx context.Context, name string, params backend.ConnectionParams, remotePath, localPath string) (*Session, error) {
	s := &Session{
		ID:          uuid.NewString(),
		Name:        name,
		RemoteFiles: NewListingCache("remote"),
		LocalFiles:  NewListingCache("local"),
		params:      params.Clone(),
		status:      StatusConnecting,
		remotePath:  remotePath,
		localPath:   localPath,
		local:       st.local,
		bus:         st.bus,
		log:         st.log,
	}
	if params.Kind == backend.KindProvider {
		s.limiter = ratelimit.ForProvider()
	}

	if err := st.dial(s); err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, constants.ConnectTimeout)
	defer cancel()
	if err := s.connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.BackendLabel(), err)
	}

	if _, err := s.NavigateRemote(ctx, remotePath); err != nil {
		// The connection is up but the starting directory is not usable.
		// Tear down rather than hand back a half-open session.
		_ = s.disconnect(ctx)
		return nil, fmt.Errorf("initial listing %q: %w", remotePath, err)
	}
	if _, err := s.NavigateLocal(localPath); err != nil {
		_ = s.disconnect(ctx)
		return nil, fmt.Errorf("local listing %q: %w", localPath, err)
	}

	s.setStatus(StatusConnected, nil)

	st.mu.Lock()
	st.sessions = append(st.sessions, s)
	st.byID[s.ID] = s
	st.activeID = s.ID
	st.mu.Unlock()

	st.log.Info().
		Str("session", s.ID).
		Str("name", name).
		Str("backend", s.BackendLabel()).
		Msg("session created")
	st.publishSession(events.EventSessionCreated, s, nil)
	st.publishSession(events.EventSessionSwitched, s, nil)
	return s, nil
}

// dial creates the commander matching the routed command family.
func (st *Store) dial(s *Session) error {
	params := s.Params()
	if backend.Route(params.Kind, backend.OpConnect) == backend.FamilyProvider {
		p, err := st.dialer.DialProvider(params)
		if err != nil {
			return err
		}
		s.provider = p
		return nil
	}
	l, err := st.dialer.DialLegacy(params)
	if err != nil {
		return err
	}
	s.legacy = l
	return nil
}

// Switch makes the session with the given id active. The cached listings
// are published first so the frontend renders instantly, then the live
// connection is re-established and the last remote path restored. If the
// reconnect fails the session transitions to cached instead of being
// destroyed: the tab and its last-known view survive, and the error is
// returned once for surfacing.
func (st *Store) Switch(ctx context.Context, id string) error {
	st.mu.Lock()
	s, ok := st.byID[id]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("no session %q", id)
	}
	if st.activeID == id {
		st.mu.Unlock()
		return nil
	}
	st.activeID = id
	st.mu.Unlock()

	s.setStatus(StatusConnecting, nil)
	st.publishSession(events.EventSessionSwitched, s, nil)
	st.publishRestored(s)

	reconnectCtx, cancel := context.WithTimeout(ctx, constants.ConnectTimeout)
	defer cancel()
	if err := s.reconnect(reconnectCtx); err != nil {
		s.setStatus(StatusCached, err)
		st.log.Warn().
			Str("session", s.ID).
			Err(err).
			Msg("reconnect failed, session kept in cached state")
		return fmt.Errorf("reconnect %s: %w", s.Name, err)
	}

	if _, err := s.NavigateRemote(ctx, s.RemotePath()); err != nil {
		s.setStatus(StatusCached, err)
		return fmt.Errorf("restore path %q: %w", s.RemotePath(), err)
	}

	s.setStatus(StatusConnected, nil)
	return nil
}

// Close removes a session. The backend disconnect is best effort; a
// failure is logged and the session is removed regardless. If the closed
// session was active, another open session becomes active (reconnecting
// through the usual switch path), or the store falls back to having no
// active session at all.
func (st *Store) Close(ctx context.Context, id string) error {
	st.mu.Lock()
	s, ok := st.byID[id]
	if !ok {
		st.mu.Unlock()
		return fmt.Errorf("no session %q", id)
	}
	wasActive := st.activeID == id
	delete(st.byID, id)
	for i, other := range st.sessions {
		if other.ID == id {
			st.sessions = append(st.sessions[:i], st.sessions[i+1:]...)
			break
		}
	}
	var next *Session
	if wasActive {
		st.activeID = ""
		if len(st.sessions) > 0 {
			next = st.sessions[0]
		}
	}
	st.mu.Unlock()

	if err := s.disconnect(ctx); err != nil {
		st.log.Warn().Str("session", s.ID).Err(err).Msg("disconnect failed on close")
	}
	s.setStatus(StatusDisconnected, nil)
	st.publishSession(events.EventSessionClosed, s, nil)

	if next != nil {
		if err := st.Switch(ctx, next.ID); err != nil {
			// The fallback session stays open in cached state; the user
			// retries from there.
			st.log.Warn().Str("session", next.ID).Err(err).Msg("fallback switch failed")
		}
	}
	return nil
}

// Active returns the active session, or nil when disconnected.
func (st *Store) Active() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.activeID == "" {
		return nil
	}
	return st.byID[st.activeID]
}

// Get returns the session with the given id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.byID[id]
	return s, ok
}

// Sessions returns the open sessions in creation order.
func (st *Store) Sessions() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, len(st.sessions))
	copy(out, st.sessions)
	return out
}

// Len returns the number of open sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *Store) publishSession(t events.EventType, s *Session, err error) {
	if st.bus == nil {
		return
	}
	st.bus.Publish(&events.SessionEvent{
		BaseEvent:   events.BaseEvent{EventType: t, Time: time.Now()},
		SessionID:   s.ID,
		SessionName: s.Name,
		Backend:     s.BackendLabel(),
		NewStatus:   string(s.Status()),
		Err:         err,
	})
}

// publishRestored announces the cached listings of both trees so the
// frontend can render them before live data arrives.
func (st *Store) publishRestored(s *Session) {
	if st.bus == nil {
		return
	}
	for _, c := range []*ListingCache{s.RemoteFiles, s.LocalFiles} {
		st.bus.Publish(&events.NavigationEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventListingRestored, Time: time.Now()},
			SessionID: s.ID,
			Tree:      c.Source(),
			Path:      c.Path(),
			Entries:   c.Count(),
		})
	}
}
