package session

import (
	"context"
	"time"

	"github.com/halyard-dev/halyard/internal/constants"
	"github.com/halyard-dev/halyard/internal/events"
	"github.com/halyard-dev/halyard/internal/logging"
)

// Supervisor runs the liveness probe on the active session. A failed probe
// on a connection-oriented backend triggers exactly one automatic reconnect
// attempt: on success the last listing is replayed and the user is notified
// transparently; on failure the session goes disconnected and the error is
// surfaced once. Stateless backends shrug off probe failures because their
// next real request re-authenticates implicitly.
type Supervisor struct {
	store *Store
	bus   *events.EventBus
	log   *logging.Logger

	interval     time.Duration
	probeTimeout time.Duration
}

// NewSupervisor creates a supervisor for the store's active session.
func NewSupervisor(store *Store, bus *events.EventBus, log *logging.Logger) *Supervisor {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Supervisor{
		store:        store,
		bus:          bus,
		log:          log,
		interval:     constants.KeepAliveInterval,
		probeTimeout: constants.KeepAliveTimeout,
	}
}

// Run probes periodically until ctx is cancelled. Intended to run in its
// own goroutine alongside navigation and transfers.
func (sv *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(sv.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sv.ProbeActive(ctx)
		}
	}
}

// ProbeActive runs one probe cycle against the active session, if any.
// Exposed separately so a frontend can force a check.
func (sv *Supervisor) ProbeActive(ctx context.Context) {
	s := sv.store.Active()
	if s == nil || s.Status() != StatusConnected {
		return
	}
	sv.probe(ctx, s)
}

// probe issues the keep-alive and supervises recovery. The session identity
// is captured up front; a mid-probe session switch does not redirect the
// recovery to a different session.
func (sv *Supervisor) probe(ctx context.Context, s *Session) {
	probeCtx, cancel := context.WithTimeout(ctx, sv.probeTimeout)
	err := s.KeepAlive(probeCtx)
	cancel()
	if err == nil {
		return
	}

	if !s.Kind().ConnectionOriented() {
		// Stateless HTTP backend: the next real operation re-authenticates,
		// so a failed probe is noise, not a state change.
		sv.log.Debug().
			Str("session", s.ID).
			Err(err).
			Msg("keep-alive failed on stateless backend, ignoring")
		return
	}

	sv.log.Warn().
		Str("session", s.ID).
		Err(err).
		Msg("keep-alive failed, attempting reconnect")

	reconnectCtx, cancel := context.WithTimeout(ctx, constants.ReconnectTimeout)
	reconnectErr := s.reconnect(reconnectCtx)
	cancel()
	if reconnectErr != nil {
		// One attempt only. Surface the failure exactly once through the
		// status transition and stop touching the session.
		s.setStatus(StatusDisconnected, reconnectErr)
		sv.log.Error().
			Str("session", s.ID).
			Err(reconnectErr).
			Msg("reconnect failed, session disconnected")
		return
	}

	// Replay the last listing so the view reflects the fresh connection.
	if _, err := s.NavigateRemote(ctx, s.RemotePath()); err != nil {
		sv.log.Warn().
			Str("session", s.ID).
			Err(err).
			Msg("listing replay failed after reconnect")
	}

	sv.log.Info().Str("session", s.ID).Msg("connection recovered")
	if sv.bus != nil {
		sv.bus.Publish(&events.SessionEvent{
			BaseEvent:   events.BaseEvent{EventType: events.EventSessionRecovered, Time: time.Now()},
			SessionID:   s.ID,
			SessionName: s.Name,
			Backend:     s.BackendLabel(),
			NewStatus:   string(StatusConnected),
		})
	}
}
