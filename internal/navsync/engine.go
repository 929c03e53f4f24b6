package navsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/events"
	"github.com/halyard-dev/halyard/internal/localfs"
	"github.com/halyard-dev/halyard/internal/logging"
	"github.com/halyard-dev/halyard/internal/session"
)

// ErrNavigationCancelled is returned when the user answers a missing-dir
// prompt by cancelling the navigation that triggered the mismatch. The
// engine has already navigated the source tree back to where it was, so
// callers only need to report the cancellation.
var ErrNavigationCancelled = errors.New("navigation cancelled")

// MissingDirChoice is the user's answer when a mirrored path does not
// exist on the other tree.
type MissingDirChoice int

const (
	// ChoiceCreate creates the missing directory and continues mirroring.
	ChoiceCreate MissingDirChoice = iota
	// ChoiceDisable turns mirroring off for the session.
	ChoiceDisable
	// ChoiceCancel aborts the navigation that triggered the mismatch.
	ChoiceCancel
)

// Prompter asks the user what to do about a missing mirrored directory.
// A mirrored path that does not exist is never a silent failure.
type Prompter interface {
	ResolveMissingDir(ctx context.Context, tree, path string) (MissingDirChoice, error)
}

// Engine mirrors navigation between the two trees of a session. Mirrored
// navigations are applied directly to the session, so a mirror can never
// trigger another mirror.
type Engine struct {
	prompter Prompter
	local    *localfs.Tree
	bus      *events.EventBus
	log      *logging.Logger

	mu        sync.Mutex
	mirroring bool
}

// NewEngine creates a mirroring engine. prompter may be nil, in which case
// a missing mirrored directory disables mirroring.
func NewEngine(prompter Prompter, local *localfs.Tree, bus *events.EventBus, log *logging.Logger) *Engine {
	if local == nil {
		local = &localfs.Tree{}
	}
	if log == nil {
		log = logging.NewDefault()
	}
	return &Engine{prompter: prompter, local: local, bus: bus, log: log}
}

// Enable turns mirroring on for the session, capturing the current
// (remote, local) path pair as the anchor.
func (e *Engine) Enable(s *session.Session) {
	base := session.SyncBase{Remote: s.RemotePath(), Local: s.LocalPath()}
	s.SetSync(true, base)
	e.log.Info().
		Str("session", s.ID).
		Str("remote_base", base.Remote).
		Str("local_base", base.Local).
		Msg("navigation sync enabled")
}

// Disable turns mirroring off. The base pair is cleared on the session.
func (e *Engine) Disable(s *session.Session) {
	s.SetSync(false, session.SyncBase{})
	e.publishDisabled(s)
}

// MirrorRemoteChange applies a successful remote navigation to the local
// tree. Paths outside the remote base do not mirror. prevPath is the
// remote directory before the navigation; cancelling over a missing local
// directory navigates the remote tree back there and returns
// ErrNavigationCancelled, so the two trees never stay divergent.
func (e *Engine) MirrorRemoteChange(ctx context.Context, s *session.Session, prevPath, remotePath string) error {
	enabled, base := s.SyncState()
	if !enabled || !e.enter() {
		return nil
	}
	defer e.leave()

	target, ok := RemoteToLocal(base.Remote, base.Local, remotePath)
	if !ok {
		return nil
	}

	if _, err := s.NavigateLocal(target); err != nil {
		if !backend.IsNotFound(err) {
			return err
		}
		choice, cerr := e.askMissingDir(ctx, "local", target)
		if cerr != nil {
			return cerr
		}
		switch choice {
		case ChoiceCreate:
			if err := e.local.MakeDir(target); err != nil {
				return err
			}
			if _, err := s.NavigateLocal(target); err != nil {
				return err
			}
		case ChoiceDisable:
			e.Disable(s)
			return nil
		case ChoiceCancel:
			if _, rerr := s.NavigateRemote(ctx, prevPath); rerr != nil {
				e.log.Warn().Err(rerr).
					Str("path", prevPath).
					Msg("could not revert remote navigation after cancel")
			}
			return ErrNavigationCancelled
		}
	}

	e.publishApplied(s, "remote", remotePath, target)
	return nil
}

// MirrorLocalChange applies a successful local navigation to the remote
// tree through the session's routed command family. prevPath is the local
// directory before the navigation; cancelling over a missing remote
// directory navigates the local tree back there.
func (e *Engine) MirrorLocalChange(ctx context.Context, s *session.Session, prevPath, localPath string) error {
	enabled, base := s.SyncState()
	if !enabled || !e.enter() {
		return nil
	}
	defer e.leave()

	target, ok := LocalToRemote(base.Remote, base.Local, localPath)
	if !ok {
		return nil
	}

	if _, err := s.NavigateRemote(ctx, target); err != nil {
		if !backend.IsNotFound(err) {
			return err
		}
		choice, cerr := e.askMissingDir(ctx, "remote", target)
		if cerr != nil {
			return cerr
		}
		switch choice {
		case ChoiceCreate:
			if err := s.MakeRemoteDir(ctx, target); err != nil {
				return err
			}
			if _, err := s.NavigateRemote(ctx, target); err != nil {
				return err
			}
		case ChoiceDisable:
			e.Disable(s)
			return nil
		case ChoiceCancel:
			if _, rerr := s.NavigateLocal(prevPath); rerr != nil {
				e.log.Warn().Err(rerr).
					Str("path", prevPath).
					Msg("could not revert local navigation after cancel")
			}
			return ErrNavigationCancelled
		}
	}

	e.publishApplied(s, "local", localPath, target)
	return nil
}

// enter flags a mirror in progress; a nested call reports false and is
// dropped, which is what keeps mirroring from recursing.
func (e *Engine) enter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mirroring {
		return false
	}
	e.mirroring = true
	return true
}

func (e *Engine) leave() {
	e.mu.Lock()
	e.mirroring = false
	e.mu.Unlock()
}

func (e *Engine) askMissingDir(ctx context.Context, tree, path string) (MissingDirChoice, error) {
	if e.bus != nil {
		e.bus.Publish(&events.MirrorEvent{
			BaseEvent:  events.BaseEvent{EventType: events.EventMirrorMissingDir, Time: time.Now()},
			SourceTree: tree,
			TargetPath: path,
		})
	}
	if e.prompter == nil {
		return ChoiceDisable, nil
	}
	return e.prompter.ResolveMissingDir(ctx, tree, path)
}

func (e *Engine) publishApplied(s *session.Session, sourceTree, sourcePath, targetPath string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(&events.MirrorEvent{
		BaseEvent:  events.BaseEvent{EventType: events.EventMirrorApplied, Time: time.Now()},
		SessionID:  s.ID,
		SourceTree: sourceTree,
		SourcePath: sourcePath,
		TargetPath: targetPath,
	})
}

func (e *Engine) publishDisabled(s *session.Session) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(&events.MirrorEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventMirrorDisabled, Time: time.Now()},
		SessionID: s.ID,
	})
}
