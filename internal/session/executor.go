package session

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/transfer"
)

// Executor moves transfer bytes on behalf of exactly one session. The
// binding is fixed when the executor is created, so a batch started against
// session A completes against session A even if the user switches to
// session B mid-flight.
type Executor struct {
	s *Session
}

// Executor returns a transfer executor bound to this session.
func (s *Session) Executor() *Executor {
	return &Executor{s: s}
}

var _ transfer.Executor = (*Executor)(nil)

// DestinationListing returns a fresh listing of the destination tree:
// remote for uploads, local for downloads. Conflict resolution needs
// live data here, not the render cache, so a file created since the last
// navigation still registers as a collision.
func (e *Executor) DestinationListing(ctx context.Context, direction transfer.Direction) (*backend.Listing, error) {
	if direction == transfer.DirectionUpload {
		return e.s.RefreshRemote(ctx)
	}
	return e.s.RefreshLocal()
}

// Transfer executes one item through the routed command family.
func (e *Executor) Transfer(ctx context.Context, it *transfer.Item, progress backend.ProgressFunc) error {
	if err := e.s.waitTurn(ctx); err != nil {
		return err
	}
	name := it.DestinationName()

	switch it.Direction {
	case transfer.DirectionUpload:
		dest := path.Join(it.DestDir, name)
		if e.s.provider != nil {
			return e.s.provider.Upload(ctx, it.SourcePath, dest, progress)
		}
		return e.s.legacy.Upload(ctx, it.SourcePath, dest, progress)
	case transfer.DirectionDownload:
		dest := filepath.Join(it.DestDir, name)
		if e.s.provider != nil {
			return e.s.provider.Download(ctx, it.SourcePath, dest, progress)
		}
		return e.s.legacy.Download(ctx, it.SourcePath, dest, progress)
	default:
		return backend.NewError(backend.OpUpload, backend.ErrUnknown,
			fmt.Errorf("unknown direction %q", it.Direction))
	}
}

// UploadFolder transfers a whole local directory. Only legacy backends
// expose a folder command; providers upload file by file through batches.
func (e *Executor) UploadFolder(ctx context.Context, localDir, remoteDir string, progress backend.ProgressFunc) error {
	if e.s.legacy == nil {
		return backend.NewError(backend.OpUploadFolder, backend.ErrUnknown,
			fmt.Errorf("folder transfer not supported for %s", e.s.BackendLabel()))
	}
	return e.s.legacy.UploadFolder(ctx, localDir, remoteDir, progress)
}

// DownloadFolder transfers a whole remote directory.
func (e *Executor) DownloadFolder(ctx context.Context, remoteDir, localDir string, progress backend.ProgressFunc) error {
	if e.s.legacy == nil {
		return backend.NewError(backend.OpDownloadFolder, backend.ErrUnknown,
			fmt.Errorf("folder transfer not supported for %s", e.s.BackendLabel()))
	}
	return e.s.legacy.DownloadFolder(ctx, remoteDir, localDir, progress)
}
