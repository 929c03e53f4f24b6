package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/constants"
	"github.com/halyard-dev/halyard/internal/diskspace"
	"github.com/halyard-dev/halyard/internal/events"
	"github.com/halyard-dev/halyard/internal/logging"
	"github.com/halyard-dev/halyard/internal/overwrite"
)

// Executor moves the bytes for one item. The session layer implements it
// bound to a single session identity, so the runner never touches session
// state directly.
type Executor interface {
	// DestinationListing returns the current listing of the destination
	// tree for the given direction (remote for uploads, local for
	// downloads).
	DestinationListing(ctx context.Context, direction Direction) (*backend.Listing, error)

	// Transfer executes one item. Implementations report progress
	// through the callback and return classified backend errors.
	Transfer(ctx context.Context, item *Item, progress backend.ProgressFunc) error
}

// Runner executes transfer batches strictly sequentially.
type Runner struct {
	resolver *overwrite.Resolver
	bus      *events.EventBus
	log      *logging.Logger
}

// NewRunner creates a batch runner. bus may be nil in tests.
func NewRunner(resolver *overwrite.Resolver, bus *events.EventBus, log *logging.Logger) *Runner {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Runner{resolver: resolver, bus: bus, log: log}
}

// Run processes the batch one item at a time: resolve the destination
// conflict, then dispatch, then record the outcome. It returns an error
// only for batch-level failures (interrupted prompt, connection loss,
// failed preflight); per-item failures are recorded on the items.
//
// Cancellation is cooperative. Both the batch cancel flag and ctx are
// checked at item boundaries; every item cancelled that way is explicitly
// marked, never silently dropped.
func (r *Runner) Run(ctx context.Context, b *Batch, exec Executor) (Stats, error) {
	start := time.Now()

	if err := r.preflight(b); err != nil {
		r.cancelRemaining(b, 0)
		return b.Stats(), err
	}

	for _, it := range b.Items {
		r.publishItem(events.EventTransferQueued, b, it)
	}

	// One batch context per run: an apply-to-all decision can never
	// outlive the batch that made it.
	bc := overwrite.NewBatchContext()

	dest, err := exec.DestinationListing(ctx, b.Items[0].Direction)
	if err != nil {
		r.cancelRemaining(b, 0)
		return b.Stats(), fmt.Errorf("destination listing: %w", err)
	}

	for i, it := range b.Items {
		if b.Cancelled() || ctx.Err() != nil {
			r.cancelRemaining(b, i)
			break
		}

		decision, err := r.resolver.Resolve(ctx, bc, overwrite.Conflict{
			Name:           it.Name,
			SourceSize:     it.Size,
			SourceModTime:  it.ModTime,
			SourceIsRemote: it.Direction == DirectionDownload,
			Remaining:      len(b.Items) - i - 1,
		}, dest)
		if err != nil {
			r.cancelRemaining(b, i)
			return b.Stats(), err
		}

		r.publishConflict(b, it, decision)

		switch decision.Action {
		case overwrite.ActionSkip:
			it.setState(ItemSkipped)
			r.publishItem(events.EventTransferSkipped, b, it)
			continue
		case overwrite.ActionCancel:
			// Cancel aborts the current item and everything after it.
			r.cancelRemaining(b, i)
			r.finish(b, start)
			return b.Stats(), nil
		case overwrite.ActionRename:
			it.setDestName(decision.NewName)
		}

		it.setState(ItemActive)
		r.publishItem(events.EventTransferStarted, b, it)

		err = exec.Transfer(ctx, it, func(transferred, total int64) {
			it.updateProgress(transferred, total)
			r.publishItem(events.EventTransferProgress, b, it)
		})
		if err != nil {
			it.setError(err)
			r.publishItem(events.EventTransferFailed, b, it)
			if backend.IsConnectionLost(err) {
				// The connection is gone; nothing behind this item
				// can proceed. Halt and surface.
				r.cancelRemaining(b, i+1)
				r.finish(b, start)
				return b.Stats(), fmt.Errorf("connection lost, batch halted: %w", err)
			}
			continue
		}

		it.setState(ItemCompleted)
		r.publishItem(events.EventTransferCompleted, b, it)

		// Keep the conflict view current without re-listing: the item
		// now exists at its destination name.
		r.noteTransferred(dest, it)
	}

	r.finish(b, start)
	return b.Stats(), nil
}

// preflight checks local disk space before a download batch starts, so a
// batch that cannot fit fails up front instead of midway.
func (r *Runner) preflight(b *Batch) error {
	if len(b.Items) == 0 {
		return fmt.Errorf("empty batch")
	}
	if b.Items[0].Direction != DirectionDownload {
		return nil
	}
	var total int64
	for _, it := range b.Items {
		total += it.Size
	}
	target := b.Items[0].DestDir
	if err := diskspace.CheckAvailableSpace(target, total, constants.DiskSpaceSafetyMargin); err != nil {
		return fmt.Errorf("disk space preflight: %w", err)
	}
	return nil
}

// cancelRemaining marks every non-terminal item from index on as cancelled.
func (r *Runner) cancelRemaining(b *Batch, from int) {
	for _, it := range b.Items[from:] {
		if it.IsTerminal() {
			continue
		}
		it.setState(ItemCancelled)
		r.publishItem(events.EventTransferCancelled, b, it)
	}
}

// noteTransferred updates the local view of the destination listing after
// a completed item.
func (r *Runner) noteTransferred(dest *backend.Listing, it *Item) {
	if dest == nil {
		return
	}
	name := it.DestinationName()
	for i := range dest.Entries {
		if dest.Entries[i].Name == name {
			dest.Entries[i].Size = it.Size
			dest.Entries[i].ModTime = time.Now()
			return
		}
	}
	dest.Entries = append(dest.Entries, backend.Entry{
		Name:    name,
		Size:    it.Size,
		ModTime: time.Now(),
	})
}

func (r *Runner) finish(b *Batch, start time.Time) {
	s := b.Stats()
	r.log.Info().
		Str("batch", b.ID).
		Int("completed", s.Completed).
		Int("failed", s.Failed).
		Int("skipped", s.Skipped).
		Int("cancelled", s.Cancelled).
		Msg("batch finished")
	if r.bus != nil {
		r.bus.Publish(&events.BatchEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventBatchFinished, Time: time.Now()},
			BatchID:   b.ID,
			Total:     s.Total,
			Completed: s.Completed,
			Failed:    s.Failed,
			Skipped:   s.Skipped,
			Cancelled: s.Cancelled,
			Duration:  time.Since(start),
		})
	}
}

func (r *Runner) publishItem(t events.EventType, b *Batch, it *Item) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(&events.TransferEvent{
		BaseEvent: events.BaseEvent{EventType: t, Time: time.Now()},
		BatchID:   b.ID,
		ItemID:    it.ID,
		SessionID: b.SessionID,
		Direction: string(it.Direction),
		Name:      it.Name,
		Size:      it.Size,
		Progress:  it.GetProgress(),
		Speed:     it.GetSpeed(),
		Err:       it.GetError(),
	})
}

func (r *Runner) publishConflict(b *Batch, it *Item, d overwrite.Decision) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(&events.ConflictEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventConflictResolved, Time: time.Now()},
		BatchID:   b.ID,
		Name:      it.Name,
		Action:    string(d.Action),
		ApplyAll:  d.ApplyToAll,
	})
}
