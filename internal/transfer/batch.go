package transfer

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Batch groups the items of one user-initiated transfer operation. The
// cancel flag is cooperative: it is checked before each item starts, so an
// in-flight item completes or fails before cancellation takes effect.
type Batch struct {
	ID        string
	SessionID string
	Label     string
	Items     []*Item

	cancelled atomic.Bool
}

// NewBatch creates a batch bound to a session identity. The binding is
// fixed at creation: a batch started against one session keeps running
// against it even if the user switches sessions mid-flight.
func NewBatch(sessionID, label string, items []*Item) *Batch {
	return &Batch{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Label:     label,
		Items:     items,
	}
}

// Cancel requests cooperative cancellation of the remaining items.
func (b *Batch) Cancel() { b.cancelled.Store(true) }

// Cancelled reports whether batch-level cancellation was requested.
func (b *Batch) Cancelled() bool { return b.cancelled.Load() }

// Stats summarizes the final state of each item.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Cancelled int
}

// Stats tallies item states.
func (b *Batch) Stats() Stats {
	s := Stats{Total: len(b.Items)}
	for _, it := range b.Items {
		switch it.GetState() {
		case ItemCompleted:
			s.Completed++
		case ItemFailed:
			s.Failed++
		case ItemSkipped:
			s.Skipped++
		case ItemCancelled:
			s.Cancelled++
		}
	}
	return s
}
