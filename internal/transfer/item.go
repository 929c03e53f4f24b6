// Package transfer sequences batches of upload and download operations.
// Items in a batch run strictly one at a time so backend connection state
// and progress reporting stay coherent; conflicts are resolved per item
// before any bytes move.
package transfer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Direction indicates whether an item moves bytes up or down.
type Direction string

const (
	DirectionUpload   Direction = "upload"
	DirectionDownload Direction = "download"
)

// ItemState represents the current state of a transfer item.
type ItemState string

const (
	ItemQueued    ItemState = "queued"
	ItemActive    ItemState = "active"
	ItemCompleted ItemState = "completed"
	ItemFailed    ItemState = "failed"
	ItemSkipped   ItemState = "skipped"    // skipped by conflict resolution
	ItemCancelled ItemState = "cancelled"  // cancelled before dispatch
)

// Item is a single queued file operation. Items are exclusively owned by
// the batch that carries them and are never shared across sessions.
type Item struct {
	ID        string
	Direction Direction

	// Name is the file's base name; DestName is the resolved destination
	// name, which differs from Name after a rename resolution.
	Name     string
	DestName string

	SourcePath string
	DestDir    string // destination directory; final path is DestDir + DestName
	Size       int64
	ModTime    time.Time

	// State tracking
	State    ItemState
	Err      error
	Progress float64 // 0.0 to 1.0
	Speed    float64 // bytes/sec, EMA smoothed

	// Speed calculation internals
	lastBytes      int64
	lastUpdateTime time.Time

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	mu sync.RWMutex
}

// NewItem creates a queued transfer item.
func NewItem(direction Direction, name, sourcePath, destDir string, size int64, modTime time.Time) *Item {
	return &Item{
		ID:         uuid.NewString(),
		Direction:  direction,
		Name:       name,
		DestName:   name,
		SourcePath: sourcePath,
		DestDir:    destDir,
		Size:       size,
		ModTime:    modTime,
		State:      ItemQueued,
		CreatedAt:  time.Now(),
	}
}

// GetState returns the current state (thread-safe).
func (it *Item) GetState() ItemState {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.State
}

// setState updates the state and stamps transition times.
func (it *Item) setState(state ItemState) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.State = state
	switch state {
	case ItemActive:
		if it.StartedAt.IsZero() {
			it.StartedAt = time.Now()
		}
	case ItemCompleted, ItemFailed, ItemSkipped, ItemCancelled:
		it.CompletedAt = time.Now()
	}
}

// setError records a failure with the underlying error preserved.
func (it *Item) setError(err error) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.Err = err
	it.State = ItemFailed
	it.CompletedAt = time.Now()
}

// GetError returns the recorded error, if any (thread-safe).
func (it *Item) GetError() error {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.Err
}

// GetProgress returns current progress (thread-safe).
func (it *Item) GetProgress() float64 {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.Progress
}

// GetSpeed returns the smoothed transfer speed in bytes/sec (thread-safe).
func (it *Item) GetSpeed() float64 {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.Speed
}

// updateProgress records transferred bytes and refreshes the EMA speed.
// Updates closer together than 100ms keep the previous rate so the display
// stays smooth without turning noisy.
func (it *Item) updateProgress(transferred, total int64) {
	if total <= 0 {
		total = it.Size
	}
	if total <= 0 {
		return
	}

	it.mu.Lock()
	defer it.mu.Unlock()

	now := time.Now()
	it.Progress = float64(transferred) / float64(total)

	if it.lastBytes == 0 && transferred > 0 {
		it.lastBytes = transferred
		it.lastUpdateTime = now
		return
	}

	if transferred > it.lastBytes {
		elapsed := now.Sub(it.lastUpdateTime).Seconds()
		if elapsed > 0.1 {
			instant := float64(transferred-it.lastBytes) / elapsed

			const alpha = 0.25
			if it.Speed > 0 {
				it.Speed = alpha*instant + (1-alpha)*it.Speed
			} else {
				it.Speed = instant
			}

			it.lastBytes = transferred
			it.lastUpdateTime = now
		}
	}
}

// DestinationName returns the resolved destination name (thread-safe).
func (it *Item) DestinationName() string {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.DestName
}

func (it *Item) setDestName(name string) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.DestName = name
}

// IsTerminal reports whether the item reached a final state.
func (it *Item) IsTerminal() bool {
	switch it.GetState() {
	case ItemCompleted, ItemFailed, ItemSkipped, ItemCancelled:
		return true
	}
	return false
}

// Clone returns a copy of the item's observable state for display.
func (it *Item) Clone() Item {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return Item{
		ID:          it.ID,
		Direction:   it.Direction,
		Name:        it.Name,
		DestName:    it.DestName,
		SourcePath:  it.SourcePath,
		DestDir:     it.DestDir,
		Size:        it.Size,
		ModTime:     it.ModTime,
		State:       it.State,
		Err:         it.Err,
		Progress:    it.Progress,
		Speed:       it.Speed,
		CreatedAt:   it.CreatedAt,
		StartedAt:   it.StartedAt,
		CompletedAt: it.CompletedAt,
	}
}
