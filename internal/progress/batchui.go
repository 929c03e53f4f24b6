package progress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/halyard-dev/halyard/internal/events"
)

// BatchUI renders a transfer batch as stacked progress bars, one per item.
// It consumes transfer events from the bus; the queue never talks to it
// directly. On a non-terminal it falls back to plain line output.
type BatchUI struct {
	bus        *events.EventBus
	progress   *mpb.Progress
	isTerminal bool
	out        io.Writer

	bars map[string]*itemBar // item ID -> bar
}

type itemBar struct {
	bar        *mpb.Bar
	name       string
	size       int64
	lastBytes  int64
	lastUpdate time.Time
}

// NewBatchUI creates a batch renderer. Bars render only when stderr is a
// terminal; otherwise each item prints start and finish lines.
func NewBatchUI(bus *events.EventBus) *BatchUI {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(300*time.Millisecond),
			mpb.WithWidth(80),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &BatchUI{
		bus:        bus,
		progress:   p,
		isTerminal: isTerminal,
		out:        os.Stderr,
		bars:       make(map[string]*itemBar),
	}
}

// Run consumes transfer events until the batch with the given ID finishes.
// It blocks; callers run it on the caller goroutine while the queue works
// in the background.
func (u *BatchUI) Run(batchID string) {
	ch := u.bus.SubscribeAll()
	defer u.bus.UnsubscribeAll(ch)

	for ev := range ch {
		switch e := ev.(type) {
		case *events.TransferEvent:
			if e.BatchID != batchID {
				continue
			}
			u.handleTransfer(e)
		case *events.ConflictEvent:
			if e.BatchID != batchID {
				continue
			}
			u.handleConflict(e)
		case *events.BatchEvent:
			if e.BatchID != batchID {
				continue
			}
			u.finish(e)
			return
		}
	}
}

func (u *BatchUI) handleTransfer(e *events.TransferEvent) {
	switch e.Type() {
	case events.EventTransferStarted:
		u.addBar(e)
	case events.EventTransferProgress:
		u.updateBar(e)
	case events.EventTransferCompleted:
		u.completeBar(e, "done")
	case events.EventTransferFailed:
		u.completeBar(e, "failed")
	case events.EventTransferSkipped:
		u.completeBar(e, "skipped")
	case events.EventTransferCancelled:
		u.completeBar(e, "cancelled")
	}
}

func (u *BatchUI) addBar(e *events.TransferEvent) {
	ib := &itemBar{
		name:       e.Name,
		size:       e.Size,
		lastUpdate: time.Now(),
	}
	if u.isTerminal {
		arrow := "↑"
		if e.Direction == "download" {
			arrow = "↓"
		}
		ib.bar = u.progress.New(e.Size,
			mpb.BarStyle().Lbound("[").Filler("=").Tip(">").Padding(" ").Rbound("]"),
			mpb.PrependDecorators(
				decor.Name(arrow+" "+truncateName(e.Name, 30), decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name(" "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name(" "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	} else {
		u.writef("%s %s (%s)\n", e.Direction, e.Name, formatBytes(e.Size))
	}
	u.bars[e.ItemID] = ib
}

func (u *BatchUI) updateBar(e *events.TransferEvent) {
	ib, ok := u.bars[e.ItemID]
	if !ok || ib.bar == nil {
		return
	}

	now := time.Now()
	current := int64(e.Progress * float64(ib.size))
	delta := current - ib.lastBytes
	if delta <= 0 {
		return
	}
	ib.bar.EwmaIncrBy(int(delta), now.Sub(ib.lastUpdate))
	ib.lastBytes = current
	ib.lastUpdate = now
}

func (u *BatchUI) completeBar(e *events.TransferEvent, outcome string) {
	ib, ok := u.bars[e.ItemID]
	if !ok {
		// Skipped and cancelled items never start, so no bar exists yet.
		u.writef("%s: %s\n", outcome, e.Name)
		return
	}
	delete(u.bars, e.ItemID)

	if ib.bar != nil {
		if outcome == "done" {
			ib.bar.SetCurrent(ib.size)
			ib.bar.SetTotal(ib.size, true)
		} else {
			ib.bar.Abort(true)
		}
	}

	switch outcome {
	case "done":
		u.writef("✓ %s (%s)\n", e.Name, formatBytes(e.Size))
	case "failed":
		u.writef("✗ %s: %v\n", e.Name, e.Err)
	default:
		u.writef("%s: %s\n", outcome, e.Name)
	}
}

func (u *BatchUI) handleConflict(e *events.ConflictEvent) {
	if e.Type() == events.EventConflictResolved {
		u.writef("conflict %s: %s\n", e.Name, e.Action)
	}
}

func (u *BatchUI) finish(e *events.BatchEvent) {
	u.progress.Wait()
	u.writef("batch finished: %d done, %d failed, %d skipped, %d cancelled (%s)\n",
		e.Completed, e.Failed, e.Skipped, e.Cancelled, e.Duration.Round(time.Second))
}

// writef prints above active bars when they are live, plainly otherwise.
func (u *BatchUI) writef(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if u.isTerminal {
		u.progress.Write([]byte(line))
		return
	}
	io.WriteString(u.out, line)
}

func truncateName(name string, max int) string {
	base := filepath.Base(name)
	if len(base) <= max {
		return base
	}
	return "…" + base[len(base)-max+1:]
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
