package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/halyard-dev/halyard/internal/backend"
	"github.com/halyard-dev/halyard/internal/overwrite"
)

// fakeExecutor records dispatch order and can fail selected items.
type fakeExecutor struct {
	dest       *backend.Listing
	dispatched []string
	failWith   map[string]error // item name -> error
	onDispatch func(name string)
}

func (f *fakeExecutor) DestinationListing(_ context.Context, _ Direction) (*backend.Listing, error) {
	if f.dest == nil {
		f.dest = &backend.Listing{Path: "/dest"}
	}
	return f.dest, nil
}

func (f *fakeExecutor) Transfer(_ context.Context, item *Item, progress backend.ProgressFunc) error {
	f.dispatched = append(f.dispatched, item.Name)
	if f.onDispatch != nil {
		f.onDispatch(item.Name)
	}
	if err, ok := f.failWith[item.Name]; ok {
		return err
	}
	if progress != nil {
		progress(item.Size, item.Size)
	}
	return nil
}

// cancelPrompter cancels on the nth conflict it sees.
type cancelPrompter struct {
	cancelOn string
}

func (p *cancelPrompter) ResolveConflict(_ context.Context, c overwrite.Conflict) (overwrite.Decision, error) {
	if c.Name == p.cancelOn {
		return overwrite.Decision{Action: overwrite.ActionCancel}, nil
	}
	return overwrite.Decision{Action: overwrite.ActionOverwrite}, nil
}

func uploadItems(names ...string) []*Item {
	items := make([]*Item, 0, len(names))
	for _, n := range names {
		items = append(items, NewItem(DirectionUpload, n, "/src/"+n, "/dest", 100, time.Now()))
	}
	return items
}

func TestRunAllComplete(t *testing.T) {
	exec := &fakeExecutor{}
	r := NewRunner(overwrite.NewResolver(overwrite.PolicyAsk, nil), nil, nil)
	b := NewBatch("sess-1", "test", uploadItems("a", "b", "c"))

	stats, err := r.Run(context.Background(), b, exec)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 3 {
		t.Errorf("completed = %d, want 3", stats.Completed)
	}
	want := []string{"a", "b", "c"}
	for i, n := range want {
		if exec.dispatched[i] != n {
			t.Errorf("dispatch order %v, want %v", exec.dispatched, want)
			break
		}
	}
}

func TestRunCancelDecisionAbortsRemainder(t *testing.T) {
	// Five items, every name collides, user cancels on item 3.
	names := []string{"f1", "f2", "f3", "f4", "f5"}
	entries := make([]backend.Entry, 0, len(names))
	for _, n := range names {
		entries = append(entries, backend.Entry{Name: n, Size: 5, ModTime: time.Now()})
	}
	exec := &fakeExecutor{dest: &backend.Listing{Path: "/dest", Entries: entries}}

	r := NewRunner(overwrite.NewResolver(overwrite.PolicyAsk, &cancelPrompter{cancelOn: "f3"}), nil, nil)
	b := NewBatch("sess-1", "test", uploadItems(names...))

	stats, err := r.Run(context.Background(), b, exec)
	if err != nil {
		t.Fatal(err)
	}

	if got := b.Items[0].GetState(); got != ItemCompleted {
		t.Errorf("item 1 state = %s, want completed", got)
	}
	if got := b.Items[1].GetState(); got != ItemCompleted {
		t.Errorf("item 2 state = %s, want completed", got)
	}
	for i := 2; i < 5; i++ {
		if got := b.Items[i].GetState(); got != ItemCancelled {
			t.Errorf("item %d state = %s, want cancelled", i+1, got)
		}
	}
	if stats.Cancelled != 3 {
		t.Errorf("cancelled = %d, want 3", stats.Cancelled)
	}

	// Items at and after the cancel point must never be dispatched.
	for _, name := range exec.dispatched {
		if name == "f3" || name == "f4" || name == "f5" {
			t.Errorf("%s was dispatched after cancel", name)
		}
	}
}

func TestRunSkipDecision(t *testing.T) {
	exec := &fakeExecutor{dest: &backend.Listing{
		Path:    "/dest",
		Entries: []backend.Entry{{Name: "b", Size: 100, ModTime: time.Now()}},
	}}
	r := NewRunner(overwrite.NewResolver(overwrite.PolicyAlwaysSkip, nil), nil, nil)
	b := NewBatch("sess-1", "test", uploadItems("a", "b", "c"))

	stats, err := r.Run(context.Background(), b, exec)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 2 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 2 completed 1 skipped", stats)
	}
	if b.Items[1].GetState() != ItemSkipped {
		t.Errorf("colliding item state = %s, want skipped", b.Items[1].GetState())
	}
}

func TestRunConnectionLossHaltsBatch(t *testing.T) {
	exec := &fakeExecutor{failWith: map[string]error{
		"b": backend.NewError(backend.OpUpload, backend.ErrConnectionLost, errors.New("broken pipe")),
	}}
	r := NewRunner(overwrite.NewResolver(overwrite.PolicyAsk, nil), nil, nil)
	b := NewBatch("sess-1", "test", uploadItems("a", "b", "c", "d"))

	stats, err := r.Run(context.Background(), b, exec)
	if err == nil {
		t.Fatal("expected batch error on connection loss")
	}
	if stats.Completed != 1 || stats.Failed != 1 || stats.Cancelled != 2 {
		t.Errorf("stats = %+v, want 1 completed 1 failed 2 cancelled", stats)
	}
	if b.Items[1].GetError() == nil {
		t.Error("failed item should preserve the underlying error")
	}
	for _, name := range exec.dispatched {
		if name == "c" || name == "d" {
			t.Errorf("%s was dispatched after connection loss", name)
		}
	}
}

func TestRunOrdinaryFailureContinuesBatch(t *testing.T) {
	exec := &fakeExecutor{failWith: map[string]error{
		"b": backend.NewError(backend.OpUpload, backend.ErrPermissionDenied, errors.New("denied")),
	}}
	r := NewRunner(overwrite.NewResolver(overwrite.PolicyAsk, nil), nil, nil)
	b := NewBatch("sess-1", "test", uploadItems("a", "b", "c"))

	stats, err := r.Run(context.Background(), b, exec)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want 2 completed 1 failed", stats)
	}
}

func TestRunBatchCancelCheckedAtItemBoundary(t *testing.T) {
	r := NewRunner(overwrite.NewResolver(overwrite.PolicyAsk, nil), nil, nil)
	b := NewBatch("sess-1", "test", uploadItems("a", "b", "c"))

	exec := &fakeExecutor{}
	exec.onDispatch = func(name string) {
		if name == "a" {
			// User cancels while the first item is in flight.
			b.Cancel()
		}
	}

	stats, err := r.Run(context.Background(), b, exec)
	if err != nil {
		t.Fatal(err)
	}
	// The in-flight item finishes; the rest never start.
	if b.Items[0].GetState() != ItemCompleted {
		t.Errorf("item 1 state = %s, want completed", b.Items[0].GetState())
	}
	if stats.Cancelled != 2 {
		t.Errorf("cancelled = %d, want 2", stats.Cancelled)
	}
	if len(exec.dispatched) != 1 {
		t.Errorf("dispatched %v, want only the first item", exec.dispatched)
	}
}

func TestRunRenameAdjustsDestination(t *testing.T) {
	exec := &fakeExecutor{dest: &backend.Listing{
		Path:    "/dest",
		Entries: []backend.Entry{{Name: "a.txt", Size: 100, ModTime: time.Now()}},
	}}
	r := NewRunner(overwrite.NewResolver(overwrite.PolicyAlwaysRename, nil), nil, nil)
	b := NewBatch("sess-1", "test", uploadItems("a.txt"))

	if _, err := r.Run(context.Background(), b, exec); err != nil {
		t.Fatal(err)
	}
	if got := b.Items[0].DestinationName(); got != "a_1.txt" {
		t.Errorf("destination name = %q, want a_1.txt", got)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	r := NewRunner(overwrite.NewResolver(overwrite.PolicyAsk, nil), nil, nil)
	b := NewBatch("sess-1", "test", nil)
	if _, err := r.Run(context.Background(), b, &fakeExecutor{}); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestItemProgressSpeed(t *testing.T) {
	it := NewItem(DirectionDownload, "f", "/r/f", "/l", 1000, time.Now())
	it.updateProgress(100, 1000)
	if it.GetProgress() != 0.1 {
		t.Errorf("progress = %f, want 0.1", it.GetProgress())
	}
	time.Sleep(150 * time.Millisecond)
	it.updateProgress(600, 1000)
	if it.GetSpeed() <= 0 {
		t.Error("speed should be positive after a measurable delta")
	}
}
